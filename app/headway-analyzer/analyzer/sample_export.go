package analyzer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// WriteSampleFiles writes one file per stop under dir, one headway sample in
// seconds per line. Stops without samples produce no file.
func WriteSampleFiles(dir string, report *Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating sample directory %s: %w", dir, err)
	}
	for _, stop := range report.Stops {
		if len(stop.Headways) == 0 {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("stop-%d.txt", stop.StopId))
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating sample file %s: %w", path, err)
		}
		for _, sample := range stop.Headways {
			if _, err = fmt.Fprintln(file, strconv.FormatFloat(sample, 'f', -1, 64)); err != nil {
				_ = file.Close()
				return fmt.Errorf("writing sample file %s: %w", path, err)
			}
		}
		if err = file.Close(); err != nil {
			return fmt.Errorf("closing sample file %s: %w", path, err)
		}
	}
	return nil
}

// WriteSummaryFile writes the per-stop summary statistics as a csv file.
func WriteSummaryFile(path string, report *Report) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating summary file %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	writer := csv.NewWriter(file)
	header := []string{"stop_id", "samples", "mean_s", "min_s", "max_s", "coefficient_of_variation"}
	if err = writer.Write(header); err != nil {
		return fmt.Errorf("writing summary header: %w", err)
	}
	for _, stop := range report.Stops {
		row := []string{
			strconv.Itoa(stop.StopId),
			strconv.Itoa(stop.Summary.Samples),
			strconv.FormatFloat(stop.Summary.Mean, 'f', 2, 64),
			strconv.FormatFloat(stop.Summary.Min, 'f', 2, 64),
			strconv.FormatFloat(stop.Summary.Max, 'f', 2, 64),
			strconv.FormatFloat(stop.Summary.CoefficientOfVariation, 'f', 4, 64),
		}
		if err = writer.Write(row); err != nil {
			return fmt.Errorf("writing summary row for stop %d: %w", stop.StopId, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
