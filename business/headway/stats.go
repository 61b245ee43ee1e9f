package headway

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary reduces one stop's headway samples against the scheduled headway.
// CoefficientOfVariation is the population standard deviation of
// (observed - scheduled) normalized by the scheduled headway: the dispersion
// of how far actual spacing strays from the timetable.
type Summary struct {
	Samples                int     `json:"samples"`
	Mean                   float64 `json:"mean_s"`
	Min                    float64 `json:"min_s"`
	Max                    float64 `json:"max_s"`
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`
}

// MarshalJSON renders NaN statistics as null; json has no other way to
// express them.
func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Samples                int      `json:"samples"`
		Mean                   *float64 `json:"mean_s"`
		Min                    *float64 `json:"min_s"`
		Max                    *float64 `json:"max_s"`
		CoefficientOfVariation *float64 `json:"coefficient_of_variation"`
	}{
		Samples:                s.Samples,
		Mean:                   nullableFloat(s.Mean),
		Min:                    nullableFloat(s.Min),
		Max:                    nullableFloat(s.Max),
		CoefficientOfVariation: nullableFloat(s.CoefficientOfVariation),
	})
}

func nullableFloat(f float64) *float64 {
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

// Summarize reduces headway samples in seconds against scheduledHeadway in
// seconds. An empty sample list reports NaN statistics; that is data, not an
// error.
func Summarize(samples []float64, scheduledHeadway float64) Summary {
	if len(samples) == 0 {
		nan := math.NaN()
		return Summary{Mean: nan, Min: nan, Max: nan, CoefficientOfVariation: nan}
	}
	deviations := make([]float64, len(samples))
	for i, sample := range samples {
		deviations[i] = sample - scheduledHeadway
	}
	return Summary{
		Samples:                len(samples),
		Mean:                   stat.Mean(samples, nil),
		Min:                    floats.Min(samples),
		Max:                    floats.Max(samples),
		CoefficientOfVariation: stat.PopStdDev(deviations, nil) / scheduledHeadway,
	}
}
