package analyzer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ParseError reports a malformed input row. Input files are contracts, not
// best-effort feeds: any row that cannot be parsed aborts the run.
type ParseError struct {
	Filename string
	Line     int
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("in file %s, line %d: %v", e.Filename, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// csvParser reads a headered csv file and retrieves typed column values from
// the current row by header name.
type csvParser struct {
	filename      string
	line          int
	csvReader     *csv.Reader
	headers       []string
	currentRecord []string
}

// makeCSVParser creates a csvParser from an io.Reader, consuming the header row.
func makeCSVParser(r io.Reader, filename string) (*csvParser, error) {
	csvReader := csv.NewReader(r)
	headers, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to load header in %s: %v", filename, err)
	}
	removeBOMIfPresent(headers)
	return &csvParser{
		filename:  filename,
		line:      1,
		csvReader: csvReader,
		headers:   headers,
	}, nil
}

func removeBOMIfPresent(headers []string) {
	if len(headers) < 1 || len(headers[0]) < 1 {
		return
	}
	runes := []rune(headers[0])
	if runes[0] == '\uFEFF' {
		headers[0] = string(runes[1:])
	}
}

// nextLine moves the parser one row forward. Returns io.EOF at end of input.
func (c *csvParser) nextLine() error {
	record, err := c.csvReader.Read()
	if err == io.EOF {
		return io.EOF
	}
	c.line += 1
	if err != nil {
		return c.parseError(err)
	}
	c.currentRecord = record
	return nil
}

// getString retrieves the named column from the current row.
func (c *csvParser) getString(name string) (string, error) {
	index := indexOf(name, c.headers)
	if index < 0 {
		return "", c.parseError(fmt.Errorf("unable to find header: %s", name))
	}
	if len(c.currentRecord) <= index {
		return "", c.parseError(fmt.Errorf("row too short to hold column %s at %d", name, index))
	}
	value := c.currentRecord[index]
	if len(value) == 0 {
		return "", c.parseError(fmt.Errorf("missing required value in column %s", name))
	}
	return value, nil
}

// getInt retrieves the named column as an int.
func (c *csvParser) getInt(name string) (int, error) {
	value, err := c.getString(name)
	if err != nil {
		return 0, err
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, c.parseError(fmt.Errorf("unable to parse column %s: %v", name, err))
	}
	return result, nil
}

// getFloat64 retrieves the named column as a float64.
func (c *csvParser) getFloat64(name string) (float64, error) {
	value, err := c.getString(name)
	if err != nil {
		return 0, err
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, c.parseError(fmt.Errorf("unable to parse column %s: %v", name, err))
	}
	return result, nil
}

// getTime retrieves the named column as a timestamp in
// "YYYY-MM-DD HH:MM:SS" layout.
func (c *csvParser) getTime(name string) (time.Time, error) {
	value, err := c.getString(name)
	if err != nil {
		return time.Time{}, err
	}
	const layout = "2006-01-02 15:04:05"
	result, err := time.ParseInLocation(layout, value, time.Local)
	if err != nil {
		return time.Time{}, c.parseError(fmt.Errorf("unable to parse column %s: %v", name, err))
	}
	return result, nil
}

func (c *csvParser) parseError(err error) *ParseError {
	return &ParseError{Filename: c.filename, Line: c.line, Err: err}
}

// indexOf finds the position of name in elements, -1 if missing.
func indexOf(name string, elements []string) int {
	for i, value := range elements {
		if name == value {
			return i
		}
	}
	return -1
}
