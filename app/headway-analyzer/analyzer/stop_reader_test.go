package analyzer

import (
	"errors"
	"strings"
	"testing"
)

func TestReadStopTable(t *testing.T) {
	input := "id,terminal,lat,lng,cumulative_distance_m\n" +
		"1,1,-16.6785,-49.2546,0\n" +
		"2,0,-16.6801,-49.2533,412.5\n" +
		"3,0,-16.6823,-49.2511,871.2\n" +
		"4,1,-16.6850,-49.2488,1390.8\n"

	table, err := ReadStopTable(strings.NewReader(input), "stops.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != 4 {
		t.Fatalf("expected 4 stops, got %d", table.Len())
	}
	if !table.First().Terminal || !table.Last().Terminal {
		t.Error("route endpoints should be terminals")
	}
	stop, present := table.ByID(2)
	if !present {
		t.Fatal("stop 2 should be present")
	}
	if stop.Terminal {
		t.Error("stop 2 should not be a terminal")
	}
	if stop.Distance != 412.5 {
		t.Errorf("stop 2 distance: expected 412.5, got %.1f", stop.Distance)
	}
}

func TestReadStopTable_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantParse bool // true when the failure should be a *ParseError
	}{
		{
			name: "missing column",
			input: "id,terminal,lat,lng\n" +
				"1,1,-16.6785,-49.2546\n",
			wantParse: true,
		},
		{
			name: "unparseable distance",
			input: "id,terminal,lat,lng,cumulative_distance_m\n" +
				"1,1,-16.6785,-49.2546,abc\n",
			wantParse: true,
		},
		{
			name: "empty required value",
			input: "id,terminal,lat,lng,cumulative_distance_m\n" +
				"1,,-16.6785,-49.2546,0\n",
			wantParse: true,
		},
		{
			name: "stop ids out of order fail table validation",
			input: "id,terminal,lat,lng,cumulative_distance_m\n" +
				"2,1,-16.6785,-49.2546,0\n" +
				"1,1,-16.6850,-49.2488,1390.8\n",
			wantParse: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadStopTable(strings.NewReader(tt.input), "stops.csv")
			if err == nil {
				t.Fatal("expected an error, got none")
			}
			var parseErr *ParseError
			if got := errors.As(err, &parseErr); got != tt.wantParse {
				t.Errorf("expected ParseError=%v, got %v (%v)", tt.wantParse, got, err)
			}
			if parseErr != nil && parseErr.Filename != "stops.csv" {
				t.Errorf("parse error should carry the filename, got %q", parseErr.Filename)
			}
		})
	}
}
