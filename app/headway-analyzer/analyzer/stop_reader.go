package analyzer

import (
	"io"

	"github.com/marcosroriz/headway-analysis/business/data/route"
)

// ReadStopTable loads and validates the route's stop table from a csv file.
// Expected columns: id, terminal, lat, lng, cumulative_distance_m.
func ReadStopTable(r io.Reader, filename string) (*route.StopTable, error) {
	parser, err := makeCSVParser(r, filename)
	if err != nil {
		return nil, err
	}
	var stops []route.Stop
	for {
		err := parser.nextLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		id, err := parser.getInt("id")
		if err != nil {
			return nil, err
		}
		terminal, err := parser.getInt("terminal")
		if err != nil {
			return nil, err
		}
		lat, err := parser.getFloat64("lat")
		if err != nil {
			return nil, err
		}
		lng, err := parser.getFloat64("lng")
		if err != nil {
			return nil, err
		}
		distance, err := parser.getFloat64("cumulative_distance_m")
		if err != nil {
			return nil, err
		}
		stops = append(stops, route.Stop{
			Id:        id,
			Terminal:  terminal != 0,
			Latitude:  lat,
			Longitude: lng,
			Distance:  distance,
		})
	}
	return route.NewStopTable(stops)
}
