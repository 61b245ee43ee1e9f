package analyzer

import (
	"io"

	"github.com/marcosroriz/headway-analysis/business/headway"
)

// avlReader streams AVL pings from a csv file. Expected columns:
// time, route_id, vehicle_id, direction, lat, lng, status.
// The file must be globally sorted by time; the run driver relies on that
// ordering to stop scanning once the observation window has passed.
type avlReader struct {
	parser *csvParser
}

// newAVLReader builds an avlReader over r, consuming the header row.
func newAVLReader(r io.Reader, filename string) (*avlReader, error) {
	parser, err := makeCSVParser(r, filename)
	if err != nil {
		return nil, err
	}
	return &avlReader{parser: parser}, nil
}

// next reads the next ping. Returns io.EOF at end of input; any other error
// is a fatal *ParseError.
func (a *avlReader) next() (*headway.Ping, error) {
	if err := a.parser.nextLine(); err != nil {
		return nil, err
	}
	pingTime, err := a.parser.getTime("time")
	if err != nil {
		return nil, err
	}
	routeId, err := a.parser.getInt("route_id")
	if err != nil {
		return nil, err
	}
	vehicleId, err := a.parser.getInt("vehicle_id")
	if err != nil {
		return nil, err
	}
	direction, err := a.parser.getInt("direction")
	if err != nil {
		return nil, err
	}
	lat, err := a.parser.getFloat64("lat")
	if err != nil {
		return nil, err
	}
	lng, err := a.parser.getFloat64("lng")
	if err != nil {
		return nil, err
	}
	status, err := a.parser.getString("status")
	if err != nil {
		return nil, err
	}
	return &headway.Ping{
		Time:      pingTime,
		RouteId:   routeId,
		VehicleId: vehicleId,
		Direction: direction,
		Latitude:  lat,
		Longitude: lng,
		Status:    status,
	}, nil
}
