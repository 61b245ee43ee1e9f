// Package route holds the static description of a bus route: its ordered
// stop table and the projection contract used to map raw coordinates onto it.
package route

import (
	"fmt"
)

// Stop is one stop on the route. Distance is the cumulative distance in
// meters traveled along the route geometry to reach the stop.
type Stop struct {
	Id        int
	Terminal  bool
	Latitude  float64
	Longitude float64
	Distance  float64
}

// StopTable is the ordered, immutable sequence of stops on a route.
// Stop ids are dense 1..N in travel order and cumulative distances are
// strictly increasing.
type StopTable struct {
	stops []Stop
}

// NewStopTable validates stops and builds a StopTable.
// Stops must arrive sorted by id starting at 1 with no gaps, distances must
// strictly increase, and both route endpoints must be flagged as terminals.
func NewStopTable(stops []Stop) (*StopTable, error) {
	if len(stops) < 2 {
		return nil, fmt.Errorf("stop table requires at least two stops, found %d", len(stops))
	}
	for i, stop := range stops {
		if stop.Id != i+1 {
			return nil, fmt.Errorf("stop ids must be dense starting at 1, found id %d at position %d", stop.Id, i+1)
		}
		if i > 0 && stop.Distance <= stops[i-1].Distance {
			return nil, fmt.Errorf("stop %d distance %.1f does not advance past stop %d distance %.1f",
				stop.Id, stop.Distance, stops[i-1].Id, stops[i-1].Distance)
		}
	}
	if !stops[0].Terminal {
		return nil, fmt.Errorf("first stop %d is not flagged as a terminal", stops[0].Id)
	}
	if !stops[len(stops)-1].Terminal {
		return nil, fmt.Errorf("last stop %d is not flagged as a terminal", stops[len(stops)-1].Id)
	}
	table := make([]Stop, len(stops))
	copy(table, stops)
	return &StopTable{stops: table}, nil
}

// Len returns the number of stops on the route.
func (st *StopTable) Len() int {
	return len(st.stops)
}

// ByID retrieves a stop by id, false if out of range.
func (st *StopTable) ByID(id int) (Stop, bool) {
	if id < 1 || id > len(st.stops) {
		return Stop{}, false
	}
	return st.stops[id-1], true
}

// First returns the route's starting terminal.
func (st *StopTable) First() Stop {
	return st.stops[0]
}

// Last returns the route's final terminal.
func (st *StopTable) Last() Stop {
	return st.stops[len(st.stops)-1]
}

// MatchStop finds the last stop the given cumulative route distance has
// reached. A stop captures positions slightly short of it: within
// stopTolerance meters for a regular stop, or terminalTolerance meters for a
// terminal, where route curvature makes projection less precise.
// Returns nil when the distance is before the first stop's capture range.
func (st *StopTable) MatchStop(distance, stopTolerance, terminalTolerance float64) *Stop {
	var matched *Stop
	for i := range st.stops {
		stop := &st.stops[i]
		tolerance := stopTolerance
		if stop.Terminal {
			tolerance = terminalTolerance
		}
		if distance >= stop.Distance-tolerance {
			matched = stop
		}
	}
	return matched
}

// NearStart reports whether the stop id is within the first n stops of the route.
func (st *StopTable) NearStart(id, n int) bool {
	return id >= 1 && id <= n
}

// NearEnd reports whether the stop id is within n stops of the final terminal.
func (st *StopTable) NearEnd(id, n int) bool {
	return id <= len(st.stops) && id >= len(st.stops)-n
}

// PreTerminalCurveStop reports whether the stop is one of the two stops
// immediately before the final terminal. Projection near the turnaround
// curve can snap positions from the route start onto these stops.
func (st *StopTable) PreTerminalCurveStop(id int) bool {
	n := len(st.stops)
	return id == n-1 || id == n-2
}
