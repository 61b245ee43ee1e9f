// Package headway reconstructs per-vehicle stop pass events from noisy AVL
// pings and aggregates them into per-stop headway samples and statistics.
package headway

import "time"

// Ping is one raw AVL vehicle position report.
// Pings for a vehicle must be fed to its tracker in ascending time order.
type Ping struct {
	Time      time.Time
	RouteId   int
	VehicleId int
	// Direction is carried from the feed but never consulted when
	// segmenting trips.
	Direction int
	Latitude  float64
	Longitude float64
	Status    string
}

// Window is the observation window in hours of day, half open: a ping at
// StartHour is inside, a ping at EndHour is past it.
type Window struct {
	StartHour int
	EndHour   int
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return t.Hour() >= w.StartHour && t.Hour() < w.EndHour
}

// Past reports whether t is at or beyond the end of the window. Because the
// input stream is globally time sorted, the first ping past the window ends
// the scan.
func (w Window) Past(t time.Time) bool {
	return t.Hour() >= w.EndHour
}
