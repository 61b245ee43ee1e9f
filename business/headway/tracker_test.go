package headway

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/marcosroriz/headway-analysis/business/data/route"
)

// metersPerDegree matches the flat-earth latitude scale used by the tracker's
// proximity check, so test coordinates can be written in route meters.
const metersPerDegree = 111300.0

// fakeProjector projects latitude as distance along the route and longitude
// as distance from the route, both expressed in meters via metersPerDegree.
type fakeProjector struct{}

func (fakeProjector) DistanceAlongRoute(lat, _ float64) (float64, error) {
	return lat * metersPerDegree, nil
}

func (fakeProjector) DistanceFromRoute(_, lng float64) (float64, error) {
	return lng * metersPerDegree, nil
}

func testStopTable(t *testing.T, distances []float64) *route.StopTable {
	t.Helper()
	stops := make([]route.Stop, len(distances))
	for i, distance := range distances {
		stops[i] = route.Stop{
			Id:       i + 1,
			Terminal: i == 0 || i == len(distances)-1,
			Distance: distance,
		}
	}
	table, err := route.NewStopTable(stops)
	if err != nil {
		t.Fatalf("unable to build stop table: %v", err)
	}
	return table
}

var testDay = time.Date(2019, 2, 18, 12, 0, 0, 0, time.UTC)

// at returns a timestamp sec seconds into the observation window.
func at(sec int) time.Time {
	return testDay.Add(time.Duration(sec) * time.Second)
}

// makePing builds a ping whose projection is alongMeters along the route and
// offRouteMeters from it.
func makePing(vehicleId int, pingTime time.Time, alongMeters, offRouteMeters float64) Ping {
	return Ping{
		Time:      pingTime,
		RouteId:   263,
		VehicleId: vehicleId,
		Latitude:  alongMeters / metersPerDegree,
		Longitude: offRouteMeters / metersPerDegree,
	}
}

type wantEvent struct {
	vehicleId int
	stopId    int
	passTime  time.Time
}

func TestTrackerCollection_NewPing(t *testing.T) {
	window := Window{StartHour: 12, EndHour: 14}

	tests := []struct {
		name      string
		distances []float64
		pings     []Ping
		flush     bool
		want      []wantEvent
	}{
		{
			name:      "monotonic constant velocity trip",
			distances: []float64{0, 1000, 2000, 3000},
			pings: []Ping{
				makePing(7, at(0), 0, 0),
				makePing(7, at(100), 1000, 0),
				makePing(7, at(200), 2000, 0),
				makePing(7, at(300), 3000, 0),
			},
			want: []wantEvent{
				{7, 2, at(100)},
				{7, 3, at(200)},
				{7, 4, at(300)},
			},
		},
		{
			name:      "duplicate ping leaves tracking unchanged",
			distances: []float64{0, 1000, 2000, 3000},
			pings: []Ping{
				makePing(7, at(0), 0, 0),
				makePing(7, at(50), 0, 0), // same coordinates: ignored
				makePing(7, at(100), 1000, 0),
				makePing(7, at(200), 2000, 0),
				makePing(7, at(300), 3000, 0),
			},
			want: []wantEvent{
				{7, 2, at(100)},
				{7, 3, at(200)},
				{7, 4, at(300)},
			},
		},
		{
			name:      "outlier resets tracking and is never interpolated across",
			distances: []float64{0, 1000, 2000, 3000},
			pings: []Ping{
				makePing(7, at(0), 0, 0),
				makePing(7, at(100), 1000, 500), // 500m off route: garage detour
				makePing(7, at(200), 2000, 0),   // cold start, no events
				makePing(7, at(300), 3000, 0),
			},
			flush: true,
			want:  nil,
		},
		{
			name:      "trip completion on wrap to route start emits synthetic terminal pass",
			distances: []float64{0, 1000, 2000, 3000, 4000, 5000},
			pings: []Ping{
				makePing(7, at(0), 0, 0),
				makePing(7, at(100), 1000, 0),
				makePing(7, at(200), 2000, 0),
				makePing(7, at(300), 3000, 0),
				makePing(7, at(400), 4000, 0),
				makePing(7, at(500), 50, 0), // back at the route start
			},
			want: []wantEvent{
				{7, 2, at(100)},
				{7, 3, at(200)},
				{7, 4, at(300)},
				{7, 5, at(400)},
				{7, 6, at(400)}, // synthetic, stamped at the last accepted ping
			},
		},
		{
			name:      "overshoot past terminal is re-seeded at the route start",
			distances: []float64{0, 1000, 2000, 3000},
			pings: []Ping{
				makePing(7, at(0), 3000, 0), // projection overshoots to the far terminal
				makePing(7, at(60), 0, 0),   // really at the route start
				makePing(7, at(160), 1000, 0),
				makePing(7, at(260), 2000, 0),
				makePing(7, at(360), 3000, 0),
			},
			want: []wantEvent{
				{7, 2, at(160)},
				{7, 3, at(260)},
				{7, 4, at(360)},
			},
		},
		{
			name:      "long silence at terminal starts a fresh trip",
			distances: []float64{0, 1000, 2000, 3000},
			pings: []Ping{
				makePing(7, at(0), 0, 0),
				makePing(7, at(400), 800, 0), // 400s gap while at the start terminal
				makePing(7, at(500), 2000, 0),
				makePing(7, at(600), 3000, 0),
			},
			want: []wantEvent{
				// velocity anchored at the post-gap ping: (2000-800)/100 m/s
				{7, 2, at(400).Add(time.Duration(float64(time.Second)*(1000-800)) / 12)},
				{7, 3, at(500)},
				{7, 4, at(600)},
			},
		},
		{
			name:      "idle at terminal restarts before the next trip",
			distances: []float64{0, 1000, 2000, 3000},
			pings: []Ping{
				makePing(7, at(0), 0, 0),
				makePing(7, at(130), 5, 0), // 130s later, 5m away: layover ended
				makePing(7, at(230), 1000, 0),
				makePing(7, at(330), 2000, 0),
				makePing(7, at(430), 3000, 0),
			},
			want: []wantEvent{
				{7, 2, at(230)},
				{7, 3, at(330)},
				{7, 4, at(430)},
			},
		},
		{
			name:      "backward jump mid trip is transient noise",
			distances: []float64{0, 1000, 2000, 3000, 4000, 5000},
			pings: []Ping{
				makePing(7, at(0), 0, 0),
				makePing(7, at(100), 1000, 0),
				makePing(7, at(200), 2000, 0),
				makePing(7, at(300), 3000, 0),
				makePing(7, at(400), 4000, 0),
				makePing(7, at(450), 3500, 0), // GPS regression, not a new trip
				makePing(7, at(500), 5000, 0),
			},
			want: []wantEvent{
				{7, 2, at(100)},
				{7, 3, at(200)},
				{7, 4, at(300)},
				{7, 5, at(400)},
				{7, 6, at(500)},
			},
		},
		{
			name:      "curvature snap from route start to pre-terminal stops is ignored",
			distances: []float64{0, 1000, 2000, 3000, 4000, 5000, 6000, 7000},
			pings: []Ping{
				makePing(7, at(0), 0, 0),
				makePing(7, at(100), 6000, 0), // snapped onto the turnaround curve
			},
			flush: true,
			want:  nil,
		},
		{
			name:      "zero elapsed time collapses pass times to the earlier timestamp",
			distances: []float64{0, 1000, 2000, 3000},
			pings: []Ping{
				makePing(7, at(0), 0, 0),
				makePing(7, at(0), 1000, 0), // same second, different position
				makePing(7, at(100), 2000, 0),
				makePing(7, at(200), 3000, 0),
			},
			want: []wantEvent{
				{7, 2, at(0)},
				{7, 3, at(100)},
				{7, 4, at(200)},
			},
		},
		{
			name:      "vehicles are tracked independently",
			distances: []float64{0, 1000, 2000, 3000},
			pings: []Ping{
				makePing(1, at(0), 0, 0),
				makePing(2, at(10), 0, 0),
				makePing(1, at(100), 1000, 0),
				makePing(2, at(110), 1000, 0),
				makePing(1, at(200), 2000, 0),
				makePing(2, at(210), 2000, 0),
				makePing(1, at(300), 3000, 0),
				makePing(2, at(310), 3000, 0),
			},
			want: []wantEvent{
				{1, 2, at(100)},
				{1, 3, at(200)},
				{1, 4, at(300)},
				{2, 2, at(110)},
				{2, 3, at(210)},
				{2, 4, at(310)},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := testStopTable(t, tt.distances)
			collection := NewTrackerCollection(discardLogger(), table, fakeProjector{}, DefaultTrackerConfig())

			var got []*route.PassEvent
			for _, ping := range tt.pings {
				events, err := collection.NewPing(ping)
				if err != nil {
					t.Fatalf("NewPing returned unexpected error: %v", err)
				}
				got = append(got, events...)
			}
			if tt.flush {
				got = append(got, collection.FlushOpenTrips(window)...)
			}
			assertEvents(t, got, tt.want)
		})
	}
}

func TestTrackerCollection_FlushOpenTrips(t *testing.T) {
	window := Window{StartHour: 12, EndHour: 14}

	tests := []struct {
		name      string
		distances []float64
		pings     []Ping
		want      []wantEvent
	}{
		{
			name:      "trip stalled near the terminal is flushed with extrapolated passes",
			distances: []float64{0, 1000, 2000, 3000, 4000, 5000},
			pings: []Ping{
				makePing(7, at(0), 0, 0),
				makePing(7, at(100), 1000, 0),
				makePing(7, at(200), 2000, 0),
				makePing(7, at(300), 3000, 0),
				makePing(7, at(400), 4000, 0), // one stop short at stream end
			},
			want: []wantEvent{
				{7, 2, at(100)},
				{7, 3, at(200)},
				{7, 4, at(300)},
				{7, 5, at(400)},
				{7, 6, at(500)}, // extrapolated at the last observed 10 m/s
			},
		},
		{
			name:      "trip stalled far from the terminal is discarded",
			distances: []float64{0, 1000, 2000, 3000, 4000, 5000, 6000, 7000},
			pings: []Ping{
				makePing(7, at(0), 0, 0),
				makePing(7, at(100), 1000, 0),
				makePing(7, at(200), 2000, 0),
				makePing(7, at(300), 3000, 0),
				makePing(7, at(400), 4000, 0), // three stops short at stream end
			},
			want: nil,
		},
		{
			name:      "trip that started outside the window is discarded",
			distances: []float64{0, 1000, 2000, 3000, 4000, 5000},
			pings: []Ping{
				makePing(7, testDay.Add(-2*time.Hour), 0, 0),
				makePing(7, testDay.Add(-2*time.Hour+100*time.Second), 1000, 0),
				makePing(7, testDay.Add(-2*time.Hour+200*time.Second), 2000, 0),
				makePing(7, testDay.Add(-2*time.Hour+300*time.Second), 3000, 0),
				makePing(7, testDay.Add(-2*time.Hour+400*time.Second), 4000, 0),
			},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := testStopTable(t, tt.distances)
			collection := NewTrackerCollection(discardLogger(), table, fakeProjector{}, DefaultTrackerConfig())
			for _, ping := range tt.pings {
				if _, err := collection.NewPing(ping); err != nil {
					t.Fatalf("NewPing returned unexpected error: %v", err)
				}
			}
			assertEvents(t, collection.FlushOpenTrips(window), tt.want)
		})
	}
}

func assertEvents(t *testing.T, got []*route.PassEvent, want []wantEvent) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d pass events, got %d: %+v", len(want), len(got), got)
	}
	const tolerance = 50 * time.Millisecond
	for i, event := range got {
		expected := want[i]
		if event.VehicleId != expected.vehicleId || event.StopId != expected.stopId {
			t.Errorf("event %d: expected vehicle %d stop %d, got vehicle %d stop %d",
				i, expected.vehicleId, expected.stopId, event.VehicleId, event.StopId)
			continue
		}
		diff := event.PassTime.Sub(expected.passTime)
		if diff < -tolerance || diff > tolerance {
			t.Errorf("event %d (vehicle %d stop %d): expected pass time %s, got %s",
				i, expected.vehicleId, expected.stopId, expected.passTime, event.PassTime)
		}
	}
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
