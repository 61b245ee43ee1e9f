package headway

import (
	"log"
	"math"
	"sort"
	"time"

	"github.com/marcosroriz/headway-analysis/business/data/route"
)

// TrackerConfig carries the heuristic thresholds of the trip reconstruction
// engine. The defaults are tuned for one 37 stop route; treat them as route
// specific configuration rather than universal constants.
type TrackerConfig struct {
	// OutlierThresholdMeters is how far off the route a ping may project
	// before it is treated as off-route travel (garage, maintenance).
	OutlierThresholdMeters float64
	// StopSnapToleranceMeters is the capture radius of a regular stop.
	StopSnapToleranceMeters float64
	// TerminalSnapToleranceMeters is the wider capture radius of a terminal
	// stop, where route curvature makes projection less precise. Also used
	// as the proximity radius when checking whether a vehicle has idled in
	// place at a terminal.
	TerminalSnapToleranceMeters float64
	// StaleGapShort is how long a vehicle may sit still at a terminal before
	// its next movement is considered a new trip.
	StaleGapShort time.Duration
	// StaleGapLong is how long a vehicle at a terminal may go unheard from
	// before tracking restarts regardless of where it reappears.
	StaleGapLong time.Duration
	// MinBufferForReset is the open trip size below which a non-advancing
	// ping that matches a different stop discards the trip.
	MinBufferForReset int
	// NearTerminalStops is how many stops short of the final terminal a trip
	// may be and still count as having reached it.
	NearTerminalStops int
	// MinSamplesToFlush is the open trip size a buffer must exceed before it
	// may be flushed as pass events.
	MinSamplesToFlush int
}

// DefaultTrackerConfig returns the thresholds used for the reference route.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		OutlierThresholdMeters:      100,
		StopSnapToleranceMeters:     15,
		TerminalSnapToleranceMeters: 100,
		StaleGapShort:               120 * time.Second,
		StaleGapLong:                300 * time.Second,
		MinBufferForReset:           5,
		NearTerminalStops:           2,
		MinSamplesToFlush:           3,
	}
}

// tripSample is one entry of a tracker's open trip buffer: a stop pass that
// has been estimated but not yet emitted. The first sample of every trip is
// a seed, recording where tracking began; seeds anchor the trip but are
// never emitted as pass events.
type tripSample struct {
	stopId    int
	passTime  time.Time
	pingTime  time.Time
	latitude  float64
	longitude float64
	seed      bool
}

// TrackerCollection owns one tripTracker per vehicle id. All trip state is
// reached exclusively through the collection; there is no shared mutable
// state between vehicles.
type TrackerCollection struct {
	log       *log.Logger
	stops     *route.StopTable
	projector route.Projector
	cfg       TrackerConfig
	vehicles  map[int]*tripTracker
}

// NewTrackerCollection builds a TrackerCollection over a stop table and
// projector.
func NewTrackerCollection(log *log.Logger, stops *route.StopTable, projector route.Projector,
	cfg TrackerConfig) *TrackerCollection {
	return &TrackerCollection{
		log:       log,
		stops:     stops,
		projector: projector,
		cfg:       cfg,
		vehicles:  make(map[int]*tripTracker),
	}
}

// NewPing routes a ping to its vehicle's tracker and returns any pass events
// the ping completed. The caller must have filtered the ping to the matching
// route, observation window and in-service status already.
func (tc *TrackerCollection) NewPing(p Ping) ([]*route.PassEvent, error) {
	tracker, present := tc.vehicles[p.VehicleId]
	if !present {
		tracker = &tripTracker{
			vehicleId: p.VehicleId,
			cfg:       tc.cfg,
			stops:     tc.stops,
			projector: tc.projector,
		}
		tc.vehicles[p.VehicleId] = tracker
	}
	return tracker.newPing(tc.log, p)
}

// FlushOpenTrips applies the end-of-stream policy to every tracker that is
// still mid-trip: a trip that started inside the observation window, has
// accumulated enough samples and stalled within reach of the final terminal
// is completed by extrapolating the remaining stops at the vehicle's last
// observed velocity; anything else is discarded without emitting events.
func (tc *TrackerCollection) FlushOpenTrips(window Window) []*route.PassEvent {
	vehicleIds := make([]int, 0, len(tc.vehicles))
	for id := range tc.vehicles {
		vehicleIds = append(vehicleIds, id)
	}
	sort.Ints(vehicleIds)

	var events []*route.PassEvent
	for _, id := range vehicleIds {
		tracker := tc.vehicles[id]
		flushed := tracker.flushAtStreamEnd(tc.log, window)
		events = append(events, flushed...)
	}
	return events
}

// tripTracker reconstructs the trips of a single vehicle from its
// time-ordered pings. A tracker with no lastStop has no usable history and
// cold starts on the next accepted ping.
type tripTracker struct {
	vehicleId int
	cfg       TrackerConfig
	stops     *route.StopTable
	projector route.Projector

	lastPing     *Ping
	lastDistance float64
	lastStop     *route.Stop
	lastVelocity float64
	buffer       []tripSample
}

// resetRule is one named predicate of the trip reset decision table.
// Rules are evaluated in a fixed order; the first that applies discards the
// open trip and restarts tracking at the current ping.
type resetRule struct {
	name    string
	applies func(t *tripTracker, p Ping, distance float64, matched *route.Stop) bool
}

var resetRules = []resetRule{
	{
		// The vehicle reached a terminal and has been sitting in place
		// longer than a layover dwell: its next movement is a new trip.
		name: "idle-at-terminal",
		applies: func(t *tripTracker, p Ping, _ float64, _ *route.Stop) bool {
			if !t.lastStop.Terminal || len(t.buffer) == 0 {
				return false
			}
			last := t.buffer[len(t.buffer)-1]
			return p.Time.Sub(last.pingTime) > t.cfg.StaleGapShort &&
				flatLatLngDistance(p.Latitude, p.Longitude, last.latitude, last.longitude) <= t.cfg.TerminalSnapToleranceMeters
		},
	},
	{
		// The vehicle went silent at a terminal for longer than any
		// plausible layover; wherever it reappears, the old trip is over.
		name: "stale-long-gap",
		applies: func(t *tripTracker, p Ping, _ float64, _ *route.Stop) bool {
			return t.lastStop.Terminal && p.Time.Sub(t.lastPing.Time) > t.cfg.StaleGapLong
		},
	},
	{
		// The projected distance regressed while the matched stop changed
		// and the trip barely started: the seed was wrong, start over.
		name: "no-progress-short-buffer",
		applies: func(t *tripTracker, p Ping, distance float64, matched *route.Stop) bool {
			return distance <= t.lastDistance &&
				matched.Id != t.lastStop.Id &&
				len(t.buffer) < t.cfg.MinBufferForReset
		},
	},
}

// newPing advances the tracker's state machine with one accepted ping and
// returns the pass events of any trip it completed.
func (t *tripTracker) newPing(log *log.Logger, p Ping) ([]*route.PassEvent, error) {
	// stationary duplicate: same coordinates as the last accepted ping
	if t.lastPing != nil && p.Latitude == t.lastPing.Latitude && p.Longitude == t.lastPing.Longitude {
		return nil, nil
	}

	offRoute, err := t.projector.DistanceFromRoute(p.Latitude, p.Longitude)
	if err != nil {
		return nil, err
	}
	if offRoute >= t.cfg.OutlierThresholdMeters {
		// off-route travel: drop the trip so the next accepted ping cold
		// starts rather than interpolating across the detour
		log.Printf("vehicle %d is %.0fm off route at %s, discarding open trip",
			t.vehicleId, offRoute, p.Time.Format("15:04:05"))
		t.lastPing = &p
		t.lastStop = nil
		t.buffer = nil
		return nil, nil
	}

	distance, err := t.projector.DistanceAlongRoute(p.Latitude, p.Longitude)
	if err != nil {
		return nil, err
	}

	if t.lastStop == nil {
		t.startTrip(p, distance)
		return nil, nil
	}

	matched := t.stops.MatchStop(distance, t.cfg.StopSnapToleranceMeters, t.cfg.TerminalSnapToleranceMeters)
	if matched == nil {
		// projected short of the first stop's capture range
		t.lastPing = &p
		t.lastDistance = distance
		return nil, nil
	}

	// a young trip whose matched stop fell back to the route start was
	// seeded by a one-ping overshoot past the terminal: restart it here, but
	// anchor the seed at the previous accepted ping, when the vehicle was
	// already back at the start
	if len(t.buffer) <= 2 && matched.Id < t.lastStop.Id && matched.Id == t.stops.First().Id {
		arrival := t.lastPing.Time
		log.Printf("vehicle %d re-seeding trip at stop %d, overshoot corrected to %s",
			t.vehicleId, matched.Id, arrival.Format("15:04:05"))
		t.startTrip(p, distance)
		if len(t.buffer) > 0 {
			t.buffer[0].passTime = arrival
			t.buffer[0].pingTime = arrival
		}
		return nil, nil
	}

	for _, rule := range resetRules {
		if rule.applies(t, p, distance, matched) {
			log.Printf("vehicle %d trip reset (%s) at stop %d, %d buffered samples discarded",
				t.vehicleId, rule.name, matched.Id, len(t.buffer))
			t.startTrip(p, distance)
			return nil, nil
		}
	}

	if matched.Id < t.lastStop.Id {
		return t.handleBackwardJump(log, p, distance, matched), nil
	}

	// route curvature at the turnaround can snap a position near the route
	// start onto the stops just before the final terminal; a single ping
	// cannot legitimately cross most of the route
	if t.lastStop.Id == t.stops.First().Id && t.stops.PreTerminalCurveStop(matched.Id) &&
		matched.Id-t.lastStop.Id > t.stops.Len()/2 {
		t.lastPing = &p
		t.lastDistance = distance
		return nil, nil
	}

	return t.recordForwardProgress(p, distance, matched), nil
}

// handleBackwardJump resolves a ping whose matched stop regressed. Near the
// route start it completes the previous trip; anywhere else it is transient
// GPS noise.
func (t *tripTracker) handleBackwardJump(log *log.Logger, p Ping, distance float64,
	matched *route.Stop) []*route.PassEvent {

	if t.stops.NearStart(matched.Id, t.cfg.NearTerminalStops) {
		// the vehicle is back at the route start: the previous trip is done
		events := t.completeTrip()
		t.lastPing = &p
		t.lastDistance = distance
		if len(events) > 0 {
			log.Printf("vehicle %d completed trip with %d pass events", t.vehicleId, len(events))
		}
		return events
	}

	// transient regression mid-route: keep the trip, refresh the ping
	t.lastPing = &p
	t.lastDistance = distance
	return nil
}

// recordForwardProgress interpolates a pass time for every stop crossed
// since the last accepted ping and flushes the trip if it has reached the
// final terminal.
func (t *tripTracker) recordForwardProgress(p Ping, distance float64, matched *route.Stop) []*route.PassEvent {
	traveled := matched.Id - t.lastStop.Id
	if traveled > 0 {
		elapsed := p.Time.Sub(t.lastPing.Time).Seconds()
		velocity := 0.0
		if elapsed > 0 {
			velocity = (distance - t.lastDistance) / elapsed
		}
		for id := t.lastStop.Id + 1; id <= matched.Id; id++ {
			stop, _ := t.stops.ByID(id)
			t.buffer = append(t.buffer, tripSample{
				stopId:    id,
				passTime:  interpolatePassTime(t.lastPing.Time, t.lastDistance, velocity, stop.Distance),
				pingTime:  p.Time,
				latitude:  p.Latitude,
				longitude: p.Longitude,
			})
		}
		t.lastVelocity = velocity
	}

	t.lastPing = &p
	t.lastDistance = distance
	t.lastStop = matched

	if matched.Id == t.stops.Last().Id && len(t.buffer) > t.cfg.MinSamplesToFlush {
		events := t.emitBuffer()
		t.buffer = nil
		return events
	}
	return nil
}

// completeTrip flushes the open buffer as pass events, appending a synthetic
// pass of the final terminal timed at the last accepted ping, and returns
// the tracker to the uninitialized state.
func (t *tripTracker) completeTrip() []*route.PassEvent {
	if t.passSampleCount() > 0 {
		lastStopId := t.buffer[len(t.buffer)-1].stopId
		if lastStopId < t.stops.Last().Id {
			t.buffer = append(t.buffer, tripSample{
				stopId:    t.stops.Last().Id,
				passTime:  t.lastPing.Time,
				pingTime:  t.lastPing.Time,
				latitude:  t.lastPing.Latitude,
				longitude: t.lastPing.Longitude,
			})
		}
	}
	events := t.emitBuffer()
	t.buffer = nil
	t.lastStop = nil
	return events
}

// flushAtStreamEnd applies the end-of-stream policy to this tracker's open
// trip. Returns the flushed events, or nil when the trip is discarded.
func (t *tripTracker) flushAtStreamEnd(log *log.Logger, window Window) []*route.PassEvent {
	defer func() {
		t.buffer = nil
		t.lastStop = nil
	}()

	if t.lastStop == nil || len(t.buffer) <= t.cfg.MinSamplesToFlush {
		return nil
	}
	if !window.Contains(t.buffer[0].passTime) {
		return nil
	}
	if !t.stops.NearEnd(t.lastStop.Id, t.cfg.NearTerminalStops) {
		log.Printf("vehicle %d discarded at stream end, stalled at stop %d of %d",
			t.vehicleId, t.lastStop.Id, t.stops.Len())
		return nil
	}

	// extrapolate the unreached stops at the vehicle's last known velocity
	for id := t.lastStop.Id + 1; id <= t.stops.Last().Id; id++ {
		stop, _ := t.stops.ByID(id)
		t.buffer = append(t.buffer, tripSample{
			stopId:    id,
			passTime:  interpolatePassTime(t.lastPing.Time, t.lastDistance, t.lastVelocity, stop.Distance),
			pingTime:  t.lastPing.Time,
			latitude:  t.lastPing.Latitude,
			longitude: t.lastPing.Longitude,
		})
	}
	events := t.emitBuffer()
	log.Printf("vehicle %d flushed at stream end with %d pass events", t.vehicleId, len(events))
	return events
}

// startTrip restarts tracking at the given accepted ping, seeding a fresh
// trip buffer at whichever stop the ping matched. A ping that matches no
// stop leaves the tracker uninitialized.
func (t *tripTracker) startTrip(p Ping, distance float64) {
	t.lastPing = &p
	t.lastDistance = distance
	t.buffer = nil
	t.lastStop = t.stops.MatchStop(distance, t.cfg.StopSnapToleranceMeters, t.cfg.TerminalSnapToleranceMeters)
	if t.lastStop != nil {
		t.buffer = []tripSample{{
			stopId:    t.lastStop.Id,
			passTime:  p.Time,
			pingTime:  p.Time,
			latitude:  p.Latitude,
			longitude: p.Longitude,
			seed:      true,
		}}
	}
}

// emitBuffer converts the buffered samples to pass events. Seed samples
// anchor the trip but are not passes; they are skipped.
func (t *tripTracker) emitBuffer() []*route.PassEvent {
	events := make([]*route.PassEvent, 0, len(t.buffer))
	for _, sample := range t.buffer {
		if sample.seed {
			continue
		}
		events = append(events, &route.PassEvent{
			VehicleId: t.vehicleId,
			StopId:    sample.stopId,
			PassTime:  sample.passTime,
		})
	}
	return events
}

// passSampleCount returns the number of non-seed samples in the buffer.
func (t *tripTracker) passSampleCount() int {
	count := 0
	for _, sample := range t.buffer {
		if !sample.seed {
			count++
		}
	}
	return count
}

// flatLatLngDistance approximates the distance in meters between two nearby
// coordinates, treating one degree of latitude as 111300 meters and scaling
// longitude by the cosine of the mean latitude. Accurate enough within a
// single transit area; not valid across the antimeridian.
func flatLatLngDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat := lat1 + lat2
	if lat != 0 {
		lat = (lat / 2) * 0.01745329
	}
	diffLat := 111300 * (lat1 - lat2)
	diffLon := 111300 * math.Cos(lat) * (lon1 - lon2)
	return math.Sqrt(diffLon*diffLon + diffLat*diffLat)
}
