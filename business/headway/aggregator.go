package headway

import (
	"sort"

	"github.com/marcosroriz/headway-analysis/business/data/route"
)

// Aggregator collects pass events from every vehicle and reduces them to
// per-stop headway samples. Events may arrive in any order; ordering is
// established at reduction time.
type Aggregator struct {
	events []*route.PassEvent
}

// NewAggregator builds an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add stores pass events for later reduction.
func (a *Aggregator) Add(events ...*route.PassEvent) {
	a.events = append(a.events, events...)
}

// Events returns every collected pass event.
func (a *Aggregator) Events() []*route.PassEvent {
	return a.events
}

// HeadwaysByStop groups the collected events by stop and derives the headway
// samples: the spacing in seconds between consecutive pass times at the
// stop. Events are sorted by pass time, ties broken by vehicle id so the
// reduction is deterministic. A stop with fewer than two events yields an
// empty sample list.
func (a *Aggregator) HeadwaysByStop() map[int][]float64 {
	byStop := make(map[int][]*route.PassEvent)
	for _, event := range a.events {
		byStop[event.StopId] = append(byStop[event.StopId], event)
	}

	headways := make(map[int][]float64, len(byStop))
	for stopId, events := range byStop {
		sort.Slice(events, func(i, j int) bool {
			if events[i].PassTime.Equal(events[j].PassTime) {
				return events[i].VehicleId < events[j].VehicleId
			}
			return events[i].PassTime.Before(events[j].PassTime)
		})
		samples := make([]float64, 0, len(events)-1)
		for i := 0; i+1 < len(events); i++ {
			samples = append(samples, events[i+1].PassTime.Sub(events[i].PassTime).Seconds())
		}
		headways[stopId] = samples
	}
	return headways
}
