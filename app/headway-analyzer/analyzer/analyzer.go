// Package analyzer runs the batch headway analysis: it streams AVL pings
// through per-vehicle trip trackers, aggregates the resulting stop pass
// events into per-stop headway samples, and reduces them to summary
// statistics against the scheduled headway.
package analyzer

import (
	"io"
	"log"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"

	"github.com/marcosroriz/headway-analysis/business/data/route"
	"github.com/marcosroriz/headway-analysis/business/headway"
)

// Config holds the analysis parameters of one run.
type Config struct {
	// Line is the route id pings must carry to be considered.
	Line int
	// Window is the observation window in hours of day.
	Window headway.Window
	// ScheduledHeadwaySeconds is the timetable spacing the samples are
	// compared against.
	ScheduledHeadwaySeconds float64
	// OutOfServiceStatus marks pings to discard before tracking.
	OutOfServiceStatus string
	// Tracker carries the trip reconstruction thresholds.
	Tracker headway.TrackerConfig
	// RecordToDatabase saves pass events to the database as they are emitted.
	RecordToDatabase bool
	// PublishOverNats sends pass events over NATS as they are emitted.
	PublishOverNats bool
}

// StopReport is one stop's headway samples and summary statistics.
type StopReport struct {
	StopId   int             `json:"stop_id"`
	Headways []float64       `json:"headways_s"`
	Summary  headway.Summary `json:"summary"`
}

// Report is the result of a run: per-stop headway samples and statistics,
// plus the run's context.
type Report struct {
	Line                    int          `json:"line"`
	ServiceDate             string       `json:"service_date"`
	Holiday                 bool         `json:"holiday"`
	ScheduledHeadwaySeconds float64      `json:"scheduled_headway_s"`
	PingsProcessed          int          `json:"pings_processed"`
	PassEvents              int          `json:"pass_events"`
	Stops                   []StopReport `json:"stops"`
}

// Run executes the analysis over a time-sorted AVL stream. Parse and
// projection failures abort the run; everything the trip heuristics reject
// is handled by resetting tracker state and logged, never fatal. db and
// natsConnection may be nil when the corresponding fan-out is disabled.
func Run(log *log.Logger,
	db *sqlx.DB,
	natsConnection *nats.Conn,
	stops *route.StopTable,
	projector route.Projector,
	avl io.Reader,
	avlFilename string,
	cfg Config) (*Report, error) {

	reader, err := newAVLReader(avl, avlFilename)
	if err != nil {
		return nil, err
	}

	collection := headway.NewTrackerCollection(log, stops, projector, cfg.Tracker)
	aggregator := headway.NewAggregator()
	calendar := headway.NewServiceCalendar()
	publisher := makePassEventPublisher(log, db, natsConnection, cfg.RecordToDatabase, cfg.PublishOverNats)

	report := &Report{
		Line:                    cfg.Line,
		ScheduledHeadwaySeconds: cfg.ScheduledHeadwaySeconds,
	}
	var serviceDate time.Time

	start := time.Now()
	for {
		ping, err := reader.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		// the stream is globally time sorted: past the window means done
		if cfg.Window.Past(ping.Time) {
			break
		}
		if ping.RouteId != cfg.Line || ping.Status == cfg.OutOfServiceStatus || !cfg.Window.Contains(ping.Time) {
			continue
		}
		if serviceDate.IsZero() {
			serviceDate = ping.Time
		}

		events, err := collection.NewPing(*ping)
		if err != nil {
			return nil, err
		}
		report.PingsProcessed++
		aggregator.Add(events...)
		publisher.publish(events)
	}

	flushed := collection.FlushOpenTrips(cfg.Window)
	aggregator.Add(flushed...)
	publisher.publish(flushed)

	report.PassEvents = len(aggregator.Events())
	log.Printf("processed %d pings into %d pass events in %s",
		report.PingsProcessed, report.PassEvents, time.Since(start).Round(time.Millisecond))

	if !serviceDate.IsZero() {
		report.ServiceDate = serviceDate.Format("2006-01-02")
		report.Holiday = calendar.IsHoliday(serviceDate)
		if report.Holiday {
			log.Printf("service date %s is a holiday: scheduled headway comparisons may not apply",
				report.ServiceDate)
		}
	}

	headways := aggregator.HeadwaysByStop()
	for id := 1; id <= stops.Len(); id++ {
		samples := headways[id]
		report.Stops = append(report.Stops, StopReport{
			StopId:   id,
			Headways: samples,
			Summary:  headway.Summarize(samples, cfg.ScheduledHeadwaySeconds),
		})
	}
	logSummaryTable(log, report)
	return report, nil
}

// logSummaryTable logs one line of summary statistics per stop that
// produced headway samples.
func logSummaryTable(log *log.Logger, report *Report) {
	log.Printf("stop | samples | mean(s) | min(s) | max(s) | cv")
	for _, stop := range report.Stops {
		if math.IsNaN(stop.Summary.Mean) {
			continue
		}
		log.Printf("%4d | %7d | %7.0f | %6.0f | %6.0f | %.3f",
			stop.StopId, stop.Summary.Samples, stop.Summary.Mean,
			stop.Summary.Min, stop.Summary.Max, stop.Summary.CoefficientOfVariation)
	}
}
