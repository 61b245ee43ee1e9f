package analyzer

import (
	"encoding/json"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"

	"github.com/marcosroriz/headway-analysis/business/data/route"
)

// passEventPublisher fans pass events out to their destinations (database,
// NATS) as they are produced. Publishing is best effort: failures are logged
// and never interrupt the analysis.
type passEventPublisher struct {
	log              *log.Logger
	db               *sqlx.DB
	natsConnection   *nats.Conn
	recordToDatabase bool
	publishOverNats  bool
}

// makePassEventPublisher creates a passEventPublisher.
func makePassEventPublisher(log *log.Logger,
	db *sqlx.DB,
	natsConnection *nats.Conn,
	recordToDatabase bool,
	publishOverNats bool) *passEventPublisher {
	return &passEventPublisher{
		log:              log,
		db:               db,
		natsConnection:   natsConnection,
		recordToDatabase: recordToDatabase,
		publishOverNats:  publishOverNats,
	}
}

// publish sends pass events over NATS and records them to the database
// according to publishOverNats and recordToDatabase.
func (p *passEventPublisher) publish(events []*route.PassEvent) {
	if len(events) == 0 {
		return
	}
	now := time.Now()
	for _, event := range events {
		event.CreatedAt = now
	}
	if p.publishOverNats {
		p.sendOverNats(events)
	}
	if p.recordToDatabase {
		p.record(events)
	}
}

func (p *passEventPublisher) sendOverNats(events []*route.PassEvent) {
	jsonData, err := json.Marshal(events)
	if err != nil {
		p.log.Printf("failed to marshal pass events in passEventPublisher.sendOverNats, error:%v", err)
		return
	}
	err = p.natsConnection.Publish("headway.pass-events", jsonData)
	if err != nil {
		p.log.Printf("failed to send pass events in passEventPublisher.sendOverNats, error:%v", err)
	}
}

func (p *passEventPublisher) record(events []*route.PassEvent) {
	err := route.RecordPassEvents(events, p.db)
	if err != nil {
		p.log.Printf("failed to record %d pass events, error:%v", len(events), err)
	}
}
