package route

import (
	"time"

	"github.com/jmoiron/sqlx"
)

// PassEvent records the inferred moment a vehicle passed a stop.
// Immutable once emitted by the trip tracker.
type PassEvent struct {
	VehicleId int       `db:"vehicle_id" json:"vehicle_id"`
	StopId    int       `db:"stop_id" json:"stop_id"`
	PassTime  time.Time `db:"pass_time" json:"pass_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RecordPassEvents saves pass events to the database.
func RecordPassEvents(events []*PassEvent, db *sqlx.DB) error {
	statementString := "insert into pass_event " +
		"(vehicle_id, " +
		"stop_id, " +
		"pass_time, " +
		"created_at) " +
		"values " +
		"(:vehicle_id, " +
		":stop_id, " +
		":pass_time, " +
		":created_at)"
	statementString = db.Rebind(statementString)
	for _, event := range events {
		if _, err := db.NamedExec(statementString, event); err != nil {
			return err
		}
	}
	return nil
}
