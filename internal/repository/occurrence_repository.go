package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/checkin-core/internal/model"
)

// OccurrenceRepo stores attendance_occurrences.  The table carries a unique
// key on (location_id, schedule_key, occurrence_date) where schedule_key is
// a generated IFNULL(schedule_id, 0) column, so unscheduled occurrences are
// unique as well.
type OccurrenceRepo struct {
	db *sql.DB
}

// NewOccurrenceRepo returns an OccurrenceRepo bound to the provided database.
func NewOccurrenceRepo(db *sql.DB) *OccurrenceRepo { return &OccurrenceRepo{db: db} }

// InsertOccurrence attempts to create the occurrence row.  A concurrent
// insert of the same triple is reported as a conflict rather than an error.
func (r *OccurrenceRepo) InsertOccurrence(ctx context.Context, o model.Occurrence) (InsertResult[model.Occurrence], error) {
	date := model.DateOf(o.OccurrenceDate)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO attendance_occurrences (location_id, schedule_id, occurrence_date) VALUES (?, ?, ?)`,
		o.LocationID, o.ScheduleID, date.Format("2006-01-02"))
	if err != nil {
		if isDuplicate(err) {
			return Conflicted[model.Occurrence](), nil
		}
		return InsertResult[model.Occurrence]{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return InsertResult[model.Occurrence]{}, err
	}
	o.ID = id
	o.OccurrenceDate = date
	o.CreatedAt = time.Now().UTC()
	return Inserted(o), nil
}

// FindOccurrence reads the occurrence for the triple.  schedule_id is
// compared with the NULL-safe operator so a nil schedule matches NULL.
func (r *OccurrenceRepo) FindOccurrence(ctx context.Context, locationID int64, scheduleID *int64, date time.Time) (*model.Occurrence, error) {
	const q = `SELECT id, location_id, schedule_id, occurrence_date, created_at
	           FROM attendance_occurrences
	           WHERE location_id = ? AND schedule_id <=> ? AND occurrence_date = ?
	           LIMIT 1`
	var (
		o   model.Occurrence
		sid sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, q, locationID, scheduleID, model.DateOf(date).Format("2006-01-02")).
		Scan(&o.ID, &o.LocationID, &sid, &o.OccurrenceDate, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	o.ScheduleID = nullInt64(sid)
	return &o, nil
}
