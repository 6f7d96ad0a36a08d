package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/checkin-core/internal/model"
)

// LocationRepo reads locations and their schedules.
type LocationRepo struct {
	db *sql.DB
}

// NewLocationRepo returns a LocationRepo bound to the provided database.
func NewLocationRepo(db *sql.DB) *LocationRepo { return &LocationRepo{db: db} }

// GetLocation loads a location together with its schedule, if one is
// referenced.  It returns ErrNotFound when the id is unknown.
func (r *LocationRepo) GetLocation(ctx context.Context, id int64) (*model.Location, error) {
	const q = `SELECT id, campus_id, name, is_active, is_archived, capacity, schedule_id,
	                  min_age_months, max_age_months, min_grade, max_grade
	           FROM locations WHERE id = ?`
	var (
		l                          model.Location
		campusID, scheduleID       sql.NullInt64
		capacity                   sql.NullInt64
		minAge, maxAge, minG, maxG sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&l.ID, &campusID, &l.Name, &l.IsActive, &l.IsArchived, &capacity, &scheduleID,
		&minAge, &maxAge, &minG, &maxG,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	l.CampusID = nullInt64(campusID)
	l.ScheduleID = nullInt64(scheduleID)
	l.Capacity = nullInt(capacity)
	l.MinAgeMonths = nullInt(minAge)
	l.MaxAgeMonths = nullInt(maxAge)
	l.MinGrade = nullInt(minG)
	l.MaxGrade = nullInt(maxG)
	if l.ScheduleID != nil {
		s, err := r.GetSchedule(ctx, *l.ScheduleID)
		switch {
		case err == nil:
			l.Schedule = s
		case errors.Is(err, ErrNotFound):
			// dangling reference; treat as unscheduled
		default:
			return nil, err
		}
	}
	return &l, nil
}

// GetSchedule loads a schedule.  weekly_time_of_day is stored as TIME and
// surfaced as an offset from midnight.
func (r *LocationRepo) GetSchedule(ctx context.Context, id int64) (*model.Schedule, error) {
	const q = `SELECT id, name, weekly_day_of_week, TIME_TO_SEC(weekly_time_of_day),
	                  checkin_start_offset_minutes, checkin_end_offset_minutes,
	                  effective_start_date, effective_end_date, is_active
	           FROM schedules WHERE id = ?`
	var (
		s              model.Schedule
		day, secs      sql.NullInt64
		startOff, endO sql.NullInt64
		effStart, effE sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.Name, &day, &secs, &startOff, &endO, &effStart, &effE, &s.IsActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if day.Valid {
		wd := time.Weekday(day.Int64)
		s.WeeklyDayOfWeek = &wd
	}
	if secs.Valid {
		tod := time.Duration(secs.Int64) * time.Second
		s.WeeklyTimeOfDay = &tod
	}
	s.StartOffsetMinutes = nullInt(startOff)
	s.EndOffsetMinutes = nullInt(endO)
	if effStart.Valid {
		t := effStart.Time
		s.EffectiveStartDate = &t
	}
	if effE.Valid {
		t := effE.Time
		s.EffectiveEndDate = &t
	}
	return &s, nil
}

func nullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
