package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/checkin-core/internal/model"
)

// AttendanceRepo reads and writes attendances.  All timestamps are UTC.
type AttendanceRepo struct {
	db *sql.DB
}

// NewAttendanceRepo returns an AttendanceRepo bound to the provided database.
func NewAttendanceRepo(db *sql.DB) *AttendanceRepo { return &AttendanceRepo{db: db} }

// GuardOutcome tells how a guarded attendance insert ended.
type GuardOutcome int

const (
	GuardInserted   GuardOutcome = iota // row written
	GuardDuplicate                      // person already has an open attendance here
	GuardAtCapacity                     // the location is full for the date
)

// GuardedAttendance is the input to CreateGuarded.  Attendance carries the
// row to write; the remaining fields describe the invariants to re-check
// under the occurrence lock.
type GuardedAttendance struct {
	Attendance     model.Attendance
	AliasIDs       []int64   // every alias of the person being checked in
	LocationID     int64     // location of Attendance.OccurrenceID
	OccurrenceDate time.Time // date of Attendance.OccurrenceID
	Capacity       *int      // nil when the location is unlimited
}

// GuardedResult carries the outcome and, when inserted, the stored row.
type GuardedResult struct {
	Outcome    GuardOutcome
	Attendance model.Attendance
}

// AttendanceRef is an attendance plus the person and location it resolves to.
type AttendanceRef struct {
	Attendance model.Attendance
	PersonID   int64
	LocationID int64
}

const viewSelect = `SELECT a.id, p.id, p.first_name, p.last_name, l.id, l.name,
       o.occurrence_date, a.start_time, a.end_time, a.is_first_time, c.code, a.note
FROM attendances a
JOIN attendance_occurrences o ON o.id = a.occurrence_id
JOIN locations l ON l.id = o.location_id
JOIN person_aliases pa ON pa.id = a.person_alias_id
JOIN people p ON p.id = pa.person_id
LEFT JOIN attendance_codes c ON c.id = a.attendance_code_id
`

// HasOpenAttendance reports whether any of the aliases has an attendance
// without an end time at the location on date.
func (r *AttendanceRepo) HasOpenAttendance(ctx context.Context, aliasIDs []int64, locationID int64, date time.Time) (bool, error) {
	return hasOpen(ctx, r.db, aliasIDs, locationID, date)
}

// CountOpen counts open attendances across every occurrence of the location
// on date.
func (r *AttendanceRepo) CountOpen(ctx context.Context, locationID int64, date time.Time) (int, error) {
	return countOpen(ctx, r.db, locationID, date)
}

// HasAnyAttendance reports whether any of the aliases ever attended the
// location, on any date, open or closed.
func (r *AttendanceRepo) HasAnyAttendance(ctx context.Context, aliasIDs []int64, locationID int64) (bool, error) {
	in, args := inClause(aliasIDs)
	q := `SELECT EXISTS(SELECT 1 FROM attendances a
	        JOIN attendance_occurrences o ON o.id = a.occurrence_id
	        WHERE o.location_id = ? AND a.person_alias_id IN (` + in + `))`
	var found bool
	err := r.db.QueryRowContext(ctx, q, append([]any{locationID}, args...)...).Scan(&found)
	return found, err
}

// CreateGuarded writes an attendance after re-checking, inside one
// transaction, that the person is not already checked in and that the
// location still has room.  Every occurrence row for (location, date) is
// locked FOR UPDATE first, so concurrent check-ins into the same location
// and date serialize on those rows and cannot both pass the checks.  If the
// context is cancelled the transaction rolls back and nothing is written.
func (r *AttendanceRepo) CreateGuarded(ctx context.Context, in GuardedAttendance) (GuardedResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return GuardedResult{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	date := model.DateOf(in.OccurrenceDate).Format("2006-01-02")
	lock, err := tx.QueryContext(ctx,
		`SELECT id FROM attendance_occurrences WHERE location_id = ? AND occurrence_date = ? FOR UPDATE`,
		in.LocationID, date)
	if err != nil {
		return GuardedResult{}, err
	}
	if err := lock.Close(); err != nil {
		return GuardedResult{}, err
	}

	open, err := hasOpen(ctx, tx, in.AliasIDs, in.LocationID, in.OccurrenceDate)
	if err != nil {
		return GuardedResult{}, err
	}
	if open {
		return GuardedResult{Outcome: GuardDuplicate}, nil
	}
	if in.Capacity != nil {
		n, err := countOpen(ctx, tx, in.LocationID, in.OccurrenceDate)
		if err != nil {
			return GuardedResult{}, err
		}
		if n >= *in.Capacity {
			return GuardedResult{Outcome: GuardAtCapacity}, nil
		}
	}

	a := in.Attendance
	res, err := tx.ExecContext(ctx,
		`INSERT INTO attendances (occurrence_id, person_alias_id, attendance_code_id, start_time, is_first_time, note)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.OccurrenceID, a.PersonAliasID, a.AttendanceCodeID, a.StartTime.UTC(), a.IsFirstTime, a.Note)
	if err != nil {
		return GuardedResult{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return GuardedResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return GuardedResult{}, err
	}
	committed = true
	a.ID = id
	a.CreatedAt = a.StartTime
	return GuardedResult{Outcome: GuardInserted, Attendance: a}, nil
}

// GetAttendance loads an attendance with the person and location it
// belongs to.  It returns ErrNotFound when the id is unknown.
func (r *AttendanceRepo) GetAttendance(ctx context.Context, id int64) (*AttendanceRef, error) {
	const q = `SELECT a.id, a.occurrence_id, a.person_alias_id, a.attendance_code_id,
	                  a.start_time, a.end_time, a.is_first_time, a.note, a.created_at,
	                  pa.person_id, o.location_id
	           FROM attendances a
	           JOIN attendance_occurrences o ON o.id = a.occurrence_id
	           JOIN person_aliases pa ON pa.id = a.person_alias_id
	           WHERE a.id = ?`
	var (
		ref    AttendanceRef
		codeID sql.NullInt64
		end    sql.NullTime
		note   sql.NullString
	)
	a := &ref.Attendance
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&a.ID, &a.OccurrenceID, &a.PersonAliasID, &codeID,
		&a.StartTime, &end, &a.IsFirstTime, &note, &a.CreatedAt,
		&ref.PersonID, &ref.LocationID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.AttendanceCodeID = nullInt64(codeID)
	if end.Valid {
		t := end.Time
		a.EndTime = &t
	}
	if note.Valid {
		n := note.String
		a.Note = &n
	}
	return &ref, nil
}

// EndAttendance sets end_time on an open attendance.  It returns false when
// the attendance was already closed.
func (r *AttendanceRepo) EndAttendance(ctx context.Context, id int64, end time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE attendances SET end_time = ? WHERE id = ? AND end_time IS NULL`, end.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListOpenAtLocation returns the open attendances at the location on date,
// oldest first.
func (r *AttendanceRepo) ListOpenAtLocation(ctx context.Context, locationID int64, date time.Time) ([]model.AttendanceView, error) {
	q := viewSelect + `WHERE o.location_id = ? AND o.occurrence_date = ? AND a.end_time IS NULL
	ORDER BY a.start_time, a.id`
	return r.listViews(ctx, q, locationID, model.DateOf(date).Format("2006-01-02"))
}

// ListByPerson returns the most recent attendances across all aliases.
func (r *AttendanceRepo) ListByPerson(ctx context.Context, aliasIDs []int64, limit int) ([]model.AttendanceView, error) {
	in, args := inClause(aliasIDs)
	q := viewSelect + `WHERE a.person_alias_id IN (` + in + `)
	ORDER BY a.start_time DESC, a.id DESC LIMIT ?`
	return r.listViews(ctx, q, append(args, limit)...)
}

// ListOpenByCode returns the open attendances issued code on date.  Codes
// are unique per date, so at most one row matches.
func (r *AttendanceRepo) ListOpenByCode(ctx context.Context, date time.Time, code string) ([]model.AttendanceView, error) {
	q := viewSelect + `WHERE c.issue_date = ? AND c.code = ? AND a.end_time IS NULL
	ORDER BY a.start_time, a.id`
	return r.listViews(ctx, q, model.DateOf(date).Format("2006-01-02"), code)
}

func (r *AttendanceRepo) listViews(ctx context.Context, q string, args ...any) ([]model.AttendanceView, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	views := []model.AttendanceView{}
	for rows.Next() {
		var (
			v           model.AttendanceView
			first, last string
			end         sql.NullTime
			code, note  sql.NullString
		)
		if err := rows.Scan(&v.AttendanceID, &v.PersonID, &first, &last, &v.LocationID, &v.LocationName,
			&v.OccurrenceDate, &v.StartTime, &end, &v.IsFirstTime, &code, &note); err != nil {
			return nil, err
		}
		v.PersonName = model.Person{FirstName: first, LastName: last}.FullName()
		if end.Valid {
			t := end.Time
			v.EndTime = &t
		}
		if code.Valid {
			c := code.String
			v.Code = &c
		}
		if note.Valid {
			n := note.String
			v.Note = &n
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return views, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func hasOpen(ctx context.Context, db queryer, aliasIDs []int64, locationID int64, date time.Time) (bool, error) {
	in, args := inClause(aliasIDs)
	q := `SELECT EXISTS(SELECT 1 FROM attendances a
	        JOIN attendance_occurrences o ON o.id = a.occurrence_id
	        WHERE o.location_id = ? AND o.occurrence_date = ? AND a.end_time IS NULL
	          AND a.person_alias_id IN (` + in + `))`
	var found bool
	all := append([]any{locationID, model.DateOf(date).Format("2006-01-02")}, args...)
	err := db.QueryRowContext(ctx, q, all...).Scan(&found)
	return found, err
}

func countOpen(ctx context.Context, db queryer, locationID int64, date time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM attendances a
	           JOIN attendance_occurrences o ON o.id = a.occurrence_id
	           WHERE o.location_id = ? AND o.occurrence_date = ? AND a.end_time IS NULL`
	var n int
	err := db.QueryRowContext(ctx, q, locationID, model.DateOf(date).Format("2006-01-02")).Scan(&n)
	return n, err
}
