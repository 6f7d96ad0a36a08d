package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/checkin-core/internal/model"
)

// CodeRepo stores attendance_codes, unique on (issue_date, code).
type CodeRepo struct {
	db *sql.DB
}

// NewCodeRepo returns a CodeRepo bound to the provided database.
func NewCodeRepo(db *sql.DB) *CodeRepo { return &CodeRepo{db: db} }

// InsertCode reserves code for issueDate.  A code already issued on that
// date is reported as a conflict so the caller can draw another one.
func (r *CodeRepo) InsertCode(ctx context.Context, issueDate time.Time, code string) (InsertResult[model.AttendanceCode], error) {
	date := model.DateOf(issueDate)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO attendance_codes (issue_date, code) VALUES (?, ?)`,
		date.Format("2006-01-02"), code)
	if err != nil {
		if isDuplicate(err) {
			return Conflicted[model.AttendanceCode](), nil
		}
		return InsertResult[model.AttendanceCode]{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return InsertResult[model.AttendanceCode]{}, err
	}
	return Inserted(model.AttendanceCode{
		ID:        id,
		IssueDate: date,
		Code:      code,
		CreatedAt: time.Now().UTC(),
	}), nil
}
