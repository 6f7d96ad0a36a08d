package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/checkin-core/internal/model"
)

// FollowUpRepo writes follow_ups, unique on (person_id, attendance_id).
type FollowUpRepo struct {
	db *sql.DB
}

// NewFollowUpRepo returns a FollowUpRepo bound to the provided database.
func NewFollowUpRepo(db *sql.DB) *FollowUpRepo { return &FollowUpRepo{db: db} }

// CreateFollowUp inserts the follow-up for a first-time visit.  Jobs are
// delivered at least once, so a duplicate key means an earlier delivery
// already succeeded and is treated as success.
func (r *FollowUpRepo) CreateFollowUp(ctx context.Context, personID, attendanceID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO follow_ups (person_id, attendance_id, status) VALUES (?, ?, ?)`,
		personID, attendanceID, model.FollowUpStatusOpen)
	if err != nil && !isDuplicate(err) {
		return err
	}
	return nil
}
