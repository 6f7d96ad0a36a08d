package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/checkin-core/internal/model"
	"github.com/iliyamo/checkin-core/internal/utils"
)

// StaffRepo persists staff users (volunteers, employees and kiosk devices).
type StaffRepo struct{ DB *sql.DB }

func NewStaffRepo(db *sql.DB) *StaffRepo { return &StaffRepo{DB: db} }

// ErrUsernameExists is returned by Create for a taken username.
var ErrUsernameExists = fmt.Errorf("username already exists: %w", ErrConflict)

// Create hashes the password and inserts the staff user, returning its ID.
func (r *StaffRepo) Create(ctx context.Context, username, password, role string, campusID *int64, cost int) (int64, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO staff_users (username, password_hash, role, campus_id) VALUES (?,?,?,?)",
		username, hash, role, campusID)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrUsernameExists
		}
		return 0, err
	}
	return res.LastInsertId()
}

// GetByUsername fetches a staff user by normalized username.
func (r *StaffRepo) GetByUsername(ctx context.Context, username string) (model.Staff, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	var (
		s        model.Staff
		campusID sql.NullInt64
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,username,password_hash,role,campus_id,is_active,created_at,updated_at FROM staff_users WHERE username=? LIMIT 1",
		username).Scan(&s.ID, &s.Username, &s.PasswordHash, &s.Role, &campusID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	s.CampusID = nullInt64(campusID)
	return s, err
}
