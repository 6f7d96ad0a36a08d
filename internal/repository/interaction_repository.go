package repository

import (
	"context"
	"database/sql"
	"errors"
)

// InteractionRepo records message opens and link clicks.
type InteractionRepo struct{ DB *sql.DB }

func NewInteractionRepo(db *sql.DB) *InteractionRepo { return &InteractionRepo{DB: db} }

// Record appends an interaction row.  Unknown tokens are stored as-is; the
// communication module reconciles them.
func (r *InteractionRepo) Record(ctx context.Context, token, kind, ip, userAgent string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO communication_interactions (token, kind, ip, user_agent) VALUES (?,?,?,?)",
		token, kind, ip, userAgent)
	return err
}

// LinkURL returns the destination of a tracked link.
func (r *InteractionRepo) LinkURL(ctx context.Context, token string) (string, error) {
	var url string
	err := r.DB.QueryRowContext(ctx,
		"SELECT url FROM communication_links WHERE token=? LIMIT 1", token).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return url, err
}
