package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/checkin-core/internal/model"
)

// PersonRepo reads people and their aliases.  The check-in core never
// writes people.
type PersonRepo struct {
	db *sql.DB
}

// NewPersonRepo returns a PersonRepo bound to the provided database.
func NewPersonRepo(db *sql.DB) *PersonRepo { return &PersonRepo{db: db} }

// GetPerson loads a person with its primary alias.  It returns ErrNotFound
// when the id is unknown.
func (r *PersonRepo) GetPerson(ctx context.Context, id int64) (*model.Person, error) {
	const q = `SELECT p.id, p.primary_alias_id, p.first_name, p.last_name,
	                  p.birth_date, p.graduation_year, p.is_deceased
	           FROM people p
	           WHERE p.id = ?`
	var (
		p        model.Person
		birth    sql.NullTime
		gradYear sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.PrimaryAliasID, &p.FirstName, &p.LastName,
		&birth, &gradYear, &p.IsDeceased,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if birth.Valid {
		b := birth.Time
		p.BirthDate = &b
	}
	if gradYear.Valid {
		g := int(gradYear.Int64)
		p.GraduationYear = &g
	}
	return &p, nil
}

// AliasIDs returns every alias key owned by the person.  Attendance rows
// are keyed by alias, so all attendance lookups for a person go through
// this set.
func (r *PersonRepo) AliasIDs(ctx context.Context, personID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM person_aliases WHERE person_id = ? ORDER BY id`, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
