package checkin

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/checkin-core/internal/model"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// ValidateEligibility runs the admission rules without writing anything.
func (s *Service) ValidateEligibility(ctx context.Context, personKey, locationKey, date string) (Eligibility, error) {
	in, err := s.decode(personKey, locationKey, "", date)
	if err != nil {
		return Eligibility{}, err
	}
	if err := authorize(s.d.Auth.AuthorizeCheckinOperation(ctx, in.personID, in.locationID)); err != nil {
		return Eligibility{}, err
	}
	return s.validator.Validate(ctx, in.personID, in.locationID, in.date)
}

// CurrentAttendance lists the open attendances at a location for a date,
// defaulting to today.
func (s *Service) CurrentAttendance(ctx context.Context, locationKey, date string) ([]model.AttendanceView, error) {
	locationID, ok := s.d.IDs.Decode(locationKey)
	if !ok {
		return nil, invalid("location_id", "malformed identifier")
	}
	d, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}
	if err := authorize(s.d.Auth.AuthorizeLocationAccess(ctx, locationID)); err != nil {
		return nil, err
	}
	rows, err := s.d.Attendance.ListOpenAtLocation(ctx, locationID, d)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return rows, nil
}

// PersonHistory lists a person's attendances across all aliases, most
// recent first.  limit defaults to 50 and is capped at 500.
func (s *Service) PersonHistory(ctx context.Context, personKey string, limit int) ([]model.AttendanceView, error) {
	personID, ok := s.d.IDs.Decode(personKey)
	if !ok {
		return nil, invalid("person_id", "malformed identifier")
	}
	switch {
	case limit < 0:
		return nil, invalid("limit", "must not be negative")
	case limit == 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	if err := authorize(s.d.Auth.AuthorizePersonAccess(ctx, personID)); err != nil {
		return nil, err
	}
	person, err := s.d.People.GetPerson(ctx, personID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load person: %w", err)
	}
	aliases, err := s.validator.aliases(ctx, person)
	if err != nil {
		return nil, err
	}
	rows, err := s.d.Attendance.ListByPerson(ctx, aliases, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return rows, nil
}

// AdmissionWindow returns the admission window of a location's schedule as
// of now.  A location without a schedule reports an always-open window
// while it is active.
func (s *Service) AdmissionWindow(ctx context.Context, locationKey string) (Window, error) {
	locationID, ok := s.d.IDs.Decode(locationKey)
	if !ok {
		return Window{}, invalid("location_id", "malformed identifier")
	}
	if err := authorize(s.d.Auth.AuthorizeLocationAccess(ctx, locationID)); err != nil {
		return Window{}, err
	}
	loc, err := s.d.Locations.GetLocation(ctx, locationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Window{}, ErrNotFound
		}
		return Window{}, fmt.Errorf("load location: %w", err)
	}
	if loc.Schedule == nil {
		return Window{Open: loc.IsActive && !loc.IsArchived, AlwaysOpen: true}, nil
	}
	return AdmissionWindow(*loc.Schedule, s.now().In(s.opts.Timezone)), nil
}
