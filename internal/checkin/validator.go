package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/checkin-core/internal/model"
	"github.com/iliyamo/checkin-core/internal/repository"
	"github.com/iliyamo/checkin-core/internal/utils"
)

// Eligibility is the admission decision for one person and location.
type Eligibility struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	Flags   Flags  `json:"flags"`
}

func reject(r Reason, f Flags) Eligibility {
	return Eligibility{Reason: r, Message: r.Message(), Flags: f}
}

// subject is what the validator loaded while deciding, reused by the
// transaction so rows are read once.
type subject struct {
	person   *model.Person
	aliases  []int64
	location *model.Location
}

// Validator evaluates the admission rules.  It only reads.
type Validator struct {
	people     PersonStore
	locations  LocationStore
	attendance AttendanceStore
	now        func() time.Time
	tz         *time.Location
}

// NewValidator returns a Validator evaluating schedules in tz.
func NewValidator(p PersonStore, l LocationStore, a AttendanceStore, now func() time.Time, tz *time.Location) *Validator {
	if now == nil {
		now = time.Now
	}
	if tz == nil {
		tz = time.UTC
	}
	return &Validator{people: p, locations: l, attendance: a, now: now, tz: tz}
}

// Validate checks, in order and stopping at the first failure: the person
// exists and is not deceased; the location exists, is active and is not
// archived; the person (through any alias) has no open attendance at the
// location on date; the location is below capacity for date; the
// location's schedule admits check-ins now.  Rejections are returned in
// the Eligibility; the error is reserved for store faults.
func (v *Validator) Validate(ctx context.Context, personID, locationID int64, date time.Time) (Eligibility, error) {
	e, _, err := v.evaluate(ctx, personID, locationID, date)
	return e, err
}

func (v *Validator) evaluate(ctx context.Context, personID, locationID int64, date time.Time) (Eligibility, *subject, error) {
	person, err := v.people.GetPerson(ctx, personID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return reject(ReasonPersonNotFound, 0), nil, nil
		}
		return Eligibility{}, nil, fmt.Errorf("load person: %w", err)
	}
	if person.IsDeceased {
		return reject(ReasonPersonDeceased, 0), nil, nil
	}

	loc, err := v.locations.GetLocation(ctx, locationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return reject(ReasonLocationNotFound, 0), nil, nil
		}
		return Eligibility{}, nil, fmt.Errorf("load location: %w", err)
	}
	switch {
	case loc.IsArchived:
		return reject(ReasonLocationArchived, 0), nil, nil
	case !loc.IsActive:
		return reject(ReasonLocationInactive, 0), nil, nil
	}

	aliases, err := v.aliases(ctx, person)
	if err != nil {
		return Eligibility{}, nil, err
	}
	open, err := v.attendance.HasOpenAttendance(ctx, aliases, locationID, date)
	if err != nil {
		return Eligibility{}, nil, fmt.Errorf("check open attendance: %w", err)
	}
	if open {
		return reject(ReasonAlreadyCheckedIn, 0), nil, nil
	}

	if loc.Capacity != nil {
		n, err := v.attendance.CountOpen(ctx, locationID, date)
		if err != nil {
			return Eligibility{}, nil, fmt.Errorf("count open attendance: %w", err)
		}
		if n >= *loc.Capacity {
			return reject(ReasonAtCapacity, FlagAtCapacity), nil, nil
		}
	}

	now := v.now().In(v.tz)
	if loc.Schedule != nil && !IsOpen(*loc.Schedule, now) {
		return reject(ReasonOutsideSchedule, FlagOutsideSchedule), nil, nil
	}

	e := Eligibility{Allowed: true, Flags: advisoryFlags(person, loc, now)}
	return e, &subject{person: person, aliases: aliases, location: loc}, nil
}

// aliases resolves every alias of person, always including the primary.
func (v *Validator) aliases(ctx context.Context, person *model.Person) ([]int64, error) {
	ids, err := v.people.AliasIDs(ctx, person.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve aliases: %w", err)
	}
	if person.PrimaryAliasID == 0 {
		return ids, nil
	}
	for _, id := range ids {
		if id == person.PrimaryAliasID {
			return ids, nil
		}
	}
	return append(ids, person.PrimaryAliasID), nil
}

// advisoryFlags marks age and grade bound mismatches.  A person whose
// birth date or graduation year is unknown is never flagged.
func advisoryFlags(p *model.Person, l *model.Location, now time.Time) Flags {
	var f Flags
	if p.BirthDate != nil && (l.MinAgeMonths != nil || l.MaxAgeMonths != nil) {
		age := utils.AgeInMonths(*p.BirthDate, now)
		if (l.MinAgeMonths != nil && age < *l.MinAgeMonths) || (l.MaxAgeMonths != nil && age > *l.MaxAgeMonths) {
			f |= FlagAgeMismatch
		}
	}
	if p.GraduationYear != nil && (l.MinGrade != nil || l.MaxGrade != nil) {
		g := utils.CurrentGrade(*p.GraduationYear, now)
		if (l.MinGrade != nil && g < *l.MinGrade) || (l.MaxGrade != nil && g > *l.MaxGrade) {
			f |= FlagGradeMismatch
		}
	}
	return f
}
