package checkin

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/checkin-core/internal/access"
	"github.com/iliyamo/checkin-core/internal/repository"
)

// Reason discriminates business rejections.  Rejections are returned as
// values, never as errors.
type Reason string

const (
	ReasonPersonNotFound    Reason = "person_not_found"
	ReasonPersonDeceased    Reason = "person_deceased"
	ReasonLocationNotFound  Reason = "location_not_found"
	ReasonLocationInactive  Reason = "location_inactive"
	ReasonLocationArchived  Reason = "location_archived"
	ReasonAlreadyCheckedIn  Reason = "already_checked_in"
	ReasonAtCapacity        Reason = "at_capacity"
	ReasonOutsideSchedule   Reason = "outside_schedule"
	ReasonAlreadyCheckedOut Reason = "already_checked_out"
)

var reasonMessages = map[Reason]string{
	ReasonPersonNotFound:    "person not found",
	ReasonPersonDeceased:    "person is not eligible for check-in",
	ReasonLocationNotFound:  "location not found",
	ReasonLocationInactive:  "location is not active",
	ReasonLocationArchived:  "location is archived",
	ReasonAlreadyCheckedIn:  "person is already checked in to this location",
	ReasonAtCapacity:        "location is at capacity",
	ReasonOutsideSchedule:   "check-in is not open for this location right now",
	ReasonAlreadyCheckedOut: "attendance is already checked out",
}

// Message returns the user-facing text for r.
func (r Reason) Message() string { return reasonMessages[r] }

// Flags qualify an eligibility decision.  Capacity and schedule flags
// accompany the matching rejection so kiosks can word them differently;
// age and grade flags are advisory and never reject on their own.
type Flags uint8

const (
	FlagAtCapacity Flags = 1 << iota
	FlagOutsideSchedule
	FlagAgeMismatch
	FlagGradeMismatch
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{FlagAtCapacity, "at_capacity"},
	{FlagOutsideSchedule, "outside_schedule"},
	{FlagAgeMismatch, "age_mismatch"},
	{FlagGradeMismatch, "grade_mismatch"},
}

// Has reports whether every bit of f2 is set.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// Names lists the set flags.
func (f Flags) Names() []string {
	out := []string{}
	for _, n := range flagNames {
		if f.Has(n.f) {
			out = append(out, n.name)
		}
	}
	return out
}

func (f Flags) MarshalJSON() ([]byte, error) { return json.Marshal(f.Names()) }

// ValidationError reports malformed input.  It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

// ErrUnauthorized is returned when the caller may not act on the person or
// location.  Callers surface a generic failure so resource existence is
// not revealed.
var ErrUnauthorized = access.ErrUnauthorized

// ErrNotFound is returned by operations addressing a single row that does
// not exist.
var ErrNotFound = repository.ErrNotFound

// ErrCodeSpaceExhausted is returned when no unused security code could be
// drawn within the configured number of attempts.  It is an
// infrastructure fault, not a business rejection.
var ErrCodeSpaceExhausted = errors.New("security code allocation exhausted its retries")

// ErrOccurrenceUnavailable is returned when the occurrence could be
// neither inserted nor read back.
var ErrOccurrenceUnavailable = errors.New("attendance occurrence unavailable")

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
