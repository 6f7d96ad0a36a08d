package checkin

import (
	"context"
	"time"

	"github.com/iliyamo/checkin-core/internal/model"
	"github.com/iliyamo/checkin-core/internal/repository"
)

// PersonStore reads people and resolves their alias set.
type PersonStore interface {
	GetPerson(ctx context.Context, id int64) (*model.Person, error)
	AliasIDs(ctx context.Context, personID int64) ([]int64, error)
}

// LocationStore reads locations with their schedule attached.
type LocationStore interface {
	GetLocation(ctx context.Context, id int64) (*model.Location, error)
}

// OccurrenceStore inserts and reads occurrence rows.  InsertOccurrence must
// report a concurrent insert of the same triple as a conflict.
type OccurrenceStore interface {
	InsertOccurrence(ctx context.Context, o model.Occurrence) (repository.InsertResult[model.Occurrence], error)
	FindOccurrence(ctx context.Context, locationID int64, scheduleID *int64, date time.Time) (*model.Occurrence, error)
}

// CodeStore reserves security codes per date.
type CodeStore interface {
	InsertCode(ctx context.Context, issueDate time.Time, code string) (repository.InsertResult[model.AttendanceCode], error)
}

// AttendanceStore reads and writes attendances.
type AttendanceStore interface {
	HasOpenAttendance(ctx context.Context, aliasIDs []int64, locationID int64, date time.Time) (bool, error)
	CountOpen(ctx context.Context, locationID int64, date time.Time) (int, error)
	HasAnyAttendance(ctx context.Context, aliasIDs []int64, locationID int64) (bool, error)
	CreateGuarded(ctx context.Context, in repository.GuardedAttendance) (repository.GuardedResult, error)
	GetAttendance(ctx context.Context, id int64) (*repository.AttendanceRef, error)
	EndAttendance(ctx context.Context, id int64, end time.Time) (bool, error)
	ListOpenAtLocation(ctx context.Context, locationID int64, date time.Time) ([]model.AttendanceView, error)
	ListByPerson(ctx context.Context, aliasIDs []int64, limit int) ([]model.AttendanceView, error)
}

// IdentityDecoder turns the opaque identifiers callers send into numeric
// keys.  Malformed input reports false.
type IdentityDecoder interface {
	Decode(key string) (int64, bool)
}

// Authorizer decides whether the caller in ctx may act.  Each method
// returns nil or an error wrapping ErrUnauthorized; any other error is an
// infrastructure fault.
type Authorizer interface {
	AuthorizePersonAccess(ctx context.Context, personID int64) error
	AuthorizeLocationAccess(ctx context.Context, locationID int64) error
	AuthorizeCheckinOperation(ctx context.Context, personID, locationID int64) error
}

// FollowUpEnqueuer hands a first-time visit to the follow-up retry queue.
type FollowUpEnqueuer interface {
	Enqueue(ctx context.Context, personID, attendanceID int64, attempt int) (string, error)
}
