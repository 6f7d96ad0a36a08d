package checkin

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/iliyamo/checkin-core/internal/model"
	"github.com/iliyamo/checkin-core/internal/repository"
)

// codeAlphabet leaves out characters that are easily confused when read
// aloud or printed on a label (0/O, 1/I/L, Q, 5/S).
const codeAlphabet = "ABCDEFGHJKMNPRTUVWXYZ2346789"

// occurrenceAttempts bounds insert/read rounds for one occurrence.  A
// conflict followed by a miss only happens when the winning insert is not
// yet visible to the read.
const occurrenceAttempts = 3

// CodeGenerator draws a candidate security code of length n.
type CodeGenerator func(n int) (string, error)

// RandomCode draws n characters from codeAlphabet with crypto/rand.
func RandomCode(n int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, n)
	for i := range b {
		k, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[k.Int64()]
	}
	return string(b), nil
}

// Coordinator allocates the resources shared by concurrent check-ins: the
// occurrence row and the per-date security code namespace.  Both rely on
// the store's unique keys rather than locks; losing a race is recovered
// by reading the winner's row or drawing another code.
type Coordinator struct {
	occurrences  OccurrenceStore
	codes        CodeStore
	codeLength   int
	codeAttempts int
	generate     CodeGenerator
}

// NewCoordinator returns a Coordinator.  gen may be nil to use RandomCode.
func NewCoordinator(o OccurrenceStore, c CodeStore, codeLength, codeAttempts int, gen CodeGenerator) *Coordinator {
	if codeLength <= 0 {
		codeLength = 3
	}
	if codeAttempts <= 0 {
		codeAttempts = 10
	}
	if gen == nil {
		gen = RandomCode
	}
	return &Coordinator{occurrences: o, codes: c, codeLength: codeLength, codeAttempts: codeAttempts, generate: gen}
}

// GetOrCreateOccurrence returns the single occurrence for
// (location, schedule, date), creating it when absent.  Concurrent callers
// for the same triple all receive the same row.
func (c *Coordinator) GetOrCreateOccurrence(ctx context.Context, locationID int64, scheduleID *int64, date time.Time) (*model.Occurrence, error) {
	date = model.DateOf(date)
	for i := 0; i < occurrenceAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		occ, err := c.occurrences.FindOccurrence(ctx, locationID, scheduleID, date)
		if err == nil {
			return occ, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("read occurrence: %w", err)
		}
		res, err := c.occurrences.InsertOccurrence(ctx, model.Occurrence{
			LocationID:     locationID,
			ScheduleID:     scheduleID,
			OccurrenceDate: date,
		})
		if err != nil {
			return nil, fmt.Errorf("insert occurrence: %w", err)
		}
		if !res.Conflict {
			row := res.Row
			return &row, nil
		}
		// a concurrent caller inserted it first; loop to read it
	}
	return nil, ErrOccurrenceUnavailable
}

// AllocateSecurityCode reserves a code no other attendance holds on date.
// Collisions draw a new code; after the configured number of attempts the
// allocation fails with ErrCodeSpaceExhausted.
func (c *Coordinator) AllocateSecurityCode(ctx context.Context, date time.Time) (*model.AttendanceCode, error) {
	date = model.DateOf(date)
	for i := 0; i < c.codeAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		code, err := c.generate(c.codeLength)
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		res, err := c.codes.InsertCode(ctx, date, code)
		if err != nil {
			return nil, fmt.Errorf("insert code: %w", err)
		}
		if !res.Conflict {
			row := res.Row
			return &row, nil
		}
	}
	return nil, fmt.Errorf("%w (%d attempts on %s)", ErrCodeSpaceExhausted, c.codeAttempts, date.Format("2006-01-02"))
}
