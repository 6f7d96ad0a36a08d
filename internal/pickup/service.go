// Package pickup verifies the security codes printed on child labels when
// a parent collects a child.  Attempts are rate limited per client so the
// short code space cannot be walked.
package pickup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/checkin-core/internal/model"
	"github.com/iliyamo/checkin-core/internal/ratelimit"
)

// ErrCodeNotFound is returned when no open attendance carries the code.
var ErrCodeNotFound = errors.New("pickup code not found")

// RateLimitedError is returned while the client is locked out.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many pickup attempts; retry in %s", e.RetryAfter.Round(time.Second))
}

// ErrRateLimited matches any *RateLimitedError with errors.Is.
var ErrRateLimited = errors.New("too many pickup attempts")

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// CodeFinder lists the open attendances issued a code on a date.
type CodeFinder interface {
	ListOpenByCode(ctx context.Context, date time.Time, code string) ([]model.AttendanceView, error)
}

// Service verifies pickup codes.
type Service struct {
	finder  CodeFinder
	limiter ratelimit.Limiter
	tz      *time.Location
	now     func() time.Time
	log     zerolog.Logger
}

// New returns a Service.  The limiter should fail closed.
func New(f CodeFinder, l ratelimit.Limiter, tz *time.Location, now func() time.Time, log zerolog.Logger) *Service {
	if tz == nil {
		tz = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Service{finder: f, limiter: l, tz: tz, now: now, log: log.With().Str("component", "pickup").Logger()}
}

// Verify returns the open attendances issued code today.  Every failed
// attempt counts against clientKey; a successful one clears it.
func (s *Service) Verify(ctx context.Context, clientKey, code string) ([]model.AttendanceView, error) {
	key := "pickup:" + clientKey
	if s.limiter.IsLimited(ctx, key) {
		wait, _ := s.limiter.RetryAfter(ctx, key)
		return nil, &RateLimitedError{RetryAfter: wait}
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		s.limiter.RecordAttempt(ctx, key)
		return nil, ErrCodeNotFound
	}
	today := model.DateOf(s.now().In(s.tz))
	rows, err := s.finder.ListOpenByCode(ctx, today, code)
	if err != nil {
		return nil, fmt.Errorf("find code: %w", err)
	}
	if len(rows) == 0 {
		s.limiter.RecordAttempt(ctx, key)
		s.log.Info().Str("client", clientKey).Msg("pickup code not matched")
		return nil, ErrCodeNotFound
	}
	s.limiter.Reset(ctx, key)
	return rows, nil
}
