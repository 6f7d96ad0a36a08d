// Package checkin is the admission and concurrency core of kiosk check-in.
// A check-in is validated, allocates the shared occurrence row and an
// optional security code, writes the attendance exactly once and, for a
// first-time visitor, hands a follow-up job to the retry queue without
// waiting for it.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/iliyamo/checkin-core/internal/model"
	"github.com/iliyamo/checkin-core/internal/repository"
	"github.com/iliyamo/checkin-core/internal/utils"
)

// Options tune the service.  Zero values take the defaults noted.
type Options struct {
	Timezone           *time.Location // campus time zone, default UTC
	CodeLength         int            // default 3
	CodeAttempts       int            // default 10
	BatchConcurrency   int            // default 8
	LatencyBudget      time.Duration  // default 200ms, breaches are logged
	BatchLatencyBudget time.Duration  // default 500ms, breaches are logged
	EnqueueTimeout     time.Duration  // default 5s
	CodeGenerator      CodeGenerator  // default RandomCode
}

func (o Options) withDefaults() Options {
	if o.Timezone == nil {
		o.Timezone = time.UTC
	}
	if o.BatchConcurrency <= 0 {
		o.BatchConcurrency = 8
	}
	if o.LatencyBudget <= 0 {
		o.LatencyBudget = 200 * time.Millisecond
	}
	if o.BatchLatencyBudget <= 0 {
		o.BatchLatencyBudget = 500 * time.Millisecond
	}
	if o.EnqueueTimeout <= 0 {
		o.EnqueueTimeout = 5 * time.Second
	}
	return o
}

// Deps are the collaborators the service calls.  FollowUps may be nil, in
// which case first-time visits are not handed off.
type Deps struct {
	People      PersonStore
	Locations   LocationStore
	Occurrences OccurrenceStore
	Codes       CodeStore
	Attendance  AttendanceStore
	IDs         IdentityDecoder
	Auth        Authorizer
	FollowUps   FollowUpEnqueuer
	Log         zerolog.Logger
	Now         func() time.Time
}

// Service exposes check-in, batch check-in, check-out, eligibility
// dry-runs and attendance queries.
type Service struct {
	d         Deps
	opts      Options
	log       zerolog.Logger
	now       func() time.Time
	validator *Validator
	coord     *Coordinator

	bg sync.WaitGroup
}

// New wires a Service.
func New(d Deps, opts Options) *Service {
	opts = opts.withDefaults()
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		d:         d,
		opts:      opts,
		log:       d.Log.With().Str("component", "checkin").Logger(),
		now:       d.Now,
		validator: NewValidator(d.People, d.Locations, d.Attendance, d.Now, opts.Timezone),
		coord:     NewCoordinator(d.Occurrences, d.Codes, opts.CodeLength, opts.CodeAttempts, opts.CodeGenerator),
	}
}

// Validator exposes the admission validator.
func (s *Service) Validator() *Validator { return s.validator }

// Coordinator exposes the occurrence/code coordinator.
func (s *Service) Coordinator() *Coordinator { return s.coord }

// Wait blocks until every in-flight follow-up hand-off has finished.
func (s *Service) Wait() { s.bg.Wait() }

// Request is one check-in.  Identifiers are the opaque keys kiosks hold.
type Request struct {
	PersonKey    string `json:"person_id" validate:"required"`
	LocationKey  string `json:"location_id" validate:"required"`
	ScheduleKey  string `json:"schedule_id,omitempty"`
	Date         string `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
	GenerateCode bool   `json:"generate_code"`
	Note         string `json:"note,omitempty" validate:"max=500"`
}

// PersonSummary is the person part of a check-in response.
type PersonSummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	AgeMonths *int   `json:"age_months,omitempty"`
	Grade     *int   `json:"grade,omitempty"`
}

// LocationSummary is the location part of a check-in response.
type LocationSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Capacity *int   `json:"capacity,omitempty"`
}

// Result is the outcome of a check-in.  Success is false for business
// rejections, which carry a Reason; faults are returned as errors instead.
type Result struct {
	Success      bool             `json:"success"`
	Reason       Reason           `json:"reason,omitempty"`
	Message      string           `json:"message,omitempty"`
	Flags        Flags            `json:"flags"`
	AttendanceID int64            `json:"attendance_id,omitempty"`
	Code         string           `json:"code,omitempty"`
	IsFirstTime  bool             `json:"is_first_time"`
	Person       *PersonSummary   `json:"person,omitempty"`
	Location     *LocationSummary `json:"location,omitempty"`
	ElapsedMs    int64            `json:"elapsed_ms"`
}

func rejected(e Eligibility) Result {
	return Result{Reason: e.Reason, Message: e.Message, Flags: e.Flags}
}

type decoded struct {
	personID   int64
	locationID int64
	scheduleID *int64
	date       time.Time
}

func (s *Service) decode(personKey, locationKey, scheduleKey, date string) (decoded, error) {
	var d decoded
	var ok bool
	if d.personID, ok = s.d.IDs.Decode(personKey); !ok {
		return d, invalid("person_id", "malformed identifier")
	}
	if d.locationID, ok = s.d.IDs.Decode(locationKey); !ok {
		return d, invalid("location_id", "malformed identifier")
	}
	if strings.TrimSpace(scheduleKey) != "" {
		id, ok := s.d.IDs.Decode(scheduleKey)
		if !ok {
			return d, invalid("schedule_id", "malformed identifier")
		}
		d.scheduleID = &id
	}
	dt, err := s.parseDate(date)
	if err != nil {
		return d, err
	}
	d.date = dt
	return d, nil
}

// parseDate reads YYYY-MM-DD in the campus zone, defaulting to today.
func (s *Service) parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return model.DateOf(s.now().In(s.opts.Timezone)), nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, s.opts.Timezone)
	if err != nil {
		return time.Time{}, invalid("date", "expected YYYY-MM-DD")
	}
	return model.DateOf(t), nil
}

// authorize converts authorizer errors: denials become ErrUnauthorized,
// anything else is a fault.
func authorize(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnauthorized) {
		return ErrUnauthorized
	}
	return fmt.Errorf("authorize: %w", err)
}

// CheckIn admits one person into one location.  Malformed input returns a
// *ValidationError, a denied caller ErrUnauthorized, and store faults a
// wrapped error; business rejections return a Result with Success false.
// The follow-up hand-off for first-time visitors never affects the result.
func (s *Service) CheckIn(ctx context.Context, req Request) (Result, error) {
	started := time.Now()
	res, err := s.checkIn(ctx, req)
	elapsed := time.Since(started)
	res.ElapsedMs = elapsed.Milliseconds()
	if elapsed > s.opts.LatencyBudget {
		s.log.Warn().Dur("elapsed", elapsed).Dur("budget", s.opts.LatencyBudget).
			Str("person", req.PersonKey).Str("location", req.LocationKey).Msg("check-in exceeded latency budget")
	}
	return res, err
}

func (s *Service) checkIn(ctx context.Context, req Request) (Result, error) {
	in, err := s.decode(req.PersonKey, req.LocationKey, req.ScheduleKey, req.Date)
	if err != nil {
		return Result{}, err
	}
	if utf8.RuneCountInString(req.Note) > 500 {
		return Result{}, invalid("note", "must be at most 500 characters")
	}
	if err := authorize(s.d.Auth.AuthorizeCheckinOperation(ctx, in.personID, in.locationID)); err != nil {
		return Result{}, err
	}

	elig, subj, err := s.validator.evaluate(ctx, in.personID, in.locationID, in.date)
	if err != nil {
		return Result{}, err
	}
	if !elig.Allowed {
		return rejected(elig), nil
	}

	// occurrences hang off the location's own schedule, the one the
	// admission window was judged against
	scheduleID := subj.location.ScheduleID
	if in.scheduleID != nil && (scheduleID == nil || *in.scheduleID != *scheduleID) {
		return Result{}, invalid("schedule_id", "not a schedule of this location")
	}
	occ, err := s.coord.GetOrCreateOccurrence(ctx, in.locationID, scheduleID, in.date)
	if err != nil {
		return Result{}, err
	}

	// validation above is advisory; re-read before spending a code
	open, err := s.d.Attendance.HasOpenAttendance(ctx, subj.aliases, in.locationID, in.date)
	if err != nil {
		return Result{}, fmt.Errorf("recheck open attendance: %w", err)
	}
	if open {
		return rejected(reject(ReasonAlreadyCheckedIn, 0)), nil
	}

	var code *model.AttendanceCode
	if req.GenerateCode {
		if code, err = s.coord.AllocateSecurityCode(ctx, in.date); err != nil {
			return Result{}, err
		}
	}

	seen, err := s.d.Attendance.HasAnyAttendance(ctx, subj.aliases, in.locationID)
	if err != nil {
		return Result{}, fmt.Errorf("check prior attendance: %w", err)
	}

	att := model.Attendance{
		OccurrenceID:  occ.ID,
		PersonAliasID: primaryAlias(subj),
		StartTime:     s.now().UTC(),
		IsFirstTime:   !seen,
	}
	if code != nil {
		att.AttendanceCodeID = &code.ID
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		att.Note = &note
	}

	// the write re-checks duplicates and capacity under the occurrence lock
	out, err := s.d.Attendance.CreateGuarded(ctx, repository.GuardedAttendance{
		Attendance:     att,
		AliasIDs:       subj.aliases,
		LocationID:     in.locationID,
		OccurrenceDate: in.date,
		Capacity:       subj.location.Capacity,
	})
	if err != nil {
		return Result{}, fmt.Errorf("write attendance: %w", err)
	}
	switch out.Outcome {
	case repository.GuardDuplicate:
		return rejected(reject(ReasonAlreadyCheckedIn, 0)), nil
	case repository.GuardAtCapacity:
		return rejected(reject(ReasonAtCapacity, FlagAtCapacity)), nil
	}
	att = out.Attendance

	if att.IsFirstTime {
		s.handOffFollowUp(ctx, subj.person.ID, att.ID)
	}

	res := Result{
		Success:      true,
		Flags:        elig.Flags,
		AttendanceID: att.ID,
		IsFirstTime:  att.IsFirstTime,
		Person:       s.personSummary(subj.person),
		Location: &LocationSummary{
			ID:       subj.location.ID,
			Name:     subj.location.Name,
			Capacity: subj.location.Capacity,
		},
	}
	if code != nil {
		res.Code = code.Code
	}
	s.log.Debug().Int64("attendance_id", att.ID).Int64("person_id", subj.person.ID).
		Int64("location_id", subj.location.ID).Bool("first_time", att.IsFirstTime).Msg("checked in")
	return res, nil
}

func primaryAlias(subj *subject) int64 {
	if subj.person.PrimaryAliasID != 0 {
		return subj.person.PrimaryAliasID
	}
	if len(subj.aliases) > 0 {
		return subj.aliases[0]
	}
	return 0
}

func (s *Service) personSummary(p *model.Person) *PersonSummary {
	now := s.now().In(s.opts.Timezone)
	ps := &PersonSummary{ID: p.ID, Name: p.FullName()}
	if p.BirthDate != nil {
		m := utils.AgeInMonths(*p.BirthDate, now)
		ps.AgeMonths = &m
	}
	if p.GraduationYear != nil {
		g := utils.CurrentGrade(*p.GraduationYear, now)
		ps.Grade = &g
	}
	return ps
}

// handOffFollowUp enqueues the first follow-up attempt in the background.
// The check-in has already been written, so nothing that happens here may
// reach the caller: errors and panics are logged for operators and
// swallowed.  The enqueue outlives the request context.
func (s *Service) handOffFollowUp(ctx context.Context, personID, attendanceID int64) {
	if s.d.FollowUps == nil {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		log := s.log.With().Int64("person_id", personID).Int64("attendance_id", attendanceID).Logger()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("alert", "operator").Interface("panic", r).Msg("follow-up enqueue panicked; check-in unaffected")
			}
		}()
		ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.EnqueueTimeout)
		defer cancel()
		if _, err := s.d.FollowUps.Enqueue(ectx, personID, attendanceID, 0); err != nil {
			log.Error().Err(err).Str("alert", "operator").Msg("failed to enqueue follow-up; check-in unaffected")
		}
	}()
}
