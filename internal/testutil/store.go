// Package testutil holds in-memory fakes shared by package tests.
package testutil

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/iliyamo/checkin-core/internal/model"
	"github.com/iliyamo/checkin-core/internal/repository"
)

// Store is an in-memory stand-in for the MySQL repositories.  Unique keys
// and the guarded attendance insert behave like the database: one mutex
// plays the part of the occurrence row lock.
type Store struct {
	mu sync.Mutex

	people      map[int64]*model.Person
	aliases     map[int64][]int64 // person -> aliases
	aliasOwner  map[int64]int64   // alias -> person
	locations   map[int64]*model.Location
	occurrences []model.Occurrence
	codes       []model.AttendanceCode
	attendances []model.Attendance
	followUps   map[[2]int64]bool
	nextID      int64

	// OccurrenceInserts counts InsertOccurrence calls, conflicts included.
	OccurrenceInserts int
	// CodeInserts counts InsertCode calls, conflicts included.
	CodeInserts int
	// FollowUpErr, when set, is consulted on every CreateFollowUp call
	// with the 0-based call number.
	FollowUpErr   func(call int) error
	followUpCalls int
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		people:     map[int64]*model.Person{},
		aliases:    map[int64][]int64{},
		aliasOwner: map[int64]int64{},
		locations:  map[int64]*model.Location{},
		followUps:  map[[2]int64]bool{},
		nextID:     1000,
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddPerson stores p.  When p has no primary alias one is created.
func (s *Store) AddPerson(p model.Person) *model.Person {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.PrimaryAliasID == 0 {
		p.PrimaryAliasID = s.id()
	}
	s.people[p.ID] = &p
	s.aliases[p.ID] = append(s.aliases[p.ID], p.PrimaryAliasID)
	s.aliasOwner[p.PrimaryAliasID] = p.ID
	return &p
}

// AddAlias attaches another alias to a person, as a merge would.
func (s *Store) AddAlias(personID, aliasID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases[personID] = append(s.aliases[personID], aliasID)
	s.aliasOwner[aliasID] = personID
}

// AddLocation stores l.
func (s *Store) AddLocation(l model.Location) *model.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[l.ID] = &l
	return &l
}

// SeedAttendance writes an attendance directly, bypassing every check.
func (s *Store) SeedAttendance(aliasID, locationID int64, date time.Time, start time.Time, end *time.Time) model.Attendance {
	s.mu.Lock()
	defer s.mu.Unlock()
	date = model.DateOf(date)
	occ := s.findOcc(locationID, nil, date)
	if occ == nil {
		s.occurrences = append(s.occurrences, model.Occurrence{ID: s.id(), LocationID: locationID, OccurrenceDate: date})
		occ = &s.occurrences[len(s.occurrences)-1]
	}
	a := model.Attendance{ID: s.id(), OccurrenceID: occ.ID, PersonAliasID: aliasID, StartTime: start, EndTime: end, CreatedAt: start}
	s.attendances = append(s.attendances, a)
	return a
}

func (s *Store) GetPerson(_ context.Context, id int64) (*model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.people[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) AliasIDs(_ context.Context, personID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.aliases[personID]...), nil
}

func (s *Store) GetLocation(_ context.Context, id int64) (*model.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func sameSchedule(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *Store) findOcc(locationID int64, scheduleID *int64, date time.Time) *model.Occurrence {
	for i := range s.occurrences {
		o := &s.occurrences[i]
		if o.LocationID == locationID && sameSchedule(o.ScheduleID, scheduleID) && model.SameDate(o.OccurrenceDate, date) {
			return o
		}
	}
	return nil
}

func (s *Store) InsertOccurrence(_ context.Context, o model.Occurrence) (repository.InsertResult[model.Occurrence], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OccurrenceInserts++
	if s.findOcc(o.LocationID, o.ScheduleID, o.OccurrenceDate) != nil {
		return repository.Conflicted[model.Occurrence](), nil
	}
	o.ID = s.id()
	o.OccurrenceDate = model.DateOf(o.OccurrenceDate)
	s.occurrences = append(s.occurrences, o)
	return repository.Inserted(o), nil
}

func (s *Store) FindOccurrence(_ context.Context, locationID int64, scheduleID *int64, date time.Time) (*model.Occurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.findOcc(locationID, scheduleID, date)
	if o == nil {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// Occurrences returns a copy of every occurrence row.
func (s *Store) Occurrences() []model.Occurrence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Occurrence(nil), s.occurrences...)
}

func (s *Store) InsertCode(_ context.Context, issueDate time.Time, code string) (repository.InsertResult[model.AttendanceCode], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CodeInserts++
	issueDate = model.DateOf(issueDate)
	for _, c := range s.codes {
		if c.Code == code && model.SameDate(c.IssueDate, issueDate) {
			return repository.Conflicted[model.AttendanceCode](), nil
		}
	}
	c := model.AttendanceCode{ID: s.id(), IssueDate: issueDate, Code: code}
	s.codes = append(s.codes, c)
	return repository.Inserted(c), nil
}

// Codes returns a copy of every issued code.
func (s *Store) Codes() []model.AttendanceCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AttendanceCode(nil), s.codes...)
}

func (s *Store) occByID(id int64) *model.Occurrence {
	for i := range s.occurrences {
		if s.occurrences[i].ID == id {
			return &s.occurrences[i]
		}
	}
	return nil
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *Store) hasOpen(aliasIDs []int64, locationID int64, date time.Time) bool {
	for _, a := range s.attendances {
		o := s.occByID(a.OccurrenceID)
		if a.IsOpen() && o.LocationID == locationID && model.SameDate(o.OccurrenceDate, date) && contains(aliasIDs, a.PersonAliasID) {
			return true
		}
	}
	return false
}

func (s *Store) countOpen(locationID int64, date time.Time) int {
	n := 0
	for _, a := range s.attendances {
		o := s.occByID(a.OccurrenceID)
		if a.IsOpen() && o.LocationID == locationID && model.SameDate(o.OccurrenceDate, date) {
			n++
		}
	}
	return n
}

func (s *Store) HasOpenAttendance(_ context.Context, aliasIDs []int64, locationID int64, date time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasOpen(aliasIDs, locationID, date), nil
}

func (s *Store) CountOpen(_ context.Context, locationID int64, date time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countOpen(locationID, date), nil
}

func (s *Store) HasAnyAttendance(_ context.Context, aliasIDs []int64, locationID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attendances {
		if s.occByID(a.OccurrenceID).LocationID == locationID && contains(aliasIDs, a.PersonAliasID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateGuarded(ctx context.Context, in repository.GuardedAttendance) (repository.GuardedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return repository.GuardedResult{}, err
	}
	if s.hasOpen(in.AliasIDs, in.LocationID, in.OccurrenceDate) {
		return repository.GuardedResult{Outcome: repository.GuardDuplicate}, nil
	}
	if in.Capacity != nil && s.countOpen(in.LocationID, in.OccurrenceDate) >= *in.Capacity {
		return repository.GuardedResult{Outcome: repository.GuardAtCapacity}, nil
	}
	a := in.Attendance
	a.ID = s.id()
	a.CreatedAt = a.StartTime
	s.attendances = append(s.attendances, a)
	return repository.GuardedResult{Outcome: repository.GuardInserted, Attendance: a}, nil
}

// Attendances returns a copy of every attendance row.
func (s *Store) Attendances() []model.Attendance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Attendance(nil), s.attendances...)
}

func (s *Store) GetAttendance(_ context.Context, id int64) (*repository.AttendanceRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attendances {
		if a.ID == id {
			return &repository.AttendanceRef{
				Attendance: a,
				PersonID:   s.aliasOwner[a.PersonAliasID],
				LocationID: s.occByID(a.OccurrenceID).LocationID,
			}, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) EndAttendance(_ context.Context, id int64, end time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.attendances {
		a := &s.attendances[i]
		if a.ID == id && a.IsOpen() {
			e := end
			a.EndTime = &e
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) view(a model.Attendance) model.AttendanceView {
	o := s.occByID(a.OccurrenceID)
	p := s.people[s.aliasOwner[a.PersonAliasID]]
	v := model.AttendanceView{
		AttendanceID:   a.ID,
		LocationID:     o.LocationID,
		OccurrenceDate: o.OccurrenceDate,
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		IsFirstTime:    a.IsFirstTime,
		Note:           a.Note,
	}
	if p != nil {
		v.PersonID = p.ID
		v.PersonName = p.FullName()
	}
	if l := s.locations[o.LocationID]; l != nil {
		v.LocationName = l.Name
	}
	if a.AttendanceCodeID != nil {
		for _, c := range s.codes {
			if c.ID == *a.AttendanceCodeID {
				code := c.Code
				v.Code = &code
			}
		}
	}
	return v
}

func (s *Store) ListOpenAtLocation(_ context.Context, locationID int64, date time.Time) ([]model.AttendanceView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.AttendanceView{}
	for _, a := range s.attendances {
		o := s.occByID(a.OccurrenceID)
		if a.IsOpen() && o.LocationID == locationID && model.SameDate(o.OccurrenceDate, date) {
			out = append(out, s.view(a))
		}
	}
	return out, nil
}

func (s *Store) ListByPerson(_ context.Context, aliasIDs []int64, limit int) ([]model.AttendanceView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.AttendanceView{}
	for _, a := range s.attendances {
		if contains(aliasIDs, a.PersonAliasID) {
			out = append(out, s.view(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListOpenByCode(_ context.Context, date time.Time, code string) ([]model.AttendanceView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.AttendanceView{}
	for _, a := range s.attendances {
		if !a.IsOpen() || a.AttendanceCodeID == nil {
			continue
		}
		v := s.view(a)
		if v.Code != nil && *v.Code == code && model.SameDate(v.OccurrenceDate, date) {
			out = append(out, v)
		}
	}
	return out, nil
}

// CreateFollowUp is idempotent per (person, attendance) like the table's
// unique key.
func (s *Store) CreateFollowUp(_ context.Context, personID, attendanceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := s.followUpCalls
	s.followUpCalls++
	if s.FollowUpErr != nil {
		if err := s.FollowUpErr(call); err != nil {
			return err
		}
	}
	s.followUps[[2]int64{personID, attendanceID}] = true
	return nil
}

// FollowUpCalls reports how many times CreateFollowUp ran.
func (s *Store) FollowUpCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.followUpCalls
}

// HasFollowUp reports whether the follow-up for (person, attendance) exists.
func (s *Store) HasFollowUp(personID, attendanceID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.followUps[[2]int64{personID, attendanceID}]
}

// NumericIDs decodes plain decimal identifiers.
type NumericIDs struct{}

func (NumericIDs) Decode(key string) (int64, bool) {
	n, err := strconv.ParseInt(key, 10, 64)
	return n, err == nil && n > 0
}

// Key renders id the way NumericIDs decodes it.
func Key(id int64) string { return strconv.FormatInt(id, 10) }

// Encode renders id as decimal.
func (NumericIDs) Encode(id int64) string { return Key(id) }
