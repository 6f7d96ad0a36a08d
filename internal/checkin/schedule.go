package checkin

import (
	"time"

	"github.com/iliyamo/checkin-core/internal/model"
)

// Window is the admission window around a schedule's occurrence.  Start
// and End are inclusive.  AlwaysOpen is set for schedules without a weekly
// day and time, which are open whenever they are active.
type Window struct {
	Occurrence time.Time `json:"occurrence"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Open       bool      `json:"open"`
	AlwaysOpen bool      `json:"always_open"`
}

// AdmissionWindow computes the window for s relative to now.  The
// occurrence is the current one when now is still inside its window,
// otherwise the next matching weekday at the schedule's time of day.  All
// arithmetic happens in now's location, so callers pass now already
// converted to the campus time zone.  Both enforcement and display use
// this function.
func AdmissionWindow(s model.Schedule, now time.Time) Window {
	if !s.IsWeekly() {
		return Window{Open: s.IsActive && effective(s, now), AlwaysOpen: true}
	}
	startOff, endOff := s.StartOffset(), s.EndOffset()
	t := nextOccurrence(*s.WeeklyDayOfWeek, *s.WeeklyTimeOfDay, now, endOff)
	// a window can reach past midnight into the following weekday
	if prev := t.AddDate(0, 0, -7); within(now, prev.Add(-startOff), prev.Add(endOff)) {
		t = prev
	}
	w := Window{Occurrence: t, Start: t.Add(-startOff), End: t.Add(endOff)}
	w.Open = s.IsActive && effective(s, now) && within(now, w.Start, w.End)
	return w
}

// IsOpen reports whether s admits check-ins at now.
func IsOpen(s model.Schedule, now time.Time) bool { return AdmissionWindow(s, now).Open }

func nextOccurrence(day time.Weekday, tod time.Duration, now time.Time, endOff time.Duration) time.Time {
	ahead := (int(day) - int(now.Weekday()) + 7) % 7
	y, m, d := now.Date()
	h := int(tod / time.Hour)
	mi := int(tod % time.Hour / time.Minute)
	sec := int(tod % time.Minute / time.Second)
	t := time.Date(y, m, d+ahead, h, mi, sec, 0, now.Location())
	if ahead == 0 && now.After(t.Add(endOff)) {
		t = time.Date(y, m, d+7, h, mi, sec, 0, now.Location())
	}
	return t
}

func within(now, start, end time.Time) bool {
	return !now.Before(start) && !now.After(end)
}

// effective checks the schedule's optional effective date range against
// now's civil date.
func effective(s model.Schedule, now time.Time) bool {
	today := model.DateOf(now)
	if s.EffectiveStartDate != nil && today.Before(model.DateOf(*s.EffectiveStartDate)) {
		return false
	}
	if s.EffectiveEndDate != nil && today.After(model.DateOf(*s.EffectiveEndDate)) {
		return false
	}
	return true
}
