package model

import "time"

// Default admission window offsets applied when a schedule leaves them unset.
const (
	DefaultCheckInStartOffset = 60 * time.Minute
	DefaultCheckInEndOffset   = 30 * time.Minute
)

// Schedule describes when a location meets.  Only weekly schedules are
// evaluated; a schedule without a weekly day and time is treated as open
// whenever it is active.
type Schedule struct {
	ID                 int64          // schedules.id
	Name               string         // schedules.name
	WeeklyDayOfWeek    *time.Weekday  // schedules.weekly_day_of_week (nullable)
	WeeklyTimeOfDay    *time.Duration // offset from midnight (nullable)
	StartOffsetMinutes *int           // minutes before the start that check-in opens
	EndOffsetMinutes   *int           // minutes after the start that check-in closes
	EffectiveStartDate *time.Time     // first civil date the schedule applies (nullable)
	EffectiveEndDate   *time.Time     // last civil date the schedule applies (nullable)
	IsActive           bool           // schedules.is_active
}

// IsWeekly reports whether both the weekly day and time are configured.
func (s Schedule) IsWeekly() bool {
	return s.WeeklyDayOfWeek != nil && s.WeeklyTimeOfDay != nil
}

// StartOffset returns the configured start offset or the default.
func (s Schedule) StartOffset() time.Duration {
	if s.StartOffsetMinutes == nil {
		return DefaultCheckInStartOffset
	}
	return time.Duration(*s.StartOffsetMinutes) * time.Minute
}

// EndOffset returns the configured end offset or the default.
func (s Schedule) EndOffset() time.Duration {
	if s.EndOffsetMinutes == nil {
		return DefaultCheckInEndOffset
	}
	return time.Duration(*s.EndOffsetMinutes) * time.Minute
}
