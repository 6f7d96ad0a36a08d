package model

import "time"

// Occurrence is the materialized instance of a location meeting on one
// calendar date for one schedule.  At most one row exists per
// (location, schedule, date); rows are created lazily on first check-in
// and never deleted by the check-in core.
type Occurrence struct {
	ID             int64     // attendance_occurrences.id
	LocationID     int64     // attendance_occurrences.location_id
	ScheduleID     *int64    // attendance_occurrences.schedule_id (nullable)
	OccurrenceDate time.Time // attendance_occurrences.occurrence_date (DateOf normalized)
	CreatedAt      time.Time // attendance_occurrences.created_at
}

// AttendanceCode is the pickup security code printed at check-in.  Codes
// are unique per issue date only.
type AttendanceCode struct {
	ID        int64     // attendance_codes.id
	IssueDate time.Time // attendance_codes.issue_date
	Code      string    // attendance_codes.code
	CreatedAt time.Time // attendance_codes.created_at
}

// Attendance is one check-in event.  EndTime is nil while the attendance
// is open; check-out sets it.  Rows are never physically deleted.
type Attendance struct {
	ID               int64      // attendances.id
	OccurrenceID     int64      // attendances.occurrence_id
	PersonAliasID    int64      // attendances.person_alias_id
	AttendanceCodeID *int64     // attendances.attendance_code_id (nullable)
	StartTime        time.Time  // attendances.start_time
	EndTime          *time.Time // attendances.end_time (nullable)
	IsFirstTime      bool       // attendances.is_first_time
	Note             *string    // attendances.note (nullable)
	CreatedAt        time.Time  // attendances.created_at
}

// IsOpen reports whether the attendance has not been checked out.
func (a Attendance) IsOpen() bool { return a.EndTime == nil }

// AttendanceView is the denormalized read shape used by roster, history and
// pickup queries.
type AttendanceView struct {
	AttendanceID   int64      `json:"attendance_id"`
	PersonID       int64      `json:"person_id"`
	PersonName     string     `json:"person_name"`
	LocationID     int64      `json:"location_id"`
	LocationName   string     `json:"location_name"`
	OccurrenceDate time.Time  `json:"occurrence_date"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	IsFirstTime    bool       `json:"is_first_time"`
	Code           *string    `json:"code,omitempty"`
	Note           *string    `json:"note,omitempty"`
}
