package model

// Location is a capacity-bearing grouping people are checked into (a
// classroom, a nursery, a serving team).  Capacity, schedule and the
// eligibility bounds are all optional.
//
// Fields:
//  ID           – primary key identifier.
//  CampusID     – campus the location belongs to, used for staff scoping.
//  Name         – display name.
//  IsActive     – inactive locations reject check-ins.
//  IsArchived   – archived locations reject check-ins.
//  Capacity     – maximum simultaneous open attendances, nil for unlimited.
//  ScheduleID   – weekly schedule controlling the admission window.
//  Schedule     – the loaded schedule row when ScheduleID is set.
//  MinAgeMonths / MaxAgeMonths – optional age bounds in months.
//  MinGrade / MaxGrade         – optional grade bounds (0 = K, 12 = 12th).
type Location struct {
	ID           int64
	CampusID     *int64
	Name         string
	IsActive     bool
	IsArchived   bool
	Capacity     *int
	ScheduleID   *int64
	Schedule     *Schedule
	MinAgeMonths *int
	MaxAgeMonths *int
	MinGrade     *int
	MaxGrade     *int
}
