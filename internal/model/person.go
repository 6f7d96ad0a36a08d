package model

import "time"

// Person is the canonical identity a check-in is performed for.  Attendance
// rows never reference a person directly; they reference one of the
// person's aliases (person_aliases rows) so that merged records keep
// their history.  The check-in core only ever reads people.
type Person struct {
	ID             int64      // people.id
	PrimaryAliasID int64      // alias used when writing new attendance rows
	FirstName      string     // people.first_name
	LastName       string     // people.last_name
	BirthDate      *time.Time // people.birth_date (nullable)
	GraduationYear *int       // people.graduation_year (nullable)
	IsDeceased     bool       // people.is_deceased
}

// FullName joins first and last name.
func (p Person) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
