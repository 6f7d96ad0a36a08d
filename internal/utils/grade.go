package utils

import "time"

// AgeInMonths returns the whole months elapsed between birth and now.
func AgeInMonths(birth, now time.Time) int {
	months := (now.Year()-birth.Year())*12 + int(now.Month()) - int(birth.Month())
	if now.Day() < birth.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// CurrentGrade derives the school grade from a graduation year, where 0 is
// kindergarten and 12 is the senior year.  The school year rolls over on
// September 1st.  Values outside 0..12 are returned as-is (pre-K is
// negative, graduates exceed 12).
func CurrentGrade(graduationYear int, now time.Time) int {
	seniorsGraduate := now.Year()
	if !now.Before(time.Date(now.Year(), time.September, 1, 0, 0, 0, 0, now.Location())) {
		seniorsGraduate++
	}
	return 12 - (graduationYear - seniorsGraduate)
}
