package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CheckOutResult is the outcome of a check-out.
type CheckOutResult struct {
	Success      bool      `json:"success"`
	Reason       Reason    `json:"reason,omitempty"`
	Message      string    `json:"message,omitempty"`
	AttendanceID int64     `json:"attendance_id"`
	EndTime      time.Time `json:"end_time,omitempty"`
}

// CheckOut ends an open attendance.  The caller must be authorized for
// both the attendee and the attendance's location.  A missing attendance
// returns ErrNotFound; one that has already ended is a rejection.
func (s *Service) CheckOut(ctx context.Context, attendanceKey string) (CheckOutResult, error) {
	id, ok := s.d.IDs.Decode(attendanceKey)
	if !ok {
		return CheckOutResult{}, invalid("attendance_id", "malformed identifier")
	}
	ref, err := s.d.Attendance.GetAttendance(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return CheckOutResult{}, ErrNotFound
		}
		return CheckOutResult{}, fmt.Errorf("load attendance: %w", err)
	}
	if err := authorize(s.d.Auth.AuthorizePersonAccess(ctx, ref.PersonID)); err != nil {
		return CheckOutResult{}, err
	}
	if err := authorize(s.d.Auth.AuthorizeLocationAccess(ctx, ref.LocationID)); err != nil {
		return CheckOutResult{}, err
	}

	closed := CheckOutResult{
		AttendanceID: id,
		Reason:       ReasonAlreadyCheckedOut,
		Message:      ReasonAlreadyCheckedOut.Message(),
	}
	if !ref.Attendance.IsOpen() {
		return closed, nil
	}
	end := s.now().UTC()
	ended, err := s.d.Attendance.EndAttendance(ctx, id, end)
	if err != nil {
		return CheckOutResult{}, fmt.Errorf("end attendance: %w", err)
	}
	if !ended {
		// lost a race with another check-out
		return closed, nil
	}
	return CheckOutResult{Success: true, AttendanceID: id, EndTime: end}, nil
}
