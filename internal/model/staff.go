package model

import "time"

// Staff roles carried in the access token's "role" claim.
const (
	RoleAdmin = "ADMIN" // every campus, every location
	RoleStaff = "STAFF" // campus-scoped volunteer or employee
	RoleKiosk = "KIOSK" // campus-scoped unattended device
)

// Staff mirrors the staff_users table.  Kiosk devices and volunteers sign
// in as staff users.
type Staff struct {
	ID           int64     // staff_users.id
	Username     string    // staff_users.username
	PasswordHash string    // staff_users.password_hash (bcrypt)
	Role         string    // staff_users.role
	CampusID     *int64    // staff_users.campus_id (nil for ADMIN)
	IsActive     bool      // staff_users.is_active
	CreatedAt    time.Time // staff_users.created_at
	UpdatedAt    time.Time // staff_users.updated_at
}
