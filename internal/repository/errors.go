// Package repository defines the MySQL-backed stores used by the check-in
// core and the sentinel errors shared across them.  Higher layers use
// these sentinels to tell "the row is not there" apart from
// infrastructure faults, which are returned unwrapped from database/sql.
package repository

import "errors"

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot proceed because of
// conflicting state, such as a username that is already taken.
var ErrConflict = errors.New("conflict")
