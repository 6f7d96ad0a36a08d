// Package access answers "may this caller act on this person or
// location".  The caller is a Principal placed in the request context by
// the JWT middleware.
package access

import (
	"context"
	"errors"

	"github.com/iliyamo/checkin-core/internal/model"
)

// ErrUnauthorized is the single denial signal.  It deliberately carries no
// detail about whether the resource exists.
var ErrUnauthorized = errors.New("unauthorized")

// Principal is the authenticated staff user or kiosk.
type Principal struct {
	StaffID  int64
	Role     string
	CampusID *int64
}

// IsAdmin reports whether p is unrestricted.
func (p Principal) IsAdmin() bool { return p.Role == model.RoleAdmin }

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal in ctx.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
