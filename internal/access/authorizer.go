package access

import (
	"context"
	"errors"

	"github.com/iliyamo/checkin-core/internal/model"
	"github.com/iliyamo/checkin-core/internal/repository"
)

// LocationReader is the slice of the location store the authorizer needs.
type LocationReader interface {
	GetLocation(ctx context.Context, id int64) (*model.Location, error)
}

// Authorizer scopes staff by campus.  Admins may act anywhere.  Staff and
// kiosks may act on any person but only on locations of their own campus
// (or locations that belong to no campus).  A missing principal is denied.
type Authorizer struct {
	Locations LocationReader
}

// NewAuthorizer returns an Authorizer reading locations from l.
func NewAuthorizer(l LocationReader) *Authorizer { return &Authorizer{Locations: l} }

func principal(ctx context.Context) (Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return Principal{}, ErrUnauthorized
	}
	switch p.Role {
	case model.RoleAdmin, model.RoleStaff, model.RoleKiosk:
		return p, nil
	}
	return Principal{}, ErrUnauthorized
}

// AuthorizePersonAccess allows any recognized principal.
func (a *Authorizer) AuthorizePersonAccess(ctx context.Context, personID int64) error {
	if personID <= 0 {
		return ErrUnauthorized
	}
	_, err := principal(ctx)
	return err
}

// AuthorizeLocationAccess allows admins, and campus staff on locations of
// their campus.  An unknown location is denied for non-admins so the
// answer does not reveal existence.
func (a *Authorizer) AuthorizeLocationAccess(ctx context.Context, locationID int64) error {
	p, err := principal(ctx)
	if err != nil {
		return err
	}
	if p.IsAdmin() {
		return nil
	}
	loc, err := a.Locations.GetLocation(ctx, locationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	if loc.CampusID == nil {
		return nil
	}
	if p.CampusID == nil || *p.CampusID != *loc.CampusID {
		return ErrUnauthorized
	}
	return nil
}

// AuthorizeCheckinOperation requires both person and location access.
func (a *Authorizer) AuthorizeCheckinOperation(ctx context.Context, personID, locationID int64) error {
	if err := a.AuthorizePersonAccess(ctx, personID); err != nil {
		return err
	}
	return a.AuthorizeLocationAccess(ctx, locationID)
}
