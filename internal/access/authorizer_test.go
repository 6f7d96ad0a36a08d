package access

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/checkin-core/internal/model"
	"github.com/iliyamo/checkin-core/internal/repository"
)

type locations map[int64]*model.Location

func (l locations) GetLocation(_ context.Context, id int64) (*model.Location, error) {
	if loc, ok := l[id]; ok {
		return loc, nil
	}
	return nil, repository.ErrNotFound
}

func id(n int64) *int64 { return &n }

func TestAuthorizeLocationAccess(t *testing.T) {
	t.Parallel()
	a := NewAuthorizer(locations{
		10: {ID: 10, CampusID: id(1)},
		11: {ID: 11, CampusID: id(2)},
		12: {ID: 12},
	})
	admin := Principal{StaffID: 1, Role: model.RoleAdmin}
	staff := Principal{StaffID: 2, Role: model.RoleStaff, CampusID: id(1)}
	kiosk := Principal{StaffID: 3, Role: model.RoleKiosk, CampusID: id(2)}
	floating := Principal{StaffID: 4, Role: model.RoleStaff}
	stranger := Principal{StaffID: 5, Role: "CUSTOMER", CampusID: id(1)}

	cases := []struct {
		who      Principal
		location int64
		allowed  bool
	}{
		{admin, 10, true},
		{admin, 11, true},
		{admin, 99, true},
		{staff, 10, true},
		{staff, 11, false},
		{staff, 12, true},
		{staff, 99, false},
		{kiosk, 11, true},
		{kiosk, 10, false},
		{floating, 10, false},
		{floating, 12, true},
		{stranger, 10, false},
	}
	for _, tc := range cases {
		err := a.AuthorizeLocationAccess(WithPrincipal(context.Background(), tc.who), tc.location)
		if (err == nil) != tc.allowed {
			t.Errorf("%s/%d on location %d: err = %v, want allowed=%v", tc.who.Role, tc.who.StaffID, tc.location, err, tc.allowed)
		}
		if err != nil && !errors.Is(err, ErrUnauthorized) {
			t.Errorf("denial is not ErrUnauthorized: %v", err)
		}
	}
}

func TestAuthorizeRequiresPrincipal(t *testing.T) {
	t.Parallel()
	a := NewAuthorizer(locations{10: {ID: 10}})
	ctx := context.Background()
	if err := a.AuthorizePersonAccess(ctx, 1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("person: %v", err)
	}
	if err := a.AuthorizeCheckinOperation(ctx, 1, 10); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("check-in: %v", err)
	}
	staff := WithPrincipal(ctx, Principal{StaffID: 2, Role: model.RoleStaff})
	if err := a.AuthorizePersonAccess(staff, 0); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("invalid person id: %v", err)
	}
	if err := a.AuthorizeCheckinOperation(staff, 1, 10); err != nil {
		t.Fatalf("unscoped location: %v", err)
	}
}

type brokenLocations struct{}

var errDown = errors.New("db down")

func (brokenLocations) GetLocation(context.Context, int64) (*model.Location, error) {
	return nil, errDown
}

func TestAuthorizeSurfacesStoreFaults(t *testing.T) {
	t.Parallel()
	ctx := WithPrincipal(context.Background(), Principal{StaffID: 2, Role: model.RoleStaff, CampusID: id(1)})
	err := NewAuthorizer(brokenLocations{}).AuthorizeLocationAccess(ctx, 10)
	if !errors.Is(err, errDown) || errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want the store fault", err)
	}
}
