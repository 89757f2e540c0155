package service

import (
	"fmt"

	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/policy"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uint
	Role models.Role
}

func ActorOf(u *models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

// IsStaff reports whether the actor has at least staff privileges.
func (a Actor) IsStaff() bool {
	return policy.AtLeast(a.Role, models.RoleStaff)
}

// processor returns the id stamped into processed_by, or nil for customers.
func (a Actor) processor() *uint {
	if !a.IsStaff() {
		return nil
	}
	id := a.ID
	return &id
}

func (a Actor) require(action policy.Action, isOwner bool) error {
	if !policy.Allowed(a.Role, action, isOwner) {
		return fmt.Errorf("%w: %s not allowed for role %s", ErrForbidden, action, a.Role)
	}
	return nil
}
