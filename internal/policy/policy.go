// Package policy decides which role may perform which action. It holds no
// state and performs no I/O; callers pass the actor's role and whether the
// actor owns the target resource.
package policy

import (
	"errors"

	"github.com/Baaaki/car-rental/internal/models"
)

type Action string

const (
	ActionRentalCreate        Action = "rental.create"
	ActionRentalCancel        Action = "rental.cancel"
	ActionRentalStart         Action = "rental.start"
	ActionRentalRequestReturn Action = "rental.request_return"
	ActionRentalReview        Action = "rental.review"
	ActionRentalCheckIn       Action = "rental.check_in"
	ActionRentalComplete      Action = "rental.complete"
	ActionRentalUpdatePayment Action = "rental.update_payment"
	ActionRentalListAll       Action = "rental.list_all"
	ActionRentalDelete        Action = "rental.delete"
	ActionRentalHistory       Action = "rental.history"

	ActionCarCreate Action = "car.create"
	ActionCarUpdate Action = "car.update"
	ActionCarDelete Action = "car.delete"

	ActionUserManage  Action = "user.manage"
	ActionProfileView Action = "profile.view"
	ActionProfileEdit Action = "profile.edit"
)

var (
	ErrSelfDeletion     = errors.New("you cannot delete your own account")
	ErrProtectedAccount = errors.New("cannot delete the super admin account")
	ErrSelfRoleChange   = errors.New("you cannot change your own role")
)

type rule struct {
	minRole   models.Role
	ownerOnly bool
}

var rules = map[Action]rule{
	ActionRentalCreate:        {minRole: models.RoleCustomer},
	ActionRentalCancel:        {minRole: models.RoleCustomer, ownerOnly: true},
	ActionRentalStart:         {minRole: models.RoleCustomer, ownerOnly: true},
	ActionRentalRequestReturn: {minRole: models.RoleCustomer, ownerOnly: true},
	ActionRentalReview:        {minRole: models.RoleStaff},
	ActionRentalCheckIn:       {minRole: models.RoleStaff},
	ActionRentalComplete:      {minRole: models.RoleStaff},
	ActionRentalUpdatePayment: {minRole: models.RoleStaff},
	ActionRentalListAll:       {minRole: models.RoleStaff},
	ActionRentalDelete:        {minRole: models.RoleAdmin},
	ActionRentalHistory:       {minRole: models.RoleAdmin},

	ActionCarCreate: {minRole: models.RoleStaff},
	ActionCarUpdate: {minRole: models.RoleStaff},
	ActionCarDelete: {minRole: models.RoleStaff},

	ActionUserManage:  {minRole: models.RoleAdmin},
	ActionProfileView: {minRole: models.RoleCustomer},
	ActionProfileEdit: {minRole: models.RoleCustomer, ownerOnly: true},
}

func rank(r models.Role) int {
	switch r {
	case models.RoleCustomer:
		return 1
	case models.RoleStaff:
		return 2
	case models.RoleAdmin:
		return 3
	}
	return 0
}

// AtLeast reports whether role grants at least the privileges of min.
// Admin implies staff everywhere staff is required.
func AtLeast(role, min models.Role) bool {
	r := rank(role)
	return r > 0 && r >= rank(min)
}

// Allowed reports whether an actor with role may perform action. Unknown
// actions and unknown roles are denied.
func Allowed(role models.Role, action Action, isOwner bool) bool {
	ru, ok := rules[action]
	if !ok {
		return false
	}
	if ru.ownerOnly && !isOwner {
		return false
	}
	return AtLeast(role, ru.minRole)
}

// CheckUserDeletion returns every invariant the deletion would break, joined.
func CheckUserDeletion(actorID, targetID, superAdminID uint) error {
	var errs []error
	if actorID == targetID {
		errs = append(errs, ErrSelfDeletion)
	}
	if superAdminID != 0 && targetID == superAdminID {
		errs = append(errs, ErrProtectedAccount)
	}
	return errors.Join(errs...)
}

// CheckRoleChange rejects an actor changing the role of their own account.
func CheckRoleChange(actorID, targetID uint, current, requested models.Role) error {
	if actorID == targetID && requested != "" && requested != current {
		return ErrSelfRoleChange
	}
	return nil
}
