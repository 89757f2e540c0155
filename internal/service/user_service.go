package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Baaaki/car-rental/internal/cache"
	"github.com/Baaaki/car-rental/internal/journal"
	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/policy"
	"github.com/Baaaki/car-rental/internal/repository"
	"github.com/Baaaki/car-rental/internal/utils"
	"github.com/Baaaki/car-rental/pkg/logger"
	"go.uber.org/zap"
)

// UserInput is used by admin create/update and by profile edits. Nil fields
// are left untouched; Role and IsVerified are ignored for profile edits.
type UserInput struct {
	Username    *string
	FullName    *string
	Email       *string
	Password    *string
	Role        *string
	IsVerified  *bool
	PhoneNumber *string
	Address     *string
}

type UserService struct {
	store        *repository.Store
	creds        utils.Credentials
	journal      journal.Recorder
	popular      cache.PopularCache
	superAdminID uint
}

func NewUserService(store *repository.Store, creds utils.Credentials, rec journal.Recorder, popular cache.PopularCache, superAdminID uint) *UserService {
	return &UserService{
		store:        store,
		creds:        creds,
		journal:      rec,
		popular:      popular,
		superAdminID: superAdminID,
	}
}

func (s *UserService) List(ctx context.Context, actor Actor, f repository.UserFilter) ([]models.User, error) {
	if err := actor.require(policy.ActionUserManage, false); err != nil {
		return nil, err
	}
	users, err := s.store.Users.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, actor Actor, id uint) (*models.User, error) {
	if err := actor.require(policy.ActionUserManage, false); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Create adds an account on behalf of an admin. Such accounts skip email
// activation unless IsVerified is explicitly false.
func (s *UserService) Create(ctx context.Context, actor Actor, in UserInput) (*models.User, error) {
	if err := actor.require(policy.ActionUserManage, false); err != nil {
		return nil, err
	}

	fields, err := s.validate(in, true, true)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     fields["username"].(string),
		Email:        fields["email"].(string),
		FullName:     fields["full_name"].(string),
		PasswordHash: fields["password_hash"].(string),
		Role:         models.RoleCustomer,
		IsVerified:   true,
		PhoneNumber:  in.PhoneNumber,
		Address:      in.Address,
	}
	if r, ok := fields["role"]; ok {
		user.Role = r.(models.Role)
	}
	if in.IsVerified != nil {
		user.IsVerified = *in.IsVerified
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := ensureUnique(ctx, tx, 0, user.Username, user.Email); err != nil {
			return err
		}
		return conflictOnDuplicate(tx.Users.Create(ctx, user), takenUser)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("User created by admin",
		zap.Uint("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.Uint("actor_id", actor.ID),
	)
	return user, nil
}

func (s *UserService) Update(ctx context.Context, actor Actor, id uint, in UserInput) (*models.User, error) {
	if err := actor.require(policy.ActionUserManage, false); err != nil {
		return nil, err
	}

	fields, err := s.validate(in, false, true)
	if err != nil {
		return nil, err
	}

	var user *models.User
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		user, err = tx.Users.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("user %w", ErrNotFound)
		}

		if role, ok := fields["role"].(models.Role); ok {
			if err := policy.CheckRoleChange(actor.ID, user.ID, user.Role, role); err != nil {
				return fmt.Errorf("%w: %w", ErrForbidden, err)
			}
		}
		username, _ := fields["username"].(string)
		email, _ := fields["email"].(string)
		if err := ensureUnique(ctx, tx, user.ID, username, email); err != nil {
			return err
		}
		return conflictOnDuplicate(tx.Users.Update(ctx, user, fields), takenUser)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("User updated by admin",
		zap.Uint("user_id", user.ID),
		zap.Int("fields", len(fields)),
		zap.Uint("actor_id", actor.ID),
	)
	return user, nil
}

// Delete removes an account with its tokens, codes and rentals. Cars held by
// the removed rentals are released.
func (s *UserService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := actor.require(policy.ActionUserManage, false); err != nil {
		return err
	}
	if err := policy.CheckUserDeletion(actor.ID, id, s.superAdminID); err != nil {
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	}

	var rentalIDs []uint
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		user, err := tx.Users.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("user %w", ErrNotFound)
		}

		rentals, err := tx.Rentals.List(ctx, repository.RentalFilter{UserID: id})
		if err != nil {
			return fmt.Errorf("load rentals: %w", err)
		}
		held := map[uint]bool{}
		for _, r := range rentals {
			rentalIDs = append(rentalIDs, r.ID)
			if isHolding(r.RentalStatus) {
				held[r.CarID] = true
			}
		}

		if err := tx.Rentals.ClearProcessor(ctx, id); err != nil {
			return fmt.Errorf("clear processed_by: %w", err)
		}
		if _, err := tx.Tokens.DeleteByUser(ctx, id); err != nil {
			return fmt.Errorf("delete tokens: %w", err)
		}
		if err := tx.Otps.DeleteByUser(ctx, id); err != nil {
			return fmt.Errorf("delete otps: %w", err)
		}
		if err := tx.Rentals.DeleteByUser(ctx, id); err != nil {
			return fmt.Errorf("delete rentals: %w", err)
		}
		for carID := range held {
			if err := releaseCar(ctx, tx, carID, 0); err != nil {
				return fmt.Errorf("release car %d: %w", carID, err)
			}
		}
		return tx.Users.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	if len(rentalIDs) > 0 {
		if err := s.journal.Prune(rentalIDs); err != nil {
			logger.Log.Warn("Failed to prune rental journal", zap.Uint("user_id", id), zap.Error(err))
		}
		if err := s.popular.Invalidate(ctx); err != nil {
			logger.Log.Warn("Failed to invalidate popular cars cache", zap.Error(err))
		}
	}

	logger.Log.Info("User deleted",
		zap.Uint("user_id", id),
		zap.Int("rentals_removed", len(rentalIDs)),
		zap.Uint("actor_id", actor.ID),
	)
	return nil
}

// Me returns the caller's own account.
func (s *UserService) Me(ctx context.Context, actor Actor) (*models.User, error) {
	if err := actor.require(policy.ActionProfileView, true); err != nil {
		return nil, err
	}
	return s.load(ctx, actor.ID)
}

// UpdateProfile applies a partial edit of the caller's own account.
func (s *UserService) UpdateProfile(ctx context.Context, actor Actor, in UserInput) (*models.User, error) {
	if err := actor.require(policy.ActionProfileEdit, true); err != nil {
		return nil, err
	}

	in.Role, in.IsVerified = nil, nil
	fields, err := s.validate(in, false, false)
	if err != nil {
		return nil, err
	}

	var user *models.User
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		user, err = tx.Users.GetByID(ctx, actor.ID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("user %w", ErrNotFound)
		}
		username, _ := fields["username"].(string)
		email, _ := fields["email"].(string)
		if err := ensureUnique(ctx, tx, user.ID, username, email); err != nil {
			return err
		}
		return conflictOnDuplicate(tx.Users.Update(ctx, user, fields), takenUser)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Profile updated", zap.Uint("user_id", user.ID), zap.Int("fields", len(fields)))
	return user, nil
}

func (s *UserService) load(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.Users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %w", ErrNotFound)
	}
	return user, nil
}

// validate turns the present fields into column updates, hashing a new
// password. With create set, username, full_name, email and password are required.
func (s *UserService) validate(in UserInput, create, admin bool) (map[string]interface{}, error) {
	v := &ValidationError{}
	fields := map[string]interface{}{}

	if in.Username != nil || create {
		u := ""
		if in.Username != nil {
			u = strings.TrimSpace(*in.Username)
		}
		switch {
		case len(u) < 3:
			v.Add("username", "The username must be at least 3 characters.")
		case len(u) > 50:
			v.Add("username", "The username may not be greater than 50 characters.")
		default:
			fields["username"] = u
		}
	}

	if in.FullName != nil || create {
		n := ""
		if in.FullName != nil {
			n = strings.TrimSpace(*in.FullName)
		}
		switch {
		case n == "":
			v.Add("full_name", "The full name field is required.")
		case len(n) > 100:
			v.Add("full_name", "The full name may not be greater than 100 characters.")
		default:
			fields["full_name"] = n
		}
	}

	if in.Email != nil || create {
		e := ""
		if in.Email != nil {
			e = strings.TrimSpace(*in.Email)
		}
		if !validEmail(e) {
			v.Add("email", "The email must be a valid email address.")
		} else {
			fields["email"] = e
		}
	}

	if in.Password != nil || create {
		if in.Password == nil || len(*in.Password) < minPasswordLength {
			v.Add("password", fmt.Sprintf("The password must be at least %d characters.", minPasswordLength))
		}
	}

	if admin && in.Role != nil {
		role, ok := models.ParseRole(strings.ToLower(strings.TrimSpace(*in.Role)))
		if !ok {
			v.Add("role", "The selected role is invalid.")
		} else {
			fields["role"] = role
		}
	}
	if admin && in.IsVerified != nil {
		fields["is_verified"] = *in.IsVerified
	}

	if in.PhoneNumber != nil {
		if len(*in.PhoneNumber) > 20 {
			v.Add("phone_number", "The phone number may not be greater than 20 characters.")
		} else {
			fields["phone_number"] = *in.PhoneNumber
		}
	}
	if in.Address != nil {
		fields["address"] = *in.Address
	}

	if err := v.Err(); err != nil {
		return nil, err
	}

	if in.Password != nil {
		hash, err := s.creds.Hash(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		fields["password_hash"] = hash
	}
	return fields, nil
}

func isHolding(st models.RentalStatus) bool {
	for _, h := range models.HoldingStatuses {
		if h == st {
			return true
		}
	}
	return false
}
