package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Baaaki/car-rental/internal/metrics"
	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/repository"
	"github.com/Baaaki/car-rental/internal/utils"
	"github.com/Baaaki/car-rental/pkg/logger"
	"go.uber.org/zap"
)

const minPasswordLength = 6

type RegisterInput struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Password  string
}

type AuthService struct {
	store  *repository.Store
	tokens *TokenService
	otps   *OtpService
	creds  utils.Credentials
}

func NewAuthService(store *repository.Store, tokens *TokenService, otps *OtpService, creds utils.Credentials) *AuthService {
	return &AuthService{
		store:  store,
		tokens: tokens,
		otps:   otps,
		creds:  creds,
	}
}

// Register creates an unverified customer and emails an activation code.
// The user row, the code and the delivery succeed or fail together.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	start := time.Now()

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateRegisterInput(in); err != nil {
		metrics.AuthRegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	hashStart := time.Now()
	hash, err := s.creds.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	hashDuration := time.Since(hashStart)

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     strings.TrimSpace(in.FirstName + " " + in.LastName),
		PasswordHash: hash,
		Role:         models.RoleCustomer,
		IsVerified:   false,
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := ensureUnique(ctx, tx, 0, user.Username, user.Email); err != nil {
			return err
		}
		if err := tx.Users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return conflictOnDuplicate(err, takenUser)
			}
			return fmt.Errorf("create user: %w", err)
		}
		return s.otps.IssueTx(ctx, tx, user, models.OtpActivation)
	})
	if err != nil {
		metrics.AuthRegistrationsTotal.WithLabelValues("failed").Inc()
		logger.Log.Warn("Registration failed",
			zap.String("username", in.Username),
			zap.String("email", in.Email),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.AuthRegistrationsTotal.WithLabelValues("success").Inc()
	logger.Log.Info("User registered successfully",
		zap.Uint("user_id", user.ID),
		zap.String("username", user.Username),
		zap.Duration("hash_duration", hashDuration),
		zap.Duration("total_duration", time.Since(start)),
	)
	return user, nil
}

// Login checks the credentials of a verified account and issues a token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	user, err := s.store.Users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		metrics.AuthLoginsTotal.WithLabelValues("invalid_credentials").Inc()
		logger.Log.Warn("Login failed: user not found", zap.String("username", username))
		return nil, "", ErrInvalidCredentials
	}

	ok, err := s.creds.Compare(password, user.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		metrics.AuthLoginsTotal.WithLabelValues("invalid_credentials").Inc()
		logger.Log.Warn("Login failed: invalid password", zap.Uint("user_id", user.ID))
		return nil, "", ErrInvalidCredentials
	}

	if !user.IsVerified {
		metrics.AuthLoginsTotal.WithLabelValues("unverified").Inc()
		return nil, "", fmt.Errorf("%w: account not verified, please verify your email", ErrForbidden)
	}

	token, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return nil, "", err
	}

	metrics.AuthLoginsTotal.WithLabelValues("success").Inc()
	logger.Log.Info("User logged in successfully",
		zap.Uint("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)
	return user, token, nil
}

func (s *AuthService) Logout(ctx context.Context, presented string) error {
	return s.tokens.Revoke(ctx, presented)
}

// VerifyActivation consumes an activation code. An account that is already
// verified is returned unchanged with alreadyVerified set.
func (s *AuthService) VerifyActivation(ctx context.Context, username, code string) (user *models.User, alreadyVerified bool, err error) {
	user, err = s.userByUsername(ctx, username)
	if err != nil {
		return nil, false, err
	}
	if user.IsVerified {
		return user, true, nil
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := s.otps.VerifyTx(ctx, tx, user.ID, code, models.OtpActivation); err != nil {
			return err
		}
		_, err := tx.Users.MarkVerified(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	user.IsVerified = true
	logger.Log.Info("Account verified", zap.Uint("user_id", user.ID))
	return user, false, nil
}

// ResendActivation issues a fresh activation code, invalidating older ones.
func (s *AuthService) ResendActivation(ctx context.Context, username string) (alreadyVerified bool, err error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if user.IsVerified {
		return true, nil
	}
	return false, s.otps.Issue(ctx, user, models.OtpActivation)
}

// ForgotPassword emails a reset code. Unknown addresses succeed silently.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.store.Users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		logger.Log.Info("Password reset requested for unknown email")
		return nil
	}
	return s.otps.Issue(ctx, user, models.OtpReset)
}

// VerifyResetOTP checks a reset code without consuming it.
func (s *AuthService) VerifyResetOTP(ctx context.Context, email, code string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.otps.Check(ctx, user.ID, code, models.OtpReset)
}

// ResetPassword consumes a reset code, stores the new password and signs the
// user out of every device.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return NewValidationError("new_password", fmt.Sprintf("The new password must be at least %d characters.", minPasswordLength))
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := s.creds.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := s.otps.VerifyTx(ctx, tx, user.ID, code, models.OtpReset); err != nil {
			return err
		}
		if err := tx.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
			return err
		}
		_, err := tx.Tokens.DeleteByUser(ctx, user.ID)
		return err
	})
	if err != nil {
		return err
	}

	logger.Log.Info("Password reset", zap.Uint("user_id", user.ID))
	return nil
}

func (s *AuthService) userByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.store.Users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %w", ErrNotFound)
	}
	return user, nil
}

func (s *AuthService) userByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.store.Users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %w", ErrNotFound)
	}
	return user, nil
}

func validateRegisterInput(in RegisterInput) error {
	v := &ValidationError{}

	switch {
	case len(in.Username) < 3:
		v.Add("username", "The username must be at least 3 characters.")
	case len(in.Username) > 50:
		v.Add("username", "The username may not be greater than 50 characters.")
	}
	if strings.TrimSpace(in.FirstName) == "" {
		v.Add("first_name", "The first name field is required.")
	}
	if strings.TrimSpace(in.LastName) == "" {
		v.Add("last_name", "The last name field is required.")
	}
	if !validEmail(in.Email) {
		v.Add("email", "The email must be a valid email address.")
	}
	if len(in.Password) < minPasswordLength {
		v.Add("password", fmt.Sprintf("The password must be at least %d characters.", minPasswordLength))
	}

	return v.Err()
}

// takenUser is reported when the unique index, rather than the lookup below,
// catches a duplicate account.
const takenUser = "username or email has already been taken"

// ensureUnique rejects a username or email held by a user other than selfID.
func ensureUnique(ctx context.Context, st *repository.Store, selfID uint, username, email string) error {
	if username != "" {
		other, err := st.Users.GetByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("lookup username: %w", err)
		}
		if other != nil && other.ID != selfID {
			return fmt.Errorf("%w: username has already been taken", ErrConflict)
		}
	}
	if email != "" {
		other, err := st.Users.GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("lookup email: %w", err)
		}
		if other != nil && other.ID != selfID {
			return fmt.Errorf("%w: email has already been taken", ErrConflict)
		}
	}
	return nil
}
