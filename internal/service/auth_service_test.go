package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/service"
	"github.com/Baaaki/car-rental/internal/testutil"
	"github.com/Baaaki/car-rental/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type AuthServiceTestSuite struct {
	suite.Suite
	h   *harness
	ctx context.Context
}

func (s *AuthServiceTestSuite) SetupSuite() {
	logger.Init(false)
}

func (s *AuthServiceTestSuite) SetupTest() {
	s.h = newHarness(s.T())
	s.ctx = context.Background()
}

func (s *AuthServiceTestSuite) register(username string) *models.User {
	u, err := s.h.auth.Register(s.ctx, service.RegisterInput{
		Username:  username,
		FirstName: "John",
		LastName:  "Doe",
		Email:     username + "@example.com",
		Password:  "secret123",
	})
	s.Require().NoError(err)
	return u
}

func (s *AuthServiceTestSuite) countOTPs(userID uint) int64 {
	var n int64
	s.h.db.DB.Model(&models.OtpCode{}).Where("user_id = ?", userID).Count(&n)
	return n
}

func (s *AuthServiceTestSuite) TestRegister_CreatesUnverifiedCustomerWithOneCode() {
	u := s.register("johndoe")

	assert.False(s.T(), u.IsVerified)
	assert.Equal(s.T(), models.RoleCustomer, u.Role)
	assert.Equal(s.T(), "John Doe", u.FullName)
	assert.NotEqual(s.T(), "secret123", u.PasswordHash)
	assert.Equal(s.T(), int64(1), s.countOTPs(u.ID))

	otp := testutil.LatestOTP(s.T(), s.h.db.DB, u.ID, models.OtpActivation)
	assert.Len(s.T(), otp.Code, 6)
	assert.True(s.T(), epoch.Add(10*time.Minute).Equal(otp.ExpiresAt))

	require.Equal(s.T(), 1, s.h.sender.Count())
	assert.Equal(s.T(), "johndoe@example.com", s.h.sender.Messages[0].To)
	assert.Contains(s.T(), s.h.sender.Messages[0].Text, otp.Code)
}

func (s *AuthServiceTestSuite) TestRegister_DuplicatesConflict() {
	s.register("johndoe")

	_, err := s.h.auth.Register(s.ctx, service.RegisterInput{
		Username: "johndoe", FirstName: "J", LastName: "D", Email: "other@example.com", Password: "secret123",
	})
	assert.ErrorIs(s.T(), err, service.ErrConflict)

	_, err = s.h.auth.Register(s.ctx, service.RegisterInput{
		Username: "another", FirstName: "J", LastName: "D", Email: "johndoe@example.com", Password: "secret123",
	})
	assert.ErrorIs(s.T(), err, service.ErrConflict)
}

func (s *AuthServiceTestSuite) TestRegister_ValidationErrors() {
	_, err := s.h.auth.Register(s.ctx, service.RegisterInput{Username: "ab", Email: "nope", Password: "123"})

	var ve *service.ValidationError
	require.ErrorAs(s.T(), err, &ve)
	for _, field := range []string{"username", "first_name", "last_name", "email", "password"} {
		assert.Contains(s.T(), ve.Fields, field)
	}
}

func (s *AuthServiceTestSuite) TestRegister_EmailSyntax() {
	tests := []struct {
		email string
		valid bool
	}{
		{"john.doe+cars@example.co.uk", true},
		{"plainaddress", false},
		{"@example.com", false},
		{"john@", false},
		{"john doe@example.com", false},
		{strings.Repeat("a", 90) + "@example.com", false},
	}

	for i, tt := range tests {
		_, err := s.h.auth.Register(s.ctx, service.RegisterInput{
			Username: fmt.Sprintf("user%d", i), FirstName: "J", LastName: "D", Email: tt.email, Password: "secret123",
		})

		var ve *service.ValidationError
		if tt.valid {
			assert.NoError(s.T(), err, tt.email)
			continue
		}
		if assert.ErrorAs(s.T(), err, &ve, tt.email) {
			assert.Contains(s.T(), ve.Fields, "email")
		}
	}
}

func (s *AuthServiceTestSuite) TestRegister_MailFailureRollsBack() {
	s.h.sender.Err = errors.New("smtp down")

	_, err := s.h.auth.Register(s.ctx, service.RegisterInput{
		Username: "johndoe", FirstName: "John", LastName: "Doe", Email: "johndoe@example.com", Password: "secret123",
	})
	assert.ErrorIs(s.T(), err, service.ErrDependencyFailure)

	var n int64
	s.h.db.DB.Model(&models.User{}).Count(&n)
	assert.Zero(s.T(), n)
}

func (s *AuthServiceTestSuite) TestVerifyActivation_ConsumesCodeOnce() {
	u := s.register("johndoe")
	code := testutil.LatestOTP(s.T(), s.h.db.DB, u.ID, models.OtpActivation).Code

	_, _, err := s.h.auth.VerifyActivation(s.ctx, "johndoe", "000000x")
	assert.ErrorIs(s.T(), err, service.ErrInvalidOTP)

	verified, already, err := s.h.auth.VerifyActivation(s.ctx, "johndoe", code)
	require.NoError(s.T(), err)
	assert.False(s.T(), already)
	assert.True(s.T(), verified.IsVerified)

	// Replaying the code on a verified account is a no-op success
	_, already, err = s.h.auth.VerifyActivation(s.ctx, "johndoe", code)
	require.NoError(s.T(), err)
	assert.True(s.T(), already)

	// The code itself is spent
	assert.ErrorIs(s.T(), s.h.otps.Verify(s.ctx, u.ID, code, models.OtpActivation), service.ErrInvalidOTP)
}

func (s *AuthServiceTestSuite) TestResend_InvalidatesPreviousCode() {
	u := s.register("johndoe")
	first := testutil.LatestOTP(s.T(), s.h.db.DB, u.ID, models.OtpActivation).Code

	already, err := s.h.auth.ResendActivation(s.ctx, "johndoe")
	require.NoError(s.T(), err)
	assert.False(s.T(), already)
	second := testutil.LatestOTP(s.T(), s.h.db.DB, u.ID, models.OtpActivation)

	if first != second.Code {
		_, _, err = s.h.auth.VerifyActivation(s.ctx, "johndoe", first)
		assert.ErrorIs(s.T(), err, service.ErrInvalidOTP)
	}
	_, _, err = s.h.auth.VerifyActivation(s.ctx, "johndoe", second.Code)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 2, s.h.sender.Count())
}

func (s *AuthServiceTestSuite) TestVerifyActivation_ExpiredCodeRejected() {
	u := s.register("johndoe")
	code := testutil.LatestOTP(s.T(), s.h.db.DB, u.ID, models.OtpActivation).Code

	s.h.clock.Advance(10 * time.Minute)
	_, _, err := s.h.auth.VerifyActivation(s.ctx, "johndoe", code)
	assert.ErrorIs(s.T(), err, service.ErrInvalidOTP)
}

func (s *AuthServiceTestSuite) TestLogin() {
	u := s.register("johndoe")

	_, _, err := s.h.auth.Login(s.ctx, "johndoe", "secret123")
	assert.ErrorIs(s.T(), err, service.ErrForbidden, "unverified accounts cannot log in")

	code := testutil.LatestOTP(s.T(), s.h.db.DB, u.ID, models.OtpActivation).Code
	_, _, err = s.h.auth.VerifyActivation(s.ctx, "johndoe", code)
	require.NoError(s.T(), err)

	_, _, err = s.h.auth.Login(s.ctx, "johndoe", "wrong-password")
	assert.ErrorIs(s.T(), err, service.ErrInvalidCredentials)
	_, _, err = s.h.auth.Login(s.ctx, "nobody", "secret123")
	assert.ErrorIs(s.T(), err, service.ErrInvalidCredentials)

	user, token, err := s.h.auth.Login(s.ctx, "johndoe", "secret123")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), u.ID, user.ID)
	assert.Len(s.T(), token, 64)

	authed, err := s.h.tokens.Authenticate(s.ctx, "Bearer "+token)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), u.ID, authed.ID)

	require.NoError(s.T(), s.h.auth.Logout(s.ctx, token))
	_, err = s.h.tokens.Authenticate(s.ctx, token)
	assert.ErrorIs(s.T(), err, service.ErrUnauthenticated)

	// Logging out twice is harmless
	assert.NoError(s.T(), s.h.auth.Logout(s.ctx, token))
}

func (s *AuthServiceTestSuite) TestTokens_ExpireAfterTTL() {
	u := testutil.CreateTestUser(s.T(), s.h.db.DB, "jane", "secret123", models.RoleCustomer)
	token, err := s.h.tokens.Issue(s.ctx, u)
	require.NoError(s.T(), err)

	var stored models.Token
	require.NoError(s.T(), s.h.db.DB.First(&stored).Error)
	assert.NotEqual(s.T(), token, stored.TokenHash)
	assert.Len(s.T(), stored.TokenHash, 64)

	s.h.clock.Advance(7*24*time.Hour - time.Second)
	_, err = s.h.tokens.Authenticate(s.ctx, token)
	assert.NoError(s.T(), err)

	s.h.clock.Advance(time.Second)
	_, err = s.h.tokens.Authenticate(s.ctx, token)
	assert.ErrorIs(s.T(), err, service.ErrUnauthenticated)

	for _, bad := range []string{"", "Bearer ", "garbage"} {
		_, err = s.h.tokens.Authenticate(s.ctx, bad)
		assert.ErrorIs(s.T(), err, service.ErrUnauthenticated)
	}
}

func (s *AuthServiceTestSuite) TestPasswordReset() {
	u := testutil.CreateTestUser(s.T(), s.h.db.DB, "jane", "secret123", models.RoleCustomer)
	token, err := s.h.tokens.Issue(s.ctx, u)
	require.NoError(s.T(), err)

	// Unknown addresses succeed without sending anything
	require.NoError(s.T(), s.h.auth.ForgotPassword(s.ctx, "ghost@example.com"))
	assert.Zero(s.T(), s.h.sender.Count())

	require.NoError(s.T(), s.h.auth.ForgotPassword(s.ctx, u.Email))
	code := testutil.LatestOTP(s.T(), s.h.db.DB, u.ID, models.OtpReset).Code

	require.NoError(s.T(), s.h.auth.VerifyResetOTP(s.ctx, u.Email, code))
	// Checking does not consume
	require.NoError(s.T(), s.h.auth.VerifyResetOTP(s.ctx, u.Email, code))

	err = s.h.auth.ResetPassword(s.ctx, u.Email, code, "short")
	var ve *service.ValidationError
	assert.ErrorAs(s.T(), err, &ve)

	require.NoError(s.T(), s.h.auth.ResetPassword(s.ctx, u.Email, code, "brand-new-pass"))
	assert.ErrorIs(s.T(), s.h.auth.ResetPassword(s.ctx, u.Email, code, "another-pass"), service.ErrInvalidOTP)

	_, err = s.h.tokens.Authenticate(s.ctx, token)
	assert.ErrorIs(s.T(), err, service.ErrUnauthenticated, "reset signs out every device")

	_, _, err = s.h.auth.Login(s.ctx, "jane", "brand-new-pass")
	assert.NoError(s.T(), err)

	assert.ErrorIs(s.T(), s.h.auth.VerifyResetOTP(s.ctx, "ghost@example.com", code), service.ErrNotFound)
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}
