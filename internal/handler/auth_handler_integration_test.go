package handler_test

import (
	"net/http"
	"testing"

	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/testutil"
	"github.com/Baaaki/car-rental/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// AuthHandlerIntegrationTestSuite drives the account endpoints end to end.
type AuthHandlerIntegrationTestSuite struct {
	suite.Suite
	api *api
}

func (s *AuthHandlerIntegrationTestSuite) SetupSuite() {
	// Initialize logger (required for handlers)
	logger.Init(false)
	s.api = newAPI(s.T())
}

// SetupTest runs before each test (clean database)
func (s *AuthHandlerIntegrationTestSuite) SetupTest() {
	testutil.CleanDatabase(s.T(), s.api.db)
	s.api.sender.Messages = nil
}

func (s *AuthHandlerIntegrationTestSuite) register(username string) *models.User {
	w := s.api.do(http.MethodPost, "/api/register", "", map[string]string{
		"username":   username,
		"first_name": "John",
		"last_name":  "Doe",
		"email":      username + "@example.com",
		"password":   "SecurePass123",
	})
	require.Equal(s.T(), http.StatusCreated, w.Code, w.Body.String())

	var user models.User
	require.NoError(s.T(), s.api.db.Where("username = ?", username).First(&user).Error)
	return &user
}

func (s *AuthHandlerIntegrationTestSuite) TestRegisterVerifyLoginLogout() {
	w := s.api.do(http.MethodPost, "/api/register", "", map[string]string{
		"username":   "johndoe",
		"first_name": "John",
		"last_name":  "Doe",
		"email":      "johndoe@example.com",
		"password":   "SecurePass123",
	})
	require.Equal(s.T(), http.StatusCreated, w.Code, w.Body.String())

	body := decode(s.T(), w)
	assert.Equal(s.T(), "Registration successful. Please check your email for verification code.", body["message"])
	user := body["user"].(map[string]interface{})
	assert.Equal(s.T(), "johndoe", user["username"])
	assert.Equal(s.T(), "John Doe", user["full_name"])
	assert.Equal(s.T(), "customer", user["role"])
	assert.Equal(s.T(), false, user["is_verified"])
	assert.NotContains(s.T(), user, "password_hash")
	assert.Equal(s.T(), 1, s.api.sender.Count())

	// Unverified accounts cannot log in
	creds := map[string]string{"username": "johndoe", "password": "SecurePass123"}
	w = s.api.do(http.MethodPost, "/api/login", "", creds)
	assert.Equal(s.T(), http.StatusForbidden, w.Code)
	assert.Equal(s.T(), "Account not verified. Please verify your email.", decode(s.T(), w)["error"])

	id := uint(user["id"].(float64))
	code := testutil.LatestOTP(s.T(), s.api.db, id, models.OtpActivation).Code

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	w = s.api.do(http.MethodPost, "/api/verify-otp", "", map[string]string{"username": "johndoe", "otp_code": wrong})
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	assert.Equal(s.T(), "Invalid or expired OTP", decode(s.T(), w)["error"])

	w = s.api.do(http.MethodPost, "/api/verify-otp", "", map[string]string{"username": "johndoe", "otp_code": code})
	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	assert.Equal(s.T(), "Account verified successfully. You can now login.", decode(s.T(), w)["message"])

	w = s.api.do(http.MethodPost, "/api/verify-otp", "", map[string]string{"username": "johndoe", "otp_code": code})
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "User already verified", decode(s.T(), w)["message"])

	w = s.api.do(http.MethodPost, "/api/login", "", creds)
	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	body = decode(s.T(), w)
	assert.Equal(s.T(), "Login successful", body["message"])
	token := body["token"].(string)
	require.NotEmpty(s.T(), token)

	w = s.api.do(http.MethodGet, "/api/user", token, nil)
	require.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "johndoe", decode(s.T(), w)["username"])

	w = s.api.do(http.MethodPost, "/api/logout", token, nil)
	require.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "Logged out successfully", decode(s.T(), w)["message"])

	w = s.api.do(http.MethodGet, "/api/user", token, nil)
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
}

func (s *AuthHandlerIntegrationTestSuite) TestRegisterValidation() {
	w := s.api.do(http.MethodPost, "/api/register", "", map[string]string{
		"username": "jd",
		"email":    "not-an-email",
		"password": "123",
	})
	require.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)

	body := decode(s.T(), w)
	assert.Equal(s.T(), "validation failed", body["error"])
	errs := body["errors"].(map[string]interface{})
	assert.Equal(s.T(), "The username must be at least 3 characters.", errs["username"])
	assert.Equal(s.T(), "The first name field is required.", errs["first_name"])
	assert.Equal(s.T(), "The last name field is required.", errs["last_name"])
	assert.Equal(s.T(), "The email must be a valid email address.", errs["email"])
	assert.Equal(s.T(), "The password must be at least 6 characters.", errs["password"])
	assert.Zero(s.T(), s.api.sender.Count())
}

func (s *AuthHandlerIntegrationTestSuite) TestRegisterMalformedBody() {
	w := s.api.do(http.MethodPost, "/api/register", "", `{"username": `)
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	assert.Equal(s.T(), "Invalid request body", decode(s.T(), w)["error"])
}

func (s *AuthHandlerIntegrationTestSuite) TestRegisterDuplicate() {
	s.register("johndoe")

	w := s.api.do(http.MethodPost, "/api/register", "", map[string]string{
		"username":   "johndoe",
		"first_name": "Other",
		"last_name":  "Person",
		"email":      "other@example.com",
		"password":   "SecurePass123",
	})
	assert.Equal(s.T(), http.StatusConflict, w.Code)
	assert.Equal(s.T(), "Username has already been taken", decode(s.T(), w)["error"])
}

func (s *AuthHandlerIntegrationTestSuite) TestLoginInvalidCredentials() {
	testutil.CreateTestUser(s.T(), s.api.db, "alice", "secret123", models.RoleCustomer)

	for _, creds := range []map[string]string{
		{"username": "alice", "password": "wrong-password"},
		{"username": "nobody", "password": "secret123"},
	} {
		w := s.api.do(http.MethodPost, "/api/login", "", creds)
		assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
		assert.Equal(s.T(), "Invalid credentials", decode(s.T(), w)["error"])
	}
}

func (s *AuthHandlerIntegrationTestSuite) TestResendOTP() {
	u := s.register("johndoe")
	first := testutil.LatestOTP(s.T(), s.api.db, u.ID, models.OtpActivation).Code

	w := s.api.do(http.MethodPost, "/api/resend-otp", "", map[string]string{"username": "johndoe"})
	require.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "New OTP code sent to your email.", decode(s.T(), w)["message"])
	assert.Equal(s.T(), 2, s.api.sender.Count())

	second := testutil.LatestOTP(s.T(), s.api.db, u.ID, models.OtpActivation).Code
	if first != second {
		w = s.api.do(http.MethodPost, "/api/verify-otp", "", map[string]string{"username": "johndoe", "otp_code": first})
		assert.Equal(s.T(), http.StatusBadRequest, w.Code, "the replaced code must be rejected")
	}

	w = s.api.do(http.MethodPost, "/api/verify-otp", "", map[string]string{"username": "johndoe", "otp_code": second})
	require.Equal(s.T(), http.StatusOK, w.Code)

	w = s.api.do(http.MethodPost, "/api/resend-otp", "", map[string]string{"username": "johndoe"})
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)

	w = s.api.do(http.MethodPost, "/api/resend-otp", "", map[string]string{"username": "ghost"})
	assert.Equal(s.T(), http.StatusNotFound, w.Code)
	assert.Equal(s.T(), "User not found", decode(s.T(), w)["error"])
}

func (s *AuthHandlerIntegrationTestSuite) TestPasswordReset() {
	u := testutil.CreateTestUser(s.T(), s.api.db, "alice", "secret123", models.RoleCustomer)
	generic := "If your email is registered, you will receive a reset code."

	w := s.api.do(http.MethodPost, "/api/forgot-password", "", map[string]string{"email": "ghost@example.com"})
	require.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), generic, decode(s.T(), w)["message"])
	assert.Zero(s.T(), s.api.sender.Count())

	w = s.api.do(http.MethodPost, "/api/forgot-password", "", map[string]string{"email": u.Email})
	require.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), generic, decode(s.T(), w)["message"])
	require.Equal(s.T(), 1, s.api.sender.Count())

	code := testutil.LatestOTP(s.T(), s.api.db, u.ID, models.OtpReset).Code

	w = s.api.do(http.MethodPost, "/api/verify-reset-otp", "", map[string]string{"email": u.Email, "otp_code": code})
	require.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "OTP verified. Proceed to reset password.", decode(s.T(), w)["message"])

	w = s.api.do(http.MethodPost, "/api/reset-password", "", map[string]string{
		"email":                     u.Email,
		"otp_code":                  code,
		"new_password":              "brand-new-pass",
		"new_password_confirmation": "something-else",
	})
	require.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	assert.Contains(s.T(), decode(s.T(), w)["errors"], "new_password_confirmation")

	w = s.api.do(http.MethodPost, "/api/reset-password", "", map[string]string{
		"email":                     u.Email,
		"otp_code":                  code,
		"new_password":              "brand-new-pass",
		"new_password_confirmation": "brand-new-pass",
	})
	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	assert.Equal(s.T(), "Password reset successful. You can now login with your new password.", decode(s.T(), w)["message"])

	w = s.api.do(http.MethodPost, "/api/login", "", map[string]string{"username": "alice", "password": "secret123"})
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	w = s.api.do(http.MethodPost, "/api/login", "", map[string]string{"username": "alice", "password": "brand-new-pass"})
	assert.Equal(s.T(), http.StatusOK, w.Code)
}

func TestAuthHandlerIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerIntegrationTestSuite))
}
