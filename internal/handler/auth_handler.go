package handler

import (
	"errors"
	"net/http"

	"github.com/Baaaki/car-rental/internal/middleware"
	"github.com/Baaaki/car-rental/internal/service"
	"github.com/Baaaki/car-rental/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

type RegisterRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=50"`
	FirstName string `json:"first_name" binding:"required,max=50"`
	LastName  string `json:"last_name" binding:"required,max=50"`
	Email     string `json:"email" binding:"required,email,max=100"`
	Password  string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type VerifyOTPRequest struct {
	Username string `json:"username" binding:"required"`
	OtpCode  string `json:"otp_code" binding:"required,len=6,numeric"`
}

type ResendOTPRequest struct {
	Username string `json:"username" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyResetOTPRequest struct {
	Email   string `json:"email" binding:"required,email"`
	OtpCode string `json:"otp_code" binding:"required,len=6,numeric"`
}

type ResetPasswordRequest struct {
	Email                   string `json:"email" binding:"required,email"`
	OtpCode                 string `json:"otp_code" binding:"required,len=6,numeric"`
	NewPassword             string `json:"new_password" binding:"required,min=6"`
	NewPasswordConfirmation string `json:"new_password_confirmation" binding:"required,eqfield=NewPassword"`
}

// Register creates an unverified customer and emails the activation code.
// POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest

	// 1. Parse JSON request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	logger.Log.Info("User registration attempt",
		zap.String("username", req.Username),
		zap.String("email", req.Email),
		zap.String("ip", c.ClientIP()),
	)

	// 2. Call service
	user, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	// 3. No token yet: the account has to be verified first
	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful. Please check your email for verification code.",
		"user":    user,
	})
}

// Login returns a bearer token for a verified account.
// POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	logger.Log.Info("User login attempt",
		zap.String("username", req.Username),
		zap.String("ip", c.ClientIP()),
	)

	user, token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Account not verified. Please verify your email.",
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    user,
		"token":   token,
	})
}

// Logout revokes the token the request was authenticated with.
// POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(middleware.ContextToken)
	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// VerifyOTP activates an account.
// POST /api/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, already, err := h.authService.VerifyActivation(c.Request.Context(), req.Username, req.OtpCode)
	if err != nil {
		respondError(c, err)
		return
	}
	if already {
		c.JSON(http.StatusOK, gin.H{"message": "User already verified"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Account verified successfully. You can now login.",
		"user":    user,
	})
}

// ResendOTP replaces the pending activation code.
// POST /api/resend-otp
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req ResendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	already, err := h.authService.ResendActivation(c.Request.Context(), req.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	if already {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User already verified"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "New OTP code sent to your email."})
}

// ForgotPassword answers the same way whether or not the email is known.
// POST /api/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "If your email is registered, you will receive a reset code.",
	})
}

// POST /api/verify-reset-otp
func (h *AuthHandler) VerifyResetOTP(c *gin.Context) {
	var req VerifyResetOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.authService.VerifyResetOTP(c.Request.Context(), req.Email, req.OtpCode); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OTP verified. Proceed to reset password."})
}

// POST /api/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	err := h.authService.ResetPassword(c.Request.Context(), req.Email, req.OtpCode, req.NewPassword)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Password reset successful. You can now login with your new password.",
	})
}
