package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/policy"
	"github.com/Baaaki/car-rental/internal/service"
	"github.com/Baaaki/car-rental/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by AuthMiddleware.
const (
	ContextUser   = "user"
	ContextUserID = "user_id"
	ContextRole   = "user_role"
	ContextToken  = "token"
)

// Authenticator resolves a bearer token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, presented string) (*models.User, error)
}

func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthenticated.",
			})
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), header)
		if err != nil {
			if !errors.Is(err, service.ErrUnauthenticated) {
				logger.Log.Error("Token lookup failed", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthenticated.",
			})
			return
		}

		// Handlers read the caller from here
		c.Set(ContextUser, user)
		c.Set(ContextUserID, user.ID)
		c.Set(ContextRole, user.Role)
		c.Set(ContextToken, header)

		c.Next()
	}
}

// RequireRole rejects callers below min. Admin passes every staff check.
func RequireRole(min models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthenticated.",
			})
			return
		}

		if r, _ := role.(models.Role); !policy.AtLeast(r, min) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Unauthorized. " + string(min) + " access required.",
			})
			return
		}

		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}
