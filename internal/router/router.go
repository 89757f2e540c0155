package router

import (
	"context"
	"net/http"
	"time"

	"github.com/Baaaki/car-rental/internal/handler"
	"github.com/Baaaki/car-rental/internal/middleware"
	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/pkg/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Auth    *handler.AuthHandler
	Cars    *handler.CarHandler
	Rentals *handler.RentalHandler
	Users   *handler.UserHandler

	Authenticator middleware.Authenticator
	// RateLimiter guards the public auth endpoints. Nil disables it.
	RateLimiter *middleware.RateLimiter

	Health   Pinger
	Gatherer prometheus.Gatherer

	AllowedOrigins []string
	IsProduction   bool
}

// New builds the HTTP engine with every API route mounted under /api.
func New(opts Options) *gin.Engine {
	handler.RegisterValidation()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.HSTSMiddleware(opts.IsProduction))
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	r.GET("/healthz", health(opts.Health))
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	// Public routes
	public := api.Group("")
	if opts.RateLimiter != nil {
		public.Use(opts.RateLimiter.Middleware())
	}
	public.POST("/register", opts.Auth.Register)
	public.POST("/login", opts.Auth.Login)
	public.POST("/verify-otp", opts.Auth.VerifyOTP)
	public.POST("/resend-otp", opts.Auth.ResendOTP)
	public.POST("/forgot-password", opts.Auth.ForgotPassword)
	public.POST("/verify-reset-otp", opts.Auth.VerifyResetOTP)
	public.POST("/reset-password", opts.Auth.ResetPassword)

	api.GET("/cars", opts.Cars.Index)
	api.GET("/cars/popular", opts.Cars.Popular)
	api.GET("/cars/:id", opts.Cars.Show)

	// Bearer token routes
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(opts.Authenticator))
	{
		protected.POST("/logout", opts.Auth.Logout)
		protected.GET("/user", opts.Users.Me)
		protected.POST("/profile", opts.Users.UpdateProfile)

		protected.POST("/rentals", opts.Rentals.Store)
		protected.GET("/rentals", opts.Rentals.Index)
		protected.PUT("/rentals/:id", opts.Rentals.Update)
		protected.POST("/rentals/:id/cancel", opts.Rentals.Cancel)
	}

	staff := protected.Group("/staff")
	staff.Use(middleware.RequireRole(models.RoleStaff))
	{
		staff.POST("/cars", opts.Cars.Store)
		staff.PUT("/cars/:id", opts.Cars.Update)
		staff.DELETE("/cars/:id", opts.Cars.Destroy)
		staff.PUT("/rentals/:id", opts.Rentals.Update)
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/cars", opts.Cars.Store)
		admin.PUT("/cars/:id", opts.Cars.Update)
		admin.DELETE("/cars/:id", opts.Cars.Destroy)

		admin.GET("/users", opts.Users.Index)
		admin.POST("/users", opts.Users.Store)
		admin.GET("/users/:id", opts.Users.Show)
		admin.PUT("/users/:id", opts.Users.Update)
		admin.DELETE("/users/:id", opts.Users.Destroy)

		admin.DELETE("/rentals/:id", opts.Rentals.Destroy)
		admin.GET("/rentals/:id/history", opts.Rentals.History)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Credentials cannot be combined with a wildcard origin
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func health(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			logger.Log.Error("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
