package main

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Baaaki/car-rental/internal/cache"
	"github.com/Baaaki/car-rental/internal/config"
	"github.com/Baaaki/car-rental/internal/database"
	"github.com/Baaaki/car-rental/internal/handler"
	"github.com/Baaaki/car-rental/internal/journal"
	"github.com/Baaaki/car-rental/internal/mailer"
	"github.com/Baaaki/car-rental/internal/metrics"
	"github.com/Baaaki/car-rental/internal/middleware"
	"github.com/Baaaki/car-rental/internal/repository"
	"github.com/Baaaki/car-rental/internal/router"
	"github.com/Baaaki/car-rental/internal/service"
	"github.com/Baaaki/car-rental/internal/utils"
	"github.com/Baaaki/car-rental/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := logger.Init(!cfg.IsProduction()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}
	store := repository.NewStore(db)

	// Redis backs the popular cars cache and the auth rate limiter.
	// Without it both are disabled.
	var (
		redisClient *redis.Client
		popular     cache.PopularCache = cache.Nop{}
		limiter     *middleware.RateLimiter
	)
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = cache.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()

		popular = cache.NewRedisPopularCache(redisClient, cfg.PopularCacheTTL)
		limiter = middleware.NewRateLimiter(redisClient, middleware.RateLimiterConfig{
			MaxRequests: cfg.RateLimitMaxRequests,
			Window:      cfg.RateLimitWindow,
			BlockTime:   cfg.RateLimitBlockTime,
			Prefix:      "auth",
		})
	} else {
		logger.Log.Warn("REDIS_URL not set, popular cars cache and rate limiting disabled")
	}

	var recorder journal.Recorder = journal.Nop{}
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			logger.Log.Fatal("Failed to open rental journal", zap.String("path", cfg.JournalPath), zap.Error(err))
		}
		defer j.Close()
		recorder = j
	}

	var sender mailer.Sender
	if cfg.MailerSendAPIKey != "" {
		sender = mailer.NewMailerSend(cfg.MailerSendAPIKey, cfg.MailFromName, cfg.MailFromEmail)
	} else {
		logger.Log.Warn("MAILERSEND_API_KEY not set, emails are written to the log")
		sender = mailer.NewLogSender()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.MustRegister(reg, "car-rental")

	// Services
	clock := service.SystemClock
	tokenService := service.NewTokenService(store, clock, rand.Reader, cfg.TokenTTL)
	otpService := service.NewOtpService(store, sender, clock, rand.Reader, cfg.OTPTTL)
	authService := service.NewAuthService(store, tokenService, otpService, utils.DefaultArgon2())
	rentalService := service.NewRentalService(store, clock, recorder, popular)
	carService := service.NewCarService(store, popular)
	userService := service.NewUserService(store, utils.DefaultArgon2(), recorder, popular, cfg.SuperAdminID)

	engine := router.New(router.Options{
		Auth:           handler.NewAuthHandler(authService),
		Cars:           handler.NewCarHandler(carService),
		Rentals:        handler.NewRentalHandler(rentalService),
		Users:          handler.NewUserHandler(userService),
		Authenticator:  tokenService,
		RateLimiter:    limiter,
		Health:         store,
		Gatherer:       reg,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		IsProduction:   cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server starting",
			zap.String("addr", cfg.ServerPort),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
}
