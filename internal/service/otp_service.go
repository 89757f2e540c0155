package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Baaaki/car-rental/internal/mailer"
	"github.com/Baaaki/car-rental/internal/metrics"
	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/repository"
	"github.com/Baaaki/car-rental/internal/utils"
	"github.com/Baaaki/car-rental/pkg/logger"
	"go.uber.org/zap"
)

// OtpService issues and verifies six digit one-time codes.
type OtpService struct {
	store  *repository.Store
	sender mailer.Sender
	clock  Clock
	random io.Reader
	ttl    time.Duration
}

func NewOtpService(store *repository.Store, sender mailer.Sender, clock Clock, random io.Reader, ttl time.Duration) *OtpService {
	return &OtpService{
		store:  store,
		sender: sender,
		clock:  clock,
		random: random,
		ttl:    ttl,
	}
}

// Issue replaces any outstanding code of the type with a new one and emails
// it. The new code is committed before sending, so a delivery failure
// surfaces as ErrDependencyFailure and the caller can simply issue again.
func (s *OtpService) Issue(ctx context.Context, user *models.User, typ models.OtpType) error {
	var code string
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		code, err = s.persist(ctx, tx, user.ID, typ)
		return err
	})
	if err != nil {
		return err
	}
	return s.deliver(ctx, user, code, typ)
}

// IssueTx is Issue inside a caller owned transaction. Delivery happens before
// the caller commits, so a failed send rolls everything back.
func (s *OtpService) IssueTx(ctx context.Context, tx *repository.Store, user *models.User, typ models.OtpType) error {
	code, err := s.persist(ctx, tx, user.ID, typ)
	if err != nil {
		return err
	}
	return s.deliver(ctx, user, code, typ)
}

// Verify accepts a matching, unused, unexpired code and consumes it.
func (s *OtpService) Verify(ctx context.Context, userID uint, code string, typ models.OtpType) error {
	return s.VerifyTx(ctx, s.store, userID, code, typ)
}

// VerifyTx is Verify against the given store, typically a transaction.
func (s *OtpService) VerifyTx(ctx context.Context, st *repository.Store, userID uint, code string, typ models.OtpType) error {
	otp, err := s.lookup(ctx, st, userID, code, typ)
	if err != nil {
		return err
	}

	consumed, err := st.Otps.Consume(ctx, otp.ID)
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	if !consumed {
		return ErrInvalidOTP
	}

	logger.Log.Info("OTP verified",
		zap.Uint("user_id", userID),
		zap.String("type", string(typ)),
	)
	return nil
}

// Check validates a code without consuming it.
func (s *OtpService) Check(ctx context.Context, userID uint, code string, typ models.OtpType) error {
	_, err := s.lookup(ctx, s.store, userID, code, typ)
	return err
}

func (s *OtpService) lookup(ctx context.Context, st *repository.Store, userID uint, code string, typ models.OtpType) (*models.OtpCode, error) {
	otp, err := st.Otps.FindUnused(ctx, userID, code, typ)
	if err != nil {
		return nil, fmt.Errorf("lookup otp: %w", err)
	}
	if otp == nil || !otp.ExpiresAt.After(s.clock.Now()) {
		logger.Log.Warn("OTP rejected",
			zap.Uint("user_id", userID),
			zap.String("type", string(typ)),
			zap.Bool("found", otp != nil),
		)
		return nil, ErrInvalidOTP
	}
	return otp, nil
}

func (s *OtpService) persist(ctx context.Context, st *repository.Store, userID uint, typ models.OtpType) (string, error) {
	code, err := utils.NewOTP(s.random)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	invalidated, err := st.Otps.InvalidateUnused(ctx, userID, typ)
	if err != nil {
		return "", fmt.Errorf("invalidate otps: %w", err)
	}

	otp := &models.OtpCode{
		UserID:    userID,
		Code:      code,
		Type:      typ,
		ExpiresAt: s.clock.Now().Add(s.ttl),
	}
	if err := st.Otps.Create(ctx, otp); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	logger.Log.Debug("OTP stored",
		zap.Uint("user_id", userID),
		zap.String("type", string(typ)),
		zap.Int64("invalidated", invalidated),
	)
	return code, nil
}

func (s *OtpService) deliver(ctx context.Context, user *models.User, code string, typ models.OtpType) error {
	msg := mailer.OTPEmail(user.Email, user.FullName, code, string(typ), s.ttl)
	if err := s.sender.Send(ctx, msg); err != nil {
		metrics.OtpIssuedTotal.WithLabelValues(string(typ), "send_failed").Inc()
		logger.Log.Error("Failed to send OTP email",
			zap.Uint("user_id", user.ID),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: send otp email: %v", ErrDependencyFailure, err)
	}

	metrics.OtpIssuedTotal.WithLabelValues(string(typ), "sent").Inc()
	return nil
}
