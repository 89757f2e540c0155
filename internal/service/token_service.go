package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/repository"
	"github.com/Baaaki/car-rental/internal/utils"
	"github.com/Baaaki/car-rental/pkg/logger"
	"go.uber.org/zap"
)

// TokenService issues and validates opaque bearer tokens. The plaintext is
// handed to the client once; only its SHA-256 is stored.
type TokenService struct {
	store  *repository.Store
	clock  Clock
	random io.Reader
	ttl    time.Duration
}

func NewTokenService(store *repository.Store, clock Clock, random io.Reader, ttl time.Duration) *TokenService {
	return &TokenService{
		store:  store,
		clock:  clock,
		random: random,
		ttl:    ttl,
	}
}

// Issue creates a new token for the user. Existing tokens stay valid.
func (s *TokenService) Issue(ctx context.Context, user *models.User) (string, error) {
	raw, err := utils.NewToken(s.random)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	token := &models.Token{
		UserID:    user.ID,
		TokenHash: utils.HashToken(raw),
		ExpiresAt: s.clock.Now().Add(s.ttl),
	}
	if err := s.store.Tokens.Create(ctx, token); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}

	logger.Log.Debug("Token issued",
		zap.Uint("user_id", user.ID),
		zap.Time("expires_at", token.ExpiresAt),
	)
	return raw, nil
}

// Authenticate resolves a presented token to its user. The "Bearer " prefix
// is optional.
func (s *TokenService) Authenticate(ctx context.Context, presented string) (*models.User, error) {
	raw := normalizeToken(presented)
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	token, err := s.store.Tokens.FindByHash(ctx, utils.HashToken(raw))
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	if token == nil || token.User == nil {
		return nil, ErrUnauthenticated
	}
	if !token.ExpiresAt.After(s.clock.Now()) {
		logger.Log.Debug("Expired token presented",
			zap.Uint("user_id", token.UserID),
			zap.Time("expired_at", token.ExpiresAt),
		)
		return nil, ErrUnauthenticated
	}

	return token.User, nil
}

// Revoke deletes the presented token. Unknown tokens are not an error.
func (s *TokenService) Revoke(ctx context.Context, presented string) error {
	raw := normalizeToken(presented)
	if raw == "" {
		return nil
	}
	if _, err := s.store.Tokens.DeleteByHash(ctx, utils.HashToken(raw)); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeAll signs the user out everywhere.
func (s *TokenService) RevokeAll(ctx context.Context, userID uint) error {
	n, err := s.store.Tokens.DeleteByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	logger.Log.Info("All tokens revoked",
		zap.Uint("user_id", userID),
		zap.Int64("count", n),
	)
	return nil
}

func normalizeToken(presented string) string {
	s := strings.TrimSpace(presented)
	if len(s) >= 7 && strings.EqualFold(s[:7], "bearer ") {
		s = s[7:]
	}
	return strings.TrimSpace(s)
}
