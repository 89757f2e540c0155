package repository

import (
	"context"

	"github.com/Baaaki/car-rental/internal/models"
	"gorm.io/gorm"
)

type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, token *models.Token) error {
	return r.db.WithContext(ctx).Omit("User").Create(token).Error
}

// FindByHash returns the token with its user preloaded, or nil, nil.
func (r *TokenRepository) FindByHash(ctx context.Context, hash string) (*models.Token, error) {
	var token models.Token
	err := r.db.WithContext(ctx).Preload("User").Where("token_hash = ?", hash).First(&token).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &token, nil
}

func (r *TokenRepository) DeleteByHash(ctx context.Context, hash string) (int64, error) {
	res := r.db.WithContext(ctx).Where("token_hash = ?", hash).Delete(&models.Token{})
	return res.RowsAffected, res.Error
}

func (r *TokenRepository) DeleteByUser(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Token{})
	return res.RowsAffected, res.Error
}
