package repository

import (
	"context"

	"github.com/Baaaki/car-rental/internal/models"
	"gorm.io/gorm"
)

type OtpRepository struct {
	db *gorm.DB
}

func NewOtpRepository(db *gorm.DB) *OtpRepository {
	return &OtpRepository{db: db}
}

func (r *OtpRepository) Create(ctx context.Context, otp *models.OtpCode) error {
	return r.db.WithContext(ctx).Omit("User").Create(otp).Error
}

// InvalidateUnused marks every unused code of the type for the user as used.
func (r *OtpRepository) InvalidateUnused(ctx context.Context, userID uint, typ models.OtpType) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.OtpCode{}).
		Where("user_id = ? AND type = ? AND is_used = ?", userID, typ, false).
		Update("is_used", true)
	return res.RowsAffected, res.Error
}

// FindUnused returns the newest unused code matching user, code and type, or nil, nil.
// Expiry is left to the caller.
func (r *OtpRepository) FindUnused(ctx context.Context, userID uint, code string, typ models.OtpType) (*models.OtpCode, error) {
	var otp models.OtpCode
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND code = ? AND type = ? AND is_used = ?", userID, code, typ, false).
		Order("id DESC").
		First(&otp).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &otp, nil
}

// Consume flips is_used on an unused code. It reports false when the code
// had already been consumed, so exactly one caller wins a replay race.
func (r *OtpRepository) Consume(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.OtpCode{}).
		Where("id = ? AND is_used = ?", id, false).
		Update("is_used", true)
	return res.RowsAffected == 1, res.Error
}

func (r *OtpRepository) DeleteByUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.OtpCode{}).Error
}
