package models

import "time"

type OtpType string

const (
	OtpActivation OtpType = "activation"
	OtpReset      OtpType = "reset"
)

type OtpCode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_otp_lookup" json:"user_id"`
	Code      string    `gorm:"type:varchar(6);not null" json:"-"`
	Type      OtpType   `gorm:"type:varchar(20);not null;index:idx_otp_lookup" json:"type"`
	IsUsed    bool      `gorm:"not null;default:false" json:"is_used"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
