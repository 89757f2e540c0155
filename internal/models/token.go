package models

import "time"

// Token is a persisted bearer token. Only the SHA-256 hash of the opaque
// string handed to the client is stored.
type Token struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;index"`
	TokenHash string    `gorm:"type:char(64);uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (Token) TableName() string {
	return "user_tokens"
}
