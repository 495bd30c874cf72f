package models

import (
	"time"
)

// Token is one access/refresh pair. Only SHA-256 hashes of the secrets are
// stored.
type Token struct {
	ID                uint      `gorm:"primaryKey"`
	AccessTokenHash   string    `gorm:"uniqueIndex;size:64;not null"`
	RefreshTokenHash  string    `gorm:"uniqueIndex;size:64;not null"`
	AccessExpiration  time.Time `gorm:"not null"`
	RefreshExpiration time.Time `gorm:"index;not null"`
	UserID            uint      `gorm:"index;not null"`
	User              *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	// RevokedAt is set exactly once, when the pair is superseded by a
	// refresh or revoked by logout.
	RevokedAt *time.Time
	CreatedAt time.Time
}
