package models

import (
	"time"

	"gorm.io/gorm"
)

type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Body      string    `gorm:"size:280;not null" json:"body"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Author    *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}
	return nil
}
