package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:120;not null" json:"email"`
	PasswordHash string    `gorm:"size:128" json:"-"`
	AboutMe      string    `gorm:"size:140" json:"about_me"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	AvatarURL    string    `gorm:"-" json:"avatar_url"`
}

// Follow is a directed edge; the composite key makes duplicates impossible.
type Follow struct {
	FollowerID uint      `gorm:"primaryKey;autoIncrement:false"`
	FollowedID uint      `gorm:"primaryKey;autoIncrement:false;index"`
	Follower   *User     `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE"`
	Followed   *User     `gorm:"foreignKey:FollowedID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UTC()
	if u.FirstSeen.IsZero() {
		u.FirstSeen = now
	}
	if u.LastSeen.IsZero() {
		u.LastSeen = u.FirstSeen
	}
	return nil
}

func (u *User) AfterSave(tx *gorm.DB) error {
	u.setAvatar()
	return nil
}

func (u *User) AfterFind(tx *gorm.DB) error {
	u.setAvatar()
	return nil
}

func (u *User) setAvatar() {
	if u.Email != "" {
		u.AvatarURL = GravatarURL(u.Email)
	}
}

func GravatarURL(email string) string {
	digest := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=identicon", hex.EncodeToString(digest[:]))
}
