package user

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Kyz7/microblog/internal/apperr"
	"github.com/Kyz7/microblog/internal/models"
	"github.com/Kyz7/microblog/internal/pagination"
	"github.com/Kyz7/microblog/internal/utils"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{db: db, now: now}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	AboutMe  string
}

// UpdateInput fields left nil are not changed.
type UpdateInput struct {
	Username    *string
	Email       *string
	AboutMe     *string
	Password    *string
	OldPassword *string
}

var errUserNotFound = fmt.Errorf("user %w", apperr.ErrNotFound)

func (s *Service) taken(ctx context.Context, column, value string, exceptID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where(column+" = ? AND id <> ?", value, exceptID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check %s: %w", column, err)
	}
	return n > 0, nil
}

func (s *Service) checkUnique(ctx context.Context, username, email *string, exceptID uint) error {
	if username != nil {
		taken, err := s.taken(ctx, "username", *username, exceptID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: username already in use", apperr.ErrConflict)
		}
	}
	if email != nil {
		taken, err := s.taken(ctx, "email", *email, exceptID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: email already registered", apperr.ErrConflict)
		}
	}
	return nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := s.checkUnique(ctx, &in.Username, &in.Email, 0); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	u := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		AboutMe:      utils.SanitizeText(in.AboutMe),
		FirstSeen:    now,
		LastSeen:     now,
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: username or email already in use", apperr.ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// Get resolves a numeric id or, failing that, a username.
func (s *Service) Get(ctx context.Context, idOrUsername string) (*models.User, error) {
	if id, err := strconv.ParseUint(idOrUsername, 10, 64); err == nil {
		return s.GetByID(ctx, uint(id))
	}

	var u models.User
	err := s.db.WithContext(ctx).Where("username = ?", idOrUsername).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// Update edits the profile of u. Changing the password requires the
// current one.
func (s *Service) Update(ctx context.Context, u *models.User, in UpdateInput) (*models.User, error) {
	if err := s.checkUnique(ctx, in.Username, in.Email, u.ID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Username != nil {
		updates["username"] = *in.Username
	}
	if in.Email != nil {
		updates["email"] = *in.Email
	}
	if in.AboutMe != nil {
		updates["about_me"] = utils.SanitizeText(*in.AboutMe)
	}
	if in.Password != nil {
		if in.OldPassword == nil || !utils.CheckPasswordHash(*in.OldPassword, u.PasswordHash) {
			return nil, fmt.Errorf("%w: old_password is missing or incorrect", apperr.ErrBadRequest)
		}
		hash, err := utils.HashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		updates["password_hash"] = hash
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", u.ID).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, fmt.Errorf("%w: username or email already in use", apperr.ErrConflict)
			}
			return nil, fmt.Errorf("update user: %w", err)
		}
	}

	return s.GetByID(ctx, u.ID)
}

// List orders every user by username.
func (s *Service) List(ctx context.Context) pagination.Query[string, models.User] {
	return pagination.NewGormQuery[string, models.User](s.db.WithContext(ctx), "username", pagination.Asc)
}

// Following lists the users id follows.
func (s *Service) Following(ctx context.Context, id uint) pagination.Query[string, models.User] {
	sub := s.db.Model(&models.Follow{}).Select("followed_id").Where("follower_id = ?", id)
	scope := s.db.WithContext(ctx).Where("id IN (?)", sub)
	return pagination.NewGormQuery[string, models.User](scope, "username", pagination.Asc)
}

// Followers lists the users following id.
func (s *Service) Followers(ctx context.Context, id uint) pagination.Query[string, models.User] {
	sub := s.db.Model(&models.Follow{}).Select("follower_id").Where("followed_id = ?", id)
	scope := s.db.WithContext(ctx).Where("id IN (?)", sub)
	return pagination.NewGormQuery[string, models.User](scope, "username", pagination.Asc)
}

func (s *Service) IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check follow: %w", err)
	}
	return n > 0, nil
}

// Follow adds the edge follower -> target. Following twice is a conflict.
func (s *Service) Follow(ctx context.Context, follower *models.User, target string) error {
	followed, err := s.Get(ctx, target)
	if err != nil {
		return err
	}

	following, err := s.IsFollowing(ctx, follower.ID, followed.ID)
	if err != nil {
		return err
	}
	if following {
		return fmt.Errorf("%w: user already followed", apperr.ErrConflict)
	}

	edge := &models.Follow{FollowerID: follower.ID, FollowedID: followed.ID, CreatedAt: s.now().UTC()}
	if err := s.db.WithContext(ctx).Create(edge).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: user already followed", apperr.ErrConflict)
		}
		return fmt.Errorf("create follow: %w", err)
	}
	return nil
}

// Unfollow removes the edge follower -> target. A missing edge is a
// conflict.
func (s *Service) Unfollow(ctx context.Context, follower *models.User, target string) error {
	followed, err := s.Get(ctx, target)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", follower.ID, followed.ID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return fmt.Errorf("delete follow: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user is not followed", apperr.ErrConflict)
	}
	return nil
}
