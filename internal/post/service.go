package post

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kyz7/microblog/internal/apperr"
	"github.com/Kyz7/microblog/internal/models"
	"github.com/Kyz7/microblog/internal/pagination"
	"github.com/Kyz7/microblog/internal/utils"
	"gorm.io/gorm"
)

var errPostNotFound = fmt.Errorf("post %w", apperr.ErrNotFound)

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

// cleanBody strips markup and rejects bodies that end up empty.
func cleanBody(body string) (string, error) {
	clean := utils.SanitizeText(body)
	if clean == "" {
		return "", apperr.NewValidationError(map[string]string{"body": "body is required"})
	}
	return clean, nil
}

func (s *Service) Create(ctx context.Context, author *models.User, body string) (*models.Post, error) {
	clean, err := cleanBody(body)
	if err != nil {
		return nil, err
	}

	p := &models.Post{
		Body:      clean,
		Timestamp: s.now().UTC(),
		UserID:    author.ID,
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	p.Author = author
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Post, error) {
	var p models.Post
	err := s.db.WithContext(ctx).Preload("Author").First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find post: %w", err)
	}
	return &p, nil
}

func (s *Service) owned(ctx context.Context, user *models.User, id uint) (*models.Post, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != user.ID {
		return nil, fmt.Errorf("%w: only the author can change this post", apperr.ErrForbidden)
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, user *models.User, id uint, body string) (*models.Post, error) {
	p, err := s.owned(ctx, user, id)
	if err != nil {
		return nil, err
	}

	clean, err := cleanBody(body)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", p.ID).Update("body", clean).Error; err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	p.Body = clean
	return p, nil
}

func (s *Service) Delete(ctx context.Context, user *models.User, id uint) error {
	p, err := s.owned(ctx, user, id)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.Post{}, p.ID).Error; err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

func (s *Service) timeline(scope *gorm.DB) pagination.Query[time.Time, models.Post] {
	return pagination.NewGormQuery[time.Time, models.Post](scope, "timestamp", pagination.Desc,
		pagination.WithPreload("Author"))
}

// All lists every post, newest first.
func (s *Service) All(ctx context.Context) pagination.Query[time.Time, models.Post] {
	return s.timeline(s.db.WithContext(ctx))
}

// ByUser lists the posts written by userID, newest first.
func (s *Service) ByUser(ctx context.Context, userID uint) pagination.Query[time.Time, models.Post] {
	return s.timeline(s.db.WithContext(ctx).Where("user_id = ?", userID))
}

// Feed lists posts by the users userID follows plus its own, newest first.
func (s *Service) Feed(ctx context.Context, userID uint) pagination.Query[time.Time, models.Post] {
	followed := s.db.Model(&models.Follow{}).Select("followed_id").Where("follower_id = ?", userID)
	scope := s.db.WithContext(ctx).Where("(user_id IN (?) OR user_id = ?)", followed, userID)
	return s.timeline(scope)
}
