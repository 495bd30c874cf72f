package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kyz7/microblog/internal/apperr"
	"github.com/Kyz7/microblog/internal/logging"
	"github.com/Kyz7/microblog/internal/mail"
	"github.com/Kyz7/microblog/internal/models"
	"github.com/Kyz7/microblog/internal/utils"
	"gorm.io/gorm"
)

type ServiceConfig struct {
	ResetKey []byte
	ResetTTL time.Duration
	// ResetURL is the client page that receives ?token=...
	ResetURL string
	Now      func() time.Time
	Logger   logging.Logger
}

// Service covers credential checks and the password reset flow.
type Service struct {
	db     *gorm.DB
	tokens *TokenManager
	mailer mail.Sender
	cfg    ServiceConfig
	log    logging.Logger
}

func NewService(db *gorm.DB, tokens *TokenManager, mailer mail.Sender, cfg ServiceConfig) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Service{db: db, tokens: tokens, mailer: mailer, cfg: cfg, log: log.With("component", "auth")}
}

// FindByLogin accepts a username or an email address. Usernames cannot
// contain '@', so the two never collide.
func (s *Service) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	if login == "" {
		return nil, apperr.ErrInvalidCredentials
	}

	column := "username"
	if strings.Contains(login, "@") {
		column = "email"
	}

	var user models.User
	err := s.db.WithContext(ctx).Where(column+" = ?", login).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *Service) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	user, err := s.FindByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperr.ErrInvalidCredentials
	}
	return user, nil
}

// RequestPasswordReset mails a reset link when email belongs to a user.
// Unknown addresses are silently accepted.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	token, err := utils.GenerateResetToken(s.cfg.ResetKey, user.Email, s.cfg.Now(), s.cfg.ResetTTL)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	resetURL := s.cfg.ResetURL + "?token=" + token
	msg := mail.Message{
		To:      user.Email,
		Subject: "Reset Your Password",
		Body: fmt.Sprintf("Dear %s,\n\nTo reset your password, visit:\n\n%s\n\n"+
			"If you did not ask for a password reset you can ignore this message.\n",
			user.Username, resetURL),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Error(ctx, "queue reset mail failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword sets a new password for the owner of a valid reset token
// and logs the user out of every session.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	email, err := utils.ParseResetToken(s.cfg.ResetKey, token, s.cfg.Now())
	if err != nil {
		return fmt.Errorf("%w: invalid reset token", apperr.ErrBadRequest)
	}

	var user models.User
	err = s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: invalid reset token", apperr.ErrBadRequest)
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&user).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	n, err := s.tokens.RevokeAll(ctx, user.ID)
	if err != nil {
		return err
	}
	s.log.Info(ctx, "password reset, sessions revoked", "user_id", user.ID, "revoked", n)
	return nil
}
