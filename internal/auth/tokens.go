package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/Kyz7/microblog/internal/apperr"
	"github.com/Kyz7/microblog/internal/logging"
	"github.com/Kyz7/microblog/internal/models"
	"github.com/Kyz7/microblog/internal/utils"
	"gorm.io/gorm"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultGraceDelay = 5 * time.Second
	DefaultCleanAfter = 24 * time.Hour
)

var (
	ErrTokenExpired  = fmt.Errorf("%w: expired", apperr.ErrInvalidToken)
	ErrTokenReplayed = fmt.Errorf("%w: refresh token replayed", apperr.ErrInvalidToken)
)

type TokenOptions struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// GraceDelay keeps a superseded pair usable for in-flight requests.
	GraceDelay time.Duration
	// CleanAfter is how long past refresh expiration a row is kept.
	CleanAfter time.Duration
	Now        func() time.Time
	Logger     logging.Logger
}

// IssuedToken carries the clear secrets. They are never stored and cannot
// be recovered after this value is discarded.
type IssuedToken struct {
	AccessToken       string    `json:"access_token"`
	RefreshToken      string    `json:"refresh_token"`
	AccessExpiration  time.Time `json:"access_expiration"`
	RefreshExpiration time.Time `json:"refresh_expiration"`
	UserID            uint      `json:"-"`
}

// TokenManager issues, verifies, rotates and revokes access/refresh pairs.
type TokenManager struct {
	db   *gorm.DB
	opts TokenOptions
	log  logging.Logger
}

// NewTokenManager fills zero-valued options with defaults. A zero
// GraceDelay is kept as is.
func NewTokenManager(db *gorm.DB, opts TokenOptions) *TokenManager {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = DefaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = DefaultRefreshTTL
	}
	if opts.GraceDelay < 0 {
		opts.GraceDelay = 0
	}
	if opts.CleanAfter <= 0 {
		opts.CleanAfter = DefaultCleanAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	return &TokenManager{db: db, opts: opts, log: log.With("component", "tokens")}
}

func (m *TokenManager) now() time.Time {
	return m.opts.Now().UTC()
}

func (m *TokenManager) newToken(userID uint, now time.Time) (*IssuedToken, *models.Token, error) {
	access, err := utils.GenerateSecret()
	if err != nil {
		return nil, nil, err
	}
	refresh, err := utils.GenerateSecret()
	if err != nil {
		return nil, nil, err
	}

	issued := &IssuedToken{
		AccessToken:       access,
		RefreshToken:      refresh,
		AccessExpiration:  now.Add(m.opts.AccessTTL),
		RefreshExpiration: now.Add(m.opts.RefreshTTL),
		UserID:            userID,
	}
	row := &models.Token{
		AccessTokenHash:   utils.HashToken(access),
		RefreshTokenHash:  utils.HashToken(refresh),
		AccessExpiration:  issued.AccessExpiration,
		RefreshExpiration: issued.RefreshExpiration,
		UserID:            userID,
	}
	return issued, row, nil
}

// Issue creates a fresh pair for userID and sweeps long-dead rows.
func (m *TokenManager) Issue(ctx context.Context, userID uint) (*IssuedToken, error) {
	issued, row, err := m.newToken(userID, m.now())
	if err != nil {
		return nil, err
	}

	if err := m.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}

	m.cleanQuietly(ctx)
	return issued, nil
}

func (m *TokenManager) findByAccess(tx *gorm.DB, access string) (*models.Token, error) {
	if access == "" {
		return nil, apperr.ErrInvalidToken
	}

	var row models.Token
	err := tx.Where("access_token_hash = ?", utils.HashToken(access)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("find token: %w", err)
	}
	return &row, nil
}

// VerifyAccess returns the owner of a live access token and records the
// request as the user's last activity.
func (m *TokenManager) VerifyAccess(ctx context.Context, access string) (*models.User, error) {
	var user models.User

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := m.findByAccess(tx, access)
		if err != nil {
			return err
		}

		now := m.now()
		if !row.AccessExpiration.After(now) {
			return ErrTokenExpired
		}

		if err := tx.Model(&models.User{}).Where("id = ?", row.UserID).Update("last_seen", now).Error; err != nil {
			return fmt.Errorf("ping user: %w", err)
		}

		err = tx.First(&user, row.UserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrInvalidToken
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Refresh exchanges a pair for a new one. The refresh secret must belong to
// the same row as the access secret. Presenting a pair whose refresh
// expiration has passed revokes every token of the user.
func (m *TokenManager) Refresh(ctx context.Context, access, refresh string) (*IssuedToken, error) {
	if refresh == "" {
		return nil, apperr.ErrInvalidToken
	}

	row, err := m.findByAccess(m.db.WithContext(ctx), access)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(row.RefreshTokenHash), []byte(utils.HashToken(refresh))) != 1 {
		return nil, apperr.ErrInvalidToken
	}

	now := m.now()
	if !row.RefreshExpiration.After(now) {
		n, err := m.RevokeAll(ctx, row.UserID)
		if err != nil {
			m.log.Error(ctx, "revoke tokens after replay", "user_id", row.UserID, "error", err)
		}
		m.log.Warn(ctx, "expired refresh token replayed, all tokens revoked", "user_id", row.UserID, "revoked", n)
		return nil, ErrTokenReplayed
	}

	var issued *IssuedToken
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := m.expire(tx, row, now)
		if err != nil {
			return err
		}
		if !ok {
			// a concurrent refresh or logout got there first
			return apperr.ErrInvalidToken
		}

		var newRow *models.Token
		issued, newRow, err = m.newToken(row.UserID, now)
		if err != nil {
			return err
		}
		if err := tx.Create(newRow).Error; err != nil {
			return fmt.Errorf("store token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.cleanQuietly(ctx)
	return issued, nil
}

// expire moves row into its grace window. It reports false when the row
// had already been revoked.
func (m *TokenManager) expire(tx *gorm.DB, row *models.Token, now time.Time) (bool, error) {
	grace := now.Add(m.opts.GraceDelay)

	res := tx.Model(&models.Token{}).
		Where("id = ? AND revoked_at IS NULL", row.ID).
		Updates(map[string]interface{}{
			"revoked_at":         now,
			"access_expiration":  earliest(row.AccessExpiration, grace),
			"refresh_expiration": earliest(row.RefreshExpiration, grace),
		})
	if res.Error != nil {
		return false, fmt.Errorf("expire token: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Revoke soft-expires the pair owning access. Unknown or already revoked
// tokens are ignored.
func (m *TokenManager) Revoke(ctx context.Context, access string) error {
	db := m.db.WithContext(ctx)

	row, err := m.findByAccess(db, access)
	if errors.Is(err, apperr.ErrInvalidToken) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = m.expire(db, row, m.now())
	return err
}

// RevokeAll deletes every token of userID and returns how many were
// removed.
func (m *TokenManager) RevokeAll(ctx context.Context, userID uint) (int64, error) {
	res := m.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Token{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete user tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Clean purges rows whose refresh expiration is older than CleanAfter.
func (m *TokenManager) Clean(ctx context.Context) (int64, error) {
	cutoff := m.now().Add(-m.opts.CleanAfter)

	res := m.db.WithContext(ctx).Where("refresh_expiration < ?", cutoff).Delete(&models.Token{})
	if res.Error != nil {
		return 0, fmt.Errorf("clean tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (m *TokenManager) cleanQuietly(ctx context.Context) {
	if n, err := m.Clean(ctx); err != nil {
		m.log.Error(ctx, "token sweep failed", "error", err)
	} else if n > 0 {
		m.log.Info(ctx, "expired tokens purged", "count", n)
	}
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
