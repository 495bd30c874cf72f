package auth

import (
	"time"

	"github.com/Kyz7/microblog/internal/apperr"
	"github.com/Kyz7/microblog/internal/response"
	"github.com/Kyz7/microblog/internal/validation"
	"github.com/gofiber/fiber/v2"
)

const refreshCookieName = "refresh_token"

type HandlerConfig struct {
	RefreshInCookie bool
	RefreshInBody   bool
	SecureCookie    bool
	// CookiePath scopes the refresh cookie to the token endpoints.
	CookiePath string
}

type Handler struct {
	svc      *Service
	tokens   *TokenManager
	validate *validation.Validator
	cfg      HandlerConfig
}

func NewHandler(svc *Service, tokens *TokenManager, validate *validation.Validator, cfg HandlerConfig) *Handler {
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	return &Handler{svc: svc, tokens: tokens, validate: validate, cfg: cfg}
}

func (h *Handler) tokenResponse(c *fiber.Ctx, issued *IssuedToken, message string) error {
	data := fiber.Map{
		"access_token":      issued.AccessToken,
		"access_expiration": issued.AccessExpiration,
	}
	if h.cfg.RefreshInBody {
		data["refresh_token"] = issued.RefreshToken
		data["refresh_expiration"] = issued.RefreshExpiration
	}
	if h.cfg.RefreshInCookie {
		c.Cookie(&fiber.Cookie{
			Name:     refreshCookieName,
			Value:    issued.RefreshToken,
			Path:     h.cfg.CookiePath,
			Expires:  issued.RefreshExpiration,
			HTTPOnly: true,
			Secure:   h.cfg.SecureCookie,
			SameSite: fiber.CookieSameSiteStrictMode,
		})
	}

	return response.Success(c, data, message)
}

func (h *Handler) clearRefreshCookie(c *fiber.Ctx) {
	if !h.cfg.RefreshInCookie {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     h.cfg.CookiePath,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// NewToken runs behind BasicAuth.
func (h *Handler) NewToken(c *fiber.Ctx) error {
	user := CurrentUser(c)
	if user == nil {
		return response.FromError(c, apperr.ErrInvalidCredentials)
	}

	issued, err := h.tokens.Issue(c.UserContext(), user.ID)
	if err != nil {
		return response.FromError(c, err)
	}

	return h.tokenResponse(c, issued, "Login successful")
}

func (h *Handler) RefreshToken(c *fiber.Ctx) error {
	var body struct {
		AccessToken  string `json:"access_token" validate:"required"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := h.validate.ParseBody(c, &body); err != nil {
		return response.FromError(c, err)
	}

	refresh := body.RefreshToken
	if refresh == "" && h.cfg.RefreshInCookie {
		refresh = c.Cookies(refreshCookieName)
	}
	if refresh == "" {
		return response.FromError(c, apperr.ErrInvalidToken)
	}

	issued, err := h.tokens.Refresh(c.UserContext(), body.AccessToken, refresh)
	if err != nil {
		return response.FromError(c, err)
	}

	return h.tokenResponse(c, issued, "Token refreshed successfully")
}

// RevokeToken expires the bearer token. Unknown tokens are accepted so the
// call is idempotent.
func (h *Handler) RevokeToken(c *fiber.Ctx) error {
	access := bearerToken(c)
	if access == "" {
		return response.FromError(c, apperr.ErrInvalidToken)
	}

	if err := h.tokens.Revoke(c.UserContext(), access); err != nil {
		return response.FromError(c, err)
	}

	h.clearRefreshCookie(c)
	return response.NoContent(c)
}

// RevokeAllTokens logs the current user out everywhere.
func (h *Handler) RevokeAllTokens(c *fiber.Ctx) error {
	user := CurrentUser(c)

	if _, err := h.tokens.RevokeAll(c.UserContext(), user.ID); err != nil {
		return response.FromError(c, err)
	}

	h.clearRefreshCookie(c)
	return response.NoContent(c)
}

func (h *Handler) RequestPasswordReset(c *fiber.Ctx) error {
	var body struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := h.validate.ParseBody(c, &body); err != nil {
		return response.FromError(c, err)
	}

	if err := h.svc.RequestPasswordReset(c.UserContext(), body.Email); err != nil {
		return response.FromError(c, err)
	}

	return response.NoContent(c)
}

func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var body struct {
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"new_password" validate:"required"`
	}
	if err := h.validate.ParseBody(c, &body); err != nil {
		return response.FromError(c, err)
	}

	if err := h.svc.ResetPassword(c.UserContext(), body.Token, body.NewPassword); err != nil {
		return response.FromError(c, err)
	}

	return response.NoContent(c)
}
