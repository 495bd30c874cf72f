package auth

import (
	"strings"

	"github.com/Kyz7/microblog/internal/apperr"
	"github.com/Kyz7/microblog/internal/models"
	"github.com/Kyz7/microblog/internal/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
)

const (
	userKey          = "user"
	accessTokenKey   = "access_token"
	basicUsernameKey = "basic_username"
)

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// TokenProtected requires a live bearer access token and stores its owner
// in the request locals.
func TokenProtected(tokens *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		access := bearerToken(c)
		if access == "" {
			return response.FromError(c, apperr.ErrInvalidToken)
		}

		user, err := tokens.VerifyAccess(c.UserContext(), access)
		if err != nil {
			return response.FromError(c, err)
		}

		c.Locals(userKey, user)
		c.Locals(accessTokenKey, access)
		return c.Next()
	}
}

// CurrentUser is only valid behind TokenProtected.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userKey).(*models.User)
	return user
}

// BasicAuth checks username-or-email and password credentials and stores
// the authenticated user like TokenProtected does.
func BasicAuth(svc *Service) fiber.Handler {
	unauthorized := func(c *fiber.Ctx) error {
		return response.FromError(c, apperr.ErrInvalidCredentials)
	}

	return func(c *fiber.Ctx) error {
		check := basicauth.New(basicauth.Config{
			Authorizer: func(login, password string) bool {
				user, err := svc.Authenticate(c.UserContext(), login, password)
				if err != nil {
					return false
				}
				c.Locals(userKey, user)
				return true
			},
			Unauthorized:    unauthorized,
			ContextUsername: basicUsernameKey,
		})
		return check(c)
	}
}
