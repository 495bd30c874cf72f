package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/Kyz7/microblog/internal/apperr"
	"github.com/Kyz7/microblog/internal/pagination"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, h fiber.Handler) (int, StandardResponse) {
	app := fiber.New()
	app.Get("/", h)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out StandardResponse
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &out))
	}
	return resp.StatusCode, out
}

func TestFromError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"credentials", apperr.ErrInvalidCredentials, 401, "UNAUTHORIZED"},
		{"token", fmt.Errorf("%w: expired", apperr.ErrInvalidToken), 401, "UNAUTHORIZED"},
		{"bad request", fmt.Errorf("%w: offset", apperr.ErrBadRequest), 400, "BAD_REQUEST"},
		{"not found", fmt.Errorf("user %w", apperr.ErrNotFound), 404, "NOT_FOUND"},
		{"forbidden", apperr.ErrForbidden, 403, "FORBIDDEN"},
		{"conflict", apperr.ErrConflict, 409, "CONFLICT"},
		{"validation", apperr.NewValidationError(map[string]string{"body": "required"}), 422, "VALIDATION_ERROR"},
		{"fiber", fiber.ErrMethodNotAllowed, 405, "METHOD_NOT_ALLOWED"},
		{"internal", errors.New("connection reset"), 500, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, out := render(t, func(c *fiber.Ctx) error { return FromError(c, tc.err) })
			assert.Equal(t, tc.status, status)
			assert.False(t, out.Success)
			require.NotNil(t, out.Error)
			assert.Equal(t, tc.code, out.Error.Code)
			assert.NotEmpty(t, out.Error.Description)
		})
	}
}

func TestTokenFailuresLookAlike(t *testing.T) {
	_, a := render(t, func(c *fiber.Ctx) error {
		return FromError(c, fmt.Errorf("%w: expired", apperr.ErrInvalidToken))
	})
	_, b := render(t, func(c *fiber.Ctx) error {
		return FromError(c, apperr.ErrInvalidToken)
	})
	assert.Equal(t, a, b)
}

func TestAuthFailureMessages(t *testing.T) {
	_, creds := render(t, func(c *fiber.Ctx) error {
		return FromError(c, fmt.Errorf("login: %w", apperr.ErrInvalidCredentials))
	})
	assert.Equal(t, "Invalid username or password", creds.Error.Message)

	_, token := render(t, func(c *fiber.Ctx) error {
		return FromError(c, fmt.Errorf("%w: refresh token replayed", apperr.ErrInvalidToken))
	})
	assert.Equal(t, "Invalid or expired token", token.Error.Message)
}

func TestInternalErrorHidesCause(t *testing.T) {
	_, out := render(t, func(c *fiber.Ctx) error {
		return FromError(c, errors.New("pq: password authentication failed"))
	})
	assert.NotContains(t, out.Error.Message, "pq")
}

func TestPaginated(t *testing.T) {
	page := &pagination.Page[string]{
		Data:       []string{},
		Pagination: pagination.Meta{Limit: 25},
	}

	status, out := render(t, func(c *fiber.Ctx) error { return Paginated(c, page, "") })
	assert.Equal(t, 200, status)
	assert.True(t, out.Success)
	assert.Equal(t, []interface{}{}, out.Data)
	require.NotNil(t, out.Pagination)
	assert.Equal(t, 25, out.Pagination.Limit)
}
