package auth_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Kyz7/microblog/internal/config"
	"github.com/Kyz7/microblog/internal/testutils"
	"github.com/Kyz7/microblog/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cookie(resp *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range (&http.Response{Header: resp.Header()}).Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestNewTokenHandler(t *testing.T) {
	env := testutils.SetupTestApp(t)
	testutils.CreateTestUser(t, env.DB, "susan", "susan@example.com", "password123")

	t.Run("Success - Username", func(t *testing.T) {
		resp, err := testutils.MakeBasicAuthRequest(env.App, "POST", "/api/tokens", "susan", "password123")
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		data := testutils.DataMap(t, resp)
		assert.NotEmpty(t, data["access_token"])
		assert.NotEmpty(t, data["refresh_token"])
		assert.NotEmpty(t, data["access_expiration"])

		c := cookie(resp, "refresh_token")
		if assert.NotNil(t, c, "refresh cookie expected") {
			assert.Equal(t, data["refresh_token"], c.Value)
			assert.True(t, c.HttpOnly)
			assert.Equal(t, "/api/tokens", c.Path)
			assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
			assert.False(t, c.Secure, "secure cookies only in production")
		}
	})

	t.Run("Success - Email", func(t *testing.T) {
		resp, err := testutils.MakeBasicAuthRequest(env.App, "POST", "/api/tokens", "susan@example.com", "password123")
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)
		testutils.AssertSuccess(t, resp)
	})

	t.Run("Error - Wrong password", func(t *testing.T) {
		resp, err := testutils.MakeBasicAuthRequest(env.App, "POST", "/api/tokens", "susan", "wrong")
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
		testutils.AssertError(t, resp, "UNAUTHORIZED")
	})

	t.Run("Error - Unknown user", func(t *testing.T) {
		resp, err := testutils.MakeBasicAuthRequest(env.App, "POST", "/api/tokens", "nobody", "password123")
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
	})

	t.Run("Error - No credentials", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/api/tokens", nil, "")
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
	})
}

func TestRefreshInCookieOnly(t *testing.T) {
	env := testutils.SetupTestApp(t, func(cfg *config.Config) {
		cfg.RefreshTokenInBody = false
	})
	testutils.CreateTestUser(t, env.DB, "susan", "susan@example.com", "password123")

	resp, err := testutils.MakeBasicAuthRequest(env.App, "POST", "/api/tokens", "susan", "password123")
	require.NoError(t, err)
	require.Equal(t, 200, resp.Code)

	data := testutils.DataMap(t, resp)
	assert.NotContains(t, data, "refresh_token")
	refresh := cookie(resp, "refresh_token")
	require.NotNil(t, refresh)

	resp, err = testutils.MakeRequestWithHeaders(env.App, "PUT", "/api/tokens",
		map[string]interface{}{"access_token": data["access_token"]},
		map[string]string{"Cookie": "refresh_token=" + refresh.Value})
	assert.NoError(t, err)
	assert.Equal(t, 200, resp.Code)

	refreshed := testutils.DataMap(t, resp)
	assert.NotEqual(t, data["access_token"], refreshed["access_token"])
	assert.NotNil(t, cookie(resp, "refresh_token"))
}

func TestRefreshTokenHandler(t *testing.T) {
	env := testutils.SetupTestApp(t)
	testutils.CreateTestUser(t, env.DB, "susan", "susan@example.com", "password123")

	login := func(t *testing.T) map[string]interface{} {
		resp, err := testutils.MakeBasicAuthRequest(env.App, "POST", "/api/tokens", "susan", "password123")
		require.NoError(t, err)
		require.Equal(t, 200, resp.Code)
		return testutils.DataMap(t, resp)
	}

	t.Run("Success - Body", func(t *testing.T) {
		tokens := login(t)

		resp, err := testutils.MakeRequest(env.App, "PUT", "/api/tokens", map[string]interface{}{
			"access_token":  tokens["access_token"],
			"refresh_token": tokens["refresh_token"],
		}, "")
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		fresh := testutils.DataMap(t, resp)
		assert.NotEqual(t, tokens["access_token"], fresh["access_token"])

		resp, err = testutils.MakeRequest(env.App, "GET", "/api/me", nil, fresh["access_token"].(string))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		resp, err = testutils.MakeRequest(env.App, "GET", "/api/me", nil, tokens["access_token"].(string))
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code, "the old access token stops working")
	})

	t.Run("Success - Expired access token", func(t *testing.T) {
		tokens := login(t)
		env.Clock.Advance(env.Config.AccessTTL() + time.Minute)

		resp, err := testutils.MakeRequest(env.App, "PUT", "/api/tokens", map[string]interface{}{
			"access_token":  tokens["access_token"],
			"refresh_token": tokens["refresh_token"],
		}, "")
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)
	})

	t.Run("Error - Replay logs out everywhere", func(t *testing.T) {
		tokens := login(t)
		body := map[string]interface{}{
			"access_token":  tokens["access_token"],
			"refresh_token": tokens["refresh_token"],
		}

		resp, err := testutils.MakeRequest(env.App, "PUT", "/api/tokens", body, "")
		require.NoError(t, err)
		require.Equal(t, 200, resp.Code)
		fresh := testutils.DataMap(t, resp)

		env.Clock.Advance(time.Second)
		resp, err = testutils.MakeRequest(env.App, "PUT", "/api/tokens", body, "")
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)

		resp, err = testutils.MakeRequest(env.App, "GET", "/api/me", nil, fresh["access_token"].(string))
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
	})

	t.Run("Error - Wrong refresh token", func(t *testing.T) {
		tokens := login(t)

		resp, err := testutils.MakeRequest(env.App, "PUT", "/api/tokens", map[string]interface{}{
			"access_token":  tokens["access_token"],
			"refresh_token": "bogus",
		}, "")
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Equal(t, "Invalid or expired token", result.Error.Message)
	})

	t.Run("Error - Missing refresh token", func(t *testing.T) {
		tokens := login(t)

		resp, err := testutils.MakeRequest(env.App, "PUT", "/api/tokens", map[string]interface{}{
			"access_token": tokens["access_token"],
		}, "")
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
	})

	t.Run("Error - Missing access token", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "PUT", "/api/tokens", map[string]interface{}{}, "")
		assert.NoError(t, err)
		assert.Equal(t, 422, resp.Code)
		testutils.AssertError(t, resp, "VALIDATION_ERROR")
	})
}

func TestRevokeTokenHandler(t *testing.T) {
	env := testutils.SetupTestApp(t)
	user := testutils.CreateTestUser(t, env.DB, "susan", "susan@example.com", "password123")

	t.Run("Success - Revoke current token", func(t *testing.T) {
		token := testutils.GetAuthToken(t, env, user)

		resp, err := testutils.MakeRequest(env.App, "DELETE", "/api/tokens", nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 204, resp.Code)

		resp, err = testutils.MakeRequest(env.App, "GET", "/api/me", nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)

		resp, err = testutils.MakeRequest(env.App, "DELETE", "/api/tokens", nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 204, resp.Code, "revoking again is harmless")
	})

	t.Run("Error - No bearer token", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "DELETE", "/api/tokens", nil, "")
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
	})

	t.Run("Success - Revoke all", func(t *testing.T) {
		first := testutils.GetAuthToken(t, env, user)
		second := testutils.GetAuthToken(t, env, user)

		resp, err := testutils.MakeRequest(env.App, "DELETE", "/api/tokens/all", nil, first)
		assert.NoError(t, err)
		assert.Equal(t, 204, resp.Code)

		resp, err = testutils.MakeRequest(env.App, "GET", "/api/me", nil, second)
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
	})

	t.Run("Error - Revoke all needs a token", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "DELETE", "/api/tokens/all", nil, "")
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
	})
}

func resetTokenFromMail(t *testing.T, body string) string {
	t.Helper()
	i := strings.Index(body, "?token=")
	require.NotEqual(t, -1, i, "reset link missing from mail: %s", body)
	rest := body[i+len("?token="):]
	if j := strings.IndexAny(rest, "\r\n "); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

func TestPasswordResetFlow(t *testing.T) {
	env := testutils.SetupTestApp(t)
	susan := testutils.CreateTestUser(t, env.DB, "susan", "susan@example.com", "password123")

	t.Run("Unknown email is accepted silently", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/api/tokens/reset",
			map[string]interface{}{"email": "nobody@example.com"}, "")
		assert.NoError(t, err)
		assert.Equal(t, 204, resp.Code)
		assert.Empty(t, env.Mail.Messages())
	})

	resp, err := testutils.MakeRequest(env.App, "POST", "/api/tokens/reset",
		map[string]interface{}{"email": "susan@example.com"}, "")
	require.NoError(t, err)
	require.Equal(t, 204, resp.Code)

	messages := env.Mail.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "susan@example.com", messages[0].To)
	assert.Equal(t, "Reset Your Password", messages[0].Subject)
	assert.Contains(t, messages[0].Body, env.Config.PasswordResetURL+"?token=")

	token := resetTokenFromMail(t, messages[0].Body)

	t.Run("Error - Reset token is not an access token", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "GET", "/api/me", nil, token)
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
	})

	t.Run("Error - Invalid token", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "PUT", "/api/tokens/reset", map[string]interface{}{
			"token":        "garbage",
			"new_password": "newpass",
		}, "")
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.Code)
		testutils.AssertError(t, resp, "BAD_REQUEST")
	})

	t.Run("Error - Token signed with another key", func(t *testing.T) {
		forged, err := utils.GenerateResetToken([]byte("another-key-that-is-long-enough-000"), "susan@example.com", env.Clock.Now(), time.Hour)
		require.NoError(t, err)

		resp, err := testutils.MakeRequest(env.App, "PUT", "/api/tokens/reset", map[string]interface{}{
			"token":        forged,
			"new_password": "newpass",
		}, "")
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.Code)
	})

	t.Run("Success - Reset password", func(t *testing.T) {
		session := testutils.GetAuthToken(t, env, susan)

		resp, err := testutils.MakeRequest(env.App, "PUT", "/api/tokens/reset", map[string]interface{}{
			"token":        token,
			"new_password": "newpass",
		}, "")
		assert.NoError(t, err)
		assert.Equal(t, 204, resp.Code)

		resp, err = testutils.MakeRequest(env.App, "GET", "/api/me", nil, session)
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code, "existing sessions end with the old password")

		resp, err = testutils.MakeBasicAuthRequest(env.App, "POST", "/api/tokens", "susan", "password123")
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.Code)

		resp, err = testutils.MakeBasicAuthRequest(env.App, "POST", "/api/tokens", "susan", "newpass")
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.Code)
	})

	t.Run("Error - Expired token", func(t *testing.T) {
		env.Clock.Advance(env.Config.ResetTTL() + time.Second)

		resp, err := testutils.MakeRequest(env.App, "PUT", "/api/tokens/reset", map[string]interface{}{
			"token":        token,
			"new_password": "again",
		}, "")
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.Code)
	})
}
