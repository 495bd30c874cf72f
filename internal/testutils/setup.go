package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Kyz7/microblog/internal/auth"
	"github.com/Kyz7/microblog/internal/config"
	"github.com/Kyz7/microblog/internal/database"
	"github.com/Kyz7/microblog/internal/logging"
	"github.com/Kyz7/microblog/internal/mail"
	"github.com/Kyz7/microblog/internal/models"
	"github.com/Kyz7/microblog/internal/pagination"
	"github.com/Kyz7/microblog/internal/server"
	"github.com/Kyz7/microblog/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const TestSecretKey = "test_secret_key_minimum_32_characters_long_for_testing_only"

var TestClockStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MailRecorder keeps every message instead of sending it.
type MailRecorder struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (m *MailRecorder) Send(ctx context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MailRecorder) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mail.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

type TestEnv struct {
	App    *fiber.App
	DB     *gorm.DB
	Config *config.Config
	Tokens *auth.TokenManager
	Mail   *MailRecorder
	Clock  *Clock
}

func TestConfig() *config.Config {
	cfg := config.Default()
	cfg.Env = "test"
	cfg.DatabaseURL = "sqlite::memory:"
	cfg.SecretKey = TestSecretKey
	cfg.RefreshTokenInBody = true
	cfg.RefreshTokenInCookie = true
	cfg.AuthRateLimit = 0
	cfg.PasswordResetURL = "http://localhost:3000/reset"
	return cfg
}

func TestDB(t *testing.T) *gorm.DB {
	db, err := database.Connect(TestConfig())
	require.NoError(t, err, "Failed to create test database")

	err = database.Migrate(db)
	require.NoError(t, err, "Failed to migrate test database")

	return db
}

func NewTokenManager(db *gorm.DB, cfg *config.Config, clock *Clock) *auth.TokenManager {
	return auth.NewTokenManager(db, auth.TokenOptions{
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
		GraceDelay: cfg.GraceDelay(),
		Now:        clock.Now,
		Logger:     logging.Discard(),
	})
}

// SetupTestApp builds the full API on an in-memory database with a fixed
// clock. cfg tweaks may be applied before the app is built.
func SetupTestApp(t *testing.T, tweaks ...func(*config.Config)) *TestEnv {
	cfg := TestConfig()
	for _, tweak := range tweaks {
		tweak(cfg)
	}

	db := TestDB(t)
	clock := NewClock(TestClockStart)
	tokens := NewTokenManager(db, cfg, clock)
	recorder := &MailRecorder{}

	app := server.New(server.Deps{
		Config: cfg,
		DB:     db,
		Tokens: tokens,
		Mailer: recorder,
		Logger: logging.Discard(),
		Now:    clock.Now,
	})

	return &TestEnv{
		App:    app,
		DB:     db,
		Config: cfg,
		Tokens: tokens,
		Mail:   recorder,
		Clock:  clock,
	}
}

func CreateTestUser(t *testing.T, db *gorm.DB, username, email, password string) *models.User {
	hashedPassword, err := utils.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
	}

	err = db.Create(user).Error
	require.NoError(t, err, "Failed to create test user")

	return user
}

func GetAuthToken(t *testing.T, env *TestEnv, user *models.User) string {
	issued, err := env.Tokens.Issue(context.Background(), user.ID)
	require.NoError(t, err, "Failed to issue test token")
	return issued.AccessToken
}

func do(app *fiber.App, method, url string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, url, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()

	resp, err := app.Test(req, -1)
	if err != nil {
		return rec, err
	}

	rec.Code = resp.StatusCode
	for k, v := range resp.Header {
		for _, val := range v {
			rec.Header().Add(k, val)
		}
	}

	io.Copy(rec.Body, resp.Body)
	resp.Body.Close()

	return rec, nil
}

func MakeRequest(app *fiber.App, method, url string, body interface{}, token string) (*httptest.ResponseRecorder, error) {
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return do(app, method, url, body, headers)
}

func MakeBasicAuthRequest(app *fiber.App, method, url, username, password string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(method, url, nil)
	req.SetBasicAuth(username, password)
	return do(app, method, url, nil, map[string]string{"Authorization": req.Header.Get("Authorization")})
}

// MakeRequestWithHeaders is MakeRequest with arbitrary extra headers, such
// as Cookie.
func MakeRequestWithHeaders(app *fiber.App, method, url string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, error) {
	return do(app, method, url, body, headers)
}

func ParseResponse(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	if resp.Body.Len() == 0 {
		t.Log("Warning: Response body is empty")
		return
	}

	err := json.Unmarshal(resp.Body.Bytes(), v)
	if err != nil {
		t.Logf("Response body: %s", resp.Body.String())
		assert.NoError(t, err, "Failed to parse response")
	}
}

type StandardResponse struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message"`
	Data       interface{}      `json:"data"`
	Error      *ErrorDetail     `json:"error"`
	Pagination *pagination.Meta `json:"pagination"`
}

type ErrorDetail struct {
	Code        string      `json:"code"`
	Message     string      `json:"message"`
	Description string      `json:"description"`
	Details     interface{} `json:"details"`
}

func AssertSuccess(t *testing.T, resp *httptest.ResponseRecorder) {
	var result StandardResponse
	ParseResponse(t, resp, &result)
	assert.True(t, result.Success, "Expected success response")
	assert.Empty(t, result.Error, "Expected no error")
}

func AssertError(t *testing.T, resp *httptest.ResponseRecorder, expectedCode string) {
	var result StandardResponse
	ParseResponse(t, resp, &result)
	assert.False(t, result.Success, "Expected error response")
	if assert.NotNil(t, result.Error, "Expected error object") {
		assert.Equal(t, expectedCode, result.Error.Code, "Error code mismatch")
	}
}

// DataMap returns the data object of a successful response.
func DataMap(t *testing.T, resp *httptest.ResponseRecorder) map[string]interface{} {
	var result StandardResponse
	ParseResponse(t, resp, &result)
	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok, "Expected object data, got %T: %s", result.Data, resp.Body.String())
	return data
}

// DataList returns the data array and pagination block of a list response.
func DataList(t *testing.T, resp *httptest.ResponseRecorder) ([]map[string]interface{}, *pagination.Meta) {
	var result struct {
		Data       []map[string]interface{} `json:"data"`
		Pagination *pagination.Meta         `json:"pagination"`
	}
	ParseResponse(t, resp, &result)
	return result.Data, result.Pagination
}
