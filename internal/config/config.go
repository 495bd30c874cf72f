package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const minSecretKeyLength = 32

type Config struct {
	Env        string `toml:"env"`
	ServerAddr string `toml:"server_addr"`

	DatabaseURL string `toml:"database_url"`
	DBHost      string `toml:"db_host"`
	DBPort      string `toml:"db_port"`
	DBUser      string `toml:"db_user"`
	DBPassword  string `toml:"db_password"`
	DBName      string `toml:"db_name"`
	SQLEcho     bool   `toml:"sql_echo"`

	MigrationsDir string `toml:"migrations_dir"`

	SecretKey            string `toml:"secret_key"`
	AccessTokenMinutes   int    `toml:"access_token_minutes"`
	RefreshTokenDays     int    `toml:"refresh_token_days"`
	ResetTokenMinutes    int    `toml:"reset_token_minutes"`
	TokenGraceSeconds    int    `toml:"token_grace_seconds"`
	RefreshTokenInCookie bool   `toml:"refresh_token_in_cookie"`
	RefreshTokenInBody   bool   `toml:"refresh_token_in_body"`
	PasswordResetURL     string `toml:"password_reset_url"`

	PageMaxLimit int `toml:"page_max_limit"`

	// AuthRateLimit is requests per minute per IP on the login and reset
	// endpoints; zero disables the limiter.
	AuthRateLimit int `toml:"auth_rate_limit"`

	MailServer        string `toml:"mail_server"`
	MailPort          int    `toml:"mail_port"`
	MailUsername      string `toml:"mail_username"`
	MailPassword      string `toml:"mail_password"`
	MailDefaultSender string `toml:"mail_default_sender"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	RabbitMQURL string `toml:"rabbitmq_url"`
	MailQueue   string `toml:"mail_queue"`
}

func Default() *Config {
	return &Config{
		Env:                  "development",
		ServerAddr:           ":8080",
		DBHost:               "localhost",
		DBPort:               "5432",
		DBUser:               "postgres",
		DBName:               "microblog",
		MigrationsDir:        "./migrations",
		AccessTokenMinutes:   15,
		RefreshTokenDays:     7,
		ResetTokenMinutes:    15,
		TokenGraceSeconds:    5,
		RefreshTokenInCookie: true,
		RefreshTokenInBody:   false,
		PasswordResetURL:     "http://localhost:3000/reset",
		PageMaxLimit:         25,
		AuthRateLimit:        10,
		MailServer:           "localhost",
		MailPort:             25,
		MailDefaultSender:    "donotreply@microblog.example.com",
		MailQueue:            "microblog.mail",
	}
}

// Load reads .env, then the optional TOML file named by CONFIG_FILE, then
// environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	overrideByEnv(cfg)

	log.Println("✅ Config loaded")
	return cfg, nil
}

func overrideByEnv(cfg *Config) {
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.ServerAddr = getEnv("SERVER_ADDR", cfg.ServerAddr)

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnv("DB_PORT", cfg.DBPort)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.SQLEcho = getEnvAsBool("SQL_ECHO", cfg.SQLEcho)
	cfg.MigrationsDir = getEnv("MIGRATIONS_DIR", cfg.MigrationsDir)

	cfg.SecretKey = getEnv("SECRET_KEY", cfg.SecretKey)
	cfg.AccessTokenMinutes = getEnvAsInt("ACCESS_TOKEN_MINUTES", cfg.AccessTokenMinutes)
	cfg.RefreshTokenDays = getEnvAsInt("REFRESH_TOKEN_DAYS", cfg.RefreshTokenDays)
	cfg.ResetTokenMinutes = getEnvAsInt("RESET_TOKEN_MINUTES", cfg.ResetTokenMinutes)
	cfg.TokenGraceSeconds = getEnvAsInt("TOKEN_GRACE_SECONDS", cfg.TokenGraceSeconds)
	cfg.RefreshTokenInCookie = getEnvAsBool("REFRESH_TOKEN_IN_COOKIE", cfg.RefreshTokenInCookie)
	cfg.RefreshTokenInBody = getEnvAsBool("REFRESH_TOKEN_IN_BODY", cfg.RefreshTokenInBody)
	cfg.PasswordResetURL = getEnv("PASSWORD_RESET_URL", cfg.PasswordResetURL)

	cfg.PageMaxLimit = getEnvAsInt("PAGE_MAX_LIMIT", cfg.PageMaxLimit)
	cfg.AuthRateLimit = getEnvAsInt("AUTH_RATE_LIMIT", cfg.AuthRateLimit)

	cfg.MailServer = getEnv("MAIL_SERVER", cfg.MailServer)
	cfg.MailPort = getEnvAsInt("MAIL_PORT", cfg.MailPort)
	cfg.MailUsername = getEnv("MAIL_USERNAME", cfg.MailUsername)
	cfg.MailPassword = getEnv("MAIL_PASSWORD", cfg.MailPassword)
	cfg.MailDefaultSender = getEnv("MAIL_DEFAULT_SENDER", cfg.MailDefaultSender)

	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvAsInt("REDIS_DB", cfg.RedisDB)

	cfg.RabbitMQURL = getEnv("RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.MailQueue = getEnv("MAIL_QUEUE", cfg.MailQueue)
}

func (c *Config) IsTest() bool {
	return c.Env == "test"
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenDays) * 24 * time.Hour
}

func (c *Config) ResetTTL() time.Duration {
	return time.Duration(c.ResetTokenMinutes) * time.Minute
}

// GraceDelay is how long a superseded token keeps verifying. Always zero in
// test mode.
func (c *Config) GraceDelay() time.Duration {
	if c.IsTest() {
		return 0
	}
	return time.Duration(c.TokenGraceSeconds) * time.Second
}

func (c *Config) MailAddr() string {
	return fmt.Sprintf("%s:%d", c.MailServer, c.MailPort)
}

// Validate reports the first configuration problem that would make the
// server unsafe or unable to start.
func (c *Config) Validate() error {
	if !c.IsTest() {
		if c.SecretKey == "" {
			return fmt.Errorf("SECRET_KEY environment variable is required")
		}
		if len(c.SecretKey) < minSecretKeyLength {
			return fmt.Errorf("SECRET_KEY must be at least %d characters long (current: %d)", minSecretKeyLength, len(c.SecretKey))
		}
	}
	if c.AccessTokenMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_MINUTES must be positive")
	}
	if c.RefreshTokenDays <= 0 {
		return fmt.Errorf("REFRESH_TOKEN_DAYS must be positive")
	}
	if c.ResetTokenMinutes <= 0 {
		return fmt.Errorf("RESET_TOKEN_MINUTES must be positive")
	}
	if c.TokenGraceSeconds < 0 {
		return fmt.Errorf("TOKEN_GRACE_SECONDS must not be negative")
	}
	if c.PageMaxLimit <= 0 {
		return fmt.Errorf("PAGE_MAX_LIMIT must be positive")
	}
	if c.AuthRateLimit < 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT must not be negative")
	}
	if !c.RefreshTokenInCookie && !c.RefreshTokenInBody {
		return fmt.Errorf("refresh token must be delivered in a cookie, the body, or both")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️  %s must be a number, using %d", key, fallback)
		return fallback
	}
	return i
}

func getEnvAsBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "true", "yes", "on", "1":
		return true
	default:
		return false
	}
}
