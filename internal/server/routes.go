package server

import (
	"time"

	"github.com/Kyz7/microblog/internal/auth"
	"github.com/Kyz7/microblog/internal/config"
	"github.com/Kyz7/microblog/internal/post"
	"github.com/Kyz7/microblog/internal/response"
	"github.com/Kyz7/microblog/internal/user"
	"github.com/Kyz7/microblog/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func authLimiter(cfg *config.Config, storage fiber.Storage) fiber.Handler {
	if cfg.AuthRateLimit <= 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	return limiter.New(limiter.Config{
		Max:        cfg.AuthRateLimit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return response.Error(c, fiber.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many requests, try again later", nil)
		},
		Storage: storage,
	})
}

func SetupRoutes(app *fiber.App, d Deps) {
	cfg := d.Config
	validate := validation.New()

	authService := auth.NewService(d.DB, d.Tokens, d.Mailer, auth.ServiceConfig{
		ResetKey: []byte(cfg.SecretKey),
		ResetTTL: cfg.ResetTTL(),
		ResetURL: cfg.PasswordResetURL,
		Now:      d.Now,
		Logger:   d.Logger,
	})
	authHandler := auth.NewHandler(authService, d.Tokens, validate, auth.HandlerConfig{
		RefreshInCookie: cfg.RefreshTokenInCookie,
		RefreshInBody:   cfg.RefreshTokenInBody,
		SecureCookie:    cfg.Env == "production",
		CookiePath:      "/api/tokens",
	})

	userService := user.NewService(d.DB, d.Now)
	userHandler := user.NewHandler(userService, validate, cfg.PageMaxLimit)

	postService := post.NewService(d.DB, d.Now)
	postHandler := post.NewHandler(postService, userService, validate, cfg.PageMaxLimit)

	protected := auth.TokenProtected(d.Tokens)
	limit := authLimiter(cfg, d.LimiterStorage)

	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "Microblog API is running",
		})
	})

	// ==========================================
	// TOKENS
	// ==========================================
	api.Post("/tokens", limit, auth.BasicAuth(authService), authHandler.NewToken)
	api.Put("/tokens", authHandler.RefreshToken)
	api.Delete("/tokens", authHandler.RevokeToken)
	api.Delete("/tokens/all", protected, authHandler.RevokeAllTokens)
	api.Post("/tokens/reset", limit, authHandler.RequestPasswordReset)
	api.Put("/tokens/reset", limit, authHandler.ResetPassword)

	// ==========================================
	// USERS
	// ==========================================
	// registered ahead of the protected group so it stays public
	api.Post("/users", userHandler.Register)

	users := api.Group("/users", protected)
	users.Get("/", userHandler.List)
	users.Get("/:id", userHandler.Get)
	users.Get("/:id/following", userHandler.Following)
	users.Get("/:id/followers", userHandler.Followers)
	users.Get("/:id/posts", postHandler.UserPosts)

	me := api.Group("/me", protected)
	me.Get("/", userHandler.Me)
	me.Put("/", userHandler.UpdateMe)
	me.Get("/following", userHandler.MyFollowing)
	me.Get("/followers", userHandler.MyFollowers)
	me.Get("/following/:id", userHandler.IsFollowing)
	me.Post("/following/:id", userHandler.Follow)
	me.Delete("/following/:id", userHandler.Unfollow)

	// ==========================================
	// POSTS
	// ==========================================
	posts := api.Group("/posts", protected)
	posts.Post("/", postHandler.Create)
	posts.Get("/", postHandler.All)
	posts.Get("/:id", postHandler.Get)
	posts.Put("/:id", postHandler.Update)
	posts.Delete("/:id", postHandler.Delete)

	api.Get("/feed", protected, postHandler.Feed)
}
