package server

import (
	"time"

	"github.com/Kyz7/microblog/internal/auth"
	"github.com/Kyz7/microblog/internal/config"
	"github.com/Kyz7/microblog/internal/logging"
	"github.com/Kyz7/microblog/internal/mail"
	"github.com/Kyz7/microblog/internal/response"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

// Deps are the collaborators shared by every handler.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Tokens *auth.TokenManager
	Mailer mail.Sender
	Logger logging.Logger
	// LimiterStorage backs the auth rate limiter; nil keeps counters in
	// process memory.
	LimiterStorage fiber.Storage
	Now            func() time.Time
}

func New(d Deps) *fiber.App {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}

	app := fiber.New(fiber.Config{
		AppName:   "microblog",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return response.FromError(c, err)
		},
	})

	app.Use(recover.New())
	if !d.Config.IsTest() {
		app.Use(logger.New())
	}

	SetupRoutes(app, d)

	return app
}
