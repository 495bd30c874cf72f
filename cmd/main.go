package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kyz7/microblog/internal/auth"
	"github.com/Kyz7/microblog/internal/cache"
	"github.com/Kyz7/microblog/internal/config"
	"github.com/Kyz7/microblog/internal/database"
	"github.com/Kyz7/microblog/internal/logging"
	"github.com/Kyz7/microblog/internal/mail"
	"github.com/Kyz7/microblog/internal/server"
	"github.com/gofiber/fiber/v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("❌ Configuration error: ", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuration error: ", err)
	}
	log.Println("✅ Configuration validated")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New(cfg.Env == "development")

	// ========== DATABASE SETUP ==========
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("❌ Database connection failed: ", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatal("❌ Migration failed: ", err)
	}
	log.Println("✅ Database migrated successfully")

	applied, err := database.RunMigrations(db, cfg.MigrationsDir)
	if err != nil {
		log.Printf("⚠️  SQL migrations failed: %v", err)
		log.Println("⚠️  Feed queries may be slow without the extra indexes")
	} else if len(applied) > 0 {
		log.Printf("✅ Applied SQL migrations: %v", applied)
	}

	// ========== MAIL SETUP ==========
	smtp := mail.NewSMTPSender(cfg.MailServer, cfg.MailPort, cfg.MailUsername, cfg.MailPassword, cfg.MailDefaultSender)

	var mailer mail.Sender
	if cfg.RabbitMQURL != "" {
		conn, err := mail.Dial(ctx, cfg.RabbitMQURL, cfg.MailQueue)
		if err != nil {
			log.Fatal("❌ RabbitMQ connection failed: ", err)
		}
		defer conn.Close()

		worker := mail.NewWorker(conn, smtp, cfg.MailQueue, logger)
		if err := worker.Start(ctx); err != nil {
			log.Fatal("❌ Mail worker failed to start: ", err)
		}
		defer worker.Close()

		mailer = mail.NewQueueSender(conn, cfg.MailQueue)
		log.Printf("📨 Mail queued through RabbitMQ (%s)", cfg.MailQueue)
	} else {
		async := mail.NewAsyncSender(smtp, logger)
		defer async.Close()

		mailer = async
		log.Printf("📨 Mail sent directly through %s", cfg.MailAddr())
	}

	// ========== RATE LIMIT STORAGE ==========
	var limiterStorage fiber.Storage
	if cfg.RedisAddr != "" {
		client, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal("❌ Redis connection failed: ", err)
		}
		storage := cache.NewStorage(client, "limiter:")
		defer storage.Close()

		limiterStorage = storage
		log.Printf("✅ Rate limits shared through Redis at %s", cfg.RedisAddr)
	} else {
		log.Println("💾 Rate limits kept in process memory")
	}

	tokens := auth.NewTokenManager(db, auth.TokenOptions{
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
		GraceDelay: cfg.GraceDelay(),
		Logger:     logger,
	})

	// ========== BACKGROUND JOBS ==========
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := tokens.Clean(ctx)
				if err != nil {
					log.Printf("⚠️  Token cleanup failed: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("🧹 Cleaned up %d expired tokens", n)
				}
			}
		}
	}()

	// ========== START SERVER ==========
	app := server.New(server.Deps{
		Config:         cfg,
		DB:             db,
		Tokens:         tokens,
		Mailer:         mailer,
		Logger:         logger,
		LimiterStorage: limiterStorage,
	})

	go func() {
		<-ctx.Done()
		log.Println("🛑 Shutting down")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.Printf("🚀 Microblog API starting on %s", cfg.ServerAddr)
	log.Printf("🔐 Access tokens: %s, refresh tokens: %s", cfg.AccessTTL(), cfg.RefreshTTL())

	if err := app.Listen(cfg.ServerAddr); err != nil {
		log.Fatal("❌ Failed to start server: ", err)
	}
}
