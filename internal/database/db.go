package database

import (
	"fmt"
	"log"
	"strings"

	"github.com/Kyz7/microblog/internal/config"
	"github.com/Kyz7/microblog/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

// Connect opens Postgres by default. A DATABASE_URL of the form
// "sqlite:<path>" selects an embedded SQLite file instead.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	// TranslateError turns unique violations into gorm.ErrDuplicatedKey
	gormCfg := &gorm.Config{TranslateError: true}
	if cfg.SQLEcho {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(cfg.DatabaseURL, sqlitePrefix):
		dialector = sqlite.Open(strings.TrimPrefix(cfg.DatabaseURL, sqlitePrefix))
	case cfg.DatabaseURL != "":
		dialector = postgres.Open(cfg.DatabaseURL)
	default:
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
		)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}

	if db.Dialector.Name() == "sqlite" {
		// a single writer avoids SQLITE_BUSY and keeps :memory: databases
		// on one connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.Post{},
		&models.Token{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Println("Database migrated successfully!")
	return nil
}
