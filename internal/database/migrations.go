package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"
)

type Migration struct {
	ID        uint   `gorm:"primaryKey"`
	Version   string `gorm:"uniqueIndex;size:255"`
	AppliedAt time.Time
}

// RunMigrations applies every *.sql file in dir that has not been recorded
// yet, in file name order. A missing directory is not an error.
func RunMigrations(db *gorm.DB, dir string) ([]string, error) {
	if err := db.AutoMigrate(&Migration{}); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var applied []string
	for _, file := range files {
		filename := filepath.Base(file)

		var count int64
		if err := db.Model(&Migration{}).Where("version = ?", filename).Count(&count).Error; err != nil {
			return applied, err
		}
		if count > 0 {
			continue
		}

		sqlContent, err := os.ReadFile(file)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		log.Printf("▶️  Applying migration: %s", filename)
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(string(sqlContent)).Error; err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", filename, err)
			}
			return tx.Create(&Migration{Version: filename, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return applied, err
		}
		applied = append(applied, filename)
	}

	return applied, nil
}

func GetAppliedMigrations(db *gorm.DB) ([]Migration, error) {
	var migrations []Migration
	if err := db.Order("applied_at DESC").Find(&migrations).Error; err != nil {
		return nil, err
	}
	return migrations, nil
}
