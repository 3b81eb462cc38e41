package database

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tripsplit-backend/config"
	"tripsplit-backend/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the configured database, migrates it and stores it in DB.
func Connect(cfg *config.Config) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	slog.Info("database connected", "driver", cfg.DBDriver)

	if err := Migrate(db); err != nil {
		return err
	}
	slog.Info("database migrated")

	DB = db
	return nil
}

func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL)
	case "sqlite":
		if dir := filepath.Dir(cfg.DatabaseURL); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	level := logger.Warn
	if cfg.LogLevel == "debug" {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Member{},
		&models.Team{},
		&models.TeamMember{},
		&models.Expense{},
		&models.Settlement{},
		&models.Activity{},
	)
	if err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}
