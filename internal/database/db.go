package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tenant-console/internal/config"
	"tenant-console/internal/logging"
	"tenant-console/internal/models"
)

const defaultSQLitePath = "./tenant-console.db"

// Open connects to the configured database and runs auto-migration.
// Supported URLs: sqlite://<path>, sqlite://:memory:, postgres://, postgresql://
func Open(cfg config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	databaseURL := cfg.URL
	if databaseURL == "" {
		databaseURL = "sqlite://" + defaultSQLitePath
	}

	var dialector gorm.Dialector
	inMemory := false

	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		dbPath := strings.TrimPrefix(databaseURL, "sqlite://")
		if dbPath == defaultSQLitePath {
			resolved, err := defaultDataPath()
			if err != nil {
				return nil, err
			}
			dbPath = resolved
		}
		inMemory = dbPath == ":memory:"
		dialector = sqlite.Open(dbPath)
	case strings.HasPrefix(databaseURL, "postgresql://"), strings.HasPrefix(databaseURL, "postgres://"):
		dialector = postgres.Open(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database URL format: %s", databaseURL)
	}

	gormLogger := logger.Default.LogMode(logger.Warn)
	if strings.EqualFold(logLevel, "debug") {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if inMemory {
		// every new connection would see a fresh empty database
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}

	logging.Log.Debug("Database initialized", zap.Bool("in_memory", inMemory))
	return db, nil
}

// OpenMemory opens a migrated in-memory SQLite database
func OpenMemory() (*gorm.DB, error) {
	return Open(config.DatabaseConfig{URL: "sqlite://:memory:"}, "")
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ConsoleProfile{},
		&models.ImportRunRecord{},
		&models.ScheduledImport{},
	)
}

// Close closes the underlying connection pool
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func defaultDataPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	appDir := filepath.Join(configDir, "tenant-console")
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create app directory: %w", err)
	}
	return filepath.Join(appDir, "tenant-console.db"), nil
}
