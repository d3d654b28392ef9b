package storage

import (
	"fmt"
	"time"

	"chat-purge/internal/config"
	"chat-purge/internal/logger"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var (
	// DB is the global database connection, nil when the database is disabled
	DB *gorm.DB
)

func buildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=UTC",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
	)
}

// Initialize sets up the database connection based on configuration
func Initialize(cfg *config.Config) error {
	if !cfg.Database.Enabled {
		logger.Infof("Database support is disabled, journal and scan history stay in memory")
		return nil
	}

	logger.Infof("Connecting to database: %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)

	var err error
	DB, err = gorm.Open(mysql.Open(buildDSN(cfg.Database)), &gorm.Config{
		Logger: NewCustomGormLogger(cfg.Logger.Level),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Infof("Database connection established successfully")
	return nil
}

// Migrate creates or updates every table the bot uses
func Migrate(db *gorm.DB) error {
	if err := NewJournalRepository(db).MigrateTable(); err != nil {
		return fmt.Errorf("failed to migrate journal table: %w", err)
	}
	if err := NewScanRecordRepository(db).MigrateTable(); err != nil {
		return fmt.Errorf("failed to migrate scan records table: %w", err)
	}
	return nil
}

// GetDB returns the database connection
func GetDB() *gorm.DB {
	return DB
}

// IsEnabled returns true if database support is enabled
func IsEnabled(cfg *config.Config) bool {
	return cfg.Database.Enabled
}
