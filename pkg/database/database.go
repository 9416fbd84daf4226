package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"trade-ledger/pkg/config"
	"trade-ledger/pkg/models"
)

// Open connects to PostgreSQL and configures the connection pool
func Open(cfg *config.Config) (*gorm.DB, error) {
	logMode := logger.Silent
	if cfg.Database.LogSQL {
		logMode = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), &gorm.Config{
		Logger:               logger.Default.LogMode(logMode),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// Connection pool configuration
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpen)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdle)
	sqlDB.SetConnMaxLifetime(cfg.Database.MaxLife)

	if err := pingOrClose(sqlDB); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"host":     cfg.Database.Host,
		"database": cfg.Database.DBName,
	}).Info("Database connected successfully")
	return db, nil
}

// pingOrClose verifies the pool and releases it when the server is unreachable
func pingOrClose(sqlDB *sql.DB) error {
	if err := sqlDB.Ping(); err != nil {
		if cerr := sqlDB.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("Failed to close database pool")
		}
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// AutoMigrate creates or updates the counterparties and trades tables.
// Counterparties go first so the trades foreign key can reference them.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	err := db.AutoMigrate(
		&models.Counterparty{},
		&models.Trade{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

// Close closes the database connection
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

// HealthCheck pings the database with a short timeout
func HealthCheck(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
