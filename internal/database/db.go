package database

import (
	"context"
	"fmt"
	"time"

	"medchain-backend/internal/config"
	"medchain-backend/internal/logging"
	"medchain-backend/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	maxOpenConns    = 50
	maxIdleConns    = 25
	connMaxLifetime = 5 * time.Minute
	connMaxIdleTime = time.Minute
	connectAttempts = 5
)

// Init opens the Postgres pool, installs tracing and migrates the schema.
// Connection failures are retried with capped exponential backoff.
func Init(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var (
		db  *gorm.DB
		err error
	)
	for attempt := 1; ; attempt++ {
		db, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), gormCfg)
		if err == nil {
			break
		}
		if attempt == connectAttempts {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		sleep := time.Second << attempt
		logger.WithFields(logrus.Fields{"attempt": attempt, "retryIn": sleep.String()}).
			WithError(err).Warn("database connection failed")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		logging.LogError(logger, "database", "Init", "install otelgorm plugin", nil, err)
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Batch{},
		&models.HistoryEntry{},
		&models.Distribution{},
		&models.Scan{},
		&models.Sale{},
		&models.AuditLog{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	logger.Info("database connected and migrated")
	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
