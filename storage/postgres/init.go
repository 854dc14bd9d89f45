package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the postgres connection and migrates the schema.
// dsn format: "host=localhost user=postgres password=... dbname=... port=5432 sslmode=disable"
func InitDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect db failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&contractRow{},
		&auditEventRow{},
		&fieldRecordRow{},
		&extractionBatchRow{},
		&documentRow{},
		&notificationTaskRow{},
		&grantRow{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema failed: %w", err)
	}

	slog.Info("postgres connected", "max_open_conns", 100)
	return db, nil
}
