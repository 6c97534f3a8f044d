package database

import (
	"fmt"
	"time"

	"github.com/starbank/backend/internal/config"
	"github.com/starbank/backend/internal/database/migrations"
	"github.com/starbank/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB initializes the database connection with configuration
func InitDB(dbConfig config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(dbConfig.URL), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdle)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := migrations.RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Migrate auto-migrates all models, picking up columns added after the
// initial versioned schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// Ledger
		&models.Wallet{},
		&models.LedgerEntry{},

		// Cooldowns
		&models.ActionRecord{},

		// Rewards
		&models.Referral{},
		&models.Task{},
		&models.TaskCompletion{},
		&models.Payment{},

		// Vouchers
		&models.RedeemCode{},
		&models.Redemption{},

		// Withdrawals
		&models.WithdrawalRequest{},
	)
}
