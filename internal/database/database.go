package database

import (
	"fmt"
	"time"

	"github.com/fitcore/backend/internal/config"
	"github.com/fitcore/backend/internal/models"
	"github.com/fitcore/backend/internal/queue"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB initializes the database connection with configuration
func InitDB(dbConfig config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
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

	return db, nil
}

// Migrate runs schema auto-migration for all models. Versioned DDL
// migrations run separately via the migrations package.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// Collaborator surfaces
		&models.Member{},
		&models.Subscription{},

		// Wallets
		&models.Wallet{},
		&models.WalletTransaction{},

		// Referral program
		&models.ReferralCode{},
		&models.Referral{},
		&models.ReferralProgramConfig{},
		&models.ReferralReward{},

		// Background jobs
		&queue.Job{},
	)
}
