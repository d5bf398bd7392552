package database

import (
	"fmt"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.GetDSN()

	var logLevel gormlogger.LogLevel
	if cfg.AppEnv == "development" {
		logLevel = gormlogger.Info
	} else {
		logLevel = gormlogger.Error
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Bounded pool. Every balance and channel mutation holds a row lock for the
	// length of its transaction, so connections are returned quickly.
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	logger.Info("Database connected successfully")
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	logger.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.ProviderAccount{},
		&models.Channel{},
		&models.ChannelFill{},
		&models.Transaction{},
		&models.OrderCounter{},
		&models.ReferralLink{},
		&models.CommissionSettings{},
		&models.GiftCode{},
		&models.GiftCodeUsage{},
		&models.ProviderConfirmation{},
	)

	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// SeedCommissionSettings creates the commission settings row on first start.
// An existing row is never overwritten; operators own it after that.
func SeedCommissionSettings(db *gorm.DB, defaults config.ReferralDefaults, now time.Time) error {
	var count int64
	if err := db.Model(&models.CommissionSettings{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count commission settings: %w", err)
	}
	if count > 0 {
		return nil
	}

	logger.Info("Seeding default commission settings...")
	settings := &models.CommissionSettings{
		RatePercent:                 defaults.RatePercent,
		FixedBonusPerActiveReferral: defaults.FixedBonus,
		MinActiveReferrals:          defaults.MinActiveReferrals,
		MinChargePerReferral:        defaults.MinChargePerReferral,
		FlatEligibilityFloor:        defaults.FlatEligibilityFloor,
		DistributionPeriodDays:      defaults.DistributionPeriodDay,
		NextDistributionAt:          now.AddDate(0, 0, defaults.DistributionPeriodDay),
	}
	return db.Create(settings).Error
}
