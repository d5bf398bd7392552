package database

import (
	"testing"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestAutoMigrate(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	for _, table := range []string{"users", "channels", "channel_fills", "transactions", "referral_links", "commission_settings", "gift_codes", "gift_code_usages", "provider_confirmations", "provider_accounts", "order_counters"} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}
}

func TestSeedCommissionSettings(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	defaults := config.ReferralDefaults{
		RatePercent:           10,
		FixedBonus:            2000,
		MinActiveReferrals:    5,
		MinChargePerReferral:  100000,
		FlatEligibilityFloor:  10000,
		DistributionPeriodDay: 30,
	}
	require.NoError(t, SeedCommissionSettings(db, defaults, now))

	var settings models.CommissionSettings
	require.NoError(t, db.First(&settings).Error)
	assert.Equal(t, int64(10), settings.RatePercent)
	assert.Equal(t, int64(2000), settings.FixedBonusPerActiveReferral)
	assert.True(t, settings.NextDistributionAt.Equal(now.AddDate(0, 0, 30)))

	// A second seed never overwrites operator edits.
	require.NoError(t, db.Model(&settings).Update("rate_percent", 15).Error)
	require.NoError(t, SeedCommissionSettings(db, defaults, now))

	var count int64
	db.Model(&models.CommissionSettings{}).Count(&count)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.First(&settings).Error)
	assert.Equal(t, int64(15), settings.RatePercent)
}

func TestChannelCheckConstraint(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	err := db.Create(&models.Channel{Number: "0933000000", Capacity: 100, Filled: 150, Active: true}).Error
	assert.Error(t, err, "filled above capacity must be rejected by the schema")
}
