package services

import (
	"context"
	"testing"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/internal/database"
	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/internal/repositories"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testPayoutKey = []byte("12345678901234567890123456789012")

type fixture struct {
	db        *gorm.DB
	clock     time.Time
	allocator *Allocator
	ledger    *Ledger
	referrals *ReferralService
	matcher   *Matcher
	gifts     *GiftService
	payments  *PaymentService
	reports   *ReportService
}

func testPaymentSettings() config.PaymentSettings {
	return config.PaymentSettings{
		DepositEnabled:  true,
		WithdrawEnabled: true,
		Methods: map[string]config.MethodSettings{
			config.MethodSyriatelCash: {
				Name: "Syriatel", Enabled: true, Visible: true,
				MinAmount: 1000, MaxAmount: 50000, ChannelRouted: true, OrderPrefix: "SYC",
			},
			config.MethodShamCash: {
				Name: "Sham", Enabled: true, Visible: true,
				MinAmount: 1000, MaxAmount: 50000, OrderPrefix: "SHC",
			},
		},
	}
}

func testReferralDefaults() config.ReferralDefaults {
	return config.ReferralDefaults{
		RatePercent:           10,
		FixedBonus:            2000,
		MinActiveReferrals:    5,
		MinChargePerReferral:  100000,
		FlatEligibilityFloor:  10000,
		DistributionPeriodDay: 30,
	}
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, testPaymentSettings())
}

func newFixtureWith(t *testing.T, payments config.PaymentSettings) *fixture {
	t.Helper()
	f := &fixture{clock: time.Date(2024, time.July, 3, 12, 0, 0, 0, time.UTC)}
	now := func() time.Time { return f.clock }

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{NowFunc: now})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, database.SeedCommissionSettings(db, testReferralDefaults(), f.clock))

	f.db = db
	f.allocator = NewAllocator(db, nil)
	f.ledger = NewLedger(db, f.allocator, payments, nil)
	f.ledger.now = now
	f.referrals = NewReferralService(db, f.ledger, testReferralDefaults(), nil)
	f.referrals.now = now
	f.ledger.SetDepositObserver(f.referrals)
	f.matcher = NewMatcher(db, NewParser(), f.ledger, nil)
	f.matcher.now = now
	f.gifts = NewGiftService(db, f.ledger, payments)
	f.gifts.now = now
	f.payments = NewPaymentService(f.ledger, NewAccountDirectory(db), payments, testPayoutKey)
	f.reports = NewReportService(db, f.allocator)
	return f
}

func (f *fixture) user(t *testing.T, telegramID, balance int64) *models.User {
	t.Helper()
	u := &models.User{TelegramID: telegramID, FullName: "Test User", Balance: balance}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func (f *fixture) channel(t *testing.T, number string, capacity, filled int64) *models.Channel {
	t.Helper()
	ch := &models.Channel{Number: number, Capacity: capacity, Filled: filled, Active: true}
	require.NoError(t, f.db.Create(ch).Error)
	return ch
}

func (f *fixture) account(t *testing.T, userID uint) {
	t.Helper()
	require.NoError(t, repositories.NewAccountRepository(f.db).Link(context.Background(), userID, "ext", "player"))
}

func (f *fixture) balance(t *testing.T, userID uint) int64 {
	t.Helper()
	b, err := repositories.NewBalanceRepository(f.db).GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (f *fixture) reloadChannel(t *testing.T, id uint) *models.Channel {
	t.Helper()
	var ch models.Channel
	require.NoError(t, f.db.First(&ch, id).Error)
	return &ch
}

func (f *fixture) countTransactions(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Count(&n).Error)
	return n
}
