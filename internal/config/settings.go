package config

import (
	"fmt"
	"sort"
)

// Payment method identifiers. Each doubles as the provider name used by the
// confirmation parser.
const (
	MethodSyriatelCash = "syriatel_cash"
	MethodShamCash     = "sham_cash"
)

// MethodSettings holds the operator-facing switches for one payment method.
type MethodSettings struct {
	Name          string
	Enabled       bool
	Visible       bool
	MinAmount     int64
	MaxAmount     int64
	ChannelRouted bool   // deposits go through the code allocator
	OrderPrefix   string // SYC / SHC

	// ReceiveAddress is shown to depositors of methods that are not channel routed.
	ReceiveAddress string
}

type PaymentSettings struct {
	DepositEnabled     bool
	WithdrawEnabled    bool
	WithdrawFeePercent int64
	GiftFeePercent     int64
	Methods            map[string]MethodSettings
}

// ReferralDefaults seeds the commission settings row on first start.
type ReferralDefaults struct {
	RatePercent           int64
	FixedBonus            int64
	MinActiveReferrals    int
	MinChargePerReferral  int64
	FlatEligibilityFloor  int64
	DistributionPeriodDay int
}

func loadPaymentSettings() PaymentSettings {
	return PaymentSettings{
		DepositEnabled:     getEnvBool("DEPOSIT_ENABLED", true),
		WithdrawEnabled:    getEnvBool("WITHDRAW_ENABLED", true),
		WithdrawFeePercent: getEnvInt64("WITHDRAW_FEE_PERCENT", 0),
		GiftFeePercent:     getEnvInt64("GIFT_FEE_PERCENT", 0),
		Methods: map[string]MethodSettings{
			MethodSyriatelCash: {
				Name:          "📱 سيرياتيل كاش",
				Enabled:       getEnvBool("SYRIATEL_CASH_ENABLED", true),
				Visible:       getEnvBool("SYRIATEL_CASH_VISIBLE", true),
				MinAmount:     getEnvInt64("SYRIATEL_CASH_MIN", 1000),
				MaxAmount:     getEnvInt64("SYRIATEL_CASH_MAX", 50000),
				ChannelRouted: true,
				OrderPrefix:   "SYC",
			},
			MethodShamCash: {
				Name:           "💰 شام كاش",
				Enabled:        getEnvBool("SHAM_CASH_ENABLED", true),
				Visible:        getEnvBool("SHAM_CASH_VISIBLE", true),
				MinAmount:      getEnvInt64("SHAM_CASH_MIN", 1000),
				MaxAmount:      getEnvInt64("SHAM_CASH_MAX", 50000),
				OrderPrefix:    "SHC",
				ReceiveAddress: getEnv("SHAM_CASH_ADDRESS", ""),
			},
		},
	}
}

func loadReferralDefaults() ReferralDefaults {
	return ReferralDefaults{
		RatePercent:           getEnvInt64("REFERRAL_RATE_PERCENT", 10),
		FixedBonus:            getEnvInt64("REFERRAL_FIXED_BONUS", 2000),
		MinActiveReferrals:    getEnvInt("REFERRAL_MIN_ACTIVE", 5),
		MinChargePerReferral:  getEnvInt64("REFERRAL_MIN_CHARGE", 100000),
		FlatEligibilityFloor:  getEnvInt64("REFERRAL_FLAT_FLOOR", 10000),
		DistributionPeriodDay: getEnvInt("REFERRAL_PERIOD_DAYS", 30),
	}
}

func (p PaymentSettings) Validate() error {
	if err := validatePercent("WITHDRAW_FEE_PERCENT", p.WithdrawFeePercent); err != nil {
		return err
	}
	if err := validatePercent("GIFT_FEE_PERCENT", p.GiftFeePercent); err != nil {
		return err
	}
	if len(p.Methods) == 0 {
		return fmt.Errorf("at least one payment method must be configured")
	}
	for key, m := range p.Methods {
		if m.MinAmount <= 0 {
			return fmt.Errorf("%s: min amount must be positive", key)
		}
		if m.MaxAmount < m.MinAmount {
			return fmt.Errorf("%s: max amount %d is below min amount %d", key, m.MaxAmount, m.MinAmount)
		}
		if m.OrderPrefix == "" {
			return fmt.Errorf("%s: order prefix is required", key)
		}
	}
	return nil
}

// Method looks a payment method up by its identifier.
func (p PaymentSettings) Method(key string) (MethodSettings, bool) {
	m, ok := p.Methods[key]
	return m, ok
}

// VisibleMethods lists the identifiers shown in the chat menus, sorted for stable keyboards.
func (p PaymentSettings) VisibleMethods() []string {
	var keys []string
	for key, m := range p.Methods {
		if m.Visible {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (r ReferralDefaults) Validate() error {
	if err := validatePercent("REFERRAL_RATE_PERCENT", r.RatePercent); err != nil {
		return err
	}
	if r.FixedBonus < 0 {
		return fmt.Errorf("REFERRAL_FIXED_BONUS must not be negative")
	}
	if r.MinActiveReferrals < 0 {
		return fmt.Errorf("REFERRAL_MIN_ACTIVE must not be negative")
	}
	if r.MinChargePerReferral < 0 || r.FlatEligibilityFloor < 0 {
		return fmt.Errorf("referral thresholds must not be negative")
	}
	if r.DistributionPeriodDay <= 0 {
		return fmt.Errorf("REFERRAL_PERIOD_DAYS must be positive")
	}
	return nil
}

func validatePercent(name string, v int64) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%s must be between 0 and 100", name)
	}
	return nil
}
