package models

import "time"

type ReferralLink struct {
	ID                uint  `gorm:"primaryKey"`
	ReferrerID        uint  `gorm:"not null;index"`
	ReferredID        uint  `gorm:"not null;uniqueIndex"`
	CumulativeCharged int64 `gorm:"not null;default:0"`
	// SettledCharged is the part of CumulativeCharged already paid out.
	SettledCharged int64 `gorm:"not null;default:0"`
	IsActive       bool  `gorm:"not null;default:false"`
	// FlatPaid is set once the flat bonus for this link has been paid.
	FlatPaid bool `gorm:"not null;default:false"`
	LastSettledAt  *time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// Unsettled is the activity accrued since the last payout.
func (l *ReferralLink) Unsettled() int64 {
	return l.CumulativeCharged - l.SettledCharged
}

func (ReferralLink) TableName() string {
	return "referral_links"
}

// CommissionSettings is a single row edited by operators.
type CommissionSettings struct {
	ID                          uint  `gorm:"primaryKey"`
	RatePercent                 int64 `gorm:"not null"`
	FixedBonusPerActiveReferral int64 `gorm:"not null"`
	MinActiveReferrals          int   `gorm:"not null"`
	MinChargePerReferral        int64 `gorm:"not null"`
	FlatEligibilityFloor        int64 `gorm:"not null"`
	DistributionPeriodDays      int   `gorm:"not null"`
	NextDistributionAt          time.Time
	LastDistributionAt          *time.Time
	UpdatedBy                   int64
	UpdatedAt                   time.Time `gorm:"autoUpdateTime"`
}

func (CommissionSettings) TableName() string {
	return "commission_settings"
}
