package models

import (
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/pkg/utils"
	"gorm.io/gorm"
)

type User struct {
	ID           uint      `gorm:"primaryKey"`
	TelegramID   int64     `gorm:"uniqueIndex;not null"`
	Username     string    `gorm:"type:varchar(64)"`
	FullName     string    `gorm:"type:varchar(255);not null"`
	Balance      int64     `gorm:"not null;default:0;check:chk_users_balance,balance >= 0"`
	ReferralCode string    `gorm:"uniqueIndex;type:varchar(16)"`
	IsBanned     bool      `gorm:"not null;default:false"`
	LastActivity time.Time `gorm:"autoCreateTime"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// DisplayName prefers the Telegram username for operator messages.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FullName != "" {
		return u.FullName
	}
	return "user"
}

// BeforeCreate assigns the referral code new users share with friends.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ReferralCode == "" {
		u.ReferralCode = utils.GenerateReferralCode()
	}
	return nil
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

// ProviderAccount links a user to their account on the remote platform.
// Deposits and withdrawals are only allowed once it exists.
type ProviderAccount struct {
	ID         uint      `gorm:"primaryKey"`
	UserID     uint      `gorm:"uniqueIndex;not null"`
	ExternalID string    `gorm:"type:varchar(64);not null"`
	Username   string    `gorm:"type:varchar(64)"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (ProviderAccount) TableName() string {
	return "provider_accounts"
}
