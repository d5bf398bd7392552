package models

import "time"

type GiftCode struct {
	ID        uint      `gorm:"primaryKey"`
	Code      string    `gorm:"type:varchar(16);uniqueIndex;not null"`
	Amount    int64     `gorm:"not null"`
	MaxUses   int       `gorm:"not null"`
	UsedCount int       `gorm:"not null;default:0"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedBy int64
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (g *GiftCode) IsExpired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

func (g *GiftCode) IsExhausted() bool {
	return g.UsedCount >= g.MaxUses
}

func (GiftCode) TableName() string {
	return "gift_codes"
}

type GiftCodeUsage struct {
	ID            uint      `gorm:"primaryKey"`
	GiftCodeID    uint      `gorm:"not null;uniqueIndex:idx_gift_usage"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_gift_usage"`
	TransactionID uint      `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (GiftCodeUsage) TableName() string {
	return "gift_code_usages"
}
