package models

import "time"

// Channel is a capacity-limited payment code deposits are routed to.
type Channel struct {
	ID       uint   `gorm:"primaryKey"`
	Number   string `gorm:"type:varchar(32);uniqueIndex;not null"`
	Capacity int64  `gorm:"not null;check:chk_channels_capacity,capacity > 0"`
	Filled   int64  `gorm:"not null;default:0;check:chk_channels_filled,filled >= 0 AND filled <= capacity"`
	Active   bool   `gorm:"not null;index"`
	// DeactivatedFull is set when the channel switched itself off on reaching
	// capacity, as opposed to an operator disabling it.
	DeactivatedFull bool      `gorm:"not null;default:false"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (c *Channel) Headroom() int64 {
	return c.Capacity - c.Filled
}

// FillPercent is used by the admin capacity summary.
func (c *Channel) FillPercent() float64 {
	if c.Capacity == 0 {
		return 0
	}
	return float64(c.Filled) / float64(c.Capacity) * 100
}

func (Channel) TableName() string {
	return "channels"
}

// ChannelFill is the audit trail of every commit/release against a channel.
type ChannelFill struct {
	ID            uint      `gorm:"primaryKey"`
	ChannelID     uint      `gorm:"not null;index"`
	TransactionID *uint     `gorm:"index"`
	Amount        int64     `gorm:"not null"` // negative for releases
	FilledAfter   int64     `gorm:"not null"`
	Reason        string    `gorm:"type:varchar(32);not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index"`
}

const (
	FillReasonCommit  = "commit"
	FillReasonRelease = "release"
	FillReasonReset   = "reset"
)

func (ChannelFill) TableName() string {
	return "channel_fills"
}
