package models

import "time"

// ProviderConfirmation keeps every inbound provider notification, parsed or not.
type ProviderConfirmation struct {
	ID            uint      `gorm:"primaryKey"`
	Provider      string    `gorm:"type:varchar(30);not null;index"`
	Sender        string    `gorm:"type:varchar(64)"`
	RawText       string    `gorm:"type:text;not null"`
	ObservedAt    time.Time `gorm:"index"`
	Parsed        bool      `gorm:"not null;default:false"`
	Pattern       int
	Amount        int64
	Counterparty  string    `gorm:"type:varchar(64)"`
	Reference     string    `gorm:"type:varchar(64);index"`
	Status        string    `gorm:"type:varchar(16);not null;index"`
	TransactionID *uint     `gorm:"index"`
	ResolvedBy    string    `gorm:"type:varchar(64)"`
	Note          string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// Confirmation statuses
const (
	ConfirmationReceived  = "received"
	ConfirmationUnparsed  = "unparsed"
	ConfirmationMatched   = "matched"
	ConfirmationMismatch  = "mismatch"
	ConfirmationUnmatched = "unmatched"
	ConfirmationDuplicate = "duplicate"
)

// NeedsReview reports whether an operator has to look at this notification.
func (c *ProviderConfirmation) NeedsReview() bool {
	switch c.Status {
	case ConfirmationUnparsed, ConfirmationMismatch, ConfirmationUnmatched:
		return true
	}
	return false
}

func (ProviderConfirmation) TableName() string {
	return "provider_confirmations"
}
