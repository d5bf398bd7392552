package models

import (
	"time"
)

type Transaction struct {
	ID                uint       `gorm:"primaryKey"`
	OrderNumber       *string    `gorm:"type:varchar(20);uniqueIndex"`
	UserID            uint       `gorm:"not null;index"`
	Kind              string     `gorm:"type:varchar(20);not null;index"`
	Amount            int64      `gorm:"not null;check:chk_transactions_amount,amount > 0"`
	NetAmount         int64      `gorm:"not null"`
	ChannelID         *uint      `gorm:"index"`
	Provider          string     `gorm:"type:varchar(30);index:idx_tx_provider_ref"`
	ExternalReference *string    `gorm:"type:varchar(64);index:idx_tx_provider_ref"`
	Status            string     `gorm:"type:varchar(12);not null;index"`
	CounterpartyID    *uint      `gorm:"index"`
	RelatedTxID       *uint      `gorm:"index"`
	PayoutDetails     string     `gorm:"type:text"` // encrypted at rest
	Notes             string     `gorm:"type:text"`
	CompletedBy       string     `gorm:"type:varchar(64)"`
	RejectedBy        string     `gorm:"type:varchar(64)"`
	RejectReason      string     `gorm:"type:text"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime"`
	CompletedAt       *time.Time `gorm:"index"`
	RejectedAt        *time.Time
}

// Transaction kinds
const (
	TxKindDeposit        = "deposit"
	TxKindWithdraw       = "withdraw"
	TxKindGiftSent       = "gift_sent"
	TxKindGiftReceived   = "gift_received"
	TxKindReferralPayout = "referral_payout"
	TxKindBonus          = "bonus"
)

// Transaction statuses
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusRejected  = "rejected"
)

var validKinds = map[string]bool{
	TxKindDeposit:        true,
	TxKindWithdraw:       true,
	TxKindGiftSent:       true,
	TxKindGiftReceived:   true,
	TxKindReferralPayout: true,
	TxKindBonus:          true,
}

func IsValidKind(kind string) bool {
	return validKinds[kind]
}

func (t *Transaction) IsTerminal() bool {
	return t.Status == TxStatusCompleted || t.Status == TxStatusRejected
}

// CanTransition reports whether pending -> to is legal. Terminal states never move.
func (t *Transaction) CanTransition(to string) bool {
	if t.Status != TxStatusPending {
		return false
	}
	return to == TxStatusCompleted || to == TxStatusRejected
}

// CreditsOnComplete lists the kinds whose completion adds net_amount to the owner.
func (t *Transaction) CreditsOnComplete() bool {
	switch t.Kind {
	case TxKindDeposit, TxKindGiftReceived, TxKindBonus, TxKindReferralPayout:
		return true
	}
	return false
}

func (t *Transaction) Reference() string {
	if t.ExternalReference == nil {
		return ""
	}
	return *t.ExternalReference
}

func (Transaction) TableName() string {
	return "transactions"
}

// OrderCounter backs the per-prefix monthly order numbers (SYC24070001).
type OrderCounter struct {
	Key   string `gorm:"column:counter_key;primaryKey;type:varchar(16)"`
	Value int64  `gorm:"not null;default:0"`
}

func (OrderCounter) TableName() string {
	return "order_counters"
}
