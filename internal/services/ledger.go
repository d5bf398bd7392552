package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/internal/metrics"
	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/internal/repositories"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/logger"
	"gorm.io/gorm"
)

// DepositObserver is told about every completed deposit inside the
// completing database transaction.
type DepositObserver interface {
	RecordDeposit(ctx context.Context, tx *gorm.DB, userID uint, amount int64) error
}

// OpenRequest describes a new pending transaction.
type OpenRequest struct {
	UserID            uint
	Kind              string
	Amount            int64
	NetAmount         int64 // defaults to Amount
	ChannelID         *uint
	Provider          string
	ExternalReference string
	PayoutDetails     string
	CounterpartyID    *uint
	RelatedTxID       *uint
	Notes             string
}

// Ledger owns every transaction state change and the balance effects tied to it.
type Ledger struct {
	db        *gorm.DB
	allocator *Allocator
	payments  config.PaymentSettings
	observer  DepositObserver
	metrics   *metrics.LedgerMetrics
	now       func() time.Time
}

func NewLedger(db *gorm.DB, allocator *Allocator, payments config.PaymentSettings, m *metrics.LedgerMetrics) *Ledger {
	return &Ledger{
		db:        db,
		allocator: allocator,
		payments:  payments,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetDepositObserver wires the referral engine in after both are constructed.
func (l *Ledger) SetDepositObserver(o DepositObserver) {
	l.observer = o
}

func (l *Ledger) Open(ctx context.Context, req OpenRequest) (*models.Transaction, error) {
	var t *models.Transaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		t, err = l.OpenTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.metrics.ObserveTransition(t.Kind, t.Status, t.Amount)
	logger.Info("Transaction opened",
		"tx_id", t.ID, "user_id", t.UserID, "kind", t.Kind, "amount", t.Amount, "order", orderOf(t))
	return t, nil
}

// OpenTx inserts a pending transaction inside a caller-owned database
// transaction. Withdrawals are debited here; deposits reserve channel
// capacity here when their provider is channel-routed.
func (l *Ledger) OpenTx(ctx context.Context, tx *gorm.DB, req OpenRequest) (*models.Transaction, error) {
	if err := validateOpen(&req); err != nil {
		return nil, err
	}
	txRepo := repositories.NewTransactionRepository(tx)
	balances := repositories.NewBalanceRepository(tx)

	if _, err := balances.GetBalance(ctx, req.UserID); err != nil {
		return nil, err
	}

	t := &models.Transaction{
		UserID:         req.UserID,
		Kind:           req.Kind,
		Amount:         req.Amount,
		NetAmount:      req.NetAmount,
		ChannelID:      req.ChannelID,
		Provider:       req.Provider,
		Status:         models.TxStatusPending,
		CounterpartyID: req.CounterpartyID,
		RelatedTxID:    req.RelatedTxID,
		PayoutDetails:  req.PayoutDetails,
		Notes:          req.Notes,
	}

	if req.ExternalReference != "" {
		inUse, err := txRepo.ReferenceInUse(ctx, req.Provider, req.ExternalReference, 0)
		if err != nil {
			return nil, err
		}
		if inUse {
			return nil, errors.New(errors.ErrCodeDuplicateReference,
				fmt.Sprintf("reference %s already used for %s", req.ExternalReference, req.Provider))
		}
		ref := req.ExternalReference
		t.ExternalReference = &ref
	}

	method, hasMethod := l.payments.Method(req.Provider)
	if hasMethod && (req.Kind == models.TxKindDeposit || req.Kind == models.TxKindWithdraw) {
		order, err := txRepo.NextOrderNumber(ctx, method.OrderPrefix, l.now())
		if err != nil {
			return nil, err
		}
		t.OrderNumber = &order
	}

	if err := txRepo.Create(ctx, t); err != nil {
		return nil, err
	}

	switch req.Kind {
	case models.TxKindDeposit:
		if t.ChannelID == nil && hasMethod && method.ChannelRouted {
			channel, err := l.allocator.ReserveAndCommitTx(ctx, tx, t.Amount, &t.ID)
			if err != nil {
				return nil, err
			}
			if err := txRepo.SetChannel(ctx, t.ID, channel.ID); err != nil {
				return nil, err
			}
			t.ChannelID = &channel.ID
		}
	case models.TxKindWithdraw:
		if _, err := balances.Debit(ctx, t.UserID, t.Amount); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Complete moves a pending transaction to completed and applies its balance
// effect. Completing an already completed transaction returns it unchanged.
func (l *Ledger) Complete(ctx context.Context, txID uint, completedBy string) (*models.Transaction, error) {
	var t *models.Transaction
	var changed bool
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		t, changed, err = l.complete(ctx, tx, txID, completedBy)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		l.observeCompleted(t, completedBy)
	}
	return t, nil
}

func (l *Ledger) observeCompleted(t *models.Transaction, completedBy string) {
	l.metrics.ObserveTransition(t.Kind, t.Status, t.Amount)
	logger.Info("Transaction completed",
		"tx_id", t.ID, "user_id", t.UserID, "kind", t.Kind, "amount", t.Amount, "by", completedBy)
}

// CompleteTx is Complete inside a caller-owned database transaction.
func (l *Ledger) CompleteTx(ctx context.Context, tx *gorm.DB, txID uint, completedBy string) (*models.Transaction, error) {
	t, _, err := l.complete(ctx, tx, txID, completedBy)
	return t, err
}

func (l *Ledger) complete(ctx context.Context, tx *gorm.DB, txID uint, completedBy string) (*models.Transaction, bool, error) {
	txRepo := repositories.NewTransactionRepository(tx)
	balances := repositories.NewBalanceRepository(tx)

	t, err := txRepo.Lock(ctx, txID)
	if err != nil {
		return nil, false, err
	}
	switch t.Status {
	case models.TxStatusCompleted:
		return t, false, nil
	case models.TxStatusRejected:
		return nil, false, errors.New(errors.ErrCodeInvalidTransition, fmt.Sprintf("transaction %d is rejected", txID))
	}

	now := l.now()
	ok, err := txRepo.MarkCompleted(ctx, txID, completedBy, now)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		current, err := txRepo.GetByID(ctx, txID)
		if err != nil {
			return nil, false, err
		}
		if current.Status == models.TxStatusCompleted {
			return current, false, nil
		}
		return nil, false, errors.New(errors.ErrCodeInvalidTransition, fmt.Sprintf("transaction %d is %s", txID, current.Status))
	}

	if t.CreditsOnComplete() {
		if _, err := balances.Credit(ctx, t.UserID, t.NetAmount); err != nil {
			return nil, false, err
		}
	}

	switch t.Kind {
	case models.TxKindDeposit:
		if l.observer != nil {
			if err := l.observer.RecordDeposit(ctx, tx, t.UserID, t.Amount); err != nil {
				return nil, false, err
			}
		}
	case models.TxKindGiftSent:
		if err := l.settleGift(ctx, tx, t, completedBy); err != nil {
			return nil, false, err
		}
	}

	done, err := txRepo.GetByID(ctx, txID)
	if err != nil {
		return nil, false, err
	}
	return done, true, nil
}

// settleGift debits the sender and credits the receiver through a linked
// gift_received transaction.
func (l *Ledger) settleGift(ctx context.Context, tx *gorm.DB, sent *models.Transaction, completedBy string) error {
	if sent.CounterpartyID == nil {
		return errors.New(errors.ErrCodeValidation, "gift has no receiver")
	}
	if _, err := repositories.NewBalanceRepository(tx).Debit(ctx, sent.UserID, sent.Amount); err != nil {
		return err
	}
	sender := sent.UserID
	sentID := sent.ID
	received, err := l.OpenTx(ctx, tx, OpenRequest{
		UserID:         *sent.CounterpartyID,
		Kind:           models.TxKindGiftReceived,
		Amount:         sent.NetAmount,
		CounterpartyID: &sender,
		RelatedTxID:    &sentID,
	})
	if err != nil {
		return err
	}
	if _, _, err := l.complete(ctx, tx, received.ID, completedBy); err != nil {
		return err
	}
	return tx.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", sent.ID).
		Update("related_tx_id", received.ID).Error
}

// Reject moves a pending transaction to rejected and undoes what Open did.
// Rejecting an already rejected transaction returns it unchanged.
func (l *Ledger) Reject(ctx context.Context, txID uint, rejectedBy, reason string) (*models.Transaction, error) {
	var t *models.Transaction
	var changed bool
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		t, changed, err = l.reject(ctx, tx, txID, rejectedBy, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		l.metrics.ObserveTransition(t.Kind, t.Status, t.Amount)
		logger.Info("Transaction rejected",
			"tx_id", t.ID, "user_id", t.UserID, "kind", t.Kind, "amount", t.Amount, "by", rejectedBy, "reason", reason)
	}
	return t, nil
}

func (l *Ledger) reject(ctx context.Context, tx *gorm.DB, txID uint, rejectedBy, reason string) (*models.Transaction, bool, error) {
	txRepo := repositories.NewTransactionRepository(tx)

	t, err := txRepo.Lock(ctx, txID)
	if err != nil {
		return nil, false, err
	}
	switch t.Status {
	case models.TxStatusRejected:
		return t, false, nil
	case models.TxStatusCompleted:
		return nil, false, errors.New(errors.ErrCodeInvalidTransition, fmt.Sprintf("transaction %d is completed", txID))
	}

	ok, err := txRepo.MarkRejected(ctx, txID, rejectedBy, reason, l.now())
	if err != nil {
		return nil, false, err
	}
	if !ok {
		current, err := txRepo.GetByID(ctx, txID)
		if err != nil {
			return nil, false, err
		}
		if current.Status == models.TxStatusRejected {
			return current, false, nil
		}
		return nil, false, errors.New(errors.ErrCodeInvalidTransition, fmt.Sprintf("transaction %d is %s", txID, current.Status))
	}

	switch t.Kind {
	case models.TxKindWithdraw:
		if _, err := repositories.NewBalanceRepository(tx).Credit(ctx, t.UserID, t.Amount); err != nil {
			return nil, false, err
		}
	case models.TxKindDeposit:
		if t.ChannelID != nil {
			if err := l.allocator.ReleaseTx(ctx, tx, *t.ChannelID, t.Amount, &t.ID); err != nil {
				return nil, false, err
			}
		}
	}

	done, err := txRepo.GetByID(ctx, txID)
	if err != nil {
		return nil, false, err
	}
	return done, true, nil
}

// AttachReference records the provider reference a user reported for a
// pending deposit, so an incoming confirmation can find it.
func (l *Ledger) AttachReference(ctx context.Context, txID uint, reference string) error {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return errors.New(errors.ErrCodeValidation, "reference is required")
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := repositories.NewTransactionRepository(tx)
		t, err := txRepo.Lock(ctx, txID)
		if err != nil {
			return err
		}
		inUse, err := txRepo.ReferenceInUse(ctx, t.Provider, reference, t.ID)
		if err != nil {
			return err
		}
		if inUse {
			return errors.New(errors.ErrCodeDuplicateReference, fmt.Sprintf("reference %s already used for %s", reference, t.Provider))
		}
		return txRepo.SetReference(ctx, t.ID, reference)
	})
}

// FindPendingByReference returns the single pending transaction carrying the
// reference, or NOT_FOUND.
func (l *Ledger) FindPendingByReference(ctx context.Context, provider, reference string) (*models.Transaction, error) {
	txs, err := repositories.NewTransactionRepository(l.db).FindPendingByReference(ctx, provider, reference)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "no pending transaction for reference")
	}
	if len(txs) > 1 {
		logger.Warn("Several pending transactions share a reference, using the oldest",
			"provider", provider, "reference", reference, "tx_id", txs[0].ID)
	}
	return &txs[0], nil
}

func (l *Ledger) Get(ctx context.Context, txID uint) (*models.Transaction, error) {
	return repositories.NewTransactionRepository(l.db).GetByID(ctx, txID)
}

func (l *Ledger) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Transaction, error) {
	return repositories.NewTransactionRepository(l.db).GetByOrderNumber(ctx, orderNumber)
}

func (l *Ledger) ListPending(ctx context.Context, kind string, limit int) ([]models.Transaction, error) {
	return repositories.NewTransactionRepository(l.db).ListPending(ctx, kind, limit)
}

func (l *Ledger) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Transaction, error) {
	return repositories.NewTransactionRepository(l.db).ListByUser(ctx, userID, limit)
}

// ExpireStaleDeposits rejects pending deposits older than ttl, returning
// their channel capacity. A zero ttl disables expiry.
func (l *Ledger) ExpireStaleDeposits(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	stale, err := repositories.NewTransactionRepository(l.db).PendingDepositsOlderThan(ctx, l.now().Add(-ttl), 100)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, t := range stale {
		if _, err := l.Reject(ctx, t.ID, ActorExpiry, "expired"); err != nil {
			logger.Error("Failed to expire deposit", "tx_id", t.ID, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}

func validateOpen(req *OpenRequest) error {
	if !models.IsValidKind(req.Kind) {
		return errors.New(errors.ErrCodeValidation, fmt.Sprintf("unknown transaction kind %q", req.Kind))
	}
	if req.Amount <= 0 {
		return errors.New(errors.ErrCodeValidation, "amount must be positive")
	}
	if req.NetAmount == 0 {
		req.NetAmount = req.Amount
	}
	if req.NetAmount <= 0 || req.NetAmount > req.Amount {
		return errors.New(errors.ErrCodeValidation, "net amount must be positive and not exceed amount")
	}
	if req.Kind == models.TxKindGiftSent {
		if req.CounterpartyID == nil || *req.CounterpartyID == 0 {
			return errors.New(errors.ErrCodeValidation, "gift needs a receiver")
		}
		if *req.CounterpartyID == req.UserID {
			return errors.New(errors.ErrCodeValidation, "cannot gift yourself")
		}
	}
	return nil
}

func orderOf(t *models.Transaction) string {
	if t.OrderNumber == nil {
		return ""
	}
	return *t.OrderNumber
}

// Actor labels recorded in completed_by / rejected_by.
const (
	ActorExpiry     = "system:expiry"
	ActorSettlement = "system:settlement"
	ActorGift       = "system:gift"
)

func AdminActor(telegramID int64) string {
	return fmt.Sprintf("admin:%d", telegramID)
}

func AutoActor(provider string) string {
	return "auto:" + provider
}

func UserActor(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// APIActor labels changes made through the intake API by a token's client.
func APIActor(client string) string {
	return "api:" + client
}
