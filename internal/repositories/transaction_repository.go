package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) WithTx(tx *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: tx}
}

func (r *TransactionRepository) Create(ctx context.Context, t *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create transaction")
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uint) (*models.Transaction, error) {
	var t models.Transaction
	result := r.db.WithContext(ctx).First(&t, id)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "transaction not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get transaction")
	}
	return &t, nil
}

func (r *TransactionRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Transaction, error) {
	var t models.Transaction
	result := r.db.WithContext(ctx).Where("order_number = ?", orderNumber).First(&t)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "transaction not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get transaction")
	}
	return &t, nil
}

// Lock reads a transaction row and holds its lock for the caller's transaction.
func (r *TransactionRepository) Lock(ctx context.Context, id uint) (*models.Transaction, error) {
	var t models.Transaction
	result := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, id)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "transaction not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to lock transaction")
	}
	return &t, nil
}

// MarkCompleted moves a pending row to completed. It reports false when the
// row was no longer pending.
func (r *TransactionRepository) MarkCompleted(ctx context.Context, id uint, actor string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TxStatusPending).
		Updates(map[string]interface{}{
			"status":       models.TxStatusCompleted,
			"completed_by": actor,
			"completed_at": at,
		})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to complete transaction")
	}
	return result.RowsAffected == 1, nil
}

// MarkRejected moves a pending row to rejected. It reports false when the
// row was no longer pending.
func (r *TransactionRepository) MarkRejected(ctx context.Context, id uint, actor, reason string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TxStatusPending).
		Updates(map[string]interface{}{
			"status":        models.TxStatusRejected,
			"rejected_by":   actor,
			"reject_reason": reason,
			"rejected_at":   at,
		})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to reject transaction")
	}
	return result.RowsAffected == 1, nil
}

func (r *TransactionRepository) SetChannel(ctx context.Context, id, channelID uint) error {
	result := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", id).Update("channel_id", channelID)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to set channel")
	}
	return nil
}

func (r *TransactionRepository) SetReference(ctx context.Context, id uint, reference string) error {
	result := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TxStatusPending).
		Update("external_reference", reference)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to set reference")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeInvalidTransition, "reference can only be attached to a pending transaction")
	}
	return nil
}

// ReferenceInUse reports whether a non-rejected transaction already carries
// the reference for this provider.
func (r *TransactionRepository) ReferenceInUse(ctx context.Context, provider, reference string, excludeID uint) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("provider = ? AND external_reference = ? AND status <> ? AND id <> ?",
			provider, reference, models.TxStatusRejected, excludeID).
		Count(&count)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to check reference")
	}
	return count > 0, nil
}

// FindPendingByReference returns pending rows for provider+reference, oldest
// first. Callers decide what more than one row means.
func (r *TransactionRepository) FindPendingByReference(ctx context.Context, provider, reference string) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Where("provider = ? AND external_reference = ? AND status = ?", provider, reference, models.TxStatusPending).
		Order("id ASC").
		Limit(2).
		Find(&txs).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to find pending transaction")
	}
	return txs, nil
}

// FindCompletedByReference is used to flag repeated notifications.
func (r *TransactionRepository) FindCompletedByReference(ctx context.Context, provider, reference string) (*models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Where("provider = ? AND external_reference = ? AND status = ?", provider, reference, models.TxStatusCompleted).
		Limit(1).
		Find(&txs).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to find transaction")
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

// ListPending lists pending rows of the given kind (all kinds when empty), oldest first.
func (r *TransactionRepository) ListPending(ctx context.Context, kind string, limit int) ([]models.Transaction, error) {
	q := r.db.WithContext(ctx).Where("status = ?", models.TxStatusPending)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var txs []models.Transaction
	if err := q.Order("id ASC").Limit(limit).Find(&txs).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list pending transactions")
	}
	return txs, nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("id DESC").Limit(limit).Find(&txs).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list transactions")
	}
	return txs, nil
}

// PendingDepositsOlderThan feeds the expiry sweep.
func (r *TransactionRepository) PendingDepositsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Where("kind = ? AND status = ? AND created_at < ?", models.TxKindDeposit, models.TxStatusPending, cutoff).
		Order("id ASC").Limit(limit).Find(&txs).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list stale deposits")
	}
	return txs, nil
}

// NextOrderNumber hands out PREFIXyymmNNNN, with the counter restarting each month.
func (r *TransactionRepository) NextOrderNumber(ctx context.Context, prefix string, now time.Time) (string, error) {
	key := prefix + now.Format("0601")
	var value int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.OrderCounter{Key: key}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.OrderCounter{}).Where("counter_key = ?", key).
			Update("value", gorm.Expr("value + 1")).Error; err != nil {
			return err
		}
		var counter models.OrderCounter
		if err := tx.Where("counter_key = ?", key).First(&counter).Error; err != nil {
			return err
		}
		value = counter.Value
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternalError, "failed to allocate order number")
	}
	return fmt.Sprintf("%s%04d", key, value), nil
}
