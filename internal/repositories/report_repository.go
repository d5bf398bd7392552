package repositories

import (
	"context"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"gorm.io/gorm"
)

// ReportRepository runs read-only aggregates over the ledger.
type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

type KindTotal struct {
	Kind   string
	Count  int64
	Amount int64
}

type ChannelTotal struct {
	ChannelID uint
	Count     int64
	Amount    int64
}

// TotalsByKind sums completed transactions in [from, to) per kind.
func (r *ReportRepository) TotalsByKind(ctx context.Context, from, to time.Time) ([]KindTotal, error) {
	var out []KindTotal
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("kind, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("status = ? AND completed_at >= ? AND completed_at < ?", models.TxStatusCompleted, from, to).
		Group("kind").
		Order("kind ASC").
		Scan(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to aggregate by kind")
	}
	return out, nil
}

// TotalsByChannel sums completed deposits in [from, to) per channel.
func (r *ReportRepository) TotalsByChannel(ctx context.Context, from, to time.Time) ([]ChannelTotal, error) {
	var out []ChannelTotal
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("channel_id, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("kind = ? AND status = ? AND channel_id IS NOT NULL AND completed_at >= ? AND completed_at < ?",
			models.TxKindDeposit, models.TxStatusCompleted, from, to).
		Group("channel_id").
		Order("channel_id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to aggregate by channel")
	}
	return out, nil
}

// CompletedBetween loads completed rows in [from, to) for per-day grouping.
func (r *ReportRepository) CompletedBetween(ctx context.Context, from, to time.Time) ([]models.Transaction, error) {
	var out []models.Transaction
	err := r.db.WithContext(ctx).
		Select("id", "kind", "amount", "completed_at").
		Where("status = ? AND completed_at >= ? AND completed_at < ?", models.TxStatusCompleted, from, to).
		Order("completed_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load completed transactions")
	}
	return out, nil
}

func (r *ReportRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("status = ?", models.TxStatusPending).Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count pending transactions")
	}
	return count, nil
}

func (r *ReportRepository) CountNewUsers(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("created_at >= ? AND created_at < ?", from, to).Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count users")
	}
	return count, nil
}
