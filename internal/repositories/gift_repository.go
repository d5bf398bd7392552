package repositories

import (
	"context"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GiftRepository struct {
	db *gorm.DB
}

func NewGiftRepository(db *gorm.DB) *GiftRepository {
	return &GiftRepository{db: db}
}

func (r *GiftRepository) WithTx(tx *gorm.DB) *GiftRepository {
	return &GiftRepository{db: tx}
}

func (r *GiftRepository) Create(ctx context.Context, code *models.GiftCode) error {
	if err := r.db.WithContext(ctx).Create(code).Error; err != nil {
		if isUniqueViolation(err) {
			return errors.New(errors.ErrCodeAlreadyExists, "gift code already exists")
		}
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create gift code")
	}
	return nil
}

// LockByCode reads a gift code and holds its row lock for the caller's transaction.
func (r *GiftRepository) LockByCode(ctx context.Context, code string) (*models.GiftCode, error) {
	var gift models.GiftCode
	result := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("code = ?", code).First(&gift)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeGiftCodeNotFound, "gift code not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get gift code")
	}
	return &gift, nil
}

func (r *GiftRepository) HasUsed(ctx context.Context, giftID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GiftCodeUsage{}).
		Where("gift_code_id = ? AND user_id = ?", giftID, userID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternalError, "failed to check gift usage")
	}
	return count > 0, nil
}

// ConsumeUse takes one use of a code. It reports false when the code ran out first.
func (r *GiftRepository) ConsumeUse(ctx context.Context, giftID uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.GiftCode{}).
		Where("id = ? AND used_count < max_uses", giftID).
		Update("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to consume gift code")
	}
	return result.RowsAffected == 1, nil
}

func (r *GiftRepository) RecordUsage(ctx context.Context, usage *models.GiftCodeUsage) error {
	if err := r.db.WithContext(ctx).Create(usage).Error; err != nil {
		if isUniqueViolation(err) {
			return errors.New(errors.ErrCodeGiftCodeAlreadyUsed, "gift code already used")
		}
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to record gift usage")
	}
	return nil
}

// ListActive returns codes that are neither expired nor used up.
func (r *GiftRepository) ListActive(ctx context.Context, now time.Time) ([]models.GiftCode, error) {
	var codes []models.GiftCode
	err := r.db.WithContext(ctx).
		Where("expires_at > ? AND used_count < max_uses", now).
		Order("id DESC").Find(&codes).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list gift codes")
	}
	return codes, nil
}
