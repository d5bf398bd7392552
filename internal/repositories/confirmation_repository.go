package repositories

import (
	"context"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"gorm.io/gorm"
)

// ConfirmationRepository stores raw provider notifications and their outcome.
type ConfirmationRepository struct {
	db *gorm.DB
}

func NewConfirmationRepository(db *gorm.DB) *ConfirmationRepository {
	return &ConfirmationRepository{db: db}
}

func (r *ConfirmationRepository) WithTx(tx *gorm.DB) *ConfirmationRepository {
	return &ConfirmationRepository{db: tx}
}

func (r *ConfirmationRepository) Create(ctx context.Context, c *models.ProviderConfirmation) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to store confirmation")
	}
	return nil
}

func (r *ConfirmationRepository) GetByID(ctx context.Context, id uint) (*models.ProviderConfirmation, error) {
	var c models.ProviderConfirmation
	result := r.db.WithContext(ctx).First(&c, id)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "confirmation not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get confirmation")
	}
	return &c, nil
}

// Resolve records the outcome of matching a confirmation.
func (r *ConfirmationRepository) Resolve(ctx context.Context, id uint, status string, txID *uint, resolvedBy, note string) error {
	result := r.db.WithContext(ctx).Model(&models.ProviderConfirmation{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         status,
			"transaction_id": txID,
			"resolved_by":    resolvedBy,
			"note":           note,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update confirmation")
	}
	return nil
}

// ListForReview returns notifications an operator still has to look at.
func (r *ConfirmationRepository) ListForReview(ctx context.Context, limit int) ([]models.ProviderConfirmation, error) {
	var out []models.ProviderConfirmation
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.ConfirmationUnparsed, models.ConfirmationUnmatched, models.ConfirmationMismatch}).
		Order("id DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list confirmations")
	}
	return out, nil
}
