package repositories

import (
	"context"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChannelRepository struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

func (r *ChannelRepository) WithTx(tx *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: tx}
}

// DB exposes the bound handle so services can open transactions on it.
func (r *ChannelRepository) DB() *gorm.DB {
	return r.db
}

func (r *ChannelRepository) Create(ctx context.Context, channel *models.Channel) error {
	if err := r.db.WithContext(ctx).Create(channel).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create channel")
	}
	return nil
}

func (r *ChannelRepository) GetByID(ctx context.Context, id uint) (*models.Channel, error) {
	var channel models.Channel
	result := r.db.WithContext(ctx).First(&channel, id)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "channel not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get channel")
	}
	return &channel, nil
}

// Lock reads a channel with a row lock held until the surrounding transaction ends.
func (r *ChannelRepository) Lock(ctx context.Context, id uint) (*models.Channel, error) {
	var channel models.Channel
	result := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&channel, id)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "channel not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to lock channel")
	}
	return &channel, nil
}

func (r *ChannelRepository) List(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&channels).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list channels")
	}
	return channels, nil
}

// FindCandidate returns the active channel with the lowest fill that still
// has room for amount, or nil when none fits. With lock set the row stays
// locked for the caller's transaction.
func (r *ChannelRepository) FindCandidate(ctx context.Context, amount int64, lock bool) (*models.Channel, error) {
	q := r.db.WithContext(ctx).
		Where("active = ? AND capacity - filled >= ?", true, amount).
		Order("filled ASC").
		Order("id ASC")
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var channels []models.Channel
	if err := q.Limit(1).Find(&channels).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to find channel")
	}
	if len(channels) == 0 {
		return nil, nil
	}
	return &channels[0], nil
}

// MaxHeadroom is the largest amount any active channel could still accept.
func (r *ChannelRepository) MaxHeadroom(ctx context.Context) (int64, error) {
	var headroom int64
	err := r.db.WithContext(ctx).Model(&models.Channel{}).
		Where("active = ?", true).
		Select("COALESCE(MAX(capacity - filled), 0)").
		Scan(&headroom).Error
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to compute headroom")
	}
	return headroom, nil
}

// AddFilled increases filled only if the channel is active and the amount
// still fits. It reports false when the guard rejected the update.
func (r *ChannelRepository) AddFilled(ctx context.Context, id uint, amount int64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Channel{}).
		Where("id = ? AND active = ? AND capacity - filled >= ?", id, true, amount).
		Update("filled", gorm.Expr("filled + ?", amount))
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to commit channel capacity")
	}
	return result.RowsAffected == 1, nil
}

// DeactivateIfFull switches a channel off once filled reaches capacity.
func (r *ChannelRepository) DeactivateIfFull(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.Channel{}).
		Where("id = ? AND filled = capacity", id).
		Updates(map[string]interface{}{"active": false, "deactivated_full": true})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to deactivate channel")
	}
	return nil
}

// SetFilled writes a new fill level; reactivate turns a full-deactivated channel back on.
func (r *ChannelRepository) SetFilled(ctx context.Context, id uint, filled int64, reactivate bool) error {
	updates := map[string]interface{}{"filled": filled}
	if reactivate {
		updates["active"] = true
		updates["deactivated_full"] = false
	}
	result := r.db.WithContext(ctx).Model(&models.Channel{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update channel")
	}
	return nil
}

// SetActive is the operator switch. Disabling clears the full marker so a
// later release cannot bring the channel back on its own.
func (r *ChannelRepository) SetActive(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&models.Channel{}).Where("id = ?", id).
		Updates(map[string]interface{}{"active": active, "deactivated_full": false})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update channel")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "channel not found")
	}
	return nil
}

// ResetAll zeroes every channel and turns all of them back on.
func (r *ChannelRepository) ResetAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Channel{}).
		Where("id > ?", 0).
		Updates(map[string]interface{}{"filled": 0, "active": true, "deactivated_full": false})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to reset channels")
	}
	return result.RowsAffected, nil
}

func (r *ChannelRepository) LogFill(ctx context.Context, fill *models.ChannelFill) error {
	if err := r.db.WithContext(ctx).Create(fill).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to log channel fill")
	}
	return nil
}
