package repositories

import (
	"context"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepository stores which users already have a remote platform account.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Exists is the existence check performed before deposits and withdrawals.
func (r *AccountRepository) Exists(ctx context.Context, userID uint) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.ProviderAccount{}).Where("user_id = ?", userID).Count(&count)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to check account")
	}
	return count > 0, nil
}

// Link records (or replaces) the external account id for a user.
func (r *AccountRepository) Link(ctx context.Context, userID uint, externalID, username string) error {
	account := &models.ProviderAccount{UserID: userID, ExternalID: externalID, Username: username}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"external_id", "username"}),
	}).Create(account)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to link account")
	}
	return nil
}

func (r *AccountRepository) Get(ctx context.Context, userID uint) (*models.ProviderAccount, error) {
	var account models.ProviderAccount
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "account not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get account")
	}
	return &account, nil
}
