package repositories

import (
	"context"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser creates a new user
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).Create(user)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to create user")
	}
	return nil
}

// EnsureUser returns the user for a Telegram id, creating it on first contact.
// The bool reports whether the user was created by this call.
func (r *UserRepository) EnsureUser(ctx context.Context, telegramID int64, username, fullName string) (*models.User, bool, error) {
	user, err := r.GetUserByTelegramID(ctx, telegramID)
	if err == nil {
		if user.Username != username && username != "" {
			r.db.WithContext(ctx).Model(user).Update("username", username)
			user.Username = username
		}
		return user, false, nil
	}
	if !errors.Is(err, errors.ErrCodeNotFound) {
		return nil, false, err
	}

	if fullName == "" {
		fullName = username
	}
	user = &models.User{
		TelegramID: telegramID,
		Username:   username,
		FullName:   fullName,
	}
	if err := r.CreateUser(ctx, user); err != nil {
		// Lost a race with another update from the same user
		if existing, getErr := r.GetUserByTelegramID(ctx, telegramID); getErr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}
	return user, true, nil
}

// GetUserByTelegramID retrieves a user by Telegram ID
func (r *UserRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get user")
	}

	return &user, nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, id)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get user")
	}

	return &user, nil
}

// GetUserByReferralCode resolves the code carried in a /start deep link.
func (r *UserRepository) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "referral code not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get user")
	}

	return &user, nil
}

// SetBanned bans or unbans a user
func (r *UserRepository) SetBanned(ctx context.Context, userID uint, banned bool) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("is_banned", banned)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update ban status")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "user not found")
	}
	return nil
}

// UpdateLastActivity updates user's last activity timestamp
func (r *UserRepository) UpdateLastActivity(ctx context.Context, userID uint, now time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).UpdateColumn("last_activity", now)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update last activity")
	}
	return nil
}

// CountUsers returns the total and the number created since the given time.
func (r *UserRepository) CountUsers(ctx context.Context, since time.Time) (total int64, recent int64, err error) {
	if err = r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return 0, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count users")
	}
	if err = r.db.WithContext(ctx).Model(&models.User{}).Where("created_at >= ?", since).Count(&recent).Error; err != nil {
		return 0, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count users")
	}
	return total, recent, nil
}
