package repositories

import (
	"context"
	"fmt"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BalanceRepository is the only code path that changes users.balance.
type BalanceRepository struct {
	db *gorm.DB
}

func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// WithTx binds the repository to a caller-owned transaction so the balance
// change commits or rolls back together with the caller's other writes.
func (r *BalanceRepository) WithTx(tx *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: tx}
}

// Debit removes amount from the user's balance and returns the new balance.
func (r *BalanceRepository) Debit(ctx context.Context, userID uint, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, errors.New(errors.ErrCodeValidation, "debit amount must be positive")
	}

	var newBalance int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		if user.Balance < amount {
			return errors.New(errors.ErrCodeInsufficientFunds, fmt.Sprintf("insufficient balance: have %d, need %d", user.Balance, amount))
		}

		// The balance guard in the WHERE clause keeps the update safe even on
		// stores that ignore row locks.
		result := tx.Model(&models.User{}).
			Where("id = ? AND balance >= ?", userID, amount).
			Update("balance", gorm.Expr("balance - ?", amount))
		if result.Error != nil {
			return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update balance")
		}
		if result.RowsAffected == 0 {
			return errors.New(errors.ErrCodeInsufficientFunds, fmt.Sprintf("insufficient balance for debit of %d", amount))
		}

		newBalance = user.Balance - amount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Credit adds amount to the user's balance and returns the new balance.
func (r *BalanceRepository) Credit(ctx context.Context, userID uint, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, errors.New(errors.ErrCodeValidation, "credit amount must be positive")
	}

	var newBalance int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		result := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("balance", gorm.Expr("balance + ?", amount))
		if result.Error != nil {
			return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update balance")
		}

		newBalance = user.Balance + amount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// GetBalance retrieves the user's current balance
func (r *BalanceRepository) GetBalance(ctx context.Context, userID uint) (int64, error) {
	var user models.User
	result := r.db.WithContext(ctx).Select("balance").First(&user, userID)

	if result.Error == gorm.ErrRecordNotFound {
		return 0, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get balance")
	}

	return user.Balance, nil
}

func lockUser(tx *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.New(errors.ErrCodeNotFound, "user not found")
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get user")
	}
	return &user, nil
}
