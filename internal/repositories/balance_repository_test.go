package repositories

import (
	"context"
	"sync"
	"testing"

	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestBalanceRepository_CreditDebit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBalanceRepository(db)
	ctx := context.Background()
	user := createUser(t, db, 1001, 0)

	balance, err := repo.Credit(ctx, user.ID, 1500)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), balance)

	balance, err = repo.Debit(ctx, user.ID, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)

	stored, err := repo.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stored)
}

func TestBalanceRepository_DebitInsufficientFunds(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBalanceRepository(db)
	ctx := context.Background()
	user := createUser(t, db, 1002, 1000)

	_, err := repo.Debit(ctx, user.ID, 1000)
	require.NoError(t, err)

	_, err = repo.Debit(ctx, user.ID, 1)
	assert.True(t, errors.Is(err, errors.ErrCodeInsufficientFunds), "got %v", err)

	stored, err := repo.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored)
}

func TestBalanceRepository_InvalidAmounts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBalanceRepository(db)
	ctx := context.Background()
	user := createUser(t, db, 1003, 100)

	tests := []struct {
		name string
		call func() error
	}{
		{name: "Zero credit", call: func() error { _, err := repo.Credit(ctx, user.ID, 0); return err }},
		{name: "Negative credit", call: func() error { _, err := repo.Credit(ctx, user.ID, -5); return err }},
		{name: "Zero debit", call: func() error { _, err := repo.Debit(ctx, user.ID, 0); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.True(t, errors.Is(err, errors.ErrCodeValidation), "got %v", err)
		})
	}
}

func TestBalanceRepository_UnknownUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBalanceRepository(db)

	_, err := repo.Credit(context.Background(), 9999, 10)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound), "got %v", err)
}

// The test database allows one open connection, so these debits run one after
// another. This checks the balance arithmetic under load, not the row lock.
func TestBalanceRepository_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBalanceRepository(db)
	ctx := context.Background()
	user := createUser(t, db, 1004, 1000)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Debit(ctx, user.ID, 150); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, succeeded)
	stored, err := repo.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored)
}

// A store that ignores FOR UPDATE lets another writer change the balance
// after the locking read. The guarded update must still refuse the debit.
func TestBalanceRepository_DebitGuardAfterStaleRead(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBalanceRepository(db)
	ctx := context.Background()
	user := createUser(t, db, 1005, 1000)

	armed := false
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:concurrent_writer", func(tx *gorm.DB) {
		if !armed || tx.Statement.Table != "users" {
			return
		}
		armed = false
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"UPDATE users SET balance = ? WHERE id = ?", 100, user.ID)
		require.NoError(t, err)
	}))

	armed = true
	_, err := repo.Debit(ctx, user.ID, 150)
	assert.True(t, errors.Is(err, errors.ErrCodeInsufficientFunds), "got %v", err)

	stored, err := repo.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored)
}
