package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestTransactionRepository_NextOrderNumber(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	july := time.Date(2024, time.July, 3, 10, 0, 0, 0, time.UTC)
	first, err := repo.NextOrderNumber(ctx, "SYC", july)
	require.NoError(t, err)
	second, err := repo.NextOrderNumber(ctx, "SYC", july)
	require.NoError(t, err)
	other, err := repo.NextOrderNumber(ctx, "SHC", july)
	require.NoError(t, err)
	august, err := repo.NextOrderNumber(ctx, "SYC", july.AddDate(0, 1, 0))
	require.NoError(t, err)

	assert.Equal(t, "SYC24070001", first)
	assert.Equal(t, "SYC24070002", second)
	assert.Equal(t, "SHC24070001", other)
	assert.Equal(t, "SYC24080001", august)
}

func TestTransactionRepository_MarkCompletedOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()
	user := createUser(t, db, 1, 0)

	tx := &models.Transaction{UserID: user.ID, Kind: models.TxKindDeposit, Amount: 500, NetAmount: 500, Status: models.TxStatusPending}
	require.NoError(t, repo.Create(ctx, tx))

	now := time.Now().UTC()
	ok, err := repo.MarkCompleted(ctx, tx.ID, "admin:1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkCompleted(ctx, tx.ID, "admin:2", now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkRejected(ctx, tx.ID, "admin:2", "late", now)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusCompleted, got.Status)
	assert.Equal(t, "admin:1", got.CompletedBy)
}

func TestTransactionRepository_ReferenceLookups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()
	user := createUser(t, db, 1, 0)

	pending := &models.Transaction{UserID: user.ID, Kind: models.TxKindDeposit, Amount: 500, NetAmount: 500,
		Status: models.TxStatusPending, Provider: "sham_cash", ExternalReference: strPtr("REF1")}
	rejected := &models.Transaction{UserID: user.ID, Kind: models.TxKindDeposit, Amount: 500, NetAmount: 500,
		Status: models.TxStatusRejected, Provider: "sham_cash", ExternalReference: strPtr("REF2")}
	require.NoError(t, repo.Create(ctx, pending))
	require.NoError(t, repo.Create(ctx, rejected))

	found, err := repo.FindPendingByReference(ctx, "sham_cash", "REF1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, pending.ID, found[0].ID)

	found, err = repo.FindPendingByReference(ctx, "syriatel_cash", "REF1")
	require.NoError(t, err)
	assert.Empty(t, found)

	inUse, err := repo.ReferenceInUse(ctx, "sham_cash", "REF1", 0)
	require.NoError(t, err)
	assert.True(t, inUse)

	inUse, err = repo.ReferenceInUse(ctx, "sham_cash", "REF2", 0)
	require.NoError(t, err)
	assert.False(t, inUse, "rejected rows free their reference")
}
