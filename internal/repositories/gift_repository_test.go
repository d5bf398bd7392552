package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGiftRepository_ConsumeUse(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGiftRepository(db)
	ctx := context.Background()

	code := &models.GiftCode{Code: "ABC1234", Amount: 500, MaxUses: 1, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, code))

	ok, err := repo.ConsumeUse(ctx, code.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ConsumeUse(ctx, code.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.LockByCode(ctx, "MISSING")
	assert.True(t, errors.Is(err, errors.ErrCodeGiftCodeNotFound))
}

func TestGiftRepository_RecordUsageOncePerUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGiftRepository(db)
	ctx := context.Background()
	user := createUser(t, db, 1, 0)

	code := &models.GiftCode{Code: "ABC1234", Amount: 500, MaxUses: 5, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, code))

	require.NoError(t, repo.RecordUsage(ctx, &models.GiftCodeUsage{GiftCodeID: code.ID, UserID: user.ID, TransactionID: 1}))
	used, err := repo.HasUsed(ctx, code.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, used)

	err = repo.RecordUsage(ctx, &models.GiftCodeUsage{GiftCodeID: code.ID, UserID: user.ID, TransactionID: 2})
	assert.True(t, errors.Is(err, errors.ErrCodeGiftCodeAlreadyUsed))

	err = repo.Create(ctx, &models.GiftCode{Code: "ABC1234", Amount: 1, MaxUses: 1, ExpiresAt: time.Now()})
	assert.True(t, errors.Is(err, errors.ErrCodeAlreadyExists))
}
