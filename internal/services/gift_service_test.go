package services

import (
	"context"
	"testing"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGift_SingleUseCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := f.user(t, 1, 0)
	y := f.user(t, 2, 0)

	code, err := f.gifts.CreateCode(ctx, 1500, 1, 24*time.Hour, 99)
	require.NoError(t, err)
	assert.Len(t, code.Code, 7)

	bonus, err := f.gifts.Redeem(ctx, x.ID, code.Code)
	require.NoError(t, err)
	assert.Equal(t, models.TxKindBonus, bonus.Kind)
	assert.Equal(t, models.TxStatusCompleted, bonus.Status)
	assert.Equal(t, int64(1500), f.balance(t, x.ID))

	_, err = f.gifts.Redeem(ctx, x.ID, code.Code)
	assert.True(t, errors.Is(err, errors.ErrCodeGiftCodeAlreadyUsed))

	_, err = f.gifts.Redeem(ctx, y.ID, code.Code)
	assert.True(t, errors.Is(err, errors.ErrCodeGiftCodeExhausted))

	assert.Equal(t, int64(1500), f.balance(t, x.ID))
	assert.Zero(t, f.balance(t, y.ID))
}

func TestGift_RedeemErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)

	_, err := f.gifts.Redeem(ctx, u.ID, "NOPE123")
	assert.True(t, errors.Is(err, errors.ErrCodeGiftCodeNotFound))

	code, err := f.gifts.CreateCode(ctx, 500, 10, time.Hour, 99)
	require.NoError(t, err)
	f.clock = f.clock.Add(time.Hour)
	_, err = f.gifts.Redeem(ctx, u.ID, code.Code)
	assert.True(t, errors.Is(err, errors.ErrCodeGiftCodeExpired))
	assert.Zero(t, f.countTransactions(t))
}

func TestGift_RedeemIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	require.NoError(t, f.db.Create(&models.GiftCode{Code: "HELLO12", Amount: 200, MaxUses: 3, ExpiresAt: f.clock.Add(time.Hour)}).Error)

	_, err := f.gifts.Redeem(ctx, u.ID, " hello12 ")
	require.NoError(t, err)
	assert.Equal(t, int64(200), f.balance(t, u.ID))

	active, err := f.gifts.ListActiveCodes(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].UsedCount)
}

func TestGift_CreateCodeValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.gifts.CreateCode(ctx, 0, 1, time.Hour, 1)
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
	_, err = f.gifts.CreateCode(ctx, 100, 0, time.Hour, 1)
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
	_, err = f.gifts.CreateCode(ctx, 100, 1, 0, 1)
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
}

func TestGift_SendGiftWithFee(t *testing.T) {
	payments := testPaymentSettings()
	payments.GiftFeePercent = 10
	f := newFixtureWith(t, payments)
	ctx := context.Background()
	sender := f.user(t, 1, 1000)
	receiver := f.user(t, 2, 0)

	sent, err := f.gifts.SendGift(ctx, sender.ID, receiver.ID, 500)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusCompleted, sent.Status)
	assert.Equal(t, int64(450), sent.NetAmount)
	assert.Equal(t, int64(500), f.balance(t, sender.ID))
	assert.Equal(t, int64(450), f.balance(t, receiver.ID))
}

func TestGift_SendGiftRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.user(t, 1, 100)
	receiver := f.user(t, 2, 0)

	_, err := f.gifts.SendGift(ctx, sender.ID, sender.ID, 50)
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))

	_, err = f.gifts.SendGift(ctx, sender.ID, 999, 50)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	_, err = f.gifts.SendGift(ctx, sender.ID, receiver.ID, 500)
	assert.True(t, errors.Is(err, errors.ErrCodeInsufficientFunds))
	assert.Zero(t, f.countTransactions(t))
	assert.Equal(t, int64(100), f.balance(t, sender.ID))
}
