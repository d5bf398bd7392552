package services

import (
	"context"
	"testing"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const syriatelSMS = "تم تحويل 5,000 ل.س الى رقم 0991234567 برقم عملية 600123456"

func openReferencedDeposit(t *testing.T, f *fixture, userID uint, amount int64, reference string) *models.Transaction {
	t.Helper()
	d, err := f.ledger.Open(context.Background(), OpenRequest{
		UserID:            userID,
		Kind:              models.TxKindDeposit,
		Amount:            amount,
		Provider:          config.MethodSyriatelCash,
		ExternalReference: reference,
	})
	require.NoError(t, err)
	return d
}

func TestMatcher_SubmitCompletesPendingDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	f.channel(t, "0991", 5400, 0)
	d := openReferencedDeposit(t, f, u.ID, 5000, "600123456")

	out, err := f.matcher.Submit(ctx, RawNotification{Provider: "syriatel", Sender: "0991", Text: syriatelSMS})
	require.NoError(t, err)
	assert.True(t, out.Processed())
	assert.Equal(t, models.ConfirmationMatched, out.Status)
	require.NotNil(t, out.Transaction)
	assert.Equal(t, d.ID, out.Transaction.ID)
	assert.Equal(t, AutoActor(config.MethodSyriatelCash), out.Transaction.CompletedBy)
	assert.Equal(t, int64(5000), f.balance(t, u.ID))

	var stored models.ProviderConfirmation
	require.NoError(t, f.db.First(&stored, out.Confirmation.ID).Error)
	assert.Equal(t, syriatelSMS, stored.RawText)
	assert.True(t, stored.Parsed)
	assert.Equal(t, "600123456", stored.Reference)
	assert.Equal(t, models.ConfirmationMatched, stored.Status)
}

func TestMatcher_RepeatedNotificationCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	f.channel(t, "0991", 5400, 0)
	openReferencedDeposit(t, f, u.ID, 5000, "600123456")

	_, err := f.matcher.Submit(ctx, RawNotification{Provider: "syriatel", Text: syriatelSMS})
	require.NoError(t, err)
	out, err := f.matcher.Submit(ctx, RawNotification{Provider: "syriatel", Text: syriatelSMS})
	require.NoError(t, err)

	assert.Equal(t, models.ConfirmationDuplicate, out.Status)
	assert.False(t, out.Processed())
	assert.Equal(t, int64(5000), f.balance(t, u.ID))
}

func TestMatcher_AmountMismatchLeavesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	f.channel(t, "0991", 5400, 0)
	d := openReferencedDeposit(t, f, u.ID, 4000, "600123456")

	out, err := f.matcher.Submit(ctx, RawNotification{Provider: "syriatel", Text: syriatelSMS})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeReconciliationMismatch))
	require.NotNil(t, out)
	assert.Equal(t, models.ConfirmationMismatch, out.Status)

	got, err := f.ledger.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusPending, got.Status)
	assert.Zero(t, f.balance(t, u.ID))

	review, err := f.matcher.ListUnmatched(ctx, 10)
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, models.ConfirmationMismatch, review[0].Status)
}

func TestMatcher_UnmatchedGoesToReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.matcher.Submit(ctx, RawNotification{Provider: "syriatel", Text: syriatelSMS})
	require.NoError(t, err)
	assert.Equal(t, models.ConfirmationUnmatched, out.Status)
	assert.Zero(t, f.countTransactions(t), "never invents a transaction")

	review, err := f.matcher.ListUnmatched(ctx, 10)
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, out.Confirmation.ID, review[0].ID)
}

func TestMatcher_UnparsedKeepsRawText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.matcher.Submit(ctx, RawNotification{Provider: "syriatel", Text: "رسالة غير معروفة"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNoMatch))
	assert.Equal(t, models.ConfirmationUnparsed, out.Status)

	var stored models.ProviderConfirmation
	require.NoError(t, f.db.First(&stored, out.Confirmation.ID).Error)
	assert.Equal(t, "رسالة غير معروفة", stored.RawText)
	assert.False(t, stored.Parsed)
	assert.True(t, stored.NeedsReview())
}

func TestMatcher_UnknownProviderIsStored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.matcher.Submit(ctx, RawNotification{Provider: "MTN", Text: "hello"})
	assert.True(t, errors.Is(err, errors.ErrCodeUnknownProvider))
	require.NotNil(t, out)
	assert.Equal(t, "mtn", out.Confirmation.Provider)
}

func TestMatcher_ManualBind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	f.channel(t, "0991", 5400, 0)

	out, err := f.matcher.Submit(ctx, RawNotification{Provider: "syriatel", Text: syriatelSMS})
	require.NoError(t, err)
	require.Equal(t, models.ConfirmationUnmatched, out.Status)

	d, err := f.ledger.Open(ctx, OpenRequest{UserID: u.ID, Kind: models.TxKindDeposit, Amount: 5000, Provider: config.MethodSyriatelCash})
	require.NoError(t, err)

	bound, err := f.matcher.ManualBind(ctx, out.Confirmation.ID, d.ID, "admin:9")
	require.NoError(t, err)
	assert.Equal(t, models.ConfirmationMatched, bound.Status)
	assert.Equal(t, "admin:9", bound.Transaction.CompletedBy)
	assert.Equal(t, int64(5000), f.balance(t, u.ID))

	_, err = f.matcher.ManualBind(ctx, out.Confirmation.ID, d.ID, "admin:9")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
}

func TestMatcher_ManualBindClaimsReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, 1, 0)
	b := f.user(t, 2, 0)
	f.channel(t, "0991", 20000, 0)

	out, err := f.matcher.Submit(ctx, RawNotification{Provider: "syriatel", Text: syriatelSMS})
	require.NoError(t, err)
	require.Equal(t, models.ConfirmationUnmatched, out.Status)

	first, err := f.ledger.Open(ctx, OpenRequest{UserID: a.ID, Kind: models.TxKindDeposit, Amount: 5000, Provider: config.MethodSyriatelCash})
	require.NoError(t, err)
	bound, err := f.matcher.ManualBind(ctx, out.Confirmation.ID, first.ID, "admin:9")
	require.NoError(t, err)
	assert.Equal(t, "600123456", bound.Transaction.Reference())

	second, err := f.ledger.Open(ctx, OpenRequest{UserID: b.ID, Kind: models.TxKindDeposit, Amount: 5000, Provider: config.MethodSyriatelCash})
	require.NoError(t, err)
	err = f.ledger.AttachReference(ctx, second.ID, "600123456")
	assert.True(t, errors.Is(err, errors.ErrCodeDuplicateReference))

	again, err := f.matcher.Submit(ctx, RawNotification{Provider: "syriatel", Text: syriatelSMS})
	require.NoError(t, err)
	assert.Equal(t, models.ConfirmationDuplicate, again.Status)
	assert.Equal(t, int64(5000), f.balance(t, a.ID))
	assert.Zero(t, f.balance(t, b.ID))
}

func TestMatcher_ManualBindRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 20000)
	f.channel(t, "0991", 20000, 0)

	out, err := f.matcher.Submit(ctx, RawNotification{Provider: "syriatel", Text: syriatelSMS})
	require.NoError(t, err)

	w, err := f.ledger.Open(ctx, OpenRequest{UserID: u.ID, Kind: models.TxKindWithdraw, Amount: 5000, Provider: config.MethodSyriatelCash})
	require.NoError(t, err)
	_, err = f.matcher.ManualBind(ctx, out.Confirmation.ID, w.ID, "admin:9")
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))

	taken := openReferencedDeposit(t, f, u.ID, 1000, "600123456")
	d, err := f.ledger.Open(ctx, OpenRequest{UserID: u.ID, Kind: models.TxKindDeposit, Amount: 5000, Provider: config.MethodSyriatelCash})
	require.NoError(t, err)
	_, err = f.matcher.ManualBind(ctx, out.Confirmation.ID, d.ID, "admin:9")
	assert.True(t, errors.Is(err, errors.ErrCodeDuplicateReference))

	reloaded, err := f.ledger.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusPending, reloaded.Status)
	assert.Equal(t, models.TxStatusPending, taken.Status)
	assert.Equal(t, int64(15000), f.balance(t, u.ID))
}

func TestMatcher_ManualVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	f.channel(t, "0991", 5400, 0)
	d := openReferencedDeposit(t, f, u.ID, 3000, "600999111")

	done, err := f.matcher.ManualVerify(ctx, "syriatel", "600999111", "admin:9")
	require.NoError(t, err)
	assert.Equal(t, d.ID, done.ID)
	assert.Equal(t, int64(3000), f.balance(t, u.ID))

	_, err = f.matcher.ManualVerify(ctx, "syriatel", "600999111", "admin:9")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}
