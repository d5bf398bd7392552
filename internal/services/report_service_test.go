package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func seedActivity(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	u := f.user(t, 1, 10000)
	f.channel(t, "0991", 5400, 0)

	d, err := f.ledger.Open(ctx, OpenRequest{UserID: u.ID, Kind: models.TxKindDeposit, Amount: 2000, Provider: config.MethodSyriatelCash})
	require.NoError(t, err)
	_, err = f.ledger.Complete(ctx, d.ID, "admin:1")
	require.NoError(t, err)

	w, err := f.ledger.Open(ctx, OpenRequest{UserID: u.ID, Kind: models.TxKindWithdraw, Amount: 3000})
	require.NoError(t, err)
	_, err = f.ledger.Complete(ctx, w.ID, "admin:1")
	require.NoError(t, err)

	_, err = f.ledger.Open(ctx, OpenRequest{UserID: u.ID, Kind: models.TxKindDeposit, Amount: 1000, Provider: config.MethodSyriatelCash})
	require.NoError(t, err)
}

func TestReport_Daily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedActivity(t, f)

	r, err := f.reports.Daily(ctx, f.clock)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.NewUsers)
	assert.Equal(t, int64(1), r.Deposits.Count)
	assert.Equal(t, int64(2000), r.Deposits.Amount)
	assert.Equal(t, int64(3000), r.Withdrawals.Amount)
	assert.Equal(t, int64(1), r.Pending)
	require.Len(t, r.ByChannel, 1)
	assert.Equal(t, int64(2000), r.ByChannel[0].Amount)
	assert.Equal(t, int64(3000), r.Capacity.Filled)

	yesterday, err := f.reports.Daily(ctx, f.clock.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Zero(t, yesterday.Deposits.Count)
}

func TestReport_TotalsByDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedActivity(t, f)

	days, err := f.reports.TotalsByDay(ctx, f.clock.Add(-24*time.Hour), f.clock.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, DayTotal{Day: "2024-07-03", Kind: models.TxKindDeposit, Count: 1, Amount: 2000}, days[0])
	assert.Equal(t, models.TxKindWithdraw, days[1].Kind)
}

func TestReport_WriteXLSX(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedActivity(t, f)

	r, err := f.reports.Daily(ctx, f.clock)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteDailyReportXLSX(&buf, r))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	day, err := book.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "2024-07-03", day)

	rows, err := book.GetRows("Channels")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "0991", rows[1][1])
}
