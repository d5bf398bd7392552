package services

import (
	"context"
	"sync"
	"testing"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocator_ReserveReportsHeadroom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.channel(t, "0991", 5400, 5000)

	_, err := f.allocator.Reserve(ctx, 500)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNoCapacity))
	headroom, ok := MaxHeadroomOf(err)
	require.True(t, ok)
	assert.Equal(t, int64(400), headroom)

	got, err := f.allocator.Reserve(ctx, 400)
	require.NoError(t, err)
	assert.Equal(t, ch.ID, got.ID)
}

func TestAllocator_PrefersLeastFilled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.channel(t, "0991", 5400, 3000)
	low := f.channel(t, "0992", 5400, 1000)
	f.channel(t, "0993", 5400, 1000)

	got, err := f.allocator.Reserve(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, low.ID, got.ID)
}

func TestAllocator_CommitDeactivatesWhenFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.channel(t, "0991", 5400, 5000)

	filled, err := f.allocator.Commit(ctx, ch.ID, 400)
	require.NoError(t, err)
	assert.Equal(t, int64(5400), filled)

	got := f.reloadChannel(t, ch.ID)
	assert.False(t, got.Active)
	assert.True(t, got.DeactivatedFull)

	_, err = f.allocator.Commit(ctx, ch.ID, 1)
	assert.True(t, errors.Is(err, errors.ErrCodeNoCapacity))

	var fills []models.ChannelFill
	require.NoError(t, f.db.Where("channel_id = ?", ch.ID).Find(&fills).Error)
	require.Len(t, fills, 1)
	assert.Equal(t, int64(400), fills[0].Amount)
	assert.Equal(t, models.FillReasonCommit, fills[0].Reason)
}

func TestAllocator_ReleaseReactivatesOnlyFullChannels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	full := f.channel(t, "0991", 1000, 0)
	disabled := f.channel(t, "0992", 1000, 500)

	_, err := f.allocator.Commit(ctx, full.ID, 1000)
	require.NoError(t, err)
	require.NoError(t, f.allocator.Release(ctx, full.ID, 300))
	got := f.reloadChannel(t, full.ID)
	assert.Equal(t, int64(700), got.Filled)
	assert.True(t, got.Active)
	assert.False(t, got.DeactivatedFull)

	require.NoError(t, f.allocator.SetActive(ctx, disabled.ID, false))
	require.NoError(t, f.allocator.Release(ctx, disabled.ID, 200))
	got = f.reloadChannel(t, disabled.ID)
	assert.Equal(t, int64(300), got.Filled)
	assert.False(t, got.Active, "operator-disabled channels stay off")
}

func TestAllocator_ReleaseClampsAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.channel(t, "0991", 1000, 100)

	require.NoError(t, f.allocator.Release(ctx, ch.ID, 500))
	assert.Zero(t, f.reloadChannel(t, ch.ID).Filled)
}

func TestAllocator_ResetAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.channel(t, "0991", 1000, 0)
	f.channel(t, "0992", 1000, 250)
	_, err := f.allocator.Commit(ctx, a.ID, 1000)
	require.NoError(t, err)

	n, err := f.allocator.ResetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	summary, err := f.allocator.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Active)
	assert.Zero(t, summary.Filled)
	assert.Equal(t, int64(1000), summary.MaxHeadroom)
}

func TestAllocator_ConcurrentReserveAndCommitNeverOverfills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.channel(t, "0991", 5400, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.allocator.ReserveAndCommit(ctx, 1000); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	got := f.reloadChannel(t, ch.ID)
	assert.Equal(t, int64(5000), got.Filled)
	assert.LessOrEqual(t, got.Filled, got.Capacity)
}

func TestAllocator_AddChannelValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.allocator.AddChannel(ctx, " ", 100)
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
	_, err = f.allocator.AddChannel(ctx, "0991", 0)
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))

	ch, err := f.allocator.AddChannel(ctx, "0991", 5400)
	require.NoError(t, err)
	assert.True(t, ch.Active)
	assert.Equal(t, int64(5400), ch.Headroom())
}
