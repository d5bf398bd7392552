package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ghadeerreda0-lab/Bot-New/internal/metrics"
	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/internal/repositories"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/logger"
	"gorm.io/gorm"
)

// commitAttempts bounds how many candidates ReserveAndCommit tries when a
// concurrent deposit takes the headroom between selection and commit.
const commitAttempts = 3

// Allocator routes deposits to capacity-limited channels.
type Allocator struct {
	db       *gorm.DB
	channels *repositories.ChannelRepository
	metrics  *metrics.LedgerMetrics
}

func NewAllocator(db *gorm.DB, m *metrics.LedgerMetrics) *Allocator {
	return &Allocator{
		db:       db,
		channels: repositories.NewChannelRepository(db),
		metrics:  m,
	}
}

// CapacitySummary is the admin view over all channels.
type CapacitySummary struct {
	Channels    int
	Active      int
	Capacity    int64
	Filled      int64
	MaxHeadroom int64
}

func (s CapacitySummary) FillPercent() float64 {
	if s.Capacity == 0 {
		return 0
	}
	return float64(s.Filled) / float64(s.Capacity) * 100
}

// Reserve picks the channel a deposit of amount would go to without
// committing anything.
func (a *Allocator) Reserve(ctx context.Context, amount int64) (*models.Channel, error) {
	if amount <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "amount must be positive")
	}
	return a.pick(ctx, a.channels, amount, false)
}

// Commit adds amount to a channel's fill and returns the new fill level.
func (a *Allocator) Commit(ctx context.Context, channelID uint, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, errors.New(errors.ErrCodeValidation, "amount must be positive")
	}
	var filled int64
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repositories.NewChannelRepository(tx)
		var err error
		filled, err = a.commit(ctx, repo, channelID, amount, nil)
		if errors.Is(err, errors.ErrCodeNoCapacity) {
			return a.noCapacity(ctx, repo)
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return filled, nil
}

// ReserveAndCommit selects and fills a channel in one step.
func (a *Allocator) ReserveAndCommit(ctx context.Context, amount int64) (*models.Channel, error) {
	var channel *models.Channel
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		channel, err = a.ReserveAndCommitTx(ctx, tx, amount, nil)
		return err
	})
	return channel, err
}

// ReserveAndCommitTx is ReserveAndCommit inside a caller-owned transaction.
// txID, when set, is recorded on the fill log.
func (a *Allocator) ReserveAndCommitTx(ctx context.Context, tx *gorm.DB, amount int64, txID *uint) (*models.Channel, error) {
	if amount <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "amount must be positive")
	}
	repo := repositories.NewChannelRepository(tx)

	for attempt := 0; attempt < commitAttempts; attempt++ {
		channel, err := a.pick(ctx, repo, amount, true)
		if err != nil {
			return nil, err
		}
		filled, err := a.commit(ctx, repo, channel.ID, amount, txID)
		if errors.Is(err, errors.ErrCodeNoCapacity) {
			logger.Warn("Channel filled up under us, retrying", "channel_id", channel.ID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		channel.Filled = filled
		channel.Active = filled < channel.Capacity
		return channel, nil
	}
	return nil, a.noCapacity(ctx, repo)
}

// Release gives amount back to a channel, never going below zero.
func (a *Allocator) Release(ctx context.Context, channelID uint, amount int64) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return a.ReleaseTx(ctx, tx, channelID, amount, nil)
	})
}

// ReleaseTx is Release inside a caller-owned transaction. A channel that
// switched itself off on reaching capacity comes back on; one an operator
// disabled stays off.
func (a *Allocator) ReleaseTx(ctx context.Context, tx *gorm.DB, channelID uint, amount int64, txID *uint) error {
	if amount <= 0 {
		return errors.New(errors.ErrCodeValidation, "amount must be positive")
	}
	repo := repositories.NewChannelRepository(tx)
	channel, err := repo.Lock(ctx, channelID)
	if err != nil {
		return err
	}

	filled := channel.Filled - amount
	if filled < 0 {
		logger.Warn("Release exceeds channel fill, clamping to zero",
			"channel_id", channelID, "filled", channel.Filled, "amount", amount)
		filled = 0
	}
	reactivate := channel.DeactivatedFull && filled < channel.Capacity
	if err := repo.SetFilled(ctx, channelID, filled, reactivate); err != nil {
		return err
	}
	if err := repo.LogFill(ctx, &models.ChannelFill{
		ChannelID:     channelID,
		TransactionID: txID,
		Amount:        filled - channel.Filled,
		FilledAfter:   filled,
		Reason:        models.FillReasonRelease,
	}); err != nil {
		return err
	}

	a.metrics.SetChannelFill(channel.Number, filled)
	logger.Info("Channel capacity released",
		"channel_id", channelID, "amount", amount, "filled", filled, "reactivated", reactivate)
	return nil
}

// ResetAll zeroes every channel, typically at the start of a billing period.
func (a *Allocator) ResetAll(ctx context.Context) (int64, error) {
	var n int64
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repositories.NewChannelRepository(tx)
		channels, err := repo.List(ctx)
		if err != nil {
			return err
		}
		n, err = repo.ResetAll(ctx)
		if err != nil {
			return err
		}
		for _, ch := range channels {
			if ch.Filled == 0 {
				continue
			}
			if err := repo.LogFill(ctx, &models.ChannelFill{
				ChannelID: ch.ID,
				Amount:    -ch.Filled,
				Reason:    models.FillReasonReset,
			}); err != nil {
				return err
			}
			a.metrics.SetChannelFill(ch.Number, 0)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logger.Info("All channels reset", "count", n)
	return n, nil
}

func (a *Allocator) AddChannel(ctx context.Context, number string, capacity int64) (*models.Channel, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, errors.New(errors.ErrCodeValidation, "channel number is required")
	}
	if capacity <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "capacity must be positive")
	}
	channel := &models.Channel{Number: number, Capacity: capacity, Active: true}
	if err := a.channels.Create(ctx, channel); err != nil {
		return nil, err
	}
	logger.Info("Channel added", "channel_id", channel.ID, "number", number, "capacity", capacity)
	return channel, nil
}

func (a *Allocator) SetActive(ctx context.Context, channelID uint, active bool) error {
	if err := a.channels.SetActive(ctx, channelID, active); err != nil {
		return err
	}
	logger.Info("Channel toggled", "channel_id", channelID, "active", active)
	return nil
}

// Channel returns one channel, as shown to a depositor after allocation.
func (a *Allocator) Channel(ctx context.Context, channelID uint) (*models.Channel, error) {
	return a.channels.GetByID(ctx, channelID)
}

func (a *Allocator) ListChannels(ctx context.Context) ([]models.Channel, error) {
	return a.channels.List(ctx)
}

func (a *Allocator) Summary(ctx context.Context) (*CapacitySummary, error) {
	channels, err := a.channels.List(ctx)
	if err != nil {
		return nil, err
	}
	s := &CapacitySummary{Channels: len(channels)}
	for _, ch := range channels {
		s.Capacity += ch.Capacity
		s.Filled += ch.Filled
		if ch.Active {
			s.Active++
			if h := ch.Headroom(); h > s.MaxHeadroom {
				s.MaxHeadroom = h
			}
		}
	}
	return s, nil
}

func (a *Allocator) pick(ctx context.Context, repo *repositories.ChannelRepository, amount int64, lock bool) (*models.Channel, error) {
	channel, err := repo.FindCandidate(ctx, amount, lock)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, a.noCapacity(ctx, repo)
	}
	return channel, nil
}

func (a *Allocator) commit(ctx context.Context, repo *repositories.ChannelRepository, channelID uint, amount int64, txID *uint) (int64, error) {
	ok, err := repo.AddFilled(ctx, channelID, amount)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.New(errors.ErrCodeNoCapacity, fmt.Sprintf("channel %d cannot take %d", channelID, amount))
	}
	if err := repo.DeactivateIfFull(ctx, channelID); err != nil {
		return 0, err
	}
	channel, err := repo.GetByID(ctx, channelID)
	if err != nil {
		return 0, err
	}
	if err := repo.LogFill(ctx, &models.ChannelFill{
		ChannelID:     channelID,
		TransactionID: txID,
		Amount:        amount,
		FilledAfter:   channel.Filled,
		Reason:        models.FillReasonCommit,
	}); err != nil {
		return 0, err
	}

	a.metrics.SetChannelFill(channel.Number, channel.Filled)
	if !channel.Active {
		logger.Info("Channel full, deactivated", "channel_id", channelID, "capacity", channel.Capacity)
	}
	return channel.Filled, nil
}

func (a *Allocator) noCapacity(ctx context.Context, repo *repositories.ChannelRepository) error {
	headroom, err := repo.MaxHeadroom(ctx)
	if err != nil {
		return err
	}
	a.metrics.IncNoCapacity()
	return errors.New(errors.ErrCodeNoCapacity, fmt.Sprintf("no channel can take this amount, max headroom %d", headroom)).
		WithDetail("max_headroom", headroom)
}

// MaxHeadroomOf extracts the headroom carried by a NO_CAPACITY_AVAILABLE error.
func MaxHeadroomOf(err error) (int64, bool) {
	appErr, ok := errors.As(err)
	if !ok || appErr.Code != errors.ErrCodeNoCapacity {
		return 0, false
	}
	h, ok := appErr.Details["max_headroom"].(int64)
	return h, ok
}
