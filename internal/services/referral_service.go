package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/internal/metrics"
	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/internal/repositories"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Commission is what one referrer earns in a settlement run. The percentage
// and flat models are evaluated independently and summed.
type Commission struct {
	ReferrerID      uint
	ActiveLinks     int   // links at or above the activation threshold
	PercentageBase  int64 // unsettled charges of active links
	Percentage      int64
	FlatLinks       int
	Flat            int64
	PercentageGated bool // true when ActiveLinks fell short of the minimum

	// PercentageLinkIDs are the links whose unsettled charge this run pays.
	// Charge held back by the gate stays unsettled.
	PercentageLinkIDs []uint
	// FlatLinkIDs are the links earning their one-time flat bonus.
	FlatLinkIDs []uint
}

func (c Commission) Total() int64 {
	return c.Percentage + c.Flat
}

// SettlementResult summarises one Settle call.
type SettlementResult struct {
	Skipped   bool
	NextRunAt time.Time
	Referrers int
	Paid      int64
	Payouts   []uint
	Failures  int
}

type ReferralService struct {
	db       *gorm.DB
	ledger   *Ledger
	users    *repositories.UserRepository
	defaults config.ReferralDefaults
	metrics  *metrics.LedgerMetrics
	now      func() time.Time
}

func NewReferralService(db *gorm.DB, ledger *Ledger, defaults config.ReferralDefaults, m *metrics.LedgerMetrics) *ReferralService {
	return &ReferralService{
		db:       db,
		ledger:   ledger,
		users:    repositories.NewUserRepository(db),
		defaults: defaults,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Link records that referrerID brought referredID in.
func (s *ReferralService) Link(ctx context.Context, referrerID, referredID uint) error {
	if referrerID == referredID {
		return errors.New(errors.ErrCodeValidation, "cannot refer yourself")
	}
	if _, err := s.users.GetUserByID(ctx, referrerID); err != nil {
		return err
	}
	if _, err := s.users.GetUserByID(ctx, referredID); err != nil {
		return err
	}
	link := &models.ReferralLink{ReferrerID: referrerID, ReferredID: referredID}
	if err := repositories.NewReferralRepository(s.db).CreateLink(ctx, link); err != nil {
		return err
	}
	logger.Info("Referral linked", "referrer_id", referrerID, "referred_id", referredID)
	return nil
}

// LinkByCode resolves a referral code to its owner and links the new user.
func (s *ReferralService) LinkByCode(ctx context.Context, code string, referredID uint) (*models.User, error) {
	referrer, err := s.users.GetUserByReferralCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.Link(ctx, referrer.ID, referredID); err != nil {
		return nil, err
	}
	return referrer, nil
}

// RecordDeposit implements DepositObserver.
func (s *ReferralService) RecordDeposit(ctx context.Context, tx *gorm.DB, userID uint, amount int64) error {
	repo := repositories.NewReferralRepository(tx)
	minCharge := s.defaults.MinChargePerReferral
	settings, err := repo.GetSettings(ctx)
	if err == nil {
		minCharge = settings.MinChargePerReferral
	} else if !errors.Is(err, errors.ErrCodeNotFound) {
		return err
	}
	return repo.AddCharge(ctx, userID, amount, minCharge)
}

func (s *ReferralService) Settings(ctx context.Context) (*models.CommissionSettings, error) {
	return repositories.NewReferralRepository(s.db).GetSettings(ctx)
}

// UpdateSettings applies change to the settings row and validates the result.
func (s *ReferralService) UpdateSettings(ctx context.Context, updatedBy int64, change func(*models.CommissionSettings)) (*models.CommissionSettings, error) {
	var settings *models.CommissionSettings
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repositories.NewReferralRepository(tx)
		var err error
		settings, err = repo.LockSettings(ctx)
		if err != nil {
			return err
		}
		change(settings)
		if err := validateCommission(settings); err != nil {
			return err
		}
		settings.UpdatedBy = updatedBy
		return repo.SaveSettings(ctx, settings)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Commission settings updated", "by", updatedBy, "rate", settings.RatePercent,
		"fixed_bonus", settings.FixedBonusPerActiveReferral, "min_active", settings.MinActiveReferrals)
	return settings, nil
}

// Compute evaluates one referrer's links against the settings. Percentage
// commission is paid on charge not yet settled; the flat bonus is paid once
// per link.
func Compute(settings *models.CommissionSettings, referrerID uint, links []models.ReferralLink) Commission {
	c := Commission{ReferrerID: referrerID}
	var pending []uint
	for _, link := range links {
		if link.CumulativeCharged >= settings.MinChargePerReferral {
			c.ActiveLinks++
			if unsettled := link.Unsettled(); unsettled > 0 {
				c.PercentageBase += unsettled
				pending = append(pending, link.ID)
			}
		}
		if !link.FlatPaid && link.CumulativeCharged >= settings.FlatEligibilityFloor {
			c.FlatLinkIDs = append(c.FlatLinkIDs, link.ID)
		}
	}

	if c.ActiveLinks < settings.MinActiveReferrals {
		c.PercentageGated = true
	} else if c.PercentageBase > 0 {
		c.Percentage = decimal.NewFromInt(c.PercentageBase).
			Mul(decimal.NewFromInt(settings.RatePercent)).
			Div(decimal.NewFromInt(100)).
			Floor().
			IntPart()
		c.PercentageLinkIDs = pending
	}
	c.FlatLinks = len(c.FlatLinkIDs)
	c.Flat = settings.FixedBonusPerActiveReferral * int64(c.FlatLinks)
	return c
}

// Settle pays every referrer with unsettled activity, once the distribution
// marker is due. Calling it again before the next marker pays nothing.
func (s *ReferralService) Settle(ctx context.Context) (*SettlementResult, error) {
	return s.settle(ctx, false)
}

// SettleNow runs a settlement regardless of the distribution marker.
func (s *ReferralService) SettleNow(ctx context.Context) (*SettlementResult, error) {
	return s.settle(ctx, true)
}

func (s *ReferralService) settle(ctx context.Context, force bool) (*SettlementResult, error) {
	repo := repositories.NewReferralRepository(s.db)
	now := s.now()

	settings, err := repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !force && now.Before(settings.NextDistributionAt) {
		s.metrics.ObserveSettlement("skipped", 0)
		return &SettlementResult{Skipped: true, NextRunAt: settings.NextDistributionAt}, nil
	}

	if err := repo.RefreshActive(ctx, settings.MinChargePerReferral); err != nil {
		return nil, err
	}
	referrers, err := repo.ReferrersToSettle(ctx, settings.FlatEligibilityFloor)
	if err != nil {
		return nil, err
	}

	result := &SettlementResult{}
	for _, referrerID := range referrers {
		commission, payoutID, err := s.settleReferrer(ctx, settings, referrerID, now)
		if err != nil {
			result.Failures++
			logger.Error("Referral settlement failed", "referrer_id", referrerID, "error", err)
			continue
		}
		result.Referrers++
		if payoutID != 0 {
			result.Paid += commission.Total()
			result.Payouts = append(result.Payouts, payoutID)
		}
	}

	// A run with failures keeps the marker so the next check retries them.
	next := settings.NextDistributionAt
	if result.Failures == 0 {
		if next, err = s.advanceMarker(ctx, now); err != nil {
			return nil, err
		}
	}
	result.NextRunAt = next

	s.metrics.ObserveSettlement("paid", result.Paid)
	logger.Info("Referral settlement finished", "referrers", result.Referrers, "paid", result.Paid,
		"failures", result.Failures, "next_run_at", next, "forced", force)
	return result, nil
}

// settleReferrer marks what the commission pays for and pays it in the same
// database transaction.
func (s *ReferralService) settleReferrer(ctx context.Context, settings *models.CommissionSettings, referrerID uint, now time.Time) (Commission, uint, error) {
	var commission Commission
	var payoutID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repositories.NewReferralRepository(tx)
		links, err := repo.LinksOf(ctx, referrerID, true)
		if err != nil {
			return err
		}
		commission = Compute(settings, referrerID, links)

		byID := make(map[uint]models.ReferralLink, len(links))
		for _, link := range links {
			byID[link.ID] = link
		}
		for _, id := range commission.PercentageLinkIDs {
			link := byID[id]
			ok, err := repo.AdvanceSettled(ctx, link.ID, link.SettledCharged, link.CumulativeCharged, now)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New(errors.ErrCodeInvalidTransition, fmt.Sprintf("referral link %d settled concurrently", link.ID))
			}
		}
		for _, id := range commission.FlatLinkIDs {
			ok, err := repo.MarkFlatPaid(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New(errors.ErrCodeInvalidTransition, fmt.Sprintf("referral link %d flat bonus paid concurrently", id))
			}
		}

		if commission.Total() <= 0 {
			return nil
		}
		payout, err := s.ledger.OpenTx(ctx, tx, OpenRequest{
			UserID: referrerID,
			Kind:   models.TxKindReferralPayout,
			Amount: commission.Total(),
			Notes: fmt.Sprintf("percentage=%d flat=%d active=%d flat_links=%d",
				commission.Percentage, commission.Flat, commission.ActiveLinks, commission.FlatLinks),
		})
		if err != nil {
			return err
		}
		if _, err := s.ledger.CompleteTx(ctx, tx, payout.ID, ActorSettlement); err != nil {
			return err
		}
		payoutID = payout.ID
		return nil
	})
	if err != nil {
		return Commission{}, 0, err
	}
	if payoutID != 0 {
		logger.Info("Referral commission paid", "tx_id", payoutID, "user_id", referrerID,
			"kind", models.TxKindReferralPayout, "amount", commission.Total())
	}
	return commission, payoutID, nil
}

// advanceMarker moves next_distribution_at past now by whole periods.
func (s *ReferralService) advanceMarker(ctx context.Context, now time.Time) (time.Time, error) {
	var next time.Time
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repositories.NewReferralRepository(tx)
		settings, err := repo.LockSettings(ctx)
		if err != nil {
			return err
		}
		next = settings.NextDistributionAt
		period := settings.DistributionPeriodDays
		if period <= 0 {
			period = 1
		}
		for !next.After(now) {
			next = next.AddDate(0, 0, period)
		}
		return repo.SetDistribution(ctx, settings.ID, next, now)
	})
	return next, err
}

func (s *ReferralService) ReferralsOf(ctx context.Context, referrerID uint) ([]models.ReferralLink, error) {
	return repositories.NewReferralRepository(s.db).LinksOf(ctx, referrerID, false)
}

func (s *ReferralService) TopReferrers(ctx context.Context, limit int) ([]repositories.ReferrerStat, error) {
	return repositories.NewReferralRepository(s.db).TopReferrers(ctx, limit)
}

func validateCommission(s *models.CommissionSettings) error {
	defaults := config.ReferralDefaults{
		RatePercent:           s.RatePercent,
		FixedBonus:            s.FixedBonusPerActiveReferral,
		MinActiveReferrals:    s.MinActiveReferrals,
		MinChargePerReferral:  s.MinChargePerReferral,
		FlatEligibilityFloor:  s.FlatEligibilityFloor,
		DistributionPeriodDay: s.DistributionPeriodDays,
	}
	if err := defaults.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid commission settings")
	}
	return nil
}
