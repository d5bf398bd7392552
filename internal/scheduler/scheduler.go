package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/services"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/logger"
	"github.com/go-co-op/gocron/v2"
)

type Settler interface {
	Settle(ctx context.Context) (*services.SettlementResult, error)
}

type Expirer interface {
	ExpireStaleDeposits(ctx context.Context, ttl time.Duration) (int, error)
}

type Reporter interface {
	Daily(ctx context.Context, day time.Time) (*services.DailyReport, error)
}

// ReportNotifier delivers the end-of-day report to operators.
type ReportNotifier interface {
	SendDailyReport(ctx context.Context, r *services.DailyReport) error
}

// Job names
const (
	JobSettlement  = "referral-settlement"
	JobExpiry      = "deposit-expiry"
	JobDailyReport = "daily-report"
)

type Config struct {
	Settler            Settler
	SettlementInterval time.Duration

	Expirer        Expirer
	DepositTTL     time.Duration // zero disables the sweep
	ExpiryInterval time.Duration

	Reporter Reporter
	Notifier ReportNotifier
}

// Scheduler runs the periodic ledger jobs. Every job is a singleton: a run
// that is still going when the next tick arrives causes that tick to be skipped.
type Scheduler struct {
	cfg   Config
	sched gocron.Scheduler
	now   func() time.Time
}

func New(cfg Config) (*Scheduler, error) {
	if cfg.SettlementInterval <= 0 {
		cfg.SettlementInterval = time.Hour
	}
	if cfg.ExpiryInterval <= 0 {
		cfg.ExpiryInterval = 5 * time.Minute
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	s := &Scheduler{cfg: cfg, sched: sched, now: func() time.Time { return time.Now().UTC() }}

	if cfg.Settler != nil {
		if err := s.add(JobSettlement, gocron.DurationJob(cfg.SettlementInterval), s.runSettlement); err != nil {
			return nil, err
		}
	}
	if cfg.Expirer != nil && cfg.DepositTTL > 0 {
		if err := s.add(JobExpiry, gocron.DurationJob(cfg.ExpiryInterval), s.runExpiry); err != nil {
			return nil, err
		}
	}
	if cfg.Reporter != nil && cfg.Notifier != nil {
		daily := gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0)))
		if err := s.add(JobDailyReport, daily, s.runDailyReport); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(name string, def gocron.JobDefinition, run func(context.Context)) error {
	_, err := s.sched.NewJob(
		def,
		gocron.NewTask(func() { run(context.Background()) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

// JobNames lists the registered jobs.
func (s *Scheduler) JobNames() []string {
	var names []string
	for _, j := range s.sched.Jobs() {
		names = append(names, j.Name())
	}
	return names
}

func (s *Scheduler) Start() {
	logger.Info("Scheduler started", "jobs", s.JobNames())
	s.sched.Start()
}

// Shutdown waits for running jobs to finish.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

func (s *Scheduler) runSettlement(ctx context.Context) {
	res, err := s.cfg.Settler.Settle(ctx)
	if err != nil {
		logger.Error("Referral settlement failed", "error", err)
		return
	}
	if res.Skipped {
		logger.Debug("Referral settlement not due", "next_run_at", res.NextRunAt)
		return
	}
	logger.Info("Referral settlement finished",
		"referrers", res.Referrers,
		"paid", res.Paid,
		"payouts", len(res.Payouts),
		"failures", res.Failures,
		"next_run_at", res.NextRunAt,
	)
}

func (s *Scheduler) runExpiry(ctx context.Context) {
	n, err := s.cfg.Expirer.ExpireStaleDeposits(ctx, s.cfg.DepositTTL)
	if err != nil {
		logger.Error("Deposit expiry sweep failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info("Expired stale deposits", "count", n)
	}
}

// runDailyReport reports the UTC day that just ended.
func (s *Scheduler) runDailyReport(ctx context.Context) {
	day := s.now().AddDate(0, 0, -1)
	r, err := s.cfg.Reporter.Daily(ctx, day)
	if err != nil {
		logger.Error("Daily report failed", "error", err)
		return
	}
	if err := s.cfg.Notifier.SendDailyReport(ctx, r); err != nil {
		logger.Error("Daily report delivery failed", "error", err)
	}
}
