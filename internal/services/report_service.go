package services

import (
	"context"
	"sort"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/internal/repositories"
	"gorm.io/gorm"
)

// DayTotal is the per-day sum of completed transactions of one kind.
type DayTotal struct {
	Day    string // 2006-01-02
	Kind   string
	Count  int64
	Amount int64
}

// DailyReport is the end-of-day summary sent to operators.
type DailyReport struct {
	Day         time.Time
	NewUsers    int64
	Deposits    repositories.KindTotal
	Withdrawals repositories.KindTotal
	ByKind      []repositories.KindTotal
	ByChannel   []repositories.ChannelTotal
	Pending     int64
	Channels    []models.Channel
	Capacity    CapacitySummary
}

type ReportService struct {
	reports   *repositories.ReportRepository
	allocator *Allocator
}

func NewReportService(db *gorm.DB, allocator *Allocator) *ReportService {
	return &ReportService{
		reports:   repositories.NewReportRepository(db),
		allocator: allocator,
	}
}

func (s *ReportService) TotalsByKind(ctx context.Context, from, to time.Time) ([]repositories.KindTotal, error) {
	return s.reports.TotalsByKind(ctx, from, to)
}

func (s *ReportService) TotalsByChannel(ctx context.Context, from, to time.Time) ([]repositories.ChannelTotal, error) {
	return s.reports.TotalsByChannel(ctx, from, to)
}

// TotalsByDay groups in Go so the query stays portable across databases.
func (s *ReportService) TotalsByDay(ctx context.Context, from, to time.Time) ([]DayTotal, error) {
	txs, err := s.reports.CompletedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	type key struct{ day, kind string }
	sums := make(map[key]*DayTotal)
	for _, t := range txs {
		if t.CompletedAt == nil {
			continue
		}
		k := key{t.CompletedAt.UTC().Format("2006-01-02"), t.Kind}
		d, ok := sums[k]
		if !ok {
			d = &DayTotal{Day: k.day, Kind: k.kind}
			sums[k] = d
		}
		d.Count++
		d.Amount += t.Amount
	}

	out := make([]DayTotal, 0, len(sums))
	for _, d := range sums {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

// Daily builds the report for the UTC day containing day.
func (s *ReportService) Daily(ctx context.Context, day time.Time) (*DailyReport, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	r := &DailyReport{Day: from}
	var err error
	if r.NewUsers, err = s.reports.CountNewUsers(ctx, from, to); err != nil {
		return nil, err
	}
	if r.ByKind, err = s.reports.TotalsByKind(ctx, from, to); err != nil {
		return nil, err
	}
	for _, k := range r.ByKind {
		switch k.Kind {
		case models.TxKindDeposit:
			r.Deposits = k
		case models.TxKindWithdraw:
			r.Withdrawals = k
		}
	}
	if r.ByChannel, err = s.reports.TotalsByChannel(ctx, from, to); err != nil {
		return nil, err
	}
	if r.Pending, err = s.reports.CountPending(ctx); err != nil {
		return nil, err
	}
	if r.Channels, err = s.allocator.ListChannels(ctx); err != nil {
		return nil, err
	}
	summary, err := s.allocator.Summary(ctx)
	if err != nil {
		return nil, err
	}
	r.Capacity = *summary
	return r, nil
}
