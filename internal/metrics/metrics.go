package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks money movement. A nil *LedgerMetrics is valid and
// records nothing, which is what services get in tests.
type LedgerMetrics struct {
	transactions   *prometheus.CounterVec
	amounts        *prometheus.CounterVec
	noCapacity     prometheus.Counter
	channelFill    *prometheus.GaugeVec
	confirmations  *prometheus.CounterVec
	settlementPaid prometheus.Counter
	settlementRuns *prometheus.CounterVec
	intakeRequests *prometheus.CounterVec
	intakeLatency  *prometheus.HistogramVec
}

var (
	ledgerOnce     sync.Once
	ledgerRegistry *LedgerMetrics
)

func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cashbot_transactions_total",
				Help: "Ledger transitions by kind and resulting status.",
			}, []string{"kind", "status"}),
			amounts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cashbot_transaction_amount_total",
				Help: "Sum of completed transaction amounts by kind.",
			}, []string{"kind"}),
			noCapacity: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "cashbot_no_capacity_total",
				Help: "Deposits refused because no channel had enough headroom.",
			}),
			channelFill: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "cashbot_channel_filled",
				Help: "Current filled amount per channel.",
			}, []string{"channel"}),
			confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cashbot_confirmations_total",
				Help: "Provider notifications by provider and outcome.",
			}, []string{"provider", "outcome"}),
			settlementPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "cashbot_referral_paid_total",
				Help: "Total referral commission paid out.",
			}),
			settlementRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cashbot_settlement_runs_total",
				Help: "Settlement runs by result.",
			}, []string{"result"}),
			intakeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cashbot_intake_requests_total",
				Help: "Intake HTTP requests by route and status code.",
			}, []string{"route", "status"}),
			intakeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "cashbot_intake_request_duration_seconds",
				Help:    "Intake HTTP request latency.",
				Buckets: prometheus.DefBuckets,
			}, []string{"route"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.transactions,
			ledgerRegistry.amounts,
			ledgerRegistry.noCapacity,
			ledgerRegistry.channelFill,
			ledgerRegistry.confirmations,
			ledgerRegistry.settlementPaid,
			ledgerRegistry.settlementRuns,
			ledgerRegistry.intakeRequests,
			ledgerRegistry.intakeLatency,
		)
	})
	return ledgerRegistry
}

func (m *LedgerMetrics) ObserveTransition(kind, status string, amount int64) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(kind, status).Inc()
	if status == "completed" {
		m.amounts.WithLabelValues(kind).Add(float64(amount))
	}
}

func (m *LedgerMetrics) IncNoCapacity() {
	if m == nil {
		return
	}
	m.noCapacity.Inc()
}

func (m *LedgerMetrics) SetChannelFill(number string, filled int64) {
	if m == nil {
		return
	}
	m.channelFill.WithLabelValues(number).Set(float64(filled))
}

func (m *LedgerMetrics) ObserveConfirmation(provider, outcome string) {
	if m == nil {
		return
	}
	if provider == "" {
		provider = "unknown"
	}
	m.confirmations.WithLabelValues(provider, outcome).Inc()
}

func (m *LedgerMetrics) ObserveSettlement(result string, paid int64) {
	if m == nil {
		return
	}
	m.settlementRuns.WithLabelValues(result).Inc()
	if paid > 0 {
		m.settlementPaid.Add(float64(paid))
	}
}

func (m *LedgerMetrics) ObserveIntake(route, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.intakeRequests.WithLabelValues(route, status).Inc()
	m.intakeLatency.WithLabelValues(route).Observe(took.Seconds())
}
