package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *LedgerMetrics
	assert.NotPanics(t, func() {
		m.ObserveTransition("deposit", "completed", 100)
		m.IncNoCapacity()
		m.SetChannelFill("0991", 10)
		m.ObserveConfirmation("", "matched")
		m.ObserveSettlement("paid", 10)
		m.ObserveIntake("/health", "200", time.Millisecond)
	})
}

func TestLedgerMetrics(t *testing.T) {
	m := Ledger()
	assert.Same(t, m, Ledger())

	m.ObserveTransition("deposit", "completed", 2000)
	m.ObserveTransition("deposit", "completed", 500)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.transactions.WithLabelValues("deposit", "completed")))
	assert.Equal(t, float64(2500), testutil.ToFloat64(m.amounts.WithLabelValues("deposit")))

	m.ObserveConfirmation("", "unparsed")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.confirmations.WithLabelValues("unknown", "unparsed")))
}
