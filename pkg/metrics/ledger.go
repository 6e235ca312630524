package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records wallet operation outcomes and latency.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	rejections *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	flagged    prometheus.Counter
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Completed wallet ledger operations.",
	}, []string{"operation"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_rejections_total",
		Help: "Wallet ledger operations rejected before applying.",
	}, []string{"operation", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_operation_duration_seconds",
		Help:    "Duration of wallet ledger operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	flagged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fraud_flagged_total",
		Help: "Transactions flagged for fraud review.",
	})
	reg.MustRegister(operations, rejections, duration, flagged)
	return &LedgerMetrics{
		operations: operations,
		rejections: rejections,
		duration:   duration,
		flagged:    flagged,
	}
}

// IncOperation counts one applied ledger operation.
func (m *LedgerMetrics) IncOperation(operation string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncRejection counts one rejected ledger operation by error code.
func (m *LedgerMetrics) IncRejection(operation, code string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(operation), normalizeLabel(code)).Inc()
}

// ObserveDuration records the latency for the named operation.
func (m *LedgerMetrics) ObserveDuration(operation string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(operation)).Observe(d.Seconds())
}

// IncFlagged counts one fraud-flagged transaction.
func (m *LedgerMetrics) IncFlagged() {
	if m == nil || m.flagged == nil {
		return
	}
	m.flagged.Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return strings.ReplaceAll(value, " ", "_")
}
