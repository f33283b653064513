package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the costing counters.
const (
	OutcomeApplied  = "applied"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// CostingMetrics records import reconciliation and menu lock activity.
type CostingMetrics struct {
	importRows      *prometheus.CounterVec
	importConfirms  *prometheus.CounterVec
	confirmDuration prometheus.Histogram
	lockTransitions *prometheus.CounterVec
	reportCache     *prometheus.CounterVec
}

// NewCostingMetrics registers the costing metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCostingMetrics(reg prometheus.Registerer) *CostingMetrics {
	if reg == nil {
		return &CostingMetrics{}
	}
	importRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cost_import_rows_total",
		Help: "Cost import rows classified, by parse status.",
	}, []string{"status"})
	importConfirms := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cost_import_confirms_total",
		Help: "Cost import confirmations, by outcome.",
	}, []string{"outcome"})
	confirmDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cost_import_confirm_duration_seconds",
		Help:    "Duration of cost import confirmations in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	lockTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "menu_cost_mode_transitions_total",
		Help: "Menu lock and unlock transitions, by target mode and outcome.",
	}, []string{"mode", "outcome"})
	reportCache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "menu_locked_report_cache_total",
		Help: "Locked menu report cache lookups, by result.",
	}, []string{"result"})
	reg.MustRegister(importRows, importConfirms, confirmDuration, lockTransitions, reportCache)
	return &CostingMetrics{
		importRows:      importRows,
		importConfirms:  importConfirms,
		confirmDuration: confirmDuration,
		lockTransitions: lockTransitions,
		reportCache:     reportCache,
	}
}

// AddImportRows counts n rows classified with status.
func (m *CostingMetrics) AddImportRows(status string, n int) {
	if m == nil || m.importRows == nil || n <= 0 {
		return
	}
	m.importRows.WithLabelValues(normalizeLabel(status)).Add(float64(n))
}

// ObserveConfirm records the outcome and duration of one confirmation.
func (m *CostingMetrics) ObserveConfirm(outcome string, duration time.Duration) {
	if m == nil || m.importConfirms == nil {
		return
	}
	m.importConfirms.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.confirmDuration.Observe(duration.Seconds())
}

// IncLockTransition counts a lock or unlock attempt.
func (m *CostingMetrics) IncLockTransition(mode, outcome string) {
	if m == nil || m.lockTransitions == nil {
		return
	}
	m.lockTransitions.WithLabelValues(normalizeLabel(mode), normalizeLabel(outcome)).Inc()
}

// IncReportCache counts a locked report cache hit or miss.
func (m *CostingMetrics) IncReportCache(hit bool) {
	if m == nil || m.reportCache == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.reportCache.WithLabelValues(result).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
