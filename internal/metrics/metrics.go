package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CandleCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "candle_cache_lookups_total", Help: "Candle cache lookups by result (hit, stale, miss)"},
		[]string{"result"},
	)
	ProviderFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "provider_fetches_total", Help: "Upstream candle fetch attempts by provider and outcome"},
		[]string{"provider", "outcome"},
	)
	SignalsIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_issued_total", Help: "Signals returned to callers by action"},
		[]string{"action"},
	)
	BiasTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bias_transitions_total", Help: "Bias state transitions by kind (set, clear)"},
		[]string{"kind"},
	)
	NotificationsEmitted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bias_notifications_total", Help: "Bias change notifications surfaced to consumers"},
	)
	ActiveTrades = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "active_trades", Help: "Currently registered active trades"},
	)
)

func init() {
	prometheus.MustRegister(
		CandleCacheLookups,
		ProviderFetches,
		SignalsIssued,
		BiasTransitions,
		NotificationsEmitted,
		ActiveTrades,
	)
}
