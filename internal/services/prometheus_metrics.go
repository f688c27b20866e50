package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusMetrics struct {
	transfersTotal            *prometheus.CounterVec
	transferDuration          prometheus.Histogram
	transferAmount            prometheus.Histogram
	feeCollected              prometheus.Counter
	lockWaitTimeouts          prometheus.Counter
	idempotentReplays         prometheus.Counter
	circuitBreakerState       *prometheus.GaugeVec
	authenticationEventsTotal *prometheus.CounterVec
	activeAccountsTotal       prometheus.Gauge
}

// NewPrometheusMetrics registers the engine's collectors with reg. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry.
func NewPrometheusMetrics(reg prometheus.Registerer) MetricsRecorderInterface {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfers_total",
				Help: "Total number of transfers processed by outcome",
			},
			[]string{"status"},
		),
		transferDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "transfer_duration_milliseconds",
				Help:    "Transfer processing duration in milliseconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		transferAmount: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "transfer_amount",
				Help:    "Transfer amount in base currency units",
				Buckets: prometheus.ExponentialBuckets(1, 10, 8),
			},
		),
		feeCollected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "transfer_fees_collected_total",
				Help: "Number of fee-bearing transfers completed",
			},
		),
		lockWaitTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "transfer_lock_timeouts_total",
				Help: "Transfers that timed out waiting for account locks",
			},
		),
		idempotentReplays: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "transfer_idempotent_replays_total",
				Help: "Submissions answered from a recorded outcome",
			},
		),
		circuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"service"},
		),
		authenticationEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authentication_events_total",
				Help: "Total number of authentication events",
			},
			[]string{"event_type"},
		),
		activeAccountsTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_accounts_total",
				Help: "Accounts currently registered in the ledger",
			},
		),
	}
}

func (m *PrometheusMetrics) IncrementCounter(name string, tags map[string]string) {
	status := tags["status"]

	switch name {
	case "transfers_total":
		if status == "" {
			return
		}
		m.transfersTotal.WithLabelValues(status).Inc()
		switch status {
		case "replayed":
			m.idempotentReplays.Inc()
		case "lock_timeout":
			m.lockWaitTimeouts.Inc()
		case "completed":
			m.feeCollected.Inc()
		}
	case "circuit_breaker.open":
		m.circuitBreakerState.WithLabelValues(tags["service"]).Set(1)
	case "authentication_event":
		if eventType := tags["event_type"]; eventType != "" {
			m.authenticationEventsTotal.WithLabelValues(eventType).Inc()
		}
	}
}

func (m *PrometheusMetrics) RecordProcessingTime(name string, duration time.Duration) {
	switch name {
	case "transfer_duration_success", "transfer_duration_failed":
		m.transferDuration.Observe(float64(duration.Milliseconds()))
	}
}

func (m *PrometheusMetrics) RecordGauge(name string, value float64, tags map[string]string) {
	switch name {
	case "transfer_amount":
		m.transferAmount.Observe(value)
	case "active_accounts":
		m.activeAccountsTotal.Set(value)
	case "circuit_breaker_state":
		m.circuitBreakerState.WithLabelValues(tags["service"]).Set(value)
	}
}
