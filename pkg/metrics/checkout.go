package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// CheckoutMetrics records settlement, persistence and confirmation outcomes.
type CheckoutMetrics struct {
	settlements        *prometheus.CounterVec
	settlementDuration *prometheus.HistogramVec
	persistence        *prometheus.CounterVec
	emails             *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
}

// NewCheckoutMetrics registers the checkout collectors on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlements_total",
		Help:      "Payment settlement attempts by method and outcome.",
	}, []string{"method", "outcome"})
	settlementDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "settlement_duration_seconds",
		Help:      "Time spent settling a payment.",
		Buckets:   []float64{.1, .5, 1, 1.5, 2, 3, 5, 10},
	}, []string{"method"})
	persistence := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_persistence_total",
		Help:      "Order writes by channel (remote, local) and outcome.",
	}, []string{"channel", "outcome"})
	emails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "confirmation_emails_total",
		Help:      "Confirmation email dispatches by outcome.",
	}, []string{"outcome"})
	breakerState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
	}, []string{"name"})
	reg.MustRegister(settlements, settlementDuration, persistence, emails, breakerState)
	return &CheckoutMetrics{
		settlements:        settlements,
		settlementDuration: settlementDuration,
		persistence:        persistence,
		emails:             emails,
		breakerState:       breakerState,
	}
}

// ObserveSettlement records one settlement attempt.
func (m *CheckoutMetrics) ObserveSettlement(method, outcome string, duration time.Duration) {
	if m == nil || m.settlements == nil {
		return
	}
	method = normalizeLabel(method)
	m.settlements.WithLabelValues(method, normalizeLabel(outcome)).Inc()
	m.settlementDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// IncPersistence records the outcome of one persistence channel.
func (m *CheckoutMetrics) IncPersistence(channel, outcome string) {
	if m == nil || m.persistence == nil {
		return
	}
	m.persistence.WithLabelValues(normalizeLabel(channel), normalizeLabel(outcome)).Inc()
}

// IncEmail records a confirmation dispatch outcome.
func (m *CheckoutMetrics) IncEmail(outcome string) {
	if m == nil || m.emails == nil {
		return
	}
	m.emails.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// SetBreakerState publishes the numeric state of the named breaker.
func (m *CheckoutMetrics) SetBreakerState(name string, state float64) {
	if m == nil || m.breakerState == nil {
		return
	}
	m.breakerState.WithLabelValues(normalizeLabel(name)).Set(state)
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
