package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes.
const (
	OutcomeSuccess       = "success"
	OutcomeCartNotFound  = "cart_not_found"
	OutcomeCartEmpty     = "cart_empty"
	OutcomeGatewayFailed = "gateway_error"
	OutcomeError         = "error"
)

// Webhook results.
const (
	WebhookProcessed = "processed"
	WebhookIgnored   = "ignored"
	WebhookDuplicate = "duplicate"
	WebhookRejected  = "rejected"
	WebhookError     = "error"
)

// CheckoutMetrics records checkout orchestration and webhook reconciliation.
type CheckoutMetrics struct {
	requests *prometheus.CounterVec
	duration prometheus.Histogram
	webhooks *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_requests_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout orchestration, gateway call included.",
		Buckets: prometheus.DefBuckets,
	})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Payment webhook deliveries by result.",
	}, []string{"result"})
	reg.MustRegister(requests, duration, webhooks)
	return &CheckoutMetrics{
		requests: requests,
		duration: duration,
		webhooks: webhooks,
	}
}

// ObserveCheckout records one checkout attempt.
func (m *CheckoutMetrics) ObserveCheckout(outcome string, elapsed time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// IncWebhook counts one webhook delivery.
func (m *CheckoutMetrics) IncWebhook(result string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
