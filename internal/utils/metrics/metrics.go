package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
// All Record methods are nil-safe so callers can pass a nil *Metrics
// when instrumentation is disabled.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Webhook metrics
	WebhookEventsTotal       *prometheus.CounterVec
	WebhookSignatureFailures *prometheus.CounterVec

	// Settlement metrics
	SettlementsTotal        *prometheus.CounterVec
	SettlementFailuresTotal *prometheus.CounterVec

	// Payment link metrics
	PaymentLinksTotal *prometheus.CounterVec

	// Gateway metrics
	GatewayRequestDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance with all metrics registered.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "veralix"
	}

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Webhook metrics
		WebhookEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "events_total",
				Help:      "Total number of webhook events received",
			},
			[]string{"gateway", "outcome"}, // outcome: settled, declined, pending, duplicate, unknown_reference, error
		),
		WebhookSignatureFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "signature_failures_total",
				Help:      "Total number of webhook signature verification failures",
			},
			[]string{"gateway"},
		),

		// Settlement metrics
		SettlementsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "settlement",
				Name:      "settlements_total",
				Help:      "Total number of settled purchases",
			},
			[]string{"gateway", "payment_type"},
		),
		SettlementFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "settlement",
				Name:      "failures_total",
				Help:      "Total number of settlement failures requiring operator attention",
			},
			[]string{"gateway"},
		),

		// Payment link metrics
		PaymentLinksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payment",
				Name:      "links_total",
				Help:      "Total number of payment link creation attempts",
			},
			[]string{"gateway", "status"}, // status: created, failed
		),

		// Gateway metrics
		GatewayRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Outbound gateway request duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"gateway", "operation"}, // operation: create_link, get_link, create_transaction, acceptance_token
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusStr := statusCodeToString(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWebhookEvent records a processed webhook event by outcome.
func (m *Metrics) RecordWebhookEvent(gateway, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEventsTotal.WithLabelValues(gateway, outcome).Inc()
}

// RecordSignatureFailure records a webhook signature verification failure.
func (m *Metrics) RecordSignatureFailure(gateway string) {
	if m == nil {
		return
	}
	m.WebhookSignatureFailures.WithLabelValues(gateway).Inc()
}

// RecordSettlement records a successful settlement.
func (m *Metrics) RecordSettlement(gateway, paymentType string) {
	if m == nil {
		return
	}
	m.SettlementsTotal.WithLabelValues(gateway, paymentType).Inc()
}

// RecordSettlementFailure records a failed settlement attempt.
func (m *Metrics) RecordSettlementFailure(gateway string) {
	if m == nil {
		return
	}
	m.SettlementFailuresTotal.WithLabelValues(gateway).Inc()
}

// RecordPaymentLink records a payment link creation attempt.
func (m *Metrics) RecordPaymentLink(gateway, status string) {
	if m == nil {
		return
	}
	m.PaymentLinksTotal.WithLabelValues(gateway, status).Inc()
}

// RecordGatewayRequest records an outbound gateway request.
func (m *Metrics) RecordGatewayRequest(gateway, operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GatewayRequestDuration.WithLabelValues(gateway, operation).Observe(duration.Seconds())
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
