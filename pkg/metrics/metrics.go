// Package metrics holds the Prometheus collectors exposed at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "betihari"

	LabelRoute  = "route"
	LabelMethod = "method"
	LabelCode   = "code"
	LabelResult = "result"
	LabelKind   = "kind"
	LabelType   = "type"

	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics owns a private registry so several instances can coexist in tests.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	logins        *prometheus.CounterVec
	checkouts     *prometheus.CounterVec
	emails        *prometheus.CounterVec
	interactions  *prometheus.CounterVec
	donations     prometheus.Counter
	donationCents prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests by route, method and status code.",
		}, []string{LabelRoute, LabelMethod, LabelCode}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_time_seconds",
			Help:      "Duration of HTTP responses.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{LabelRoute, LabelMethod}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Dashboard login attempts by result.",
		}, []string{LabelResult}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_sessions_total",
			Help:      "Checkout session creations by kind and result.",
		}, []string{LabelKind, LabelResult}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Outbound emails by kind and result.",
		}, []string{LabelKind, LabelResult}),
		interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "story_interactions_total",
			Help:      "Story interactions by activity type.",
		}, []string{LabelType}),
		donations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donations_completed_total",
			Help:      "Completed checkout sessions reported by the payment webhook.",
		}),
		donationCents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donations_amount_cents_total",
			Help:      "Sum of completed checkout amounts in cents.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.logins, m.checkouts, m.emails,
		m.interactions, m.donations, m.donationCents,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) LoginAttempt(success bool) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result(success)).Inc()
}

func (m *Metrics) CheckoutSession(kind string, success bool) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(kind, result(success)).Inc()
}

func (m *Metrics) EmailSent(kind string, success bool) {
	if m == nil {
		return
	}
	m.emails.WithLabelValues(kind, result(success)).Inc()
}

func (m *Metrics) Interaction(activity string) {
	if m == nil {
		return
	}
	m.interactions.WithLabelValues(activity).Inc()
}

func (m *Metrics) DonationCompleted(amountCents int64) {
	if m == nil {
		return
	}
	m.donations.Inc()
	if amountCents > 0 {
		m.donationCents.Add(float64(amountCents))
	}
}
