package platform

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. All methods are safe on
// a nil receiver so components can run without metrics in tests and the CLI.
type Metrics struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	quotes          *prometheus.CounterVec
	capsApplied     *prometheus.CounterVec
	codeLookups     *prometheus.CounterVec
	leads           *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry, along with the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lawnquote",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by route and status code.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		quotes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lawnquote",
				Name:      "quotes_total",
				Help:      "Quotes priced, by plan and term.",
			},
			[]string{"plan", "term"},
		),
		capsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lawnquote",
				Name:      "promotion_caps_applied_total",
				Help:      "Quotes where a stack cap truncated a promotion, by group.",
			},
			[]string{"group"},
		),
		codeLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lawnquote",
				Name:      "promo_code_lookups_total",
				Help:      "Promo code lookups by validity.",
			},
			[]string{"valid"},
		),
		leads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lawnquote",
				Name:      "leads_total",
				Help:      "Lead submissions by outcome.",
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.requestDuration,
		m.quotes,
		m.capsApplied,
		m.codeLookups,
		m.leads,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) IncQuote(plan, term string) {
	if m == nil {
		return
	}
	m.quotes.WithLabelValues(plan, term).Inc()
}

func (m *Metrics) IncCapApplied(group string) {
	if m == nil {
		return
	}
	m.capsApplied.WithLabelValues(group).Inc()
}

func (m *Metrics) IncCodeLookup(valid bool) {
	if m == nil {
		return
	}
	m.codeLookups.WithLabelValues(strconv.FormatBool(valid)).Inc()
}

// IncLead counts a lead submission. outcome is one of stored, rejected,
// failed or stored_with_warnings.
func (m *Metrics) IncLead(outcome string) {
	if m == nil {
		return
	}
	m.leads.WithLabelValues(outcome).Inc()
}
