// Package metrics holds the Prometheus collectors for deltactl and the
// optional listener that exposes them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks outbound requests, cache effectiveness and sign-ins.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CacheLookups    *prometheus.CounterVec
	SignIns         *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deltactl_http_requests_total",
			Help: "Outbound data requests by endpoint, method and outcome",
		}, []string{"endpoint", "method", "outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deltactl_http_request_duration_seconds",
			Help:    "Duration of outbound data requests",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint", "method"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deltactl_cache_lookups_total",
			Help: "Data cache lookups by endpoint and result (hit or miss)",
		}, []string{"endpoint", "result"}),
		SignIns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deltactl_sign_ins_total",
			Help: "Interactive sign-in attempts by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveRequest records one outbound request. Call with the time the request
// started.
func (m *Metrics) ObserveRequest(endpoint, method, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(endpoint, method, outcome).Inc()
	m.RequestDuration.WithLabelValues(endpoint, method).Observe(time.Since(start).Seconds())
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(endpoint string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(endpoint, result).Inc()
}

// SignIn records the outcome of an interactive sign-in.
func (m *Metrics) SignIn(outcome string) {
	if m == nil {
		return
	}
	m.SignIns.WithLabelValues(outcome).Inc()
}
