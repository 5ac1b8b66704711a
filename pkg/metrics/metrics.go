package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shift"

// HTTPMetrics records request counts and latencies.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers the HTTP metrics on the provided registerer.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		return &HTTPMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method and status.",
	}, []string{"method", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
	reg.MustRegister(requests, duration)
	return &HTTPMetrics{requests: requests, duration: duration}
}

// Observe records one finished request.
func (m *HTTPMetrics) Observe(method string, status int, d time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}

// GateMetrics counts authorization decisions.
type GateMetrics struct {
	decisions *prometheus.CounterVec
}

// NewGateMetrics registers the decision counter on the provided registerer.
func NewGateMetrics(reg prometheus.Registerer) *GateMetrics {
	if reg == nil {
		return &GateMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Authorization decisions by operation and outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(decisions)
	return &GateMetrics{decisions: decisions}
}

// Observe records a decision for operation.
func (m *GateMetrics) Observe(operation string, allowed bool) {
	if m == nil || m.decisions == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.decisions.WithLabelValues(normalizeLabel(operation), outcome).Inc()
}

// RefillMetrics counts refill requests by final outcome.
type RefillMetrics struct {
	requests *prometheus.CounterVec
}

// NewRefillMetrics registers the refill counter on the provided registerer.
func NewRefillMetrics(reg prometheus.Registerer) *RefillMetrics {
	if reg == nil {
		return &RefillMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refill_requests_total",
		Help:      "Refill requests by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(requests)
	return &RefillMetrics{requests: requests}
}

// Observe increments the counter for outcome.
func (m *RefillMetrics) Observe(outcome string) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
