package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("GET", 200, 10*time.Millisecond)
	m.Observe("GET", 200, 20*time.Millisecond)
	m.Observe("POST", 403, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "403")))
}

func TestGateMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGateMetrics(reg)
	m.Observe("delete_shift", false)
	m.Observe("delete_shift", true)
	m.Observe("", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("delete_shift", "deny")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("delete_shift", "allow")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("unknown", "deny")))
}

func TestRefillMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRefillMetrics(reg)
	m.Observe("partial")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("partial")))
}

func TestNilSafe(t *testing.T) {
	var h *HTTPMetrics
	var g *GateMetrics
	var r *RefillMetrics
	assert.NotPanics(t, func() {
		h.Observe("GET", 200, time.Second)
		g.Observe("x", true)
		r.Observe("success")
		NewHTTPMetrics(nil).Observe("GET", 200, time.Second)
		NewGateMetrics(nil).Observe("x", true)
		NewRefillMetrics(nil).Observe("failed")
	})
}
