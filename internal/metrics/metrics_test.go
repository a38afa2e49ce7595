package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveJob("image", "done", 2*time.Second)
	m.ObserveJob("image", "done", time.Second)
	m.ObserveJob("link", "error", time.Second)
	m.ObserveEmbedDecision("https", true)
	m.ObserveHTTP("POST", "/v1/process", 202, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("image", "done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("link", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbedDecisions.WithLabelValues("https", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/v1/process", "202")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveJob("image", "done", time.Second)
		m.ObserveEmbedDecision("http", false)
		m.ObserveHTTP("GET", "/health", 200, time.Millisecond)
	})
}

func TestNewRegistersOncePerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
