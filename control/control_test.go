package control

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()
	m.HandshakeFailed("missing_key")
	m.FrameReceived()
	m.FrameRejected("extended_length")
	m.Broadcast(3)
	m.Broadcast(0)
	m.Dropped(DropQueueFull)
	m.DroppedN(DropConnClosed, 4)
	m.DroppedN(DropConnClosed, 0)
	m.HTTPRequest("GET", "/healthz", 200, 3*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handshakeFailures.WithLabelValues("missing_key")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.frameErrors.WithLabelValues("extended_length")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.broadcasts))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.deliveries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues(DropQueueFull)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.dropped.WithLabelValues(DropConnClosed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/healthz", "200")))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnOpened()
		m.ConnClosed()
		m.HandshakeFailed("x")
		m.FrameReceived()
		m.FrameRejected("x")
		m.Broadcast(1)
		m.Dropped("x")
		m.DroppedN("x", 2)
		m.HTTPRequest("GET", "/", 200, time.Millisecond)
	})
}

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("answer", func() any { return 42 })
	dp.RegisterProbe("answer", func() any { return 43 })
	RegisterRuntimeProbes(dp)

	state := dp.DumpState()
	assert.Equal(t, 43, state["answer"])
	assert.Contains(t, state, "runtime.goroutines")
	assert.Contains(t, state, "runtime.version")
}

func TestDebugProbeMayRegister(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("reentrant", func() any {
		dp.RegisterProbe("late", func() any { return true })
		return "ok"
	})
	assert.NotPanics(t, func() { dp.DumpState() })
	assert.Equal(t, true, dp.DumpState()["late"])
}
