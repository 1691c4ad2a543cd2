// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Relay metrics exported through prometheus/client_golang.
// A nil *Metrics is valid and records nothing.

package control

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "canvasrelay"

// Drop reasons.
const (
	DropQueueFull  = "queue_full"
	DropConnClosed = "conn_closed"
	DropFiltered   = "filtered"
)

// Metrics holds the relay collectors.
type Metrics struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	handshakeFailures *prometheus.CounterVec
	framesReceived    prometheus.Counter
	frameErrors       *prometheus.CounterVec
	broadcasts        prometheus.Counter
	deliveries        prometheus.Counter
	dropped           *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Handshaked connections currently registered.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connections that completed the handshake.",
		}),
		handshakeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_failures_total",
			Help:      "Rejected upgrade requests by reason.",
		}, []string{"reason"}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Text frames decoded from clients.",
		}),
		frameErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_errors_total",
			Help:      "Frames rejected by the codec, by frame kind.",
		}, []string{"kind"}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Messages fanned out to peers.",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Frames accepted into peer outbound queues.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_total",
			Help:      "Frames dropped before delivery, by reason.",
		}, []string{"reason"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served by the companion server.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.connectionsActive,
			m.connectionsTotal,
			m.handshakeFailures,
			m.framesReceived,
			m.frameErrors,
			m.broadcasts,
			m.deliveries,
			m.dropped,
			m.httpRequests,
			m.httpDuration,
		)
	}
	return m
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.connectionsActive.Inc()
	m.connectionsTotal.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

func (m *Metrics) HandshakeFailed(reason string) {
	if m == nil {
		return
	}
	m.handshakeFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) FrameReceived() {
	if m == nil {
		return
	}
	m.framesReceived.Inc()
}

func (m *Metrics) FrameRejected(kind string) {
	if m == nil {
		return
	}
	m.frameErrors.WithLabelValues(kind).Inc()
}

// Broadcast records one fan-out that reached delivered peers.
func (m *Metrics) Broadcast(delivered int) {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
	m.deliveries.Add(float64(delivered))
}

func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

// DroppedN records n frames dropped for the same reason.
func (m *Metrics) DroppedN(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.WithLabelValues(reason).Add(float64(n))
}

// HTTPRequest records one request served by the companion server.
func (m *Metrics) HTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusLabel := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	m.httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
