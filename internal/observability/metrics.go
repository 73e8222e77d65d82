package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the Prometheus collectors for the streaming client.
type Metrics struct {
	registry *prometheus.Registry

	// Connections is the number of open websocket channels, by channel kind.
	Connections *prometheus.GaugeVec

	// ReconnectAttempts counts scheduled reconnects, by channel kind.
	ReconnectAttempts *prometheus.CounterVec

	// FramesDecoded counts successfully decoded video frames, by chunk kind.
	FramesDecoded *prometheus.CounterVec

	// DecodeErrors counts swallowed decode errors.
	DecodeErrors prometheus.Counter

	// FramesDropped counts frames discarded by latest-frame-wins backpressure.
	FramesDropped prometheus.Counter

	// MessagesDropped counts malformed messages dropped before decode.
	MessagesDropped *prometheus.CounterVec

	// SnapshotsReceived counts state channel snapshots applied.
	SnapshotsReceived prometheus.Counter
}

// NewMetrics creates the metric set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: reg,
		Connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "arenalive",
			Name:      "ws_connections",
			Help:      "Open websocket channels by kind.",
		}, []string{"channel"}),
		ReconnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arenalive",
			Name:      "ws_reconnect_attempts_total",
			Help:      "Scheduled reconnect attempts by channel kind.",
		}, []string{"channel"}),
		FramesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arenalive",
			Name:      "frames_decoded_total",
			Help:      "Successfully decoded video frames by chunk kind.",
		}, []string{"kind"}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arenalive",
			Name:      "decode_errors_total",
			Help:      "Decode errors swallowed by the pipeline.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arenalive",
			Name:      "frames_dropped_total",
			Help:      "Frames discarded by latest-frame-wins backpressure.",
		}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arenalive",
			Name:      "messages_dropped_total",
			Help:      "Malformed messages dropped by reason.",
		}, []string{"reason"}),
		SnapshotsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arenalive",
			Name:      "snapshots_received_total",
			Help:      "State channel snapshots applied.",
		}),
	}

	reg.MustRegister(
		m.Connections,
		m.ReconnectAttempts,
		m.FramesDecoded,
		m.DecodeErrors,
		m.FramesDropped,
		m.MessagesDropped,
		m.SnapshotsReceived,
	)

	return m
}

// Registry returns the underlying Prometheus registry for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
