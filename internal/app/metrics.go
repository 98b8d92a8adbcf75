package app

import (
	"github.com/dkeye/roomchat/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the presence and fanout collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	connections prometheus.Gauge
	presence    prometheus.Gauge
	broadcasts  *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	dropped     prometheus.Counter
	kicked      prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "roomchat",
			Name:      "connections",
			Help:      "Live transport connections.",
		}),
		presence: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "roomchat",
			Name:      "presence_entries",
			Help:      "Presence entries across all rooms.",
		}),
		broadcasts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomchat",
			Name:      "broadcasts_total",
			Help:      "Room broadcasts by event type.",
		}, []string{"type"}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomchat",
			Name:      "deliveries_total",
			Help:      "Frames queued to connections by event type.",
		}, []string{"type"}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "roomchat",
			Name:      "dropped_frames_total",
			Help:      "Frames dropped because a send queue was full or closed.",
		}),
		kicked: f.NewCounter(prometheus.CounterOpts{
			Namespace: "roomchat",
			Name:      "kicked_connections_total",
			Help:      "Connections closed by the backpressure policy.",
		}),
	}
}

func (m *Metrics) SetState(connections, presence int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(connections))
	m.presence.Set(float64(presence))
}

func (m *Metrics) Kicked() {
	if m == nil {
		return
	}
	m.kicked.Inc()
}

func (m *Metrics) observeBroadcast(kind string, res core.PublishResult) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(kind).Inc()
	m.deliveries.WithLabelValues(kind).Add(float64(res.SendTo))
	m.dropped.Add(float64(len(res.Dropped)))
}
