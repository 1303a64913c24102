package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PresenceStats reports the occupancy figures exported as gauges.
type PresenceStats interface {
	Participants() int
	Rooms() int
}

// Metrics is the set of collectors exported by one hub. Each hub owns its
// own registry so that several hubs can coexist in a test binary.
type Metrics struct {
	registry     *prometheus.Registry
	connections  prometheus.Gauge
	events       *prometheus.CounterVec
	dropped      prometheus.Counter
	joinRejected prometheus.Counter
}

// NewMetrics creates the collectors. Participant and room gauges are read from
// stats on every scrape.
func NewMetrics(stats PresenceStats) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roomchat",
			Name:      "connections",
			Help:      "Open WebSocket connections.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomchat",
			Name:      "events_total",
			Help:      "Inbound events handled, by event name.",
		}, []string{"event"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roomchat",
			Name:      "notifications_dropped_total",
			Help:      "Outbound frames discarded because the peer's buffer was full.",
		}),
		joinRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roomchat",
			Name:      "join_rejected_total",
			Help:      "Join requests refused by validation.",
		}),
	}

	m.registry.MustRegister(
		m.connections,
		m.events,
		m.dropped,
		m.joinRejected,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "roomchat",
			Name:      "participants",
			Help:      "Connections currently joined to a room.",
		}, func() float64 { return float64(stats.Participants()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "roomchat",
			Name:      "rooms",
			Help:      "Rooms with at least one participant.",
		}, func() float64 { return float64(stats.Rooms()) }),
	)
	return m
}

// Handler exposes the hub's metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
