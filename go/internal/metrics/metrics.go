package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gateway holds Prometheus collectors for the meeting sync gateway.
type Gateway struct {
	registry           *prometheus.Registry
	broadcastsTotal    *prometheus.CounterVec
	malformedTotal     prometheus.Counter
	rejectedTotal      *prometheus.CounterVec
	droppedConnections prometheus.Counter
	activeRooms        prometheus.Gauge
	activeConnections  prometheus.Gauge
}

// NewGateway creates and registers the gateway collectors on a private registry.
func NewGateway() *Gateway {
	registry := prometheus.NewRegistry()

	broadcastsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_broadcasts_total",
		Help: "Total number of messages fanned out to a room, by message type",
	}, []string{"type"})
	malformedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meeting_malformed_messages_total",
		Help: "Total number of undecodable client messages dropped",
	})
	rejectedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_rejected_requests_total",
		Help: "Total number of client requests rejected, by reason",
	}, []string{"reason"})
	droppedConnections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meeting_dropped_connections_total",
		Help: "Total number of connections closed because their send buffer was full",
	})
	activeRooms := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "meeting_active_rooms",
		Help: "Number of rooms with at least one connection",
	})
	activeConnections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "meeting_active_connections",
		Help: "Number of open websocket connections",
	})

	registry.MustRegister(
		broadcastsTotal,
		malformedTotal,
		rejectedTotal,
		droppedConnections,
		activeRooms,
		activeConnections,
	)

	return &Gateway{
		registry:           registry,
		broadcastsTotal:    broadcastsTotal,
		malformedTotal:     malformedTotal,
		rejectedTotal:      rejectedTotal,
		droppedConnections: droppedConnections,
		activeRooms:        activeRooms,
		activeConnections:  activeConnections,
	}
}

func (m *Gateway) RecordBroadcast(messageType string) {
	m.broadcastsTotal.WithLabelValues(messageType).Inc()
}

func (m *Gateway) RecordMalformedMessage() {
	m.malformedTotal.Inc()
}

func (m *Gateway) RecordRejected(reason string) {
	m.rejectedTotal.WithLabelValues(reason).Inc()
}

func (m *Gateway) RecordDroppedConnection() {
	m.droppedConnections.Inc()
}

// SetActive sets the room and connection gauges.
func (m *Gateway) SetActive(rooms, connections int) {
	m.activeRooms.Set(float64(rooms))
	m.activeConnections.Set(float64(connections))
}

// Handler returns an http.Handler that serves the registry.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Gateway) Handler(updateGauges func()) http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		h.ServeHTTP(w, r)
	})
}
