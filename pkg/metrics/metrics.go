package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveRooms tracks rooms currently registered in the hub
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codeblocks_active_rooms",
		Help: "Number of live mentoring rooms.",
	})

	// ActiveConnections tracks open websocket connections
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codeblocks_active_connections",
		Help: "Number of open websocket connections.",
	})

	// Broadcasts counts frames fanned out to room participants
	Broadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codeblocks_broadcasts_total",
		Help: "Frames delivered to room participants.",
	})

	// ProtocolViolations counts dropped client events
	ProtocolViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codeblocks_protocol_violations_total",
		Help: "Client events rejected for arriving in an invalid state.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
