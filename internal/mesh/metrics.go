package mesh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mesh_publish_total",
		Help: "Messages handed to the network for publishing.",
	})
	publishFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mesh_publish_failed_total",
		Help: "Publishes with zero successful deliveries or a transport error.",
	})
	receivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mesh_messages_received_total",
		Help: "Raw payloads delivered by live subscriptions.",
	})
	sessionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mesh_session_state",
		Help: "Session state: 0 disconnected, 1 connecting, 2 connected.",
	})
)
