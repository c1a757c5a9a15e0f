// Package metrics exposes the server's prometheus collectors. Collectors
// are registered once at package init and written through package-level
// helpers so call sites stay one-liners.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks currently open channel connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "syncbox",
		Subsystem: "channel",
		Name:      "connections_active",
		Help:      "Number of open websocket connections.",
	})

	// ConnectionsTotal counts accepted channel connections.
	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "syncbox",
		Subsystem: "channel",
		Name:      "connections_total",
		Help:      "Total accepted websocket connections.",
	})

	// EventsReceived counts inbound channel events by name.
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncbox",
		Subsystem: "channel",
		Name:      "events_received_total",
		Help:      "Inbound channel events by event name.",
	}, []string{"event"})

	// BroadcastsSent counts outbound broadcast deliveries by event name.
	BroadcastsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncbox",
		Subsystem: "channel",
		Name:      "broadcasts_sent_total",
		Help:      "Outbound broadcast deliveries by event name.",
	}, []string{"event"})

	// HTTPRequests counts HTTP requests by method, route pattern and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncbox",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status class.",
	}, []string{"method", "route", "status"})

	// StoreErrors counts unexpected persistence failures.
	StoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "syncbox",
		Subsystem: "store",
		Name:      "errors_total",
		Help:      "Unexpected persistence layer failures.",
	})
)
