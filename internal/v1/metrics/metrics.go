package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the town service.
//
// Naming convention: namespace_subsystem_name
// - namespace: covey_town (application-level grouping)
// - subsystem: websocket, town, video (feature-level grouping)
// - name: specific metric (connections_active, events_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, towns, players)
// - Counter: Cumulative events (messages processed, errors)
// - Histogram: Latency distributions (processing time)

var (
	// ActiveWebSocketConnections tracks the current number of subscribed sockets
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "covey_town",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveTowns tracks the current number of towns in the store
	ActiveTowns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "covey_town",
		Subsystem: "town",
		Name:      "towns_active",
		Help:      "Current number of active towns",
	})

	// TownPlayers tracks the number of players in each town
	TownPlayers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "covey_town",
		Subsystem: "town",
		Name:      "players_count",
		Help:      "Number of players in each town",
	}, []string{"town_id"})

	// ConversationAreas tracks the number of live conversation areas per town
	ConversationAreas = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "covey_town",
		Subsystem: "town",
		Name:      "conversation_areas_active",
		Help:      "Number of live conversation areas in each town",
	}, []string{"town_id"})

	// WebsocketEvents tracks the total number of WebSocket events processed
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "covey_town",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"event_type", "status"})

	// MessageProcessingDuration tracks the time spent processing WebSocket messages
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "covey_town",
		Subsystem: "websocket",
		Name:      "message_processing_seconds",
		Help:      "Time spent processing WebSocket messages",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event_type"})

	// VideoTokenMints tracks video token mint attempts by outcome
	VideoTokenMints = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "covey_town",
		Subsystem: "video",
		Name:      "token_mints_total",
		Help:      "Total video token mint attempts",
	}, []string{"status"})

	// RateLimitRequests tracks requests that passed rate limiting
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "covey_town",
		Subsystem: "ratelimit",
		Name:      "requests_total",
		Help:      "Total requests checked by the rate limiter",
	}, []string{"path"})

	// RateLimitExceeded tracks requests rejected by rate limiting
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "covey_town",
		Subsystem: "ratelimit",
		Name:      "exceeded_total",
		Help:      "Total requests rejected by the rate limiter",
	}, []string{"path", "limit_type"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
