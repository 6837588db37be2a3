// Package observability provides metrics and tracing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogshive_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blogshive_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnections is the gauge of open WebSocket connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blogshive_websocket_connections",
		Help: "Number of open WebSocket connections",
	})

	// WebSocketRegisteredUsers is the gauge of users with at least one registered socket.
	WebSocketRegisteredUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blogshive_websocket_registered_users",
		Help: "Number of users with at least one registered socket on this instance",
	})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogshive_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogshive_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})

	// NotificationsCreated counts persisted notifications by type.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogshive_notifications_created_total",
		Help: "Total notifications persisted by type",
	}, []string{"type"})

	// NotificationPushes counts real-time push attempts by result.
	NotificationPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogshive_notification_pushes_total",
		Help: "Notification push attempts by result",
	}, []string{"result"})

	// RelationshipChanges counts follow graph mutations by action.
	RelationshipChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogshive_relationship_changes_total",
		Help: "Follow graph mutations by action",
	}, []string{"action"})
)

