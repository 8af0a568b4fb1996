package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatWebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_websocket_connections_active",
			Help: "Number of registered WebSocket connections",
		},
	)

	ChatWebSocketConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_websocket_connections_total",
			Help: "Total number of accepted WebSocket connections",
		},
	)

	ChatWebSocketUsersOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_websocket_users_online",
			Help: "Number of users with at least one live connection",
		},
	)

	ChatWebSocketConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_websocket_connections_rejected_total",
			Help: "Total number of WebSocket upgrades rejected before registration",
		},
		[]string{"reason"},
	)

	ChatWebSocketDisconnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_websocket_disconnections_total",
			Help: "Total number of WebSocket disconnections",
		},
		[]string{"reason"},
	)

	ChatWebSocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_websocket_messages_total",
			Help: "Total number of inbound WebSocket frames by type",
		},
		[]string{"message_type"},
	)

	ChatWebSocketErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_websocket_errors_total",
			Help: "Total number of WebSocket errors by type",
		},
		[]string{"error_type"},
	)

	ChatWebSocketDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_websocket_deliveries_total",
			Help: "Total number of outbound frame deliveries by result",
		},
		[]string{"result"},
	)

	ChatWebSocketFrameProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_websocket_frame_processing_duration_seconds",
			Help:    "Duration of inbound frame handling in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"message_type"},
	)

	ChatPresenceMirrorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_presence_mirror_errors_total",
			Help: "Total number of failed presence mirror writes",
		},
		[]string{"operation"},
	)

	ChatMessageEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_message_events_published_total",
			Help: "Total number of message events handed to the event log by result",
		},
		[]string{"result"},
	)

	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Total number of chat HTTP requests",
		},
		[]string{"method", "path"},
	)

	ChatRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_requests_in_flight",
			Help: "Number of chat HTTP requests currently being processed",
		},
	)

	ChatRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_request_duration_seconds",
			Help:    "Duration of chat HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
