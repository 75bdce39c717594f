package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "messages_sent_total",
			Help:      "Messages persisted by the send operation.",
		},
		[]string{"kind", "status"}, // kind: direct|group
	)

	MessagesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "messages_marked_read_total",
			Help:      "Messages transitioned to read, by status update or conversation listing.",
		},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "notifications_created_total",
			Help:      "Notification records written.",
		},
		[]string{"type"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "realtime",
			Name:      "events_published_total",
			Help:      "Events handed to the hub, by type and result.",
		},
		[]string{"event", "result"}, // result: accepted|dropped
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "realtime",
			Name:      "events_delivered_total",
			Help:      "Event frames written to websocket connections.",
		},
		[]string{"event"},
	)

	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "realtime",
			Name:      "connected_clients",
			Help:      "Websocket connections currently registered with the hub.",
		},
	)

	OutboxDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outbox",
			Name:      "events_dispatched_total",
			Help:      "Outbox events processed, by origin and result.",
		},
		[]string{"origin", "result"}, // origin: inline|relay
	)
)
