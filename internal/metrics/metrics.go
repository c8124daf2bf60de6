package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "reconcile_outcomes_total",
		Help:      "Inbound messages by reconciliation outcome.",
	}, []string{"outcome"})
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "messages_sent_total",
		Help:      "Local sends appended as provisional messages.",
	})
	SendsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "sends_rejected_total",
		Help:      "Local actions rejected before reaching the network.",
	}, []string{"reason"})
	ModerationEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "moderation_events_total",
		Help:      "Inbound kick and mute events.",
	}, []string{"event"})
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "transport_reconnects_total",
		Help:      "Successful (re)connections of the push channel.",
	})
	DroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "transport_dropped_frames_total",
		Help:      "Inbound frames that could not be decoded or handled.",
	})
	OpenTabs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatsync",
		Name:      "open_tabs",
		Help:      "Tabs currently open in the session.",
	})
	PendingMessages = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatsync",
		Name:      "pending_messages",
		Help:      "Provisional messages awaiting their server echo.",
	})
	ArchiveErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "archive_errors_total",
		Help:      "Transcript archive writes that failed.",
	})
)
