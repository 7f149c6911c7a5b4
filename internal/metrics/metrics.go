package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_frames_total",
		Help: "Inbound frames received per channel and decoded event type.",
	}, []string{"channel", "event"})

	DecodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_decode_failures_total",
		Help: "Frames dropped because they could not be decoded.",
	}, []string{"channel"})

	DedupeDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "console_dedupe_dropped_total",
		Help: "Notification pushes suppressed by the deduplication window.",
	})

	ReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_reconnects_total",
		Help: "Reconnect attempts scheduled after a channel close.",
	}, []string{"channel"})

	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_api_requests_total",
		Help: "REST calls to the bookstore backend by operation and outcome.",
	}, []string{"op", "status"})
)
