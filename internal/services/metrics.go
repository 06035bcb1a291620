package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// eventsTotal counts processed events by intent and outcome
	// (ok, fallback, skipped, duplicate).
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachbot_events_total",
			Help: "Webhook message events processed, by intent and result.",
		},
		[]string{"intent", "result"},
	)

	// gateDecisions counts entitlement checks by decision (allowed, denied).
	gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachbot_gate_decisions_total",
			Help: "Entitlement gate decisions.",
		},
		[]string{"decision"},
	)

	// generationLatency records generator call duration by intent and status
	// (ok, error).
	generationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coachbot_generation_duration_seconds",
			Help:    "Duration of generation calls in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"intent", "status"},
	)

	replyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coachbot_reply_failures_total",
			Help: "Reply calls rejected by the messaging platform.",
		},
	)
)

func init() {
	prometheus.MustRegister(eventsTotal, gateDecisions, generationLatency, replyFailures)
}
