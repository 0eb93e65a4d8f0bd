package ptscontrol

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric label values.
const (
	resultOK        = "ok"
	resultError     = "error"
	resultUnchanged = "unchanged"

	relayLog          = "log"
	relayImplicitSend = "implicit_send"

	outcomeDelivered = "delivered"
	outcomeDropped   = "dropped"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

var (
	engineCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopts_engine_calls_total",
			Help: "Total number of calls made to the PTS engine.",
		},
		[]string{"method", "result"},
	)

	engineCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autopts_engine_call_duration_seconds",
			Help:    "PTS engine call duration in seconds.",
			Buckets: []float64{.001, .01, .1, 1, 10, 60, 300, 900},
		},
		[]string{"method"},
	)

	relayEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopts_relay_events_total",
			Help: "Engine notifications handled by the relays, by outcome.",
		},
		[]string{"relay", "outcome"},
	)

	receiverBound = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autopts_receiver_bound",
			Help: "1 while a receiver is bound for a test case run.",
		},
	)
)

func init() {
	prometheus.MustRegister(engineCallsTotal)
	prometheus.MustRegister(engineCallDuration)
	prometheus.MustRegister(relayEventsTotal)
	prometheus.MustRegister(receiverBound)

	for _, relay := range []string{relayLog, relayImplicitSend} {
		for _, outcome := range []string{outcomeDelivered, outcomeDropped, outcomeRejected, outcomeFailed} {
			relayEventsTotal.WithLabelValues(relay, outcome)
		}
	}
}

func observeEngineCall(method string, start time.Time, result string) {
	engineCallsTotal.WithLabelValues(method, result).Inc()
	engineCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
