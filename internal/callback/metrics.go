package callback

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopts_callback_calls_total",
			Help: "Receiver calls forwarded over the callback connection.",
		},
		[]string{"side", "method", "result"},
	)

	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autopts_callback_call_duration_seconds",
			Help:    "Round-trip duration of forwarded receiver calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(callsTotal)
	prometheus.MustRegister(callDuration)

	for _, side := range []string{"client", "server"} {
		for _, method := range []string{MethodLog, MethodImplicitSend} {
			for _, result := range []string{"ok", "error"} {
				callsTotal.WithLabelValues(side, method, result)
			}
		}
	}
}

func observeCall(side, method string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	callsTotal.WithLabelValues(side, method, result).Inc()
	if side == "client" {
		callDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}
