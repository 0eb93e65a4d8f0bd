package runner

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nrfconnect/auto-pts/internal/model"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopts_runs_total",
			Help: "Finished test case runs by status and verdict.",
		},
		[]string{"status", "verdict"},
	)

	activeRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autopts_active_runs",
			Help: "Number of test case runs currently executing.",
		},
	)

	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autopts_run_duration_seconds",
			Help:    "Test case run duration in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(activeRuns)
	prometheus.MustRegister(runDuration)

	for _, status := range []string{model.StatusCompleted, model.StatusFailed} {
		for _, verdict := range []string{model.VerdictPass, model.VerdictFail, model.VerdictInconc, model.VerdictError} {
			runsTotal.WithLabelValues(status, verdict)
		}
	}
}
