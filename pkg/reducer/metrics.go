package reducer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// reducerCalls counts registry dispatches.
	// Labels: reducer (registered name, or "unknown"), status (ok, error)
	reducerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telemetry",
		Subsystem: "reducer",
		Name:      "calls_total",
		Help:      "Total reducer registry calls by reducer and status",
	}, []string{"reducer", "status"})

	// reducerDuration tracks reducer latency, which is dominated by storage reads
	reducerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "telemetry",
		Subsystem: "reducer",
		Name:      "duration_seconds",
		Help:      "Reducer compute latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"reducer"})
)
