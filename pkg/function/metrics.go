package function

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// functionCalls counts registry dispatches.
	// Labels: function (registered name, or "unknown"), status (ok, error)
	functionCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telemetry",
		Subsystem: "function",
		Name:      "calls_total",
		Help:      "Total function registry calls by function and status",
	}, []string{"function", "status"})
)
