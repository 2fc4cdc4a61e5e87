package evaluator

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("telemetry.evaluator")

var (
	// evaluations counts top-level evaluations.
	// Labels: entry (streams, chart, report, draw),
	// status (ok, contract, resolution, canceled, error)
	evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telemetry",
		Subsystem: "evaluator",
		Name:      "evaluations_total",
		Help:      "Total top-level evaluations by entry point and status",
	}, []string{"entry", "status"})

	evaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "telemetry",
		Subsystem: "evaluator",
		Name:      "evaluation_duration_seconds",
		Help:      "Top-level evaluation latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"entry"})
)

func startSpan(ctx context.Context, id, entry, name string, ectx Context) (context.Context, trace.Span) {
	return tracer.Start(ctx, "evaluator."+entry,
		trace.WithAttributes(
			attribute.String("telemetry.evaluation_id", id),
			attribute.String("telemetry.definition", name),
			attribute.String("telemetry.project", ectx.Project.String()),
			attribute.String("telemetry.requester", ectx.Requester),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// errorClass names the failure for logs and metrics
func errorClass(err error) string {
	var (
		evalErr *Error
		resErr  *ResolutionError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &evalErr):
		return "contract"
	case errors.As(err, &resErr):
		return "resolution"
	default:
		return "error"
	}
}
