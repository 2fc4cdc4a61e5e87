package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vjranagit/telemetry/pkg/ast"
	"github.com/vjranagit/telemetry/pkg/types"
)

const (
	entryStreams = "streams"
	entryChart   = "chart"
	entryReport  = "report"
	entryDraw    = "draw"
)

// EvalStreams evaluates a streams definition with its actual parameters.
// The result must be a stream collection; it is named after the definition.
func (e *Evaluator) EvalStreams(ctx context.Context, def *ast.StreamsDefinition, params []types.Value, ectx Context) (*types.StreamCollection, error) {
	if def == nil {
		return nil, &Error{Reason: "no streams definition"}
	}

	var out *types.StreamCollection
	err := e.instrument(ctx, entryStreams, def.Name(), ectx, func(ctx context.Context) (err error) {
		out, err = e.evalStreams(ctx, def, params, ectx)
		return err
	})
	return out, err
}

// StreamsByName resolves a streams definition for the requester and evaluates it
func (e *Evaluator) StreamsByName(ctx context.Context, name string, params []types.Value, ectx Context) (*types.StreamCollection, error) {
	var out *types.StreamCollection
	err := e.instrument(ctx, entryStreams, name, ectx, func(ctx context.Context) error {
		def, err := resolveAs[*ast.StreamsDefinition](ctx, e, name, ast.KindStreams, ectx.Requester)
		if err != nil {
			return err
		}
		out, err = e.evalStreams(ctx, def, params, ectx)
		return err
	})
	return out, err
}

// EvalChart evaluates every subchart of a chart concurrently
func (e *Evaluator) EvalChart(ctx context.Context, def *ast.ChartDefinition, params []types.Value, ectx Context) (*ChartResult, error) {
	if def == nil {
		return nil, &Error{Reason: "no chart definition"}
	}

	var out *ChartResult
	err := e.instrument(ctx, entryChart, def.Name(), ectx, func(ctx context.Context) (err error) {
		out, err = e.evalChart(ctx, def, params, ectx)
		return err
	})
	return out, err
}

// ChartByName resolves a chart definition for the requester and evaluates it
func (e *Evaluator) ChartByName(ctx context.Context, name string, params []types.Value, ectx Context) (*ChartResult, error) {
	var out *ChartResult
	err := e.instrument(ctx, entryChart, name, ectx, func(ctx context.Context) error {
		def, err := resolveAs[*ast.ChartDefinition](ctx, e, name, ast.KindChart, ectx.Requester)
		if err != nil {
			return err
		}
		out, err = e.evalChart(ctx, def, params, ectx)
		return err
	})
	return out, err
}

// EvalReport evaluates every chart of a report concurrently
func (e *Evaluator) EvalReport(ctx context.Context, def *ast.ReportDefinition, params []types.Value, ectx Context) (*ReportResult, error) {
	if def == nil {
		return nil, &Error{Reason: "no report definition"}
	}

	var out *ReportResult
	err := e.instrument(ctx, entryReport, def.Name(), ectx, func(ctx context.Context) (err error) {
		out, err = e.evalReport(ctx, def, params, ectx)
		return err
	})
	return out, err
}

// ReportByName resolves a report definition for the requester and evaluates it
func (e *Evaluator) ReportByName(ctx context.Context, name string, params []types.Value, ectx Context) (*ReportResult, error) {
	var out *ReportResult
	err := e.instrument(ctx, entryReport, name, ectx, func(ctx context.Context) error {
		def, err := resolveAs[*ast.ReportDefinition](ctx, e, name, ast.KindReport, ectx.Requester)
		if err != nil {
			return err
		}
		out, err = e.evalReport(ctx, def, params, ectx)
		return err
	})
	return out, err
}

// Draw resolves the command's target by name alone and evaluates it with the command's constants
func (e *Evaluator) Draw(ctx context.Context, cmd *ast.DrawCommand, ectx Context) (*DrawResult, error) {
	if cmd == nil {
		return nil, &Error{Reason: "no draw command"}
	}

	var out *DrawResult
	err := e.instrument(ctx, entryDraw, cmd.Name(), ectx, func(ctx context.Context) error {
		def, err := e.resolve(ctx, cmd.Name(), ast.KindAny, ectx.Requester)
		if err != nil {
			return err
		}

		constants := cmd.Params()
		params := make([]types.Value, len(constants))
		for i, c := range constants {
			params[i] = c.Value()
		}

		out = &DrawResult{Kind: def.Kind()}
		switch d := def.(type) {
		case *ast.StreamsDefinition:
			out.Streams, err = e.evalStreams(ctx, d, params, ectx)
		case *ast.ChartDefinition:
			out.Chart, err = e.evalChart(ctx, d, params, ectx)
		case *ast.ReportDefinition:
			out.Report, err = e.evalReport(ctx, d, params, ectx)
		default:
			err = &Error{Definition: cmd.Name(), Reason: fmt.Sprintf("a %s definition cannot be drawn", def.Kind())}
		}
		if err != nil {
			out = nil
		}
		return err
	})
	return out, err
}

// instrument wraps one top-level evaluation with a span, metrics and debug logs
func (e *Evaluator) instrument(ctx context.Context, entry, name string, ectx Context, fn func(context.Context) error) error {
	id := uuid.NewString()
	ctx, span := startSpan(ctx, id, entry, name, ectx)

	interval := ""
	if ectx.Interval != nil {
		interval = ectx.Interval.String()
	}
	logger := e.logger.With(
		"evaluation_id", id,
		"entry", entry,
		"definition", name,
		"project", ectx.Project.String(),
		"interval", interval,
	)
	logger.DebugContext(ctx, "evaluation started")

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	status := errorClass(err)
	evaluations.WithLabelValues(entry, status).Inc()
	evaluationDuration.WithLabelValues(entry).Observe(elapsed.Seconds())
	endSpan(span, err)

	if err != nil {
		logger.DebugContext(ctx, "evaluation failed", "status", status, "duration", elapsed, "error", err)
	} else {
		logger.DebugContext(ctx, "evaluation finished", "duration", elapsed)
	}
	return err
}

func (e *Evaluator) evalStreams(ctx context.Context, def *ast.StreamsDefinition, params []types.Value, ectx Context) (*types.StreamCollection, error) {
	if def == nil {
		return nil, &Error{Reason: "no streams definition"}
	}
	bindings, err := Bind(def.Variables(), params)
	if err != nil {
		return nil, withDefinition(err, def.Name())
	}

	v, err := e.Eval(ctx, def.Expression(), bindings, ectx)
	if err != nil {
		return nil, withDefinition(err, def.Name())
	}

	sc, ok := v.(*types.StreamCollection)
	if !ok || sc == nil {
		return nil, &Error{Definition: def.Name(), Reason: fmt.Sprintf("expression yields a %s, not a stream collection", types.KindOf(v))}
	}
	return renamed(sc, def.Name())
}

func (e *Evaluator) evalChart(ctx context.Context, def *ast.ChartDefinition, params []types.Value, ectx Context) (*ChartResult, error) {
	if def == nil {
		return nil, &Error{Reason: "no chart definition"}
	}
	bindings, err := Bind(def.Variables(), params)
	if err != nil {
		return nil, withDefinition(err, def.Name())
	}

	subCharts := def.SubCharts()
	series := make([]ChartSeries, len(subCharts))

	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range subCharts {
		g.Go(func() error {
			s, err := e.evalSubChart(gctx, sub, bindings, ectx)
			if err != nil {
				return withDefinition(err, def.Name())
			}
			series[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ChartResult{
		Name:      def.Name(),
		Title:     def.Title(),
		DocString: def.DocString(),
		Series:    series,
	}, nil
}

func (e *Evaluator) evalSubChart(ctx context.Context, sub ast.SubChart, bindings Bindings, ectx Context) (ChartSeries, error) {
	streamParams, err := e.referenceParams(ctx, sub.Streams.Params(), bindings, ectx)
	if err != nil {
		return ChartSeries{}, err
	}
	streamsDef, err := resolveAs[*ast.StreamsDefinition](ctx, e, sub.Streams.Target(), ast.KindStreams, ectx.Requester)
	if err != nil {
		return ChartSeries{}, err
	}
	sc, err := e.evalStreams(ctx, streamsDef, streamParams, ectx)
	if err != nil {
		return ChartSeries{}, err
	}

	axisParams, err := e.referenceParams(ctx, sub.YAxis.Params(), bindings, ectx)
	if err != nil {
		return ChartSeries{}, err
	}
	axisDef, err := resolveAs[*ast.YAxisDefinition](ctx, e, sub.YAxis.Target(), ast.KindYAxis, ectx.Requester)
	if err != nil {
		return ChartSeries{}, err
	}
	axis, err := e.evalAxis(ctx, axisDef, axisParams, ectx)
	if err != nil {
		return ChartSeries{}, err
	}

	return ChartSeries{Streams: sc, Axis: axis}, nil
}

// evalAxis binds the axis label. Bounds were validated when the definition was built.
func (e *Evaluator) evalAxis(ctx context.Context, def *ast.YAxisDefinition, params []types.Value, ectx Context) (Axis, error) {
	bindings, err := Bind(def.Variables(), params)
	if err != nil {
		return Axis{}, withDefinition(err, def.Name())
	}

	label, err := e.Eval(ctx, def.Label(), bindings, ectx)
	if err != nil {
		return Axis{}, withDefinition(err, def.Name())
	}
	if types.KindOf(label) == types.KindCollection {
		return Axis{}, &Error{Definition: def.Name(), Reason: "label is bound to a stream collection"}
	}

	axis := Axis{
		Name:       def.Name(),
		Label:      label.String(),
		NumberType: def.NumberType(),
		AutoScaled: def.AutoScaled(),
	}
	if lower, upper, ok := def.Bounds(); ok {
		axis.Lower, axis.Upper = &lower, &upper
	}
	return axis, nil
}

func (e *Evaluator) evalReport(ctx context.Context, def *ast.ReportDefinition, params []types.Value, ectx Context) (*ReportResult, error) {
	if def == nil {
		return nil, &Error{Reason: "no report definition"}
	}
	bindings, err := Bind(def.Variables(), params)
	if err != nil {
		return nil, withDefinition(err, def.Name())
	}

	refs := def.Charts()
	charts := make([]*ChartResult, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			chartParams, err := e.referenceParams(gctx, ref.Params(), bindings, ectx)
			if err != nil {
				return withDefinition(err, def.Name())
			}
			chartDef, err := resolveAs[*ast.ChartDefinition](gctx, e, ref.Target(), ast.KindChart, ectx.Requester)
			if err != nil {
				return err
			}
			charts[i], err = e.evalChart(gctx, chartDef, chartParams, ectx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ReportResult{
		Name:      def.Name(),
		Title:     def.Title(),
		DocString: def.DocString(),
		Charts:    charts,
	}, nil
}

func (e *Evaluator) resolve(ctx context.Context, name string, kind ast.DefinitionKind, requester string) (ast.Definition, error) {
	if e.resolver == nil {
		return nil, &ResolutionError{Name: name, Kind: kind, Err: errors.New("no resolver configured")}
	}
	def, err := e.resolver.Resolve(ctx, name, kind, requester)
	if err != nil {
		return nil, &ResolutionError{Name: name, Kind: kind, Err: err}
	}
	if def == nil {
		return nil, &ResolutionError{Name: name, Kind: kind}
	}
	if kind != ast.KindAny && def.Kind() != kind {
		return nil, &ResolutionError{Name: name, Kind: kind, Err: fmt.Errorf("found a %s definition", def.Kind())}
	}
	return def, nil
}

func resolveAs[T ast.Definition](ctx context.Context, e *Evaluator, name string, kind ast.DefinitionKind, requester string) (T, error) {
	var zero T
	def, err := e.resolve(ctx, name, kind, requester)
	if err != nil {
		return zero, err
	}
	typed, ok := def.(T)
	if !ok {
		return zero, &ResolutionError{Name: name, Kind: kind, Err: fmt.Errorf("unexpected definition type %T", def)}
	}
	return typed, nil
}

// withDefinition names the innermost definition on contract errors that do not carry one
func withDefinition(err error, name string) error {
	var evalErr *Error
	if errors.As(err, &evalErr) && evalErr.Definition == "" {
		evalErr.Definition = name
	}
	return err
}

// renamed returns sc under the definition's name, sharing its streams
func renamed(sc *types.StreamCollection, name string) (*types.StreamCollection, error) {
	if sc.Name() == name {
		return sc, nil
	}
	out := types.NewStreamCollection(name, sc.Project(), sc.Interval())
	for _, s := range sc.Streams() {
		if err := out.Add(s); err != nil {
			return nil, err
		}
	}
	return out, nil
}
