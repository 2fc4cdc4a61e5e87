// Package evaluator evaluates telemetry expressions and definitions.
//
// Evaluation is a recursive walk over the expression tree. Reducer calls read
// project data through the reducer registry, function calls combine values
// through the function registry, and references between definitions go
// through a Resolver. An Evaluator holds no per-call state, so one value can
// serve any number of concurrent evaluations.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vjranagit/telemetry/pkg/ast"
	"github.com/vjranagit/telemetry/pkg/function"
	"github.com/vjranagit/telemetry/pkg/reducer"
	"github.com/vjranagit/telemetry/pkg/types"
)

// Resolver looks up definitions by name on behalf of a requester.
// ast.KindAny matches a definition of any kind.
type Resolver interface {
	Resolve(ctx context.Context, name string, kind ast.DefinitionKind, requester string) (ast.Definition, error)
}

// Context is what every reducer call of one evaluation shares
type Context struct {
	Project   types.Project
	Interval  types.Interval
	Requester string
}

// Bindings maps template variable names to their actual values
type Bindings map[string]types.Value

// Evaluator evaluates expressions against explicit registries
type Evaluator struct {
	functions *function.Registry
	reducers  *reducer.Registry
	resolver  Resolver
	logger    *slog.Logger
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithLogger sets the logger for evaluation traces
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// New returns an evaluator. resolver may be nil when only Eval is used.
func New(functions *function.Registry, reducers *reducer.Registry, resolver Resolver, opts ...Option) *Evaluator {
	e := &Evaluator{
		functions: functions,
		reducers:  reducers,
		resolver:  resolver,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bind pairs declared variables with actual parameters by position
func Bind(variables []ast.Variable, params []types.Value) (Bindings, error) {
	if len(variables) != len(params) {
		return nil, &Error{Reason: fmt.Sprintf("expected %d parameters, got %d", len(variables), len(params))}
	}
	b := make(Bindings, len(variables))
	for i, v := range variables {
		if types.KindOf(params[i]) == types.KindInvalid {
			return nil, &Error{Reason: fmt.Sprintf("parameter %s has no value", v.Name)}
		}
		b[v.Name] = params[i]
	}
	return b, nil
}

// Eval evaluates expr. The result is a number, a string or a stream collection.
// Function and reducer errors are returned unchanged.
func (e *Evaluator) Eval(ctx context.Context, expr ast.Expression, bindings Bindings, ectx Context) (types.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch x := expr.(type) {
	case ast.NumberConstant:
		return x.Number, nil

	case ast.StringConstant:
		return types.Text(x.Text), nil

	case ast.Variable:
		v, ok := bindings[x.Name]
		if !ok {
			return nil, &Error{Reason: fmt.Sprintf("variable %s is not bound", x.Name)}
		}
		return v, nil

	case *ast.ReducerCall:
		params := make([]string, 0, len(x.Params()))
		for _, p := range x.Params() {
			s, err := reducerParam(p, bindings)
			if err != nil {
				return nil, err
			}
			params = append(params, s)
		}
		if e.reducers == nil {
			return nil, &Error{Reason: fmt.Sprintf("no reducer registry for %s", x.Name())}
		}
		return e.reducers.Compute(ctx, x.Name(), ectx.Project, ectx.Interval, params)

	case *ast.FunctionCall:
		params := make([]types.Value, 0, len(x.Params()))
		for _, p := range x.Params() {
			v, err := e.Eval(ctx, p, bindings, ectx)
			if err != nil {
				return nil, err
			}
			params = append(params, v)
		}
		if e.functions == nil {
			return nil, &Error{Reason: fmt.Sprintf("no function registry for %s", x.Name())}
		}
		return e.functions.Compute(x.Name(), params)

	default:
		return nil, &Error{Reason: fmt.Sprintf("cannot evaluate expression %T", expr)}
	}
}

// reducerParam renders a reducer parameter as the string a reducer receives
func reducerParam(p ast.Expression, bindings Bindings) (string, error) {
	switch x := p.(type) {
	case ast.Constant:
		return x.Value().String(), nil
	case ast.Variable:
		v, ok := bindings[x.Name]
		if !ok {
			return "", &Error{Reason: fmt.Sprintf("variable %s is not bound", x.Name)}
		}
		switch types.KindOf(v) {
		case types.KindText, types.KindNumber:
			return v.String(), nil
		default:
			return "", &Error{Reason: fmt.Sprintf("variable %s holds a %s, reducers take strings and numbers", x.Name, types.KindOf(v))}
		}
	default:
		return "", &Error{Reason: fmt.Sprintf("illegal reducer parameter %s", p)}
	}
}

// referenceParams evaluates the actual parameters of a reference in the caller's bindings
func (e *Evaluator) referenceParams(ctx context.Context, params []ast.Expression, bindings Bindings, ectx Context) ([]types.Value, error) {
	out := make([]types.Value, 0, len(params))
	for _, p := range params {
		v, err := e.Eval(ctx, p, bindings, ectx)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
