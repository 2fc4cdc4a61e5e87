package function

import (
	"fmt"

	"github.com/vjranagit/telemetry/pkg/types"
)

// Integral operands give an integral result, anything else a float.
func add(a, b types.Number) types.Number {
	if a.IsIntegral() && b.IsIntegral() {
		return types.Int(a.Int64() + b.Int64())
	}
	return types.Float(a.Float64() + b.Float64())
}

func sub(a, b types.Number) types.Number {
	if a.IsIntegral() && b.IsIntegral() {
		return types.Int(a.Int64() - b.Int64())
	}
	return types.Float(a.Float64() - b.Float64())
}

func mul(a, b types.Number) types.Number {
	if a.IsIntegral() && b.IsIntegral() {
		return types.Int(a.Int64() * b.Int64())
	}
	return types.Float(a.Float64() * b.Float64())
}

// div is always a float; division by zero follows IEEE 754.
func div(a, b types.Number) types.Number {
	return types.Float(a.Float64() / b.Float64())
}

// arithmetic lifts a BinaryOp to a two-parameter function
type arithmetic struct {
	op BinaryOp
}

func (a arithmetic) Compute(params []types.Value) (types.Value, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("%w: expected 2, got %d", ErrArity, len(params))
	}
	return Apply(params[0], params[1], a.op)
}

// idempotent returns its single parameter unchanged
type idempotent struct{}

func (idempotent) Compute(params []types.Value) (types.Value, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("%w: expected 1, got %d", ErrArity, len(params))
	}
	return params[0], nil
}
