package function

import (
	"fmt"

	"github.com/vjranagit/telemetry/pkg/types"
)

// BinaryOp combines two scalars
type BinaryOp func(a, b types.Number) types.Number

// Apply combines two numbers or collections with op.
// A scalar paired with a collection is first expanded to the collection's shape.
func Apply(a, b types.Value, op BinaryOp) (types.Value, error) {
	switch x := a.(type) {
	case types.Number:
		switch y := b.(type) {
		case types.Number:
			return op(x, y), nil
		case *types.StreamCollection:
			if y == nil {
				break
			}
			return Combine(Expand(x, y), y, op)
		}
	case *types.StreamCollection:
		if x == nil {
			break
		}
		switch y := b.(type) {
		case types.Number:
			return Combine(x, Expand(y, x), op)
		case *types.StreamCollection:
			if y == nil {
				break
			}
			return Combine(x, y, op)
		}
	}
	return nil, fmt.Errorf("%w: expected numbers or stream collections, got %s and %s",
		ErrParameterType, types.KindOf(a), types.KindOf(b))
}

// Expand returns a collection with the tags and periods of shape where every value is scalar
func Expand(scalar types.Number, shape *types.StreamCollection) *types.StreamCollection {
	out := types.NewStreamCollection(shape.Name(), shape.Project(), shape.Interval())
	for _, s := range shape.Streams() {
		expanded := types.NewStream(s.Tag())
		for _, p := range s.Periods() {
			// periods come from a valid stream, so Add cannot fail
			_ = expanded.Add(types.NewDataPoint(p, scalar))
		}
		_ = out.Add(expanded)
	}
	return out
}

// Combine applies op value by value to two collections with identical tags and periods.
// A null on either side yields a null result for that period.
func Combine(left, right *types.StreamCollection, op BinaryOp) (*types.StreamCollection, error) {
	if left.Len() != right.Len() {
		return nil, fmt.Errorf("%w: %d streams versus %d", ErrShapeMismatch, left.Len(), right.Len())
	}

	out := types.NewStreamCollection(left.Name(), left.Project(), left.Interval())
	for _, ls := range left.Streams() {
		rs, ok := right.Stream(ls.Tag())
		if !ok {
			return nil, fmt.Errorf("%w: stream %s missing on the right-hand side", ErrShapeMismatch, ls.Tag())
		}
		if ls.Len() != rs.Len() {
			return nil, fmt.Errorf("%w: stream %s has %d periods versus %d", ErrShapeMismatch, ls.Tag(), ls.Len(), rs.Len())
		}

		combined := types.NewStream(ls.Tag())
		for _, lp := range ls.Points() {
			rp, ok := rs.Point(lp.Period())
			if !ok {
				return nil, fmt.Errorf("%w: stream %s has no %s on the right-hand side", ErrShapeMismatch, ls.Tag(), lp.Period())
			}
			if err := combined.Add(combinePoint(lp, rp, op)); err != nil {
				return nil, err
			}
		}
		if err := out.Add(combined); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func combinePoint(l, r types.DataPoint, op BinaryOp) types.DataPoint {
	lv, lok := l.Value()
	rv, rok := r.Value()
	if !lok || !rok {
		return types.NullDataPoint(l.Period())
	}
	return types.NewDataPoint(l.Period(), op(lv, rv))
}
