package function

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vjranagit/telemetry/pkg/types"
)

// filter keeps the streams of a collection whose score passes a selector.
//
//	Filter(collection, metric, selector, cutoff)
//
// metric is max, min, avg or last and scores each stream over its non-null values.
// selector is top or bottom (keep cutoff streams) or above or below (compare scores to cutoff).
// Streams without any value are dropped.
type filter struct{}

type scored struct {
	stream *types.Stream
	score  float64
	order  int
}

func (filter) Compute(params []types.Value) (types.Value, error) {
	if len(params) != 4 {
		return nil, fmt.Errorf("%w: expected 4, got %d", ErrArity, len(params))
	}
	sc, ok := params[0].(*types.StreamCollection)
	if !ok {
		return nil, fmt.Errorf("%w: parameter 0 must be a stream collection, got %s", ErrParameterType, types.KindOf(params[0]))
	}
	metric, ok := params[1].(types.Text)
	if !ok {
		return nil, fmt.Errorf("%w: parameter 1 must be a string, got %s", ErrParameterType, types.KindOf(params[1]))
	}
	selector, ok := params[2].(types.Text)
	if !ok {
		return nil, fmt.Errorf("%w: parameter 2 must be a string, got %s", ErrParameterType, types.KindOf(params[2]))
	}
	cutoff, ok := params[3].(types.Number)
	if !ok {
		return nil, fmt.Errorf("%w: parameter 3 must be a number, got %s", ErrParameterType, types.KindOf(params[3]))
	}

	score, err := scorer(strings.ToLower(string(metric)))
	if err != nil {
		return nil, err
	}

	var candidates []scored
	for i, s := range sc.Streams() {
		if v, ok := score(s); ok {
			candidates = append(candidates, scored{stream: s, score: v, order: i})
		}
	}

	var kept []scored
	switch strings.ToLower(string(selector)) {
	case "top", "bottom":
		if !cutoff.IsWholeValued() || cutoff.Float64() < 0 {
			return nil, fmt.Errorf("%s needs a non-negative whole cutoff, got %s", selector, cutoff)
		}
		desc := strings.EqualFold(string(selector), "top")
		sort.SliceStable(candidates, func(i, j int) bool {
			if desc {
				return candidates[i].score > candidates[j].score
			}
			return candidates[i].score < candidates[j].score
		})
		n := len(candidates)
		if cutoff.Float64() < float64(n) {
			n = int(cutoff.Int64())
		}
		kept = candidates[:n]
	case "above":
		for _, c := range candidates {
			if c.score > cutoff.Float64() {
				kept = append(kept, c)
			}
		}
	case "below":
		for _, c := range candidates {
			if c.score < cutoff.Float64() {
				kept = append(kept, c)
			}
		}
	default:
		return nil, fmt.Errorf("unknown selector %q, expected top, bottom, above or below", selector)
	}

	// keep the input order of the surviving streams
	sort.Slice(kept, func(i, j int) bool { return kept[i].order < kept[j].order })

	out := types.NewStreamCollection(sc.Name(), sc.Project(), sc.Interval())
	for _, c := range kept {
		cp := types.NewStream(c.stream.Tag())
		for _, dp := range c.stream.Points() {
			if err := cp.Add(dp); err != nil {
				return nil, err
			}
		}
		if err := out.Add(cp); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scorer(metric string) (func(*types.Stream) (float64, bool), error) {
	switch metric {
	case "max":
		return foldValues(func(acc, v float64) float64 {
			if v > acc {
				return v
			}
			return acc
		}), nil
	case "min":
		return foldValues(func(acc, v float64) float64 {
			if v < acc {
				return v
			}
			return acc
		}), nil
	case "last":
		return foldValues(func(_, v float64) float64 { return v }), nil
	case "avg":
		return func(s *types.Stream) (float64, bool) {
			var sum float64
			var n int
			for _, dp := range s.Points() {
				if v, ok := dp.Value(); ok {
					sum += v.Float64()
					n++
				}
			}
			if n == 0 {
				return 0, false
			}
			return sum / float64(n), true
		}, nil
	default:
		return nil, fmt.Errorf("unknown filter metric %q, expected max, min, avg or last", metric)
	}
}

// foldValues folds the non-null values of a stream in period order
func foldValues(step func(acc, v float64) float64) func(*types.Stream) (float64, bool) {
	return func(s *types.Stream) (float64, bool) {
		var acc float64
		seen := false
		for _, dp := range s.Points() {
			v, ok := dp.Value()
			if !ok {
				continue
			}
			if !seen {
				acc, seen = v.Float64(), true
				continue
			}
			acc = step(acc, v.Float64())
		}
		return acc, seen
	}
}
