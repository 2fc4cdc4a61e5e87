// Package reducer holds the registry of reducers, which turn raw project data
// into a stream collection covering one interval.
//
// Reducer names are matched exactly. Function names are not; the difference is
// kept on purpose until both registries are normalized together.
package reducer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vjranagit/telemetry/pkg/types"
)

var (
	// ErrUnknownReducer is returned for names missing from the registry
	ErrUnknownReducer = errors.New("unknown reducer")
	// ErrCoverage is returned when a result does not hold exactly the interval's periods
	ErrCoverage = errors.New("result does not cover the interval")
	// ErrParameter is returned for malformed reducer parameters
	ErrParameter = errors.New("invalid reducer parameter")
)

// Error wraps every failure of a reducer call with the reducer name
type Error struct {
	Reducer string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("reducer %s: %v", e.Reducer, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reducer computes a stream collection for a project over an interval.
// Every stream of the result must hold a point for each period of the interval,
// null where there is no data. Implementations must be stateless.
type Reducer interface {
	Compute(ctx context.Context, project types.Project, interval types.Interval, params []string) (*types.StreamCollection, error)
}

// Parameter documents one declared parameter
type Parameter struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Metadata is the human readable description of a reducer
type Metadata struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Parameters  []Parameter `json:"parameters" yaml:"parameters"`
}

// Entry binds metadata to an implementation
type Entry struct {
	Metadata
	Impl Reducer
}

// Registry maps case-sensitive names to reducers
type Registry struct {
	entries map[string]Entry
}

// NewRegistry builds a registry with unique names
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("reducer entry has no name")
		}
		if e.Impl == nil {
			return nil, fmt.Errorf("reducer %s has no implementation", e.Name)
		}
		if _, exists := r.entries[e.Name]; exists {
			return nil, fmt.Errorf("reducer %s registered twice", e.Name)
		}
		r.entries[e.Name] = e
	}
	return r, nil
}

// IsReducer reports whether name is registered
func (r *Registry) IsReducer(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Describe returns the metadata for name
func (r *Registry) Describe(name string) (Metadata, bool) {
	e, ok := r.entries[name]
	return e.Metadata, ok
}

// List returns the metadata of every reducer sorted by name
func (r *Registry) List() []Metadata {
	out := make([]Metadata, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Metadata)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// Compute dispatches to the named reducer and checks that its result covers the interval
func (r *Registry) Compute(ctx context.Context, name string, project types.Project, interval types.Interval, params []string) (*types.StreamCollection, error) {
	e, ok := r.entries[name]
	if !ok {
		reducerCalls.WithLabelValues("unknown", "error").Inc()
		return nil, &Error{Reducer: name, Err: ErrUnknownReducer}
	}

	start := time.Now()
	result, err := e.Impl.Compute(ctx, project, interval, append([]string(nil), params...))
	reducerDuration.WithLabelValues(e.Name).Observe(time.Since(start).Seconds())
	if err == nil {
		err = checkCoverage(result, interval)
	}
	if err != nil {
		reducerCalls.WithLabelValues(e.Name, "error").Inc()
		return nil, &Error{Reducer: e.Name, Err: err}
	}

	reducerCalls.WithLabelValues(e.Name, "ok").Inc()
	return result, nil
}

func checkCoverage(result *types.StreamCollection, interval types.Interval) error {
	if result == nil {
		return fmt.Errorf("%w: implementation returned no collection", ErrCoverage)
	}

	want := interval.Periods()
	for _, s := range result.Streams() {
		got := s.Periods()
		if len(got) != len(want) {
			return fmt.Errorf("%w: stream %s has %d periods, interval has %d", ErrCoverage, s.Tag(), len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				return fmt.Errorf("%w: stream %s has %s where %s was expected", ErrCoverage, s.Tag(), got[i], want[i])
			}
		}
	}
	return nil
}
