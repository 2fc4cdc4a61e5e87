// Package function holds the registry of telemetry functions and the built-in
// arithmetic, identity and filter implementations.
//
// A Registry is immutable once built and safe for concurrent Compute calls as
// long as every registered Function is stateless.
package function

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vjranagit/telemetry/pkg/types"
)

var (
	// ErrUnknownFunction is returned for names missing from the registry
	ErrUnknownFunction = errors.New("unknown function")
	// ErrParameterType is returned when a parameter is not of an accepted kind
	ErrParameterType = errors.New("invalid parameter type")
	// ErrResultType is returned when an implementation yields neither a number nor a collection
	ErrResultType = errors.New("invalid result type")
	// ErrArity is returned when the parameter count is wrong
	ErrArity = errors.New("wrong number of parameters")
	// ErrShapeMismatch is returned when two collections cannot be combined elementwise
	ErrShapeMismatch = errors.New("stream collections do not align")
)

// Error wraps every failure of a function call with the function name
type Error struct {
	Function string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("function %s: %v", e.Function, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Function computes a number or a stream collection from its parameters.
// Implementations must be stateless.
type Function interface {
	Compute(params []types.Value) (types.Value, error)
}

// Parameter documents one declared parameter
type Parameter struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Metadata is the human readable description of a function
type Metadata struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Parameters  []Parameter `json:"parameters" yaml:"parameters"`
}

// Entry binds metadata to an implementation
type Entry struct {
	Metadata
	Impl Function
}

// Registry maps case-insensitive names to functions
type Registry struct {
	entries map[string]Entry
}

// NewRegistry builds a registry. Names are unique ignoring case.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("function entry has no name")
		}
		if e.Impl == nil {
			return nil, fmt.Errorf("function %s has no implementation", e.Name)
		}
		key := strings.ToLower(e.Name)
		if _, exists := r.entries[key]; exists {
			return nil, fmt.Errorf("function %s registered twice", e.Name)
		}
		r.entries[key] = e
	}
	return r, nil
}

// IsFunction reports whether name is registered, ignoring case
func (r *Registry) IsFunction(name string) bool {
	_, ok := r.entries[strings.ToLower(name)]
	return ok
}

// Describe returns the metadata for name
func (r *Registry) Describe(name string) (Metadata, bool) {
	e, ok := r.entries[strings.ToLower(name)]
	return e.Metadata, ok
}

// List returns the metadata of every function sorted by name
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

// Compute validates params, dispatches to the implementation and validates its result.
// Every failure is an *Error naming the function.
func (r *Registry) Compute(name string, params []types.Value) (types.Value, error) {
	e, ok := r.entries[strings.ToLower(name)]
	if !ok {
		functionCalls.WithLabelValues("unknown", "error").Inc()
		return nil, &Error{Function: name, Err: ErrUnknownFunction}
	}

	for i, p := range params {
		if types.KindOf(p) == types.KindInvalid {
			functionCalls.WithLabelValues(e.Name, "error").Inc()
			return nil, &Error{Function: e.Name, Err: fmt.Errorf("%w: parameter %d is nil", ErrParameterType, i)}
		}
	}

	result, err := e.Impl.Compute(params)
	if err != nil {
		functionCalls.WithLabelValues(e.Name, "error").Inc()
		return nil, &Error{Function: e.Name, Err: err}
	}

	switch types.KindOf(result) {
	case types.KindNumber, types.KindCollection:
	default:
		functionCalls.WithLabelValues(e.Name, "error").Inc()
		return nil, &Error{Function: e.Name, Err: fmt.Errorf("%w: implementation returned %s", ErrResultType, types.KindOf(result))}
	}

	functionCalls.WithLabelValues(e.Name, "ok").Inc()
	return result, nil
}
