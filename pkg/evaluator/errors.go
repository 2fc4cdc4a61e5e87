package evaluator

import (
	"fmt"

	"github.com/vjranagit/telemetry/pkg/ast"
)

// Error reports a broken evaluation contract, such as an unbound variable, a
// parameter count mismatch or a streams definition that yields a number.
type Error struct {
	Definition string
	Reason     string
}

func (e *Error) Error() string {
	if e.Definition == "" {
		return "evaluation failed: " + e.Reason
	}
	return fmt.Sprintf("evaluation of %s failed: %s", e.Definition, e.Reason)
}

// ResolutionError reports a referenced definition that does not exist or is not visible
type ResolutionError struct {
	Name string
	Kind ast.DefinitionKind
	Err  error
}

func (e *ResolutionError) Error() string {
	kind := string(e.Kind)
	if e.Kind == ast.KindAny {
		kind = "definition"
	}
	if e.Err == nil {
		return fmt.Sprintf("cannot resolve %s %s", kind, e.Name)
	}
	return fmt.Sprintf("cannot resolve %s %s: %v", kind, e.Name, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
