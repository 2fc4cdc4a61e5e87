package ast

import "fmt"

// ConstructionError reports a syntactically valid definition that violates a static invariant
type ConstructionError struct {
	Definition string
	Reason     string
}

func (e *ConstructionError) Error() string {
	if e.Definition == "" {
		return "invalid definition: " + e.Reason
	}
	return fmt.Sprintf("invalid definition %s: %s", e.Definition, e.Reason)
}

// ParsingError reports malformed source text. Line and Column are 1-indexed; zero means unknown.
type ParsingError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParsingError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("parse error (position unknown): %s", e.Msg)
	}
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

// Parser turns source text into definitions. Failures are *ParsingError.
type Parser interface {
	Parse(source string) ([]Definition, error)
}
