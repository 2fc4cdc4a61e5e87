// Package ast holds the syntax tree of telemetry definitions: expressions,
// the streams/chart/y-axis/report definitions built from them, and draw commands.
//
// Nodes are immutable once constructed. Constructors that can violate a static
// invariant return a *ConstructionError instead of a node.
package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vjranagit/telemetry/pkg/types"
)

// Expression is one node of an expression tree.
// Implementations: Variable, NumberConstant, StringConstant, *FunctionCall, *ReducerCall.
type Expression interface {
	String() string
	exprNode()
}

// Constant is an Expression with a literal value
type Constant interface {
	Expression
	Value() types.Value
}

// Variable is a template variable bound when a definition is invoked
type Variable struct {
	Name string
}

// NumberConstant is a numeric literal
type NumberConstant struct {
	Number types.Number
}

// StringConstant is a string literal
type StringConstant struct {
	Text string
}

// FunctionCall applies a registered function to evaluated parameters
type FunctionCall struct {
	name   string
	params []Expression
}

// ReducerCall invokes a registered reducer with string parameters
type ReducerCall struct {
	name   string
	params []Expression
}

func (Variable) exprNode()       {}
func (NumberConstant) exprNode() {}
func (StringConstant) exprNode() {}
func (*FunctionCall) exprNode()  {}
func (*ReducerCall) exprNode()   {}

func (v Variable) String() string {
	return v.Name
}

// Value implements Constant
func (c NumberConstant) Value() types.Value {
	return c.Number
}

func (c NumberConstant) String() string {
	return c.Number.String()
}

// Value implements Constant
func (c StringConstant) Value() types.Value {
	return types.Text(c.Text)
}

func (c StringConstant) String() string {
	return strconv.Quote(c.Text)
}

// NewFunctionCall returns a call node. Any expression kind is a legal parameter.
func NewFunctionCall(name string, params ...Expression) *FunctionCall {
	return &FunctionCall{name: name, params: copyParams(params)}
}

// Name returns the function name as written
func (c *FunctionCall) Name() string {
	return c.name
}

// Params returns a copy of the parameter list
func (c *FunctionCall) Params() []Expression {
	return copyParams(c.params)
}

func (c *FunctionCall) String() string {
	return formatCall(c.name, c.params)
}

// NewReducerCall returns a reducer node. Parameters must be variables or constants.
func NewReducerCall(name string, params ...Expression) (*ReducerCall, error) {
	for i, p := range params {
		if !isTemplateParam(p) {
			return nil, &ConstructionError{
				Definition: name,
				Reason:     fmt.Sprintf("reducer parameter %d must be a variable or constant, got %s", i, describe(p)),
			}
		}
	}
	return &ReducerCall{name: name, params: copyParams(params)}, nil
}

// Name returns the reducer name as written
func (c *ReducerCall) Name() string {
	return c.name
}

// Params returns a copy of the parameter list
func (c *ReducerCall) Params() []Expression {
	return copyParams(c.params)
}

func (c *ReducerCall) String() string {
	return formatCall(c.name, c.params)
}

func copyParams(params []Expression) []Expression {
	out := make([]Expression, len(params))
	copy(out, params)
	return out
}

func formatCall(name string, params []Expression) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// isTemplateParam reports whether e may appear in a reference or reducer parameter list
func isTemplateParam(e Expression) bool {
	switch e.(type) {
	case Variable, NumberConstant, StringConstant:
		return true
	default:
		return false
	}
}

func describe(e Expression) string {
	switch e.(type) {
	case nil:
		return "nil"
	case *FunctionCall:
		return "function call " + e.String()
	case *ReducerCall:
		return "reducer call " + e.String()
	default:
		return e.String()
	}
}
