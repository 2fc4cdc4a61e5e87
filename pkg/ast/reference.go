package ast

import "fmt"

type reference struct {
	target string
	params []Expression
}

func newReference(kind DefinitionKind, target string, params []Expression) (reference, error) {
	if target == "" {
		return reference{}, &ConstructionError{Reason: fmt.Sprintf("%s reference has no target", kind)}
	}
	for i, p := range params {
		if !isTemplateParam(p) {
			return reference{}, &ConstructionError{
				Definition: target,
				Reason:     fmt.Sprintf("%s reference parameter %d must be a variable or constant, got %s", kind, i, describe(p)),
			}
		}
	}
	return reference{target: target, params: copyParams(params)}, nil
}

// Target returns the name of the referenced definition
func (r reference) Target() string { return r.target }

// Params returns a copy of the parameters; each is a Variable or a Constant
func (r reference) Params() []Expression { return copyParams(r.params) }

func (r reference) String() string { return formatCall(r.target, r.params) }

// StreamsReference points at a streams definition
type StreamsReference struct{ reference }

// ChartReference points at a chart definition
type ChartReference struct{ reference }

// YAxisReference points at a y-axis definition
type YAxisReference struct{ reference }

// NewStreamsReference rejects any parameter that is not a variable or constant
func NewStreamsReference(target string, params ...Expression) (*StreamsReference, error) {
	r, err := newReference(KindStreams, target, params)
	if err != nil {
		return nil, err
	}
	return &StreamsReference{r}, nil
}

// NewChartReference rejects any parameter that is not a variable or constant
func NewChartReference(target string, params ...Expression) (*ChartReference, error) {
	r, err := newReference(KindChart, target, params)
	if err != nil {
		return nil, err
	}
	return &ChartReference{r}, nil
}

// NewYAxisReference rejects any parameter that is not a variable or constant
func NewYAxisReference(target string, params ...Expression) (*YAxisReference, error) {
	r, err := newReference(KindYAxis, target, params)
	if err != nil {
		return nil, err
	}
	return &YAxisReference{r}, nil
}
