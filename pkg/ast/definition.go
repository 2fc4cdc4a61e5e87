package ast

import (
	"fmt"
	"strings"

	"github.com/vjranagit/telemetry/pkg/types"
)

// DefinitionKind names the definition variants
type DefinitionKind string

const (
	KindStreams DefinitionKind = "streams"
	KindChart   DefinitionKind = "chart"
	KindYAxis   DefinitionKind = "y-axis"
	KindReport  DefinitionKind = "report"
	KindDraw    DefinitionKind = "draw"

	// KindAny matches every kind in name lookups
	KindAny DefinitionKind = ""
)

// Position is a 1-indexed location in source text
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Span is the source range a definition was parsed from
type Span struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Source is the parser's record of where a definition came from
type Source struct {
	Span Span
	// Text is the definition reconstructed verbatim from the source
	Text string
}

// Definition is a named, parameterized telemetry definition
type Definition interface {
	Name() string
	Kind() DefinitionKind
	Source() Source
}

type header struct {
	name      string
	variables []Variable
	source    Source
}

func newHeader(kind DefinitionKind, name string, variables []Variable, src Source) (header, error) {
	if strings.TrimSpace(name) == "" {
		return header{}, &ConstructionError{Reason: fmt.Sprintf("%s definition has no name", kind)}
	}
	seen := make(map[string]bool, len(variables))
	for _, v := range variables {
		if v.Name == "" {
			return header{}, &ConstructionError{Definition: name, Reason: "empty variable name"}
		}
		if seen[v.Name] {
			return header{}, &ConstructionError{Definition: name, Reason: fmt.Sprintf("variable %s declared twice", v.Name)}
		}
		seen[v.Name] = true
	}
	return header{
		name:      name,
		variables: append([]Variable{}, variables...),
		source:    src,
	}, nil
}

// Name returns the definition name
func (h header) Name() string { return h.name }

// Source returns the source span and text
func (h header) Source() Source { return h.source }

// Variables returns a copy of the declared template variables
func (h header) Variables() []Variable {
	return append([]Variable{}, h.variables...)
}

// StreamsSpec holds the parts of a streams definition
type StreamsSpec struct {
	Name        string
	Description string
	Expression  Expression
	Variables   []Variable
}

// StreamsDefinition names an expression that yields a stream collection
type StreamsDefinition struct {
	header
	description string
	expr        Expression
}

// NewStreamsDefinition validates spec and returns the definition
func NewStreamsDefinition(spec StreamsSpec, src Source) (*StreamsDefinition, error) {
	h, err := newHeader(KindStreams, spec.Name, spec.Variables, src)
	if err != nil {
		return nil, err
	}
	if spec.Expression == nil {
		return nil, &ConstructionError{Definition: spec.Name, Reason: "streams definition has no expression"}
	}
	return &StreamsDefinition{header: h, description: spec.Description, expr: spec.Expression}, nil
}

func (*StreamsDefinition) Kind() DefinitionKind { return KindStreams }

// Description returns the human readable description
func (d *StreamsDefinition) Description() string { return d.description }

// Expression returns the body
func (d *StreamsDefinition) Expression() Expression { return d.expr }

// SubChart pairs one streams reference with the y-axis it is drawn against
type SubChart struct {
	Streams *StreamsReference
	YAxis   *YAxisReference
}

// ChartSpec holds the parts of a chart definition
type ChartSpec struct {
	Name      string
	Title     string
	DocString string
	Variables []Variable
	SubCharts []SubChart
}

// ChartDefinition draws one or more streams references
type ChartDefinition struct {
	header
	title     string
	docString string
	subCharts []SubChart
}

// NewChartDefinition validates spec and returns the definition
func NewChartDefinition(spec ChartSpec, src Source) (*ChartDefinition, error) {
	h, err := newHeader(KindChart, spec.Name, spec.Variables, src)
	if err != nil {
		return nil, err
	}
	if len(spec.SubCharts) == 0 {
		return nil, &ConstructionError{Definition: spec.Name, Reason: "chart has no streams"}
	}
	for i, sc := range spec.SubCharts {
		if sc.Streams == nil || sc.YAxis == nil {
			return nil, &ConstructionError{Definition: spec.Name, Reason: fmt.Sprintf("sub-chart %d needs both a streams and a y-axis reference", i)}
		}
	}
	return &ChartDefinition{
		header:    h,
		title:     spec.Title,
		docString: spec.DocString,
		subCharts: append([]SubChart{}, spec.SubCharts...),
	}, nil
}

func (*ChartDefinition) Kind() DefinitionKind { return KindChart }

func (d *ChartDefinition) Title() string { return d.title }

func (d *ChartDefinition) DocString() string { return d.docString }

// SubCharts returns a copy of the sub-chart list
func (d *ChartDefinition) SubCharts() []SubChart {
	return append([]SubChart{}, d.subCharts...)
}

// NumberType controls how a y-axis renders its values
type NumberType string

const (
	NumberInteger NumberType = "integer"
	NumberDouble  NumberType = "double"
	NumberAuto    NumberType = "auto"
)

// ParseNumberType parses integer, double or auto; empty means auto
func ParseNumberType(s string) (NumberType, error) {
	switch NumberType(strings.ToLower(s)) {
	case NumberInteger:
		return NumberInteger, nil
	case NumberDouble:
		return NumberDouble, nil
	case NumberAuto, "":
		return NumberAuto, nil
	default:
		return "", fmt.Errorf("unknown number type %q", s)
	}
}

// YAxisSpec holds the parts of a y-axis definition.
// Lower and Upper are required unless AutoScaled is set.
type YAxisSpec struct {
	Name       string
	Label      Expression
	NumberType NumberType
	AutoScaled bool
	Lower      *types.Number
	Upper      *types.Number
	Variables  []Variable
}

// YAxisDefinition describes the label and scaling of a chart axis
type YAxisDefinition struct {
	header
	label      Expression
	numberType NumberType
	autoScaled bool
	lower      *types.Number
	upper      *types.Number
}

// NewYAxisDefinition validates spec and returns the definition
func NewYAxisDefinition(spec YAxisSpec, src Source) (*YAxisDefinition, error) {
	h, err := newHeader(KindYAxis, spec.Name, spec.Variables, src)
	if err != nil {
		return nil, err
	}
	switch spec.Label.(type) {
	case Variable, StringConstant:
	default:
		return nil, &ConstructionError{Definition: spec.Name, Reason: "y-axis label must be a string or a variable"}
	}
	numberType, err := ParseNumberType(string(spec.NumberType))
	if err != nil {
		return nil, &ConstructionError{Definition: spec.Name, Reason: err.Error()}
	}
	if err := checkBounds(spec, numberType); err != nil {
		return nil, err
	}

	d := &YAxisDefinition{
		header:     h,
		label:      spec.Label,
		numberType: numberType,
		autoScaled: spec.AutoScaled,
	}
	if !spec.AutoScaled {
		lower, upper := *spec.Lower, *spec.Upper
		d.lower, d.upper = &lower, &upper
	}
	return d, nil
}

func checkBounds(spec YAxisSpec, numberType NumberType) error {
	if spec.AutoScaled {
		return nil
	}
	if spec.Lower == nil || spec.Upper == nil {
		return &ConstructionError{Definition: spec.Name, Reason: "fixed y-axis needs both a lower and an upper bound"}
	}
	if !spec.Lower.IsFinite() || !spec.Upper.IsFinite() {
		return &ConstructionError{Definition: spec.Name, Reason: fmt.Sprintf("bounds must be finite, got %s and %s", spec.Lower, spec.Upper)}
	}
	if !(spec.Lower.Float64() < spec.Upper.Float64()) {
		return &ConstructionError{Definition: spec.Name, Reason: fmt.Sprintf("lower bound %s must be below upper bound %s", spec.Lower, spec.Upper)}
	}
	if numberType == NumberInteger && (!spec.Lower.IsWholeValued() || !spec.Upper.IsWholeValued()) {
		return &ConstructionError{Definition: spec.Name, Reason: "integer y-axis needs integral bounds"}
	}
	return nil
}

func (*YAxisDefinition) Kind() DefinitionKind { return KindYAxis }

// Label returns the label expression, a Variable or a StringConstant
func (d *YAxisDefinition) Label() Expression { return d.label }

func (d *YAxisDefinition) NumberType() NumberType { return d.numberType }

func (d *YAxisDefinition) AutoScaled() bool { return d.autoScaled }

// Bounds returns the fixed bounds; ok is false for auto-scaled axes
func (d *YAxisDefinition) Bounds() (lower, upper types.Number, ok bool) {
	if d.autoScaled {
		return types.Number{}, types.Number{}, false
	}
	return *d.lower, *d.upper, true
}

// ReportSpec holds the parts of a report definition
type ReportSpec struct {
	Name      string
	Title     string
	DocString string
	Variables []Variable
	Charts    []*ChartReference
}

// ReportDefinition groups chart references
type ReportDefinition struct {
	header
	title     string
	docString string
	charts    []*ChartReference
}

// NewReportDefinition validates spec and returns the definition
func NewReportDefinition(spec ReportSpec, src Source) (*ReportDefinition, error) {
	h, err := newHeader(KindReport, spec.Name, spec.Variables, src)
	if err != nil {
		return nil, err
	}
	for i, c := range spec.Charts {
		if c == nil {
			return nil, &ConstructionError{Definition: spec.Name, Reason: fmt.Sprintf("chart reference %d is nil", i)}
		}
	}
	return &ReportDefinition{
		header:    h,
		title:     spec.Title,
		docString: spec.DocString,
		charts:    append([]*ChartReference{}, spec.Charts...),
	}, nil
}

func (*ReportDefinition) Kind() DefinitionKind { return KindReport }

func (d *ReportDefinition) Title() string { return d.title }

func (d *ReportDefinition) DocString() string { return d.docString }

// Charts returns a copy of the chart references
func (d *ReportDefinition) Charts() []*ChartReference {
	return append([]*ChartReference{}, d.charts...)
}

// DrawCommand asks for a named definition to be evaluated with constant parameters
type DrawCommand struct {
	target string
	params []Constant
	source Source
}

// NewDrawCommand validates that every parameter is a constant
func NewDrawCommand(target string, params []Expression, src Source) (*DrawCommand, error) {
	if strings.TrimSpace(target) == "" {
		return nil, &ConstructionError{Reason: "draw command has no target"}
	}
	consts := make([]Constant, len(params))
	for i, p := range params {
		c, ok := p.(Constant)
		if !ok || !isTemplateParam(p) {
			return nil, &ConstructionError{Definition: "draw " + target, Reason: fmt.Sprintf("parameter %d must be a constant, got %s", i, describe(p))}
		}
		consts[i] = c
	}
	return &DrawCommand{target: target, params: consts, source: src}, nil
}

// Name returns the target name
func (d *DrawCommand) Name() string { return d.target }

func (*DrawCommand) Kind() DefinitionKind { return KindDraw }

func (d *DrawCommand) Source() Source { return d.source }

// Params returns a copy of the constant parameters
func (d *DrawCommand) Params() []Constant {
	return append([]Constant{}, d.params...)
}
