package evaluator

import (
	"github.com/vjranagit/telemetry/pkg/ast"
	"github.com/vjranagit/telemetry/pkg/types"
)

// Axis is the evaluated scaling of a y-axis. Lower and Upper are nil when AutoScaled.
type Axis struct {
	Name       string
	Label      string
	NumberType ast.NumberType
	AutoScaled bool
	Lower      *types.Number
	Upper      *types.Number
}

// ChartSeries is one subchart: its streams and the axis they are drawn against
type ChartSeries struct {
	Streams *types.StreamCollection
	Axis    Axis
}

// ChartResult is an evaluated chart, one series per subchart in declaration order
type ChartResult struct {
	Name      string
	Title     string
	DocString string
	Series    []ChartSeries
}

// ReportResult is an evaluated report, one chart per reference in declaration order
type ReportResult struct {
	Name      string
	Title     string
	DocString string
	Charts    []*ChartResult
}

// DrawResult is the outcome of a draw command. Exactly one of Streams, Chart
// and Report is set, matching Kind.
type DrawResult struct {
	Kind    ast.DefinitionKind
	Streams *types.StreamCollection
	Chart   *ChartResult
	Report  *ReportResult
}
