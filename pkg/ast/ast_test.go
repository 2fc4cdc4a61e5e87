package ast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/telemetry/pkg/types"
)

func num(v int64) *types.Number {
	n := types.Int(v)
	return &n
}

func fnum(v float64) *types.Number {
	n := types.Float(v)
	return &n
}

func TestReferencesRejectFunctionCallParams(t *testing.T) {
	call := NewFunctionCall("Add", NumberConstant{types.Int(1)}, NumberConstant{types.Int(2)})

	_, err := NewStreamsReference("DevTime", call)
	var ce *ConstructionError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "function call")

	_, err = NewChartReference("DevTime", Variable{"member"}, call)
	require.ErrorAs(t, err, &ce)

	_, err = NewYAxisReference("hours", call)
	require.ErrorAs(t, err, &ce)

	ref, err := NewStreamsReference("DevTime", Variable{"member"}, StringConstant{"true"}, NumberConstant{types.Float(1.5)})
	require.NoError(t, err)
	assert.Equal(t, `DevTime(member, "true", 1.5)`, ref.String())
}

func TestDrawCommandAcceptsOnlyConstants(t *testing.T) {
	_, err := NewDrawCommand("DevTime", []Expression{NewFunctionCall("Idempotent", StringConstant{"x"})}, Source{})
	var ce *ConstructionError
	require.ErrorAs(t, err, &ce)

	_, err = NewDrawCommand("DevTime", []Expression{Variable{"member"}}, Source{})
	require.ErrorAs(t, err, &ce)

	cmd, err := NewDrawCommand("DevTime", []Expression{StringConstant{"*"}, NumberConstant{types.Int(3)}}, Source{})
	require.NoError(t, err)
	assert.Equal(t, KindDraw, cmd.Kind())
	assert.Len(t, cmd.Params(), 2)
}

func TestReducerCallRejectsNestedCalls(t *testing.T) {
	inner, err := NewReducerCall("DevTime")
	require.NoError(t, err)
	assert.NotNil(t, inner.Params())
	assert.Empty(t, inner.Params())

	_, err = NewReducerCall("Build", inner)
	var ce *ConstructionError
	assert.ErrorAs(t, err, &ce)
}

func TestParamsAreCopied(t *testing.T) {
	params := []Expression{StringConstant{"a"}}
	call := NewFunctionCall("Idempotent", params...)
	params[0] = StringConstant{"b"}

	got := call.Params()
	assert.Equal(t, StringConstant{"a"}, got[0])
	got[0] = StringConstant{"c"}
	assert.Equal(t, StringConstant{"a"}, call.Params()[0])
}

func TestYAxisBoundValidation(t *testing.T) {
	tests := []struct {
		name    string
		spec    YAxisSpec
		wantErr bool
	}{
		{
			name: "auto scaled without bounds",
			spec: YAxisSpec{Name: "y", Label: StringConstant{"Hours"}, AutoScaled: true},
		},
		{
			name: "fixed integer bounds",
			spec: YAxisSpec{Name: "y", Label: StringConstant{"Hours"}, NumberType: NumberInteger, Lower: num(0), Upper: num(100)},
		},
		{
			name:    "only lower bound",
			spec:    YAxisSpec{Name: "y", Label: StringConstant{"Hours"}, Lower: num(0)},
			wantErr: true,
		},
		{
			name:    "lower equals upper",
			spec:    YAxisSpec{Name: "y", Label: StringConstant{"Hours"}, Lower: num(5), Upper: num(5)},
			wantErr: true,
		},
		{
			name:    "lower above upper",
			spec:    YAxisSpec{Name: "y", Label: StringConstant{"Hours"}, Lower: num(10), Upper: num(5)},
			wantErr: true,
		},
		{
			name:    "NaN lower bound",
			spec:    YAxisSpec{Name: "y", Label: StringConstant{"Hours"}, Lower: fnum(math.NaN()), Upper: num(10)},
			wantErr: true,
		},
		{
			name:    "NaN upper bound",
			spec:    YAxisSpec{Name: "y", Label: StringConstant{"Hours"}, Lower: num(0), Upper: fnum(math.NaN())},
			wantErr: true,
		},
		{
			name:    "infinite upper bound",
			spec:    YAxisSpec{Name: "y", Label: StringConstant{"Hours"}, Lower: num(0), Upper: fnum(math.Inf(1))},
			wantErr: true,
		},
		{
			name:    "infinite lower bound",
			spec:    YAxisSpec{Name: "y", Label: StringConstant{"Hours"}, Lower: fnum(math.Inf(-1)), Upper: num(0)},
			wantErr: true,
		},
		{
			name: "non-integral bound on integer axis",
			spec: func() YAxisSpec {
				lower := types.Float(0.5)
				return YAxisSpec{Name: "y", Label: StringConstant{"Hours"}, NumberType: NumberInteger, Lower: &lower, Upper: num(10)}
			}(),
			wantErr: true,
		},
		{
			name:    "label must not be a call",
			spec:    YAxisSpec{Name: "y", Label: NewFunctionCall("Idempotent"), AutoScaled: true},
			wantErr: true,
		},
		{
			name:    "unknown number type",
			spec:    YAxisSpec{Name: "y", Label: Variable{"label"}, NumberType: "percent", AutoScaled: true, Variables: []Variable{{"label"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewYAxisDefinition(tt.spec, Source{})
			if tt.wantErr {
				var ce *ConstructionError
				assert.ErrorAs(t, err, &ce)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, KindYAxis, d.Kind())
		})
	}
}

func TestYAxisBoundsAreCopied(t *testing.T) {
	lower, upper := types.Int(0), types.Int(10)
	d, err := NewYAxisDefinition(YAxisSpec{Name: "y", Label: StringConstant{"x"}, Lower: &lower, Upper: &upper}, Source{})
	require.NoError(t, err)
	lower = types.Int(99)

	lo, hi, ok := d.Bounds()
	require.True(t, ok)
	assert.True(t, lo.Equal(types.Int(0)))
	assert.True(t, hi.Equal(types.Int(10)))
	assert.Equal(t, NumberAuto, d.NumberType())
}

func TestDefinitionHeaderValidation(t *testing.T) {
	body, err := NewReducerCall("DevTime", Variable{"member"})
	require.NoError(t, err)

	_, err = NewStreamsDefinition(StreamsSpec{Name: "", Expression: body}, Source{})
	assert.Error(t, err)

	_, err = NewStreamsDefinition(StreamsSpec{Name: "DevTime", Expression: body, Variables: []Variable{{"member"}, {"member"}}}, Source{})
	assert.Error(t, err)

	_, err = NewStreamsDefinition(StreamsSpec{Name: "DevTime"}, Source{})
	assert.Error(t, err)

	src := Source{Span: Span{Start: Position{Line: 1, Column: 1}, End: Position{Line: 1, Column: 40}}, Text: `streams DevTime(member) = {"dev time", DevTime(member)};`}
	d, err := NewStreamsDefinition(StreamsSpec{Name: "DevTime", Description: "dev time", Expression: body, Variables: []Variable{{"member"}}}, src)
	require.NoError(t, err)
	assert.Equal(t, src, d.Source())
	assert.Equal(t, []Variable{{"member"}}, d.Variables())
	assert.Equal(t, body, d.Expression())
}

func TestChartAndReportConstruction(t *testing.T) {
	streams, err := NewStreamsReference("DevTime", Variable{"member"})
	require.NoError(t, err)
	axis, err := NewYAxisReference("hours")
	require.NoError(t, err)

	_, err = NewChartDefinition(ChartSpec{Name: "c"}, Source{})
	assert.Error(t, err, "a chart needs at least one sub-chart")

	_, err = NewChartDefinition(ChartSpec{Name: "c", SubCharts: []SubChart{{Streams: streams}}}, Source{})
	assert.Error(t, err)

	chart, err := NewChartDefinition(ChartSpec{
		Name:      "DevTimeChart",
		Title:     "Dev Time",
		Variables: []Variable{{"member"}},
		SubCharts: []SubChart{{Streams: streams, YAxis: axis}},
	}, Source{})
	require.NoError(t, err)
	assert.Len(t, chart.SubCharts(), 1)

	ref, err := NewChartReference("DevTimeChart", StringConstant{"*"})
	require.NoError(t, err)
	report, err := NewReportDefinition(ReportSpec{Name: "r", Charts: []*ChartReference{ref}}, Source{})
	require.NoError(t, err)
	assert.Equal(t, "DevTimeChart", report.Charts()[0].Target())
}

func TestParsingErrorPosition(t *testing.T) {
	assert.Equal(t, "parse error at line 3, column 7: unexpected ')'", (&ParsingError{Line: 3, Column: 7, Msg: "unexpected ')'"}).Error())
	assert.Contains(t, (&ParsingError{Msg: "eof"}).Error(), "position unknown")
}
