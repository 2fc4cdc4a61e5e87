// Package catalog holds the built-in definitions every user can resolve.
//
// Definitions are declared in an embedded YAML document as expression trees
// and turned into AST definitions by Load. Register stores them as global
// definitions of the system owner.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vjranagit/telemetry/pkg/ast"
	"github.com/vjranagit/telemetry/pkg/definition"
	"github.com/vjranagit/telemetry/pkg/types"
)

// Owner owns every built-in definition
const Owner = "system"

//go:embed catalog.yaml
var builtinCatalog []byte

type catalogYAML struct {
	YAxes   []yaxisYAML   `yaml:"yaxes"`
	Streams []streamsYAML `yaml:"streams"`
	Charts  []chartYAML   `yaml:"charts"`
	Reports []reportYAML  `yaml:"reports"`
}

type yaxisYAML struct {
	Name       string   `yaml:"name"`
	Variables  []string `yaml:"variables"`
	Label      exprYAML `yaml:"label"`
	NumberType string   `yaml:"number_type"`
	AutoScaled bool     `yaml:"auto_scaled"`
	Lower      *string  `yaml:"lower"`
	Upper      *string  `yaml:"upper"`
}

type streamsYAML struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Variables   []string `yaml:"variables"`
	Expression  exprYAML `yaml:"expression"`
}

type chartYAML struct {
	Name      string         `yaml:"name"`
	Title     string         `yaml:"title"`
	DocString string         `yaml:"doc"`
	Variables []string       `yaml:"variables"`
	SubCharts []subChartYAML `yaml:"subcharts"`
}

type subChartYAML struct {
	Streams refYAML `yaml:"streams"`
	YAxis   refYAML `yaml:"yaxis"`
}

type reportYAML struct {
	Name      string    `yaml:"name"`
	Title     string    `yaml:"title"`
	DocString string    `yaml:"doc"`
	Variables []string  `yaml:"variables"`
	Charts    []refYAML `yaml:"charts"`
}

type refYAML struct {
	Target string     `yaml:"target"`
	Params []exprYAML `yaml:"params"`
}

// exprYAML is one expression node; exactly one form is set
type exprYAML struct {
	Number   *string    `yaml:"number"`
	String   *string    `yaml:"string"`
	Var      string     `yaml:"var"`
	Reducer  string     `yaml:"reducer"`
	Function string     `yaml:"function"`
	Params   []exprYAML `yaml:"params"`
}

// Load decodes a catalog document. Definitions come back y-axes first, then
// streams, charts and reports, each group in document order.
func Load(data []byte) ([]ast.Definition, error) {
	var c catalogYAML
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	var defs []ast.Definition
	for _, y := range c.YAxes {
		d, err := y.build()
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	for _, s := range c.Streams {
		d, err := s.build()
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	for _, ch := range c.Charts {
		d, err := ch.build()
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	for _, r := range c.Reports {
		d, err := r.build()
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, nil
}

// Builtin returns the embedded catalog
func Builtin() ([]ast.Definition, error) {
	return Load(builtinCatalog)
}

// Register stores defs as global definitions of Owner
func Register(r *definition.MemoryResolver, defs []ast.Definition) error {
	for _, d := range defs {
		err := r.Register(definition.Registration{
			Owner:      Owner,
			Scope:      definition.ScopeGlobal,
			Definition: d,
		})
		if err != nil {
			return fmt.Errorf("register %s %s: %w", d.Kind(), d.Name(), err)
		}
	}
	return nil
}

func (y yaxisYAML) build() (*ast.YAxisDefinition, error) {
	label, err := y.Label.build()
	if err != nil {
		return nil, fmt.Errorf("y-axis %s: %w", y.Name, err)
	}
	spec := ast.YAxisSpec{
		Name:       y.Name,
		Label:      label,
		NumberType: ast.NumberType(y.NumberType),
		AutoScaled: y.AutoScaled,
		Variables:  variables(y.Variables),
	}
	if spec.Lower, err = bound(y.Lower); err != nil {
		return nil, fmt.Errorf("y-axis %s: %w", y.Name, err)
	}
	if spec.Upper, err = bound(y.Upper); err != nil {
		return nil, fmt.Errorf("y-axis %s: %w", y.Name, err)
	}
	return ast.NewYAxisDefinition(spec, ast.Source{})
}

func (s streamsYAML) build() (*ast.StreamsDefinition, error) {
	expr, err := s.Expression.build()
	if err != nil {
		return nil, fmt.Errorf("streams %s: %w", s.Name, err)
	}
	return ast.NewStreamsDefinition(ast.StreamsSpec{
		Name:        s.Name,
		Description: s.Description,
		Expression:  expr,
		Variables:   variables(s.Variables),
	}, ast.Source{})
}

func (c chartYAML) build() (*ast.ChartDefinition, error) {
	subs := make([]ast.SubChart, 0, len(c.SubCharts))
	for i, sc := range c.SubCharts {
		params, err := buildAll(sc.Streams.Params)
		if err != nil {
			return nil, fmt.Errorf("chart %s subchart %d: %w", c.Name, i, err)
		}
		streams, err := ast.NewStreamsReference(sc.Streams.Target, params...)
		if err != nil {
			return nil, err
		}
		if params, err = buildAll(sc.YAxis.Params); err != nil {
			return nil, fmt.Errorf("chart %s subchart %d: %w", c.Name, i, err)
		}
		yaxis, err := ast.NewYAxisReference(sc.YAxis.Target, params...)
		if err != nil {
			return nil, err
		}
		subs = append(subs, ast.SubChart{Streams: streams, YAxis: yaxis})
	}
	return ast.NewChartDefinition(ast.ChartSpec{
		Name:      c.Name,
		Title:     c.Title,
		DocString: c.DocString,
		Variables: variables(c.Variables),
		SubCharts: subs,
	}, ast.Source{})
}

func (r reportYAML) build() (*ast.ReportDefinition, error) {
	charts := make([]*ast.ChartReference, 0, len(r.Charts))
	for _, ref := range r.Charts {
		params, err := buildAll(ref.Params)
		if err != nil {
			return nil, fmt.Errorf("report %s: %w", r.Name, err)
		}
		cr, err := ast.NewChartReference(ref.Target, params...)
		if err != nil {
			return nil, err
		}
		charts = append(charts, cr)
	}
	return ast.NewReportDefinition(ast.ReportSpec{
		Name:      r.Name,
		Title:     r.Title,
		DocString: r.DocString,
		Variables: variables(r.Variables),
		Charts:    charts,
	}, ast.Source{})
}

func (e exprYAML) build() (ast.Expression, error) {
	forms := 0
	for _, set := range []bool{e.Number != nil, e.String != nil, e.Var != "", e.Reducer != "", e.Function != ""} {
		if set {
			forms++
		}
	}
	if forms != 1 {
		return nil, fmt.Errorf("expression node needs exactly one of number, string, var, reducer, function; has %d", forms)
	}

	switch {
	case e.Number != nil:
		n, err := types.ParseNumber(*e.Number)
		if err != nil {
			return nil, err
		}
		return ast.NumberConstant{Number: n}, nil
	case e.String != nil:
		return ast.StringConstant{Text: *e.String}, nil
	case e.Var != "":
		return ast.Variable{Name: e.Var}, nil
	}

	params, err := buildAll(e.Params)
	if err != nil {
		return nil, err
	}
	if e.Reducer != "" {
		rc, err := ast.NewReducerCall(e.Reducer, params...)
		if err != nil {
			return nil, err
		}
		return rc, nil
	}
	return ast.NewFunctionCall(e.Function, params...), nil
}

func buildAll(nodes []exprYAML) ([]ast.Expression, error) {
	out := make([]ast.Expression, 0, len(nodes))
	for _, n := range nodes {
		expr, err := n.build()
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}

func variables(names []string) []ast.Variable {
	vars := make([]ast.Variable, len(names))
	for i, n := range names {
		vars[i] = ast.Variable{Name: n}
	}
	return vars
}

func bound(s *string) (*types.Number, error) {
	if s == nil {
		return nil, nil
	}
	n, err := types.ParseNumber(*s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
