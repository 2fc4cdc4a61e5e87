package api

import (
	"encoding/json"
	"math"
	"time"

	"github.com/vjranagit/telemetry/pkg/ast"
	"github.com/vjranagit/telemetry/pkg/definition"
	"github.com/vjranagit/telemetry/pkg/evaluator"
	"github.com/vjranagit/telemetry/pkg/types"
)

type pointJSON struct {
	Period string    `json:"period"`
	Start  time.Time `json:"start"`
	// Value is an int64, a float64, or nil for missing and non-finite values
	Value any `json:"value"`
}

type streamJSON struct {
	Tag    string      `json:"tag"`
	Points []pointJSON `json:"points"`
}

type collectionJSON struct {
	Name    string       `json:"name"`
	Project string       `json:"project"`
	Streams []streamJSON `json:"streams"`
}

type axisJSON struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	NumberType string `json:"number_type"`
	AutoScaled bool   `json:"auto_scaled"`
	Lower      any    `json:"lower,omitempty"`
	Upper      any    `json:"upper,omitempty"`
}

type seriesJSON struct {
	Axis    axisJSON       `json:"axis"`
	Streams collectionJSON `json:"streams"`
}

type chartJSON struct {
	Name      string       `json:"name"`
	Title     string       `json:"title"`
	DocString string       `json:"doc_string,omitempty"`
	Series    []seriesJSON `json:"series"`
}

type reportJSON struct {
	Name      string      `json:"name"`
	Title     string      `json:"title"`
	DocString string      `json:"doc_string,omitempty"`
	Charts    []chartJSON `json:"charts"`
}

type drawJSON struct {
	Kind    ast.DefinitionKind `json:"kind"`
	Streams *collectionJSON    `json:"streams,omitempty"`
	Chart   *chartJSON         `json:"chart,omitempty"`
	Report  *reportJSON        `json:"report,omitempty"`
}

type definitionJSON struct {
	Name      string             `json:"name"`
	Kind      ast.DefinitionKind `json:"kind"`
	Owner     string             `json:"owner"`
	Scope     string             `json:"scope"`
	Variables []string           `json:"variables"`
}

func renderNumber(n types.Number) any {
	if n.IsIntegral() {
		return n.Int64()
	}
	f := n.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func renderCollection(sc *types.StreamCollection) collectionJSON {
	out := collectionJSON{
		Name:    sc.Name(),
		Project: sc.Project().String(),
		Streams: make([]streamJSON, 0, sc.Len()),
	}
	for _, s := range sc.Streams() {
		sj := streamJSON{Tag: s.Tag().String(), Points: make([]pointJSON, 0, s.Len())}
		for _, dp := range s.Points() {
			pj := pointJSON{Period: dp.Period().Label(), Start: dp.Period().Start()}
			if v, ok := dp.Value(); ok {
				pj.Value = renderNumber(v)
			}
			sj.Points = append(sj.Points, pj)
		}
		out.Streams = append(out.Streams, sj)
	}
	return out
}

func renderAxis(a evaluator.Axis) axisJSON {
	out := axisJSON{
		Name:       a.Name,
		Label:      a.Label,
		NumberType: string(a.NumberType),
		AutoScaled: a.AutoScaled,
	}
	if a.Lower != nil {
		out.Lower = renderNumber(*a.Lower)
	}
	if a.Upper != nil {
		out.Upper = renderNumber(*a.Upper)
	}
	return out
}

func renderChart(c *evaluator.ChartResult) chartJSON {
	out := chartJSON{
		Name:      c.Name,
		Title:     c.Title,
		DocString: c.DocString,
		Series:    make([]seriesJSON, 0, len(c.Series)),
	}
	for _, s := range c.Series {
		out.Series = append(out.Series, seriesJSON{
			Axis:    renderAxis(s.Axis),
			Streams: renderCollection(s.Streams),
		})
	}
	return out
}

func renderReport(r *evaluator.ReportResult) reportJSON {
	out := reportJSON{
		Name:      r.Name,
		Title:     r.Title,
		DocString: r.DocString,
		Charts:    make([]chartJSON, 0, len(r.Charts)),
	}
	for _, c := range r.Charts {
		out.Charts = append(out.Charts, renderChart(c))
	}
	return out
}

func renderDraw(res *evaluator.DrawResult) drawJSON {
	out := drawJSON{Kind: res.Kind}
	switch {
	case res.Streams != nil:
		sc := renderCollection(res.Streams)
		out.Streams = &sc
	case res.Chart != nil:
		c := renderChart(res.Chart)
		out.Chart = &c
	case res.Report != nil:
		r := renderReport(res.Report)
		out.Report = &r
	}
	return out
}

func renderRegistration(reg definition.Registration) definitionJSON {
	vars := []string{}
	if h, ok := reg.Definition.(interface{ Variables() []ast.Variable }); ok {
		for _, v := range h.Variables() {
			vars = append(vars, v.Name)
		}
	}
	return definitionJSON{
		Name:      reg.Definition.Name(),
		Kind:      reg.Definition.Kind(),
		Owner:     reg.Owner,
		Scope:     string(reg.Scope),
		Variables: vars,
	}
}

// MarshalDraw renders a draw result as indented JSON, the shape the telemetry
// endpoint serves
func MarshalDraw(res *evaluator.DrawResult) ([]byte, error) {
	return json.MarshalIndent(renderDraw(res), "", "  ")
}
