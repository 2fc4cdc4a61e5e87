// Package interval enumerates the Day, Week or Month periods of a date range.
package interval

import (
	"fmt"
	"strings"
	"time"

	"github.com/vjranagit/telemetry/pkg/types"
)

// Interval is a closed range of periods of a single kind
type Interval struct {
	kind  types.PeriodKind
	first types.Period
	last  types.Period
}

// New returns the interval of kind covering the periods containing start through end
func New(kind types.PeriodKind, start, end time.Time) (*Interval, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("interval end %s is before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	first, err := types.NewPeriod(kind, start.UTC())
	if err != nil {
		return nil, err
	}
	last, err := types.NewPeriod(kind, end.UTC())
	if err != nil {
		return nil, err
	}
	return &Interval{kind: kind, first: first, last: last}, nil
}

// Kind implements types.Interval
func (iv *Interval) Kind() types.PeriodKind {
	return iv.kind
}

// Start returns the first instant of the interval
func (iv *Interval) Start() time.Time {
	return iv.first.Start()
}

// End returns the first instant after the interval
func (iv *Interval) End() time.Time {
	return iv.last.End()
}

// Periods implements types.Interval
func (iv *Interval) Periods() []types.Period {
	var out []types.Period
	for p := iv.first; !iv.last.Before(p); p = p.Next() {
		out = append(out, p)
	}
	return out
}

// Contains reports whether t falls inside the interval
func (iv *Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start()) && t.Before(iv.End())
}

// String implements types.Interval
func (iv *Interval) String() string {
	return fmt.Sprintf("%s[%s..%s]", iv.kind, iv.first.Label(), iv.last.Label())
}

// ParseKind parses "Day", "Week" or "Month" case-insensitively
func ParseKind(s string) (types.PeriodKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day":
		return types.Day, nil
	case "week":
		return types.Week, nil
	case "month":
		return types.Month, nil
	default:
		return 0, fmt.Errorf("unknown granularity %q", s)
	}
}
