package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrPeriodKindMismatch is returned when periods of different kinds are compared or mixed
var ErrPeriodKindMismatch = errors.New("period kind mismatch")

// PeriodKind is the calendar unit of a Period
type PeriodKind int

const (
	Day PeriodKind = iota + 1
	Week
	Month
)

// String returns the kind name
func (k PeriodKind) String() string {
	switch k {
	case Day:
		return "Day"
	case Week:
		return "Week"
	case Month:
		return "Month"
	default:
		return "Unknown"
	}
}

// Period is one Day, Week or Month on a stream's time axis.
// The zero value is invalid. Periods are comparable and usable as map keys.
type Period struct {
	kind  PeriodKind
	year  int
	month time.Month
	day   int
}

// DayOf returns the day containing t
func DayOf(t time.Time) Period {
	y, m, d := t.Date()
	return Period{kind: Day, year: y, month: m, day: d}
}

// WeekOf returns the week containing t. Weeks start on Monday.
func WeekOf(t time.Time) Period {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return Period{kind: Week, year: y, month: m, day: d}
}

// MonthOf returns the month containing t
func MonthOf(t time.Time) Period {
	y, m, _ := t.Date()
	return Period{kind: Month, year: y, month: m, day: 1}
}

// NewPeriod returns the period of the given kind containing t
func NewPeriod(kind PeriodKind, t time.Time) (Period, error) {
	switch kind {
	case Day:
		return DayOf(t), nil
	case Week:
		return WeekOf(t), nil
	case Month:
		return MonthOf(t), nil
	default:
		return Period{}, fmt.Errorf("unknown period kind %d", kind)
	}
}

// Kind returns the calendar unit of the period
func (p Period) Kind() PeriodKind {
	return p.kind
}

// IsZero reports whether p is the invalid zero period
func (p Period) IsZero() bool {
	return p.kind == 0
}

// Start returns midnight UTC of the first day of the period
func (p Period) Start() time.Time {
	return time.Date(p.year, p.month, p.day, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant after the period
func (p Period) End() time.Time {
	return p.Next().Start()
}

// Next returns the period immediately following p
func (p Period) Next() Period {
	start := p.Start()
	switch p.kind {
	case Week:
		return WeekOf(start.AddDate(0, 0, 7))
	case Month:
		return MonthOf(start.AddDate(0, 1, 0))
	default:
		return DayOf(start.AddDate(0, 0, 1))
	}
}

// Compare orders two periods of the same kind.
// It returns -1, 0 or +1, or ErrPeriodKindMismatch when the kinds differ.
func (p Period) Compare(other Period) (int, error) {
	if p.kind != other.kind {
		return 0, fmt.Errorf("%w: cannot compare %s with %s", ErrPeriodKindMismatch, p.kind, other.kind)
	}
	switch {
	case p.year != other.year:
		return sign(p.year - other.year), nil
	case p.month != other.month:
		return sign(int(p.month) - int(other.month)), nil
	default:
		return sign(p.day - other.day), nil
	}
}

// Before reports whether p precedes other. Periods of different kinds are never ordered.
func (p Period) Before(other Period) bool {
	c, err := p.Compare(other)
	return err == nil && c < 0
}

// String renders the period, e.g. "Day 2024-03-05", "Week 2024-03-04", "Month 2024-03"
func (p Period) String() string {
	switch p.kind {
	case Month:
		return fmt.Sprintf("Month %04d-%02d", p.year, int(p.month))
	case Day, Week:
		return fmt.Sprintf("%s %04d-%02d-%02d", p.kind, p.year, int(p.month), p.day)
	default:
		return "invalid period"
	}
}

// Label renders the period without its kind, for chart axes
func (p Period) Label() string {
	if p.kind == Month {
		return fmt.Sprintf("%04d-%02d", p.year, int(p.month))
	}
	return fmt.Sprintf("%04d-%02d-%02d", p.year, int(p.month), p.day)
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}
