package types

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicatePeriod is returned when a stream already holds a point for the period
var ErrDuplicatePeriod = errors.New("duplicate period in stream")

// ErrStreamFrozen is returned when adding to a stream that already belongs to a collection
var ErrStreamFrozen = errors.New("stream belongs to a collection")

// Tag identifies a stream inside a collection. The null tag is distinct from every named tag.
type Tag struct {
	name  string
	valid bool
}

// NewTag returns a named tag
func NewTag(name string) Tag {
	return Tag{name: name, valid: true}
}

// NullTag returns the null tag
func NullTag() Tag {
	return Tag{}
}

// IsNull reports whether t is the null tag
func (t Tag) IsNull() bool {
	return !t.valid
}

// String returns the tag name, or "<null>"
func (t Tag) String() string {
	if !t.valid {
		return "<null>"
	}
	return t.name
}

// DataPoint is a value for one period. A null point means no data, which is not zero.
type DataPoint struct {
	period Period
	value  Number
	valid  bool
}

// NewDataPoint returns a point holding v
func NewDataPoint(p Period, v Number) DataPoint {
	return DataPoint{period: p, value: v, valid: true}
}

// NullDataPoint returns a point with no value
func NullDataPoint(p Period) DataPoint {
	return DataPoint{period: p}
}

// Period returns the period the point belongs to
func (dp DataPoint) Period() Period {
	return dp.period
}

// Value returns the value and whether it is present
func (dp DataPoint) Value() (Number, bool) {
	return dp.value, dp.valid
}

// IsNull reports whether the point has no value
func (dp DataPoint) IsNull() bool {
	return !dp.valid
}

// Equal compares period and value
func (dp DataPoint) Equal(other DataPoint) bool {
	if dp.period != other.period || dp.valid != other.valid {
		return false
	}
	return !dp.valid || dp.value.Equal(other.value)
}

// String renders the point for diagnostics
func (dp DataPoint) String() string {
	if !dp.valid {
		return fmt.Sprintf("%s=null", dp.period)
	}
	return fmt.Sprintf("%s=%s", dp.period, dp.value)
}

// Stream is one tagged time series. All periods share a kind and each appears at most once.
// A stream is read-only once added to a collection, so collections may share it.
type Stream struct {
	tag    Tag
	kind   PeriodKind
	points map[Period]DataPoint
	frozen bool
}

// NewStream returns an empty stream
func NewStream(tag Tag) *Stream {
	return &Stream{
		tag:    tag,
		points: make(map[Period]DataPoint),
	}
}

// Tag returns the stream's tag
func (s *Stream) Tag() Tag {
	return s.tag
}

// Kind returns the period kind of the stream, or 0 if it is empty
func (s *Stream) Kind() PeriodKind {
	return s.kind
}

// Len returns the number of points
func (s *Stream) Len() int {
	return len(s.points)
}

// Add inserts a point
func (s *Stream) Add(dp DataPoint) error {
	if s.frozen {
		return fmt.Errorf("stream %s: %w", s.tag, ErrStreamFrozen)
	}
	if dp.period.IsZero() {
		return fmt.Errorf("stream %s: data point has no period", s.tag)
	}
	if s.kind != 0 && dp.period.kind != s.kind {
		return fmt.Errorf("stream %s: %w: adding %s to a %s stream", s.tag, ErrPeriodKindMismatch, dp.period, s.kind)
	}
	if _, exists := s.points[dp.period]; exists {
		return fmt.Errorf("stream %s: %w: %s", s.tag, ErrDuplicatePeriod, dp.period)
	}
	s.kind = dp.period.kind
	s.points[dp.period] = dp
	return nil
}

// Point returns the point for p
func (s *Stream) Point(p Period) (DataPoint, bool) {
	dp, ok := s.points[p]
	return dp, ok
}

// Points returns a copy of the points in ascending period order
func (s *Stream) Points() []DataPoint {
	out := make([]DataPoint, 0, len(s.points))
	for _, dp := range s.points {
		out = append(out, dp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].period.Before(out[j].period)
	})
	return out
}

// Periods returns the stream's periods in ascending order
func (s *Stream) Periods() []Period {
	points := s.Points()
	out := make([]Period, len(points))
	for i, dp := range points {
		out[i] = dp.period
	}
	return out
}
