package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateTag is returned when a collection already holds a stream with the tag
var ErrDuplicateTag = errors.New("duplicate stream tag in collection")

// Project identifies the project a collection was computed for
type Project struct {
	Owner string `json:"owner" validate:"required"`
	Name  string `json:"name" validate:"required"`
}

// ParseProject parses "owner/name"
func ParseProject(s string) (Project, error) {
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" {
		return Project{}, fmt.Errorf("invalid project %q, expected owner/name", s)
	}
	return Project{Owner: owner, Name: name}, nil
}

// String renders "owner/name"
func (p Project) String() string {
	return p.Owner + "/" + p.Name
}

// Interval enumerates the periods a computation covers
type Interval interface {
	Kind() PeriodKind
	Periods() []Period
	String() string
}

// StreamCollection is a named set of uniquely tagged streams sharing a project and interval.
// Project and interval are carried for downstream consumers and never interpreted here.
type StreamCollection struct {
	name     string
	project  Project
	interval Interval
	order    []Tag
	streams  map[Tag]*Stream
}

// NewStreamCollection returns an empty collection
func NewStreamCollection(name string, project Project, interval Interval) *StreamCollection {
	return &StreamCollection{
		name:     name,
		project:  project,
		interval: interval,
		streams:  make(map[Tag]*Stream),
	}
}

func (*StreamCollection) isValue() {}

// Kind implements Value
func (*StreamCollection) Kind() ValueKind {
	return KindCollection
}

// Name returns the collection name
func (sc *StreamCollection) Name() string {
	return sc.name
}

// Project returns the project tag
func (sc *StreamCollection) Project() Project {
	return sc.project
}

// Interval returns the interval tag
func (sc *StreamCollection) Interval() Interval {
	return sc.interval
}

// Len returns the number of streams
func (sc *StreamCollection) Len() int {
	return len(sc.order)
}

// Add inserts a stream and freezes it. The null tag may appear at most once like any other tag.
func (sc *StreamCollection) Add(s *Stream) error {
	if s == nil {
		return fmt.Errorf("collection %s: nil stream", sc.name)
	}
	if _, exists := sc.streams[s.tag]; exists {
		return fmt.Errorf("collection %s: %w: %s", sc.name, ErrDuplicateTag, s.tag)
	}
	if !s.frozen {
		s.frozen = true
	}
	sc.streams[s.tag] = s
	sc.order = append(sc.order, s.tag)
	return nil
}

// Stream returns the stream with the given tag
func (sc *StreamCollection) Stream(tag Tag) (*Stream, bool) {
	s, ok := sc.streams[tag]
	return s, ok
}

// Streams returns the streams in insertion order. They are frozen and may be shared
// with other collections.
func (sc *StreamCollection) Streams() []*Stream {
	out := make([]*Stream, len(sc.order))
	for i, tag := range sc.order {
		out[i] = sc.streams[tag]
	}
	return out
}

// Tags returns the stream tags in insertion order
func (sc *StreamCollection) Tags() []Tag {
	return append([]Tag(nil), sc.order...)
}

// String summarises the collection for diagnostics
func (sc *StreamCollection) String() string {
	return fmt.Sprintf("StreamCollection(%s, %d streams)", sc.name, len(sc.order))
}
