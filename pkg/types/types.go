package types

import "time"

// Sample is one raw sensor measurement
type Sample struct {
	Timestamp time.Time `json:"timestamp" validate:"required"`
	Value     float64   `json:"value"`
}

// Metric names a raw sensor series: a measure recorded for one project member
type Metric struct {
	Name   string `json:"name" validate:"required"`
	Member string `json:"member" validate:"required"`
}

// Series is a raw sensor series with its samples
type Series struct {
	Metric  Metric   `json:"metric" validate:"required"`
	Samples []Sample `json:"samples" validate:"dive"`
}

// WriteRequest carries sensor data for one project into storage
type WriteRequest struct {
	Project Project  `json:"project" validate:"required"`
	Series  []Series `json:"series" validate:"required,min=1,dive"`
}

// QueryRequest selects raw samples of one metric in [Start, End).
// An empty Member selects every member of the project.
type QueryRequest struct {
	Project Project
	Metric  string
	Member  string
	Start   time.Time
	End     time.Time
}

// QueryResult holds one series per matching member
type QueryResult struct {
	Series []Series
}
