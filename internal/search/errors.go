package search

import (
	"fmt"
	"strings"

	"asmscope/internal/segment"
)

// AmbiguousError is returned by Resolution.Err when a query matched several
// functions and no ordinal was given.
type AmbiguousError struct {
	Query      string
	Candidates []*segment.Function
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("search: %q matches %d functions, pass an index to pick one", e.Query, len(e.Candidates))
}

// NotFoundError is a query that matched nothing.
type NotFoundError struct {
	Query   string
	Nearest []string
}

func (e *NotFoundError) Error() string {
	if len(e.Nearest) == 0 {
		return fmt.Sprintf("search: no function matches %q", e.Query)
	}
	return fmt.Sprintf("search: no function matches %q, nearest: %s", e.Query, strings.Join(e.Nearest, ", "))
}

// OrdinalOutOfRangeError is an index outside [0, Count).
type OrdinalOutOfRangeError struct {
	Requested int
	Count     int
}

func (e *OrdinalOutOfRangeError) Error() string {
	return fmt.Sprintf("search: index %d out of range, %d available", e.Requested, e.Count)
}
