// Package store provides a generic persisted document store over
// SQLite JSONB: typed get/set, dotted-path partial updates,
// read-check-write transactions with bounded retry, filtered queries,
// and per-document change subscriptions.
package store

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// TimeLayout is the wire format for all stored timestamps. UTC with
// fixed millisecond precision so lexicographic order equals time order.
const TimeLayout = "2006-01-02T15:04:05.000Z"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// Increment marks an Update value as a numeric delta instead of an
// overwrite: the stored number (0 if absent) is increased by the delta.
type Increment float64

// Filter is an equality or range predicate on a dotted JSON path.
type Filter struct {
	Path  string
	Op    string // one of ==, <, <=, >, >=
	Value any
}

// Order sorts query results by a dotted JSON path.
type Order struct {
	Path string
	Desc bool
}

// Query selects documents within one collection.
type Query struct {
	Filters []Filter
	OrderBy []Order
	Limit   int
}

// Document is a raw query result.
type Document struct {
	ID   string
	Data []byte
}
