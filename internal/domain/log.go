package domain

import (
	"math"
	"time"
)

// Level is the severity attached to a log record.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

// Levels lists the accepted severities in schema order.
var Levels = []Level{LevelError, LevelWarn, LevelInfo, LevelDebug}

// Valid reports whether l is one of the accepted severities. Matching is exact.
func (l Level) Valid() bool {
	switch l {
	case LevelError, LevelWarn, LevelInfo, LevelDebug:
		return true
	}
	return false
}

// LogRecord is a single accepted log entry. Records are never mutated after
// they have been stored.
type LogRecord struct {
	ID         string         `json:"id,omitempty"`
	Level      Level          `json:"level"`
	Message    string         `json:"message"`
	ResourceID string         `json:"resourceId"`
	Timestamp  string         `json:"timestamp"`
	TraceID    string         `json:"traceId"`
	SpanID     string         `json:"spanId"`
	Commit     string         `json:"commit"`
	Metadata   map[string]any `json:"metadata"`

	// OccurredAt is Timestamp parsed as an instant. Range filters and
	// ordering use it; the raw string is what clients see.
	OccurredAt time.Time `json:"-"`
}

// EventNewLog names the live event carrying a freshly ingested record.
const EventNewLog = "new-log"

var (
	minNanos = time.Unix(0, math.MinInt64)
	maxNanos = time.Unix(0, math.MaxInt64)
)

// UnixNanos returns t as Unix nanoseconds, clamped to the int64 range
// (roughly years 1678 to 2262). Stores whose native time type is coarser
// than a nanosecond keep it alongside as the exact ordering key.
func UnixNanos(t time.Time) int64 {
	switch {
	case t.Before(minNanos):
		return math.MinInt64
	case t.After(maxNanos):
		return math.MaxInt64
	}
	return t.UnixNano()
}

// FromUnixNanos reverses UnixNanos. A clamped value carries no extra
// precision, so coarse is returned instead.
func FromUnixNanos(ns int64, coarse time.Time) time.Time {
	if ns == math.MinInt64 || ns == math.MaxInt64 {
		return coarse
	}
	return time.Unix(0, ns).UTC()
}
