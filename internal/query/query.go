// Package query turns raw HTTP filter parameters into a store-neutral
// predicate that every store adapter translates into its own dialect.
package query

import (
	"net/url"
	"strings"
	"time"

	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/domain"
)

// MaxResults caps every query result.
const MaxResults = 1000

// Field names a filterable record attribute using its JSON key.
type Field string

const (
	FieldLevel      Field = "level"
	FieldMessage    Field = "message"
	FieldResourceID Field = "resourceId"
	FieldTimestamp  Field = "timestamp"
	FieldTraceID    Field = "traceId"
	FieldSpanID     Field = "spanId"
	FieldCommit     Field = "commit"
)

// Op is the comparison applied by a condition.
type Op int

const (
	// OpEqual matches the field exactly.
	OpEqual Op = iota
	// OpContainsFold matches a literal, case-insensitive substring.
	OpContainsFold
	// OpAtLeast is an inclusive lower bound on the timestamp instant.
	OpAtLeast
	// OpAtMost is an inclusive upper bound on the timestamp instant.
	OpAtMost
)

func (o Op) String() string {
	switch o {
	case OpEqual:
		return "eq"
	case OpContainsFold:
		return "contains"
	case OpAtLeast:
		return "gte"
	case OpAtMost:
		return "lte"
	default:
		return "unknown"
	}
}

// Condition is one predicate of the conjunction. Instant is only set for
// timestamp bounds.
type Condition struct {
	Field   Field
	Op      Op
	Value   string
	Instant time.Time
}

// Sort describes result ordering. Ties on Field are always broken by
// insertion order, newest first.
type Sort struct {
	Field      Field
	Descending bool
}

// Query is a compiled filter.
type Query struct {
	Conditions []Condition
	Sort       Sort
	Limit      int
}

// Parameter names accepted by Compile.
const (
	ParamLevel          = "level"
	ParamMessage        = "message"
	ParamResourceID     = "resourceId"
	ParamTraceID        = "traceId"
	ParamSpanID         = "spanId"
	ParamCommit         = "commit"
	ParamTimestampStart = "timestamp_start"
	ParamTimestampEnd   = "timestamp_end"
)

var exactParams = []struct {
	param string
	field Field
}{
	{ParamResourceID, FieldResourceID},
	{ParamTraceID, FieldTraceID},
	{ParamSpanID, FieldSpanID},
	{ParamCommit, FieldCommit},
}

// Compile builds a Query from request parameters. Absent or empty
// parameters add nothing, and timestamp bounds that are not RFC3339
// instants are ignored, so Compile never fails.
func Compile(params url.Values) Query {
	q := Query{
		Sort:  Sort{Field: FieldTimestamp, Descending: true},
		Limit: MaxResults,
	}
	if v := params.Get(ParamLevel); v != "" {
		q.Conditions = append(q.Conditions, Condition{Field: FieldLevel, Op: OpEqual, Value: strings.ToLower(v)})
	}
	if v := params.Get(ParamMessage); v != "" {
		q.Conditions = append(q.Conditions, Condition{Field: FieldMessage, Op: OpContainsFold, Value: v})
	}
	for _, p := range exactParams {
		if v := params.Get(p.param); v != "" {
			q.Conditions = append(q.Conditions, Condition{Field: p.field, Op: OpEqual, Value: v})
		}
	}
	if c, ok := bound(params.Get(ParamTimestampStart), OpAtLeast); ok {
		q.Conditions = append(q.Conditions, c)
	}
	if c, ok := bound(params.Get(ParamTimestampEnd), OpAtMost); ok {
		q.Conditions = append(q.Conditions, c)
	}
	return q
}

func bound(raw string, op Op) (Condition, bool) {
	if raw == "" {
		return Condition{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return Condition{}, false
	}
	return Condition{Field: FieldTimestamp, Op: op, Value: raw, Instant: t}, true
}

// Match evaluates the conjunction against a record in memory.
func (q Query) Match(rec domain.LogRecord) bool {
	for _, c := range q.Conditions {
		if !c.Match(rec) {
			return false
		}
	}
	return true
}

// Match evaluates a single condition.
func (c Condition) Match(rec domain.LogRecord) bool {
	switch c.Op {
	case OpEqual:
		return FieldValue(rec, c.Field) == c.Value
	case OpContainsFold:
		return strings.Contains(strings.ToLower(FieldValue(rec, c.Field)), strings.ToLower(c.Value))
	case OpAtLeast:
		return !rec.OccurredAt.Before(c.Instant)
	case OpAtMost:
		return !rec.OccurredAt.After(c.Instant)
	default:
		return false
	}
}

// FieldValue returns the string form of a record attribute.
func FieldValue(rec domain.LogRecord, f Field) string {
	switch f {
	case FieldLevel:
		return string(rec.Level)
	case FieldMessage:
		return rec.Message
	case FieldResourceID:
		return rec.ResourceID
	case FieldTimestamp:
		return rec.Timestamp
	case FieldTraceID:
		return rec.TraceID
	case FieldSpanID:
		return rec.SpanID
	case FieldCommit:
		return rec.Commit
	default:
		return ""
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards so s matches literally when used with
// ESCAPE '\'.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
