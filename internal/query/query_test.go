package query

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/domain"
)

func record(level domain.Level, msg, ts string) domain.LogRecord {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		panic(err)
	}
	return domain.LogRecord{
		Level:      level,
		Message:    msg,
		ResourceID: "server-1234",
		Timestamp:  ts,
		TraceID:    "abc-xyz-123",
		SpanID:     "span-456",
		Commit:     "5e5342f",
		OccurredAt: t,
	}
}

func TestCompileEmpty(t *testing.T) {
	q := Compile(url.Values{})
	assert.Empty(t, q.Conditions)
	assert.Equal(t, MaxResults, q.Limit)
	assert.Equal(t, Sort{Field: FieldTimestamp, Descending: true}, q.Sort)
	assert.True(t, q.Match(record(domain.LevelInfo, "anything", "2023-09-15T08:00:00Z")))
}

func TestCompileIgnoresEmptyValues(t *testing.T) {
	q := Compile(url.Values{"level": {""}, "message": {""}, "commit": {""}})
	assert.Empty(t, q.Conditions)
}

func TestCompileLevelIsLowercased(t *testing.T) {
	q := Compile(url.Values{"level": {"ERROR"}})
	require.Len(t, q.Conditions, 1)
	assert.Equal(t, Condition{Field: FieldLevel, Op: OpEqual, Value: "error"}, q.Conditions[0])
	assert.True(t, q.Match(record(domain.LevelError, "x", "2023-09-15T08:00:00Z")))
	assert.False(t, q.Match(record(domain.LevelWarn, "x", "2023-09-15T08:00:00Z")))
}

func TestMessageIsLiteralAndCaseInsensitive(t *testing.T) {
	q := Compile(url.Values{"message": {"Database."}})
	rec := record(domain.LevelError, "Failed to connect to database.", "2023-09-15T08:00:00Z")
	assert.True(t, q.Match(rec))

	// "." must not behave as a wildcard.
	assert.False(t, q.Match(record(domain.LevelError, "Failed to connect to databaseX", "2023-09-15T08:00:00Z")))

	special := Compile(url.Values{"message": {"a+b (c)*"}})
	assert.True(t, special.Match(record(domain.LevelInfo, "sum A+B (C)* done", "2023-09-15T08:00:00Z")))
	assert.False(t, special.Match(record(domain.LevelInfo, "aab c", "2023-09-15T08:00:00Z")))
}

func TestExactFieldsAreConjunctive(t *testing.T) {
	q := Compile(url.Values{
		"resourceId": {"server-1234"},
		"traceId":    {"abc-xyz-123"},
		"spanId":     {"span-456"},
		"commit":     {"5e5342f"},
	})
	require.Len(t, q.Conditions, 4)
	rec := record(domain.LevelInfo, "ok", "2023-09-15T08:00:00Z")
	assert.True(t, q.Match(rec))
	rec.SpanID = "span-457"
	assert.False(t, q.Match(rec))
}

func TestTimestampBoundsAreInclusive(t *testing.T) {
	q := Compile(url.Values{
		"timestamp_start": {"2023-09-15T08:00:00Z"},
		"timestamp_end":   {"2023-09-15T09:00:00.000Z"},
	})
	require.Len(t, q.Conditions, 2)
	assert.True(t, q.Match(record(domain.LevelInfo, "start", "2023-09-15T08:00:00Z")))
	assert.True(t, q.Match(record(domain.LevelInfo, "end", "2023-09-15T09:00:00Z")))
	assert.True(t, q.Match(record(domain.LevelInfo, "offset", "2023-09-15T10:30:00+02:00")))
	assert.False(t, q.Match(record(domain.LevelInfo, "before", "2023-09-15T07:59:59.999Z")))
	assert.False(t, q.Match(record(domain.LevelInfo, "after", "2023-09-15T09:00:00.001Z")))
}

func TestUnparsableBoundIsIgnored(t *testing.T) {
	q := Compile(url.Values{"timestamp_start": {"yesterday"}})
	assert.Empty(t, q.Conditions)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% \_done\\`, EscapeLike(`100% _done\`))
	assert.Equal(t, "plain", EscapeLike("plain"))
}
