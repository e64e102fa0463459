package mongo

import (
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/domain"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/query"
)

func TestBuildFilterEmpty(t *testing.T) {
	filter, err := buildFilter(query.Compile(url.Values{}))
	require.NoError(t, err)
	assert.Empty(t, filter)
}

func TestBuildFilterTranslatesConditions(t *testing.T) {
	start := "2023-09-15T08:00:00Z"
	end := "2023-09-15T09:00:00Z"
	filter, err := buildFilter(query.Compile(url.Values{
		"level":           {"WARN"},
		"message":         {"disk (90%)."},
		"resourceId":      {"server-1234"},
		"timestamp_start": {start},
		"timestamp_end":   {end},
	}))
	require.NoError(t, err)

	m := filter.Map()
	assert.Equal(t, "warn", m["level"])
	assert.Equal(t, "server-1234", m["resourceId"])

	re, ok := m["message"].(bson.D)
	require.True(t, ok)
	pattern := re.Map()["$regex"].(string)
	assert.Equal(t, "i", re.Map()["$options"])
	assert.True(t, regexp.MustCompile("(?i)"+pattern).MatchString("Disk (90%). full"))
	assert.False(t, regexp.MustCompile("(?i)"+pattern).MatchString("disk 90%x"))

	rng, ok := m["occurredAt"].(bson.D)
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 9, 15, 8, 0, 0, 0, time.UTC), rng.Map()["$gte"])
	assert.Equal(t, time.Date(2023, 9, 15, 9, 0, 0, 0, time.UTC), rng.Map()["$lte"])

	nanos, ok := m["occurredAtNs"].(bson.D)
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 9, 15, 8, 0, 0, 0, time.UTC).UnixNano(), nanos.Map()["$gte"])
	assert.Equal(t, time.Date(2023, 9, 15, 9, 0, 0, 0, time.UTC).UnixNano(), nanos.Map()["$lte"])
}

func TestFindOptionsSortAndLimit(t *testing.T) {
	opts := findOptions(query.Compile(url.Values{}))
	require.NotNil(t, opts.Limit)
	assert.EqualValues(t, query.MaxResults, *opts.Limit)
	assert.Equal(t, bson.D{{Key: "occurredAt", Value: -1}, {Key: "occurredAtNs", Value: -1}, {Key: "_id", Value: -1}}, opts.Sort)
	assert.Equal(t, bson.D{{Key: "_id", Value: 0}}, opts.Projection)
}

func TestDocumentRoundTripKeepsFields(t *testing.T) {
	at := time.Date(2023, 9, 15, 8, 0, 0, 0, time.UTC)
	rec := domain.LogRecord{
		Level:      domain.LevelError,
		Message:    "Failed to connect to database.",
		ResourceID: "server-1234",
		Timestamp:  "2023-09-15T08:00:00Z",
		OccurredAt: at,
		TraceID:    "abc-xyz-123",
		SpanID:     "span-456",
		Commit:     "5e5342f",
		Metadata:   map[string]any{"parentResourceId": "server-0987"},
	}
	doc := toDocument(rec)
	back := fromDocument(doc)
	assert.Empty(t, back.ID)
	assert.Equal(t, rec, back)

	doc.ID = primitive.NewObjectID()
	assert.Equal(t, doc.ID.Hex(), fromDocument(doc).ID)
}

func TestDocumentKeepsSubMillisecondInstant(t *testing.T) {
	at := time.Date(2023, 9, 15, 8, 0, 0, 123456789, time.UTC)
	doc := toDocument(domain.LogRecord{Level: domain.LevelInfo, OccurredAt: at})
	assert.Equal(t, at.UnixNano(), doc.OccurredNs)

	// a stored BSON date only keeps milliseconds
	doc.OccurredAt = doc.OccurredAt.Truncate(time.Millisecond)
	assert.True(t, fromDocument(doc).OccurredAt.Equal(at))
}

func TestDocumentWithoutNanosFallsBackToDate(t *testing.T) {
	at := time.Date(2023, 9, 15, 8, 0, 0, 123000000, time.UTC)
	doc := logDocument{Level: "info", OccurredAt: at}
	assert.True(t, fromDocument(doc).OccurredAt.Equal(at))
}
