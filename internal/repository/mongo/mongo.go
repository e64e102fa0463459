package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/domain"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/query"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/repository"
)

// DefaultCollection holds log documents unless configured otherwise.
const DefaultCollection = "logs"

// logDocument is the stored shape. Field names match the public JSON keys;
// occurredAt is the parsed timestamp used for ranges and sorting. BSON dates
// hold milliseconds, so occurredAtNs keeps the exact instant as a tiebreak.
type logDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Level      string             `bson:"level"`
	Message    string             `bson:"message"`
	ResourceID string             `bson:"resourceId"`
	Timestamp  string             `bson:"timestamp"`
	OccurredAt time.Time          `bson:"occurredAt"`
	OccurredNs int64              `bson:"occurredAtNs"`
	TraceID    string             `bson:"traceId"`
	SpanID     string             `bson:"spanId"`
	Commit     string             `bson:"commit"`
	Metadata   bson.M             `bson:"metadata"`
}

// Repository implements log persistence on a MongoDB collection.
type Repository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var (
	_ repository.LogRepository = (*Repository)(nil)
	_ repository.HealthChecker = (*Repository)(nil)
)

// Connect dials MongoDB and returns a Repository bound to database/collection.
func Connect(ctx context.Context, uri, database, collection string) (*Repository, error) {
	if uri == "" {
		return nil, errors.New("empty mongo uri")
	}
	if database == "" {
		return nil, errors.New("empty mongo database name")
	}
	if collection == "" {
		collection = DefaultCollection
	}
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return New(client, client.Database(database).Collection(collection)), nil
}

// New wraps an existing collection.
func New(client *mongo.Client, coll *mongo.Collection) *Repository {
	return &Repository{client: client, coll: coll}
}

// EnsureIndexes creates the indexes used by FindLogs and fills occurredAtNs
// on documents written before the field existed.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.coll.UpdateMany(ctx, missingNanos, backfillNanos); err != nil {
		return fmt.Errorf("backfill occurredAtNs: %w", err)
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "occurredAt", Value: -1}, {Key: "occurredAtNs", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "level", Value: 1}}},
		{Keys: bson.D{{Key: "resourceId", Value: 1}}},
		{Keys: bson.D{{Key: "traceId", Value: 1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

var (
	missingNanos  = bson.D{{Key: "occurredAtNs", Value: bson.D{{Key: "$exists", Value: false}}}}
	backfillNanos = mongo.Pipeline{{{Key: "$set", Value: bson.D{{Key: "occurredAtNs", Value: bson.D{
		{Key: "$multiply", Value: bson.A{bson.D{{Key: "$toLong", Value: "$occurredAt"}}, int64(time.Millisecond)}},
	}}}}}}
)

// InsertLog stores a record and assigns its ObjectID as the identifier.
func (r *Repository) InsertLog(ctx context.Context, rec *domain.LogRecord) error {
	if rec == nil {
		return repository.ErrInvalidArgument
	}
	doc := toDocument(*rec)
	doc.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	rec.ID = doc.ID.Hex()
	return nil
}

// FindLogs evaluates a compiled query with _id projected out.
func (r *Repository) FindLogs(ctx context.Context, q query.Query) ([]domain.LogRecord, error) {
	filter, err := buildFilter(q)
	if err != nil {
		return nil, err
	}
	cur, err := r.coll.Find(ctx, filter, findOptions(q))
	if err != nil {
		return nil, fmt.Errorf("find logs: %w", err)
	}
	defer cur.Close(ctx)

	var docs []logDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode logs: %w", err)
	}
	records := make([]domain.LogRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, fromDocument(doc))
	}
	return records, nil
}

// ReplaceLogs clears the collection and inserts recs in order.
func (r *Repository) ReplaceLogs(ctx context.Context, recs []domain.LogRecord) (int, error) {
	if _, err := r.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return 0, fmt.Errorf("clear logs: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}
	docs := make([]interface{}, 0, len(recs))
	for _, rec := range recs {
		doc := toDocument(rec)
		doc.ID = primitive.NewObjectID()
		docs = append(docs, doc)
	}
	res, err := r.coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("insert logs: %w", err)
	}
	return len(res.InsertedIDs), nil
}

// Ping checks connectivity to the primary.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

var fieldKeys = map[query.Field]string{
	query.FieldLevel:      "level",
	query.FieldMessage:    "message",
	query.FieldResourceID: "resourceId",
	query.FieldTimestamp:  "timestamp",
	query.FieldTraceID:    "traceId",
	query.FieldSpanID:     "spanId",
	query.FieldCommit:     "commit",
}

// buildFilter renders q as a MongoDB filter document. Both timestamp bounds
// share one occurredAt sub-document, mirrored on occurredAtNs so instants
// within the same millisecond compare exactly.
func buildFilter(q query.Query) (bson.D, error) {
	filter := bson.D{}
	var timeRange, nanoRange bson.D
	for _, c := range q.Conditions {
		key, ok := fieldKeys[c.Field]
		if !ok {
			return nil, fmt.Errorf("%w: field %q", repository.ErrUnsupportedQuery, c.Field)
		}
		switch c.Op {
		case query.OpEqual:
			filter = append(filter, bson.E{Key: key, Value: c.Value})
		case query.OpContainsFold:
			filter = append(filter, bson.E{Key: key, Value: bson.D{
				{Key: "$regex", Value: regexp.QuoteMeta(c.Value)},
				{Key: "$options", Value: "i"},
			}})
		case query.OpAtLeast:
			timeRange = append(timeRange, bson.E{Key: "$gte", Value: c.Instant})
			nanoRange = append(nanoRange, bson.E{Key: "$gte", Value: domain.UnixNanos(c.Instant)})
		case query.OpAtMost:
			timeRange = append(timeRange, bson.E{Key: "$lte", Value: c.Instant})
			nanoRange = append(nanoRange, bson.E{Key: "$lte", Value: domain.UnixNanos(c.Instant)})
		default:
			return nil, fmt.Errorf("%w: operator %s", repository.ErrUnsupportedQuery, c.Op)
		}
	}
	if len(timeRange) > 0 {
		filter = append(filter,
			bson.E{Key: "occurredAt", Value: timeRange},
			bson.E{Key: "occurredAtNs", Value: nanoRange},
		)
	}
	return filter, nil
}

func findOptions(q query.Query) *options.FindOptions {
	dir := -1
	if !q.Sort.Descending {
		dir = 1
	}
	limit := q.Limit
	if limit <= 0 || limit > query.MaxResults {
		limit = query.MaxResults
	}
	return options.Find().
		SetSort(bson.D{{Key: "occurredAt", Value: dir}, {Key: "occurredAtNs", Value: dir}, {Key: "_id", Value: dir}}).
		SetLimit(int64(limit)).
		SetProjection(bson.D{{Key: "_id", Value: 0}})
}

func toDocument(rec domain.LogRecord) logDocument {
	metadata := bson.M{}
	for k, v := range rec.Metadata {
		metadata[k] = v
	}
	return logDocument{
		Level:      string(rec.Level),
		Message:    rec.Message,
		ResourceID: rec.ResourceID,
		Timestamp:  rec.Timestamp,
		OccurredAt: rec.OccurredAt.UTC(),
		OccurredNs: domain.UnixNanos(rec.OccurredAt),
		TraceID:    rec.TraceID,
		SpanID:     rec.SpanID,
		Commit:     rec.Commit,
		Metadata:   metadata,
	}
}

// occurredAt prefers the nanosecond field unless it disagrees with the
// stored date, as it does on documents that predate it.
func occurredAt(doc logDocument) time.Time {
	precise := domain.FromUnixNanos(doc.OccurredNs, doc.OccurredAt)
	if precise.Truncate(time.Millisecond).Equal(doc.OccurredAt) {
		return precise
	}
	return doc.OccurredAt
}

func fromDocument(doc logDocument) domain.LogRecord {
	metadata := make(map[string]any, len(doc.Metadata))
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	rec := domain.LogRecord{
		Level:      domain.Level(doc.Level),
		Message:    doc.Message,
		ResourceID: doc.ResourceID,
		Timestamp:  doc.Timestamp,
		OccurredAt: occurredAt(doc),
		TraceID:    doc.TraceID,
		SpanID:     doc.SpanID,
		Commit:     doc.Commit,
		Metadata:   metadata,
	}
	if !doc.ID.IsZero() {
		rec.ID = doc.ID.Hex()
	}
	return rec
}
