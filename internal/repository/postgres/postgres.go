package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/domain"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/query"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.LogRepository = (*Repository)(nil)
	_ repository.HealthChecker = (*Repository)(nil)
)

const insertLog = `INSERT INTO log_records (
		level,
		message,
		resource_id,
		timestamp_raw,
		occurred_at,
		occurred_at_ns,
		trace_id,
		span_id,
		commit_sha,
		metadata
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id`

// InsertLog persists a record and assigns its identifier.
func (r *Repository) InsertLog(ctx context.Context, rec *domain.LogRecord) error {
	if rec == nil {
		return repository.ErrInvalidArgument
	}
	args, err := insertArgs(*rec)
	if err != nil {
		return err
	}
	var id int64
	if err := r.pool.QueryRow(ctx, insertLog, args...).Scan(&id); err != nil {
		return mapError(err)
	}
	rec.ID = strconv.FormatInt(id, 10)
	return nil
}

// FindLogs evaluates a compiled query.
func (r *Repository) FindLogs(ctx context.Context, q query.Query) ([]domain.LogRecord, error) {
	sql, args, err := buildFindQuery(q)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	records := make([]domain.LogRecord, 0)
	for rows.Next() {
		var (
			rec      domain.LogRecord
			level    string
			nanos    int64
			metadata []byte
		)
		if err := rows.Scan(
			&level,
			&rec.Message,
			&rec.ResourceID,
			&rec.Timestamp,
			&rec.OccurredAt,
			&nanos,
			&rec.TraceID,
			&rec.SpanID,
			&rec.Commit,
			&metadata,
		); err != nil {
			return nil, err
		}
		rec.Level = domain.Level(level)
		rec.OccurredAt = domain.FromUnixNanos(nanos, rec.OccurredAt)
		rec.Metadata = map[string]any{}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ReplaceLogs swaps the table contents for recs inside one transaction.
func (r *Repository) ReplaceLogs(ctx context.Context, recs []domain.LogRecord) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM log_records`); err != nil {
		return 0, mapError(err)
	}
	if len(recs) > 0 {
		batch := &pgx.Batch{}
		for _, rec := range recs {
			args, err := insertArgs(rec)
			if err != nil {
				return 0, err
			}
			batch.Queue(insertLog, args...)
		}
		br := tx.SendBatch(ctx, batch)
		for range recs {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return 0, mapError(err)
			}
		}
		if err := br.Close(); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// Ping checks connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func insertArgs(rec domain.LogRecord) ([]any, error) {
	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return []any{
		string(rec.Level),
		rec.Message,
		rec.ResourceID,
		rec.Timestamp,
		rec.OccurredAt,
		domain.UnixNanos(rec.OccurredAt),
		rec.TraceID,
		rec.SpanID,
		rec.Commit,
		raw,
	}, nil
}

var columns = map[query.Field]string{
	query.FieldLevel:      "level",
	query.FieldMessage:    "message",
	query.FieldResourceID: "resource_id",
	query.FieldTimestamp:  "timestamp_raw",
	query.FieldTraceID:    "trace_id",
	query.FieldSpanID:     "span_id",
	query.FieldCommit:     "commit_sha",
}

const selectLogs = `SELECT
		level,
		message,
		resource_id,
		timestamp_raw,
		occurred_at,
		occurred_at_ns,
		trace_id,
		span_id,
		commit_sha,
		metadata
	FROM log_records`

// buildFindQuery renders q as parameterized SQL. occurred_at only keeps
// microseconds, so bounds and ordering also consult occurred_at_ns; the
// coarse column still decides for instants outside the nanosecond range.
func buildFindQuery(q query.Query) (string, []any, error) {
	var (
		where []string
		args  []any
	)
	for _, c := range q.Conditions {
		col, ok := columns[c.Field]
		if !ok {
			return "", nil, fmt.Errorf("%w: field %q", repository.ErrUnsupportedQuery, c.Field)
		}
		switch c.Op {
		case query.OpEqual:
			args = append(args, c.Value)
			where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
		case query.OpContainsFold:
			args = append(args, "%"+query.EscapeLike(c.Value)+"%")
			where = append(where, fmt.Sprintf(`%s ILIKE $%d ESCAPE '\'`, col, len(args)))
		case query.OpAtLeast:
			args = append(args, c.Instant, domain.UnixNanos(c.Instant))
			where = append(where, fmt.Sprintf("occurred_at >= $%d AND occurred_at_ns >= $%d", len(args)-1, len(args)))
		case query.OpAtMost:
			args = append(args, c.Instant, domain.UnixNanos(c.Instant))
			where = append(where, fmt.Sprintf("occurred_at <= $%d AND occurred_at_ns <= $%d", len(args)-1, len(args)))
		default:
			return "", nil, fmt.Errorf("%w: operator %s", repository.ErrUnsupportedQuery, c.Op)
		}
	}

	var b strings.Builder
	b.WriteString(selectLogs)
	if len(where) > 0 {
		b.WriteString("\n\tWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	dir := "DESC"
	if !q.Sort.Descending {
		dir = "ASC"
	}
	fmt.Fprintf(&b, "\n\tORDER BY occurred_at %s, occurred_at_ns %s, id %s", dir, dir, dir)

	limit := q.Limit
	if limit <= 0 || limit > query.MaxResults {
		limit = query.MaxResults
	}
	args = append(args, limit)
	fmt.Fprintf(&b, "\n\tLIMIT $%d", len(args))
	return b.String(), args, nil
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02", "23514", "22007", "22008":
			return fmt.Errorf("%w: %s", repository.ErrInvalidArgument, pgErr.Message)
		}
	}
	return err
}
