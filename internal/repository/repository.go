package repository

import (
	"context"

	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/domain"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/query"
)

// LogRepository persists log records and evaluates compiled queries.
type LogRepository interface {
	// InsertLog stores rec and sets rec.ID to the store-assigned identifier.
	InsertLog(ctx context.Context, rec *domain.LogRecord) error
	// FindLogs returns records matching q in q's order, at most q.Limit of
	// them. The store identifier is left empty on returned records.
	FindLogs(ctx context.Context, q query.Query) ([]domain.LogRecord, error)
	// ReplaceLogs removes every stored record and inserts recs in order.
	ReplaceLogs(ctx context.Context, recs []domain.LogRecord) (int, error)
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
