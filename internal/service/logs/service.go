package logs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/domain"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/query"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/repository"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/ws"
)

// StoreError wraps a failure reported by the log store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s logs: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Service validates, stores, queries and streams log records.
type Service struct {
	repo   repository.LogRepository
	hub    *ws.Hub
	logger *slog.Logger
}

// New constructs a log service.
func New(repo repository.LogRepository, hub *ws.Hub, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{repo: repo, hub: hub, logger: logger}
}

// Ingest validates raw, stores the record and then publishes it to live
// subscribers. Nothing is published when the store rejects the record.
func (s Service) Ingest(ctx context.Context, raw []byte) (domain.LogRecord, error) {
	rec, err := Validate(raw)
	if err != nil {
		return domain.LogRecord{}, err
	}
	if err := s.repo.InsertLog(ctx, &rec); err != nil {
		return domain.LogRecord{}, &StoreError{Op: "insert", Err: err}
	}
	s.broadcast(rec)
	return rec, nil
}

// Query compiles params and returns matching records, newest first.
func (s Service) Query(ctx context.Context, params url.Values) ([]domain.LogRecord, error) {
	q := query.Compile(params)
	records, err := s.repo.FindLogs(ctx, q)
	if err != nil {
		return nil, &StoreError{Op: "find", Err: err}
	}
	if records == nil {
		records = []domain.LogRecord{}
	}
	return records, nil
}

// Seed replaces the stored records with the sample fixtures. Seeded
// records are not broadcast.
func (s Service) Seed(ctx context.Context) (int, error) {
	fixtures, err := SeedRecords()
	if err != nil {
		return 0, err
	}
	n, err := s.repo.ReplaceLogs(ctx, fixtures)
	if err != nil {
		return 0, &StoreError{Op: "seed", Err: err}
	}
	s.logger.Info("seeded sample logs", "count", n)
	return n, nil
}

// Hub returns the live stream hub (useful for HTTP handlers).
func (s Service) Hub() *ws.Hub {
	return s.hub
}

func (s Service) broadcast(rec domain.LogRecord) {
	if s.hub == nil {
		return
	}
	data, err := MarshalRecord(rec)
	if err != nil {
		s.logger.Warn("failed to marshal log payload", "error", err)
		return
	}
	n := s.hub.Publish(ws.Message{Event: domain.EventNewLog, Data: data})
	s.logger.Debug("log broadcast", "id", rec.ID, "subscribers", n)
}

// MarshalRecord formats a record for streaming payloads.
func MarshalRecord(rec domain.LogRecord) ([]byte, error) {
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	return json.Marshal(rec)
}
