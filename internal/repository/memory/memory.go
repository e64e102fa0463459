// Package memory is a process-local log store used when no database is
// configured and by tests.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/domain"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/query"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/repository"
)

type entry struct {
	seq uint64
	rec domain.LogRecord
}

// Repository keeps records in insertion order.
type Repository struct {
	mu      sync.RWMutex
	seq     uint64
	entries []entry
}

// New constructs an empty Repository.
func New() *Repository {
	return &Repository{}
}

var (
	_ repository.LogRepository = (*Repository)(nil)
	_ repository.HealthChecker = (*Repository)(nil)
)

// InsertLog appends a record and assigns a sequential identifier.
func (r *Repository) InsertLog(ctx context.Context, rec *domain.LogRecord) error {
	if rec == nil {
		return repository.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(rec)
	return nil
}

func (r *Repository) insertLocked(rec *domain.LogRecord) {
	r.seq++
	rec.ID = strconv.FormatUint(r.seq, 10)
	stored := *rec
	stored.Metadata = cloneMap(rec.Metadata)
	r.entries = append(r.entries, entry{seq: r.seq, rec: stored})
}

// FindLogs scans newest-first so a stable sort on the timestamp keeps the
// most recent insert ahead on ties.
func (r *Repository) FindLogs(ctx context.Context, q query.Query) ([]domain.LogRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	matched := make([]domain.LogRecord, 0)
	for i := len(r.entries) - 1; i >= 0; i-- {
		rec := r.entries[i].rec
		if q.Match(rec) {
			rec.ID = ""
			rec.Metadata = cloneMap(rec.Metadata)
			matched = append(matched, rec)
		}
	}
	r.mu.RUnlock()

	if q.Sort.Descending {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].OccurredAt.After(matched[j].OccurredAt)
		})
	} else {
		// ascending wants oldest insert first on ties
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].OccurredAt.Before(matched[j].OccurredAt)
		})
	}

	limit := q.Limit
	if limit <= 0 || limit > query.MaxResults {
		limit = query.MaxResults
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// ReplaceLogs drops every record and inserts recs.
func (r *Repository) ReplaceLogs(ctx context.Context, recs []domain.LogRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = r.entries[:0]
	for i := range recs {
		rec := recs[i]
		r.insertLocked(&rec)
	}
	return len(recs), nil
}

// Ping always succeeds.
func (r *Repository) Ping(context.Context) error {
	return nil
}

// Len reports the number of stored records.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
