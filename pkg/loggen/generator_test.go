package loggen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/pkg/api/client"
)

type captureIngester struct {
	records []client.Record
	failAt  int
}

func (c *captureIngester) Ingest(_ context.Context, rec client.Record) (client.Record, error) {
	if c.failAt > 0 && len(c.records)+1 == c.failAt {
		return client.Record{}, errors.New("api down")
	}
	c.records = append(c.records, rec)
	rec.ID = "1"
	return rec, nil
}

func TestRunSendsCount(t *testing.T) {
	ing := &captureIngester{}
	var emitted int
	gen, err := New(ing, WithInterval(0), WithSeed(7), OnEmit(func(client.Record) { emitted++ }))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sent, err := gen.Run(context.Background(), 5)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sent != 5 || len(ing.records) != 5 || emitted != 5 {
		t.Fatalf("sent=%d stored=%d emitted=%d", sent, len(ing.records), emitted)
	}
	valid := map[string]bool{"error": true, "warn": true, "info": true, "debug": true}
	for _, rec := range ing.records {
		if !valid[rec.Level] {
			t.Fatalf("invalid level %q", rec.Level)
		}
		if _, err := time.Parse(time.RFC3339Nano, rec.Timestamp); err != nil {
			t.Fatalf("timestamp %q: %v", rec.Timestamp, err)
		}
		if rec.Message == "" || rec.ResourceID == "" || rec.TraceID == "" || rec.SpanID == "" || rec.Commit == "" {
			t.Fatalf("empty required field in %+v", rec)
		}
		if rec.Metadata == nil {
			t.Fatal("metadata must not be nil")
		}
	}
}

func TestSeedIsReproducible(t *testing.T) {
	fixed := time.Date(2025, 9, 15, 8, 0, 0, 0, time.UTC)
	a, _ := New(&captureIngester{}, WithSeed(42))
	b, _ := New(&captureIngester{}, WithSeed(42))
	a.now = func() time.Time { return fixed }
	b.now = func() time.Time { return fixed }
	for i := 0; i < 10; i++ {
		ra, rb := a.Next(), b.Next()
		if ra.Message != rb.Message || ra.TraceID != rb.TraceID || ra.Commit != rb.Commit {
			t.Fatalf("sequence diverged at %d: %+v vs %+v", i, ra, rb)
		}
	}
}

func TestRunStopsOnError(t *testing.T) {
	ing := &captureIngester{failAt: 3}
	gen, _ := New(ing, WithInterval(0))
	sent, err := gen.Run(context.Background(), 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if sent != 2 {
		t.Fatalf("expected 2 records before failure, got %d", sent)
	}
}

func TestRunHonoursContext(t *testing.T) {
	gen, _ := New(&captureIngester{}, WithInterval(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	sent, err := gen.Run(ctx, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected the first record before waiting, got %d", sent)
	}
}

func TestNewRequiresIngester(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil ingester")
	}
}
