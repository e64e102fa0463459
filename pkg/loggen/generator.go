// Package loggen produces synthetic log records and pushes them through an
// Ingester at a steady rate. It backs `logctl generate` for demos and load
// checks against a running API.
package loggen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/pkg/api/client"
)

const defaultInterval = 5 * time.Second

// Ingester accepts one record at a time.
type Ingester interface {
	Ingest(ctx context.Context, rec client.Record) (client.Record, error)
}

type template struct {
	level    string
	message  string
	resource string
	metadata func(r *rand.Rand) map[string]any
}

var templates = []template{
	{"error", "Failed to connect to database. Connection timeout after 30s", "server-1234", func(r *rand.Rand) map[string]any {
		return map[string]any{"parentResourceId": "server-5678", "retryCount": r.IntN(5) + 1}
	}},
	{"warn", "High memory usage detected", "server-1234", func(r *rand.Rand) map[string]any {
		return map[string]any{"memoryUsage": strconv.Itoa(80+r.IntN(20)) + "%", "threshold": "80%"}
	}},
	{"info", "User authentication successful", "auth-service-001", func(r *rand.Rand) map[string]any {
		return map[string]any{"userId": fmt.Sprintf("user-%05d", r.IntN(100000)), "method": "oauth2"}
	}},
	{"debug", "API request received: GET /api/users", "api-gateway-01", func(r *rand.Rand) map[string]any {
		return map[string]any{"endpoint": "/api/users", "method": "GET", "page": r.IntN(10) + 1}
	}},
	{"error", "Payment processing failed: Invalid credit card number", "payment-service-02", func(r *rand.Rand) map[string]any {
		return map[string]any{"orderId": fmt.Sprintf("order-%05d", r.IntN(100000)), "errorCode": "INVALID_CARD"}
	}},
	{"info", "Database backup completed successfully", "backup-service-01", func(r *rand.Rand) map[string]any {
		return map[string]any{"durationSeconds": 30 + r.IntN(60)}
	}},
	{"warn", "Rate limit approaching", "api-gateway-01", func(r *rand.Rand) map[string]any {
		return map[string]any{"currentRequests": 9000 + r.IntN(1000), "maxRequests": 10000}
	}},
	{"debug", "Cache hit for key: user_profile", "cache-service-01", func(r *rand.Rand) map[string]any {
		return map[string]any{"ttl": 3600}
	}},
}

var commits = []string{"5e5342f", "7a8b9c0", "9d1e2f3", "4c5d6e7", "1f2g3h4"}

// Generator emits synthetic records.
type Generator struct {
	ingester Ingester
	interval time.Duration
	rnd      *rand.Rand
	now      func() time.Time
	onEmit   func(client.Record)
}

// Option customises a Generator.
type Option func(*Generator)

// WithInterval sets the pause between records. Zero sends back to back.
func WithInterval(d time.Duration) Option {
	return func(g *Generator) {
		if d >= 0 {
			g.interval = d
		}
	}
}

// WithSeed makes the generated sequence reproducible.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// OnEmit registers a callback invoked with each stored record.
func OnEmit(fn func(client.Record)) Option {
	return func(g *Generator) { g.onEmit = fn }
}

// New creates a generator feeding ingester.
func New(ingester Ingester, opts ...Option) (*Generator, error) {
	if ingester == nil {
		return nil, errors.New("loggen: ingester required")
	}
	g := &Generator{
		ingester: ingester,
		interval: defaultInterval,
		rnd:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Next builds one record stamped with the current time.
func (g *Generator) Next() client.Record {
	t := templates[g.rnd.IntN(len(templates))]
	trace := fmt.Sprintf("%s-%06x", strings.SplitN(t.resource, "-", 2)[0], g.rnd.Uint32()&0xffffff)
	return client.Record{
		Level:      t.level,
		Message:    t.message,
		ResourceID: t.resource,
		Timestamp:  g.now().UTC().Format(time.RFC3339Nano),
		TraceID:    trace,
		SpanID:     "span-" + strconv.Itoa(100+g.rnd.IntN(900)),
		Commit:     commits[g.rnd.IntN(len(commits))],
		Metadata:   t.metadata(g.rnd),
	}
}

// Run sends count records, or runs until ctx is done when count <= 0. It
// returns the number of records the ingester accepted.
func (g *Generator) Run(ctx context.Context, count int) (int, error) {
	var ticker *time.Ticker
	if g.interval > 0 {
		ticker = time.NewTicker(g.interval)
		defer ticker.Stop()
	}
	sent := 0
	for count <= 0 || sent < count {
		if sent > 0 {
			if ticker != nil {
				select {
				case <-ctx.Done():
					return sent, ctx.Err()
				case <-ticker.C:
				}
			} else if err := ctx.Err(); err != nil {
				return sent, err
			}
		}
		stored, err := g.ingester.Ingest(ctx, g.Next())
		if err != nil {
			return sent, fmt.Errorf("ingest synthetic record: %w", err)
		}
		sent++
		if g.onEmit != nil {
			g.onEmit(stored)
		}
	}
	return sent, nil
}
