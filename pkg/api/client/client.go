package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Client provides typed access to the log ingestion API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithDialer overrides the websocket dialer used by Stream.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:5000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		dialer:     websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// BaseURL returns the normalised API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError represents an error response from the API.
type APIError struct {
	Status int
	Detail string
}

func (e APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Detail)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return APIError{Status: resp.StatusCode, Detail: extractDetail(resp.Body)}
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractDetail(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Detail)
}

// Record mirrors the API's log record payload.
type Record struct {
	ID         string         `json:"id,omitempty"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	ResourceID string         `json:"resourceId"`
	Timestamp  string         `json:"timestamp"`
	TraceID    string         `json:"traceId"`
	SpanID     string         `json:"spanId"`
	Commit     string         `json:"commit"`
	Metadata   map[string]any `json:"metadata"`
}

// Filter narrows a query. Zero fields are omitted.
type Filter struct {
	Level          string
	Message        string
	ResourceID     string
	TraceID        string
	SpanID         string
	Commit         string
	TimestampStart string
	TimestampEnd   string
}

// Values encodes the filter as query parameters.
func (f Filter) Values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			v.Set(key, value)
		}
	}
	set("level", f.Level)
	set("message", f.Message)
	set("resourceId", f.ResourceID)
	set("traceId", f.TraceID)
	set("spanId", f.SpanID)
	set("commit", f.Commit)
	set("timestamp_start", f.TimestampStart)
	set("timestamp_end", f.TimestampEnd)
	return v
}

// Ingest submits rec and returns the stored record, id included.
func (c *Client) Ingest(ctx context.Context, rec Record) (Record, error) {
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	rec.ID = ""
	payload, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("encode record: %w", err)
	}
	return c.IngestRaw(ctx, payload)
}

// IngestRaw submits an already encoded JSON document unchanged, leaving
// validation to the server.
func (c *Client) IngestRaw(ctx context.Context, payload []byte) (Record, error) {
	var out Record
	if err := c.do(ctx, http.MethodPost, "/api/logs", bytes.NewReader(payload), &out); err != nil {
		return Record{}, err
	}
	return out, nil
}

// Query returns records matching f, newest first.
func (c *Client) Query(ctx context.Context, f Filter) ([]Record, error) {
	path := "/api/logs"
	if encoded := f.Values().Encode(); encoded != "" {
		path += "?" + encoded
	}
	var records []Record
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Seed replaces the server's records with its sample set and returns how
// many were inserted.
func (c *Client) Seed(ctx context.Context) (int, error) {
	var resp struct {
		Message string `json:"message"`
		Count   int    `json:"count"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/logs/seed", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Stream subscribes to live records over the websocket channel and calls fn
// for each one until ctx is done or the connection fails.
func (c *Client) Stream(ctx context.Context, fn func(Record)) error {
	u, err := url.Parse(c.baseURL + "/ws/logs")
	if err != nil {
		return fmt.Errorf("build stream url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return APIError{Status: resp.StatusCode, Detail: extractDetail(resp.Body)}
		}
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}
		if env.Event != "new-log" {
			continue
		}
		var rec Record
		if err := json.Unmarshal(env.Data, &rec); err != nil {
			return fmt.Errorf("decode stream record: %w", err)
		}
		fn(rec)
	}
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
