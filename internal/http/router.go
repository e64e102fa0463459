package httpx

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/service/logs"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/ws"
)

const (
	healthCheckTimeout     = 2 * time.Second
	defaultMaxBodyBytes    = 1 << 20
	defaultWriteTimeout    = 10 * time.Second
	defaultPingInterval    = 30 * time.Second
	defaultHeartbeat       = 15 * time.Second
	apiBanner              = "Log Ingestion and Querying System API"
	seedSuccessMessage     = "Sample logs seeded successfully"
	internalErrorDetailFmt = "Internal server error: "
)

// RateLimits holds per-route request budgets. A zero limit disables the
// check for that route.
type RateLimits struct {
	Ingest       int
	Query        int
	Seed         int
	Stream       int
	Window       time.Duration
	StreamWindow time.Duration
}

// DefaultRateLimits returns the budgets used when none are configured.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Ingest:       600,
		Query:        300,
		Seed:         5,
		Stream:       30,
		Window:       time.Minute,
		StreamWindow: 30 * time.Second,
	}
}

// Options configures a Router.
type Options struct {
	Limiter           RateLimiter
	Limits            RateLimits
	AllowedOrigins    []string
	Health            func(context.Context) error
	MaxBodyBytes      int64
	WriteTimeout      time.Duration
	PingInterval      time.Duration
	HeartbeatInterval time.Duration
	Registry          *prometheus.Registry
}

// Router wires HTTP endpoints to the log service.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	logs     logs.Service
	upgrader websocket.Upgrader
	limiter  RateLimiter
	limits   RateLimits
	origins  []string
	dbHealth func(context.Context) error
	maxBody  int64
	stream   streamSettings
	metrics  *routerMetrics

	ingestHandler http.HandlerFunc
	queryHandler  http.HandlerFunc
}

type streamSettings struct {
	writeTimeout time.Duration
	pingInterval time.Duration
	heartbeat    time.Duration
}

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, logSvc logs.Service, opts Options) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		logger: logger,
		logs:   logSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  opts.Limiter,
		limits:   opts.Limits,
		origins:  opts.AllowedOrigins,
		dbHealth: opts.Health,
		maxBody:  opts.MaxBodyBytes,
		stream: streamSettings{
			writeTimeout: opts.WriteTimeout,
			pingInterval: opts.PingInterval,
			heartbeat:    opts.HeartbeatInterval,
		},
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if len(r.origins) == 0 {
		r.origins = []string{"*"}
	}
	if r.maxBody <= 0 {
		r.maxBody = defaultMaxBodyBytes
	}
	if r.stream.writeTimeout <= 0 {
		r.stream.writeTimeout = defaultWriteTimeout
	}
	if r.stream.pingInterval <= 0 {
		r.stream.pingInterval = defaultPingInterval
	}
	if r.stream.heartbeat <= 0 {
		r.stream.heartbeat = defaultHeartbeat
	}
	r.metrics = newRouterMetrics(opts.Registry, logSvc.Hub())
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	window := r.limits.Window
	r.ingestHandler = r.withRateLimit("logs_ingest", r.limits.Ingest, window, rateLimitKeyIP, r.handleIngest)
	compressed := gzhttp.GzipHandler(http.HandlerFunc(r.handleQuery))
	r.queryHandler = r.withRateLimit("logs_query", r.limits.Query, window, rateLimitKeyIP, compressed.ServeHTTP)

	r.mux.HandleFunc("/healthz", r.audit("healthz", r.handleHealthz))
	r.mux.Handle("/metrics", r.metrics.handler())
	r.mux.HandleFunc("/api/", r.audit("root", r.cors(r.handleRoot)))
	r.mux.HandleFunc("/api/logs", r.audit("logs", r.cors(r.handleLogs)))
	r.mux.HandleFunc("/api/logs/seed", r.audit("logs_seed", r.cors(r.withRateLimit("logs_seed", r.limits.Seed, window, rateLimitKeyIP, r.handleSeed))))
	r.mux.HandleFunc("/api/logs/stream", r.audit("logs_stream", r.cors(r.withRateLimit("logs_stream", r.limits.Stream, r.limits.StreamWindow, rateLimitKeyIP, r.handleLogsSSE))))
	r.mux.HandleFunc("/ws/logs", r.audit("logs_ws", r.withRateLimit("logs_ws", r.limits.Stream, r.limits.StreamWindow, rateLimitKeyIP, r.handleLogsWS)))
}

func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/api/" {
		r.notFound(w)
		return
	}
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": apiBanner})
}

func (r *Router) handleLogs(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.queryHandler(w, req)
	case http.MethodPost:
		r.ingestHandler(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleIngest(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, r.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			r.metrics.recordIngest("rejected")
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rec, err := r.logs.Ingest(req.Context(), body)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	r.metrics.recordIngest("accepted")
	writeJSON(w, http.StatusCreated, rec)
}

func (r *Router) handleQuery(w http.ResponseWriter, req *http.Request) {
	records, err := r.logs.Query(req.Context(), req.URL.Query())
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, records)
}

func (r *Router) handleSeed(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	n, err := r.logs.Seed(req.Context())
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": seedSuccessMessage,
		"count":   n,
	})
}

func (r *Router) handleLogsWS(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger, r.stream.writeTimeout)
	hub := r.logs.Hub()
	handle := hub.Subscribe(client)
	r.logger.Info("live subscriber connected", "kind", "websocket", "subscriber", string(handle), "ip", clientIP(req))

	err = client.Run(req.Context(), r.stream.pingInterval)
	hub.Unsubscribe(handle)
	r.logger.Info("live subscriber disconnected", "kind", "websocket", "subscriber", string(handle), "reason", errString(err))
}

func (r *Router) handleLogsSSE(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	client := ws.NewSSEClient(w, r.logger, r.stream.writeTimeout)
	hub := r.logs.Hub()
	handle := hub.Subscribe(client)
	defer hub.Unsubscribe(handle)

	// the first frame tells the peer the subscription is live
	if err := client.Heartbeat(); err != nil {
		return
	}
	r.logger.Info("live subscriber connected", "kind", "sse", "subscriber", string(handle), "ip", clientIP(req))

	ticker := time.NewTicker(r.stream.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-client.Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["store"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["store"] = map[string]any{"status": "up"}
		}
	}
	if hub := r.logs.Hub(); hub != nil {
		components["live"] = map[string]any{"status": "up", "subscribers": hub.Len()}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	var verr *logs.ValidationError
	if errors.As(err, &verr) {
		r.metrics.recordIngest("rejected")
		writeError(w, http.StatusBadRequest, verr.Message)
		return
	}
	if req.Method == http.MethodPost && req.URL.Path == "/api/logs" {
		r.metrics.recordIngest("failed")
	}
	r.logger.Error("log service failure", "path", req.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, internalErrorDetailFmt+err.Error())
}

func (r *Router) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if allowed := r.allowedOrigin(req.Header.Get("Origin")); allowed != "" {
			headers := w.Header()
			headers.Set("Access-Control-Allow-Origin", allowed)
			if allowed != "*" {
				headers.Add("Vary", "Origin")
			}
			headers.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			headers.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			headers.Set("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset")
		}
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, req)
	}
}

func (r *Router) allowedOrigin(origin string) string {
	for _, allowed := range r.origins {
		if allowed == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		reqID := strings.TrimSpace(req.Header.Get("X-Request-ID"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if recorder.hijacked {
			status = http.StatusSwitchingProtocols
		}
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		r.metrics.recordRequest(req.Method, route, status, duration)

		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"route", route,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
			"request_id", reqID,
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status   int
	bytes    int
	hijacked bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		conn, rw, err := h.Hijack()
		if err == nil {
			sr.hijacked = true
		}
		return conn, rw, err
	}
	return nil, nil, errors.New("hijacker not supported")
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := decision.remaining
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.reset.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.reset.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
