package ws

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// SSEClient streams Server-Sent Events over an HTTP response writer.
type SSEClient struct {
	mu        sync.Mutex
	writer    http.ResponseWriter
	rc        *http.ResponseController
	log       *slog.Logger
	writeWait time.Duration
	closed    bool
	done      chan struct{}
	last      time.Time
}

// NewSSEClient builds an SSE client instance.
func NewSSEClient(w http.ResponseWriter, logger *slog.Logger, writeWait time.Duration) *SSEClient {
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	return &SSEClient{
		writer:    w,
		rc:        http.NewResponseController(w),
		log:       logger,
		writeWait: writeWait,
		done:      make(chan struct{}),
		last:      time.Now().UTC(),
	}
}

// Send emits a named event to the SSE stream.
func (c *SSEClient) Send(msg Message) error {
	return c.write(fmt.Sprintf("event: %s\ndata: %s\n\n", msg.Event, msg.Data), "sse send failed")
}

// Heartbeat emits a comment frame to keep the connection alive.
func (c *SSEClient) Heartbeat() error {
	return c.write(": ping\n\n", "sse heartbeat failed")
}

func (c *SSEClient) write(frame, failure string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.EOF
	}
	if err := c.rc.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if _, err := io.WriteString(c.writer, frame); err != nil {
		c.closeLocked()
		c.log.Warn(failure, "error", err)
		return err
	}
	if err := c.rc.Flush(); err != nil {
		c.closeLocked()
		c.log.Warn(failure, "error", err)
		return err
	}
	c.last = time.Now().UTC()
	return nil
}

// Close marks the stream as closed. Writes after Close fail with io.EOF.
func (c *SSEClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *SSEClient) closeLocked() {
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// Done is closed once the stream is closed.
func (c *SSEClient) Done() <-chan struct{} {
	return c.done
}

// LastActivity reports the timestamp of the most recent successful write.
func (c *SSEClient) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
