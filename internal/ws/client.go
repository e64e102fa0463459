package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const maxInboundBytes = 4096

// Envelope is the JSON frame written to websocket clients.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client represents a websocket client connection.
type Client struct {
	conn      *websocket.Conn
	log       *slog.Logger
	writeWait time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
}

// NewClient constructs a client wrapper. Every write must finish within
// writeWait or the client is considered gone.
func NewClient(conn *websocket.Conn, logger *slog.Logger, writeWait time.Duration) *Client {
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	return &Client{conn: conn, log: logger, writeWait: writeWait}
}

// Send writes an event envelope to the websocket connection.
func (c *Client) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	if err := c.conn.WriteJSON(Envelope{Event: msg.Event, Data: msg.Data}); err != nil {
		c.log.Warn("websocket send failed", "error", err)
		return err
	}
	return nil
}

// Close sends a close frame and terminates the connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(c.writeWait)
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), deadline)
		_ = c.conn.Close()
	})
}

// Run services the read side of the connection until the peer disconnects,
// a pong is missed or ctx ends. Inbound messages are discarded.
func (c *Client) Run(ctx context.Context, pingPeriod time.Duration) error {
	if pingPeriod <= 0 {
		pingPeriod = 30 * time.Second
	}
	pongWait := pingPeriod * 2

	c.conn.SetReadLimit(maxInboundBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				c.Close()
				return
			case <-ticker.C:
				if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
					c.Close()
					return
				}
			}
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return err
		}
	}
}
