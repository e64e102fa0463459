package ws

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultQueueSize bounds the per-subscriber backlog.
const DefaultQueueSize = 100

// Message is one live event. Data is the JSON encoding of the payload.
type Message struct {
	Event string
	Data  []byte
}

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send(Message) error
	Close()
}

// Handle identifies a registration.
type Handle string

// Stats is a snapshot of hub counters.
type Stats struct {
	Subscribers int
	Published   uint64
	Queued      uint64
	Delivered   uint64
	Evicted     uint64
}

// Option configures a Hub.
type Option func(*Hub)

// WithQueueSize sets the per-subscriber queue capacity.
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithLogger sets the logger used for eviction notices.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// Hub fans published messages out to every registered subscriber. Each
// subscriber gets its own bounded queue drained by its own goroutine, so a
// slow or dead client never delays Publish or the other subscribers.
type Hub struct {
	mu        sync.Mutex
	subs      map[Handle]*subscription
	closed    bool
	queueSize int
	log       *slog.Logger

	published atomic.Uint64
	queued    atomic.Uint64
	delivered atomic.Uint64
	evicted   atomic.Uint64
}

type subscription struct {
	handle   Handle
	sink     Subscriber
	queue    chan Message
	done     chan struct{}
	stopOnce sync.Once
}

func (s *subscription) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.sink.Close()
	})
}

// NewHub creates an initialized Hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:      make(map[Handle]*subscription),
		queueSize: DefaultQueueSize,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a sink. It only receives messages published after
// registration. Subscribing to a closed hub closes the sink immediately.
func (h *Hub) Subscribe(sink Subscriber) Handle {
	sub := &subscription{
		handle: Handle(uuid.NewString()),
		sink:   sink,
		queue:  make(chan Message, h.queueSize),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.stop()
		return sub.handle
	}
	h.subs[sub.handle] = sub
	h.mu.Unlock()

	go h.drain(sub)
	return sub.handle
}

// Unsubscribe removes a registration and closes its sink. Unknown or
// already removed handles are ignored.
func (h *Hub) Unsubscribe(handle Handle) {
	if sub, ok := h.remove(handle); ok {
		sub.stop()
	}
}

// Publish queues msg for every current subscriber without blocking and
// returns how many subscribers it was queued for. A subscriber whose queue
// is full is evicted.
func (h *Hub) Publish(msg Message) int {
	h.published.Add(1)

	var stalled []*subscription
	queued := 0
	h.mu.Lock()
	for handle, sub := range h.subs {
		select {
		case sub.queue <- msg:
			queued++
		default:
			delete(h.subs, handle)
			stalled = append(stalled, sub)
		}
	}
	h.mu.Unlock()

	h.queued.Add(uint64(queued))
	for _, sub := range stalled {
		h.evicted.Add(1)
		h.log.Warn("evicting stalled subscriber", "subscriber", string(sub.handle), "queue", cap(sub.queue))
		sub.stop()
	}
	return queued
}

// Len reports the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Stats returns a snapshot of the hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Subscribers: h.Len(),
		Published:   h.published.Load(),
		Queued:      h.queued.Load(),
		Delivered:   h.delivered.Load(),
		Evicted:     h.evicted.Load(),
	}
}

// Close removes and closes every subscriber. Later subscriptions are
// closed on arrival.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := h.subs
	h.subs = make(map[Handle]*subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

func (h *Hub) remove(handle Handle) (*subscription, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subs[handle]
	if ok {
		delete(h.subs, handle)
	}
	return sub, ok
}

func (h *Hub) drain(sub *subscription) {
	for {
		select {
		case <-sub.done:
			return
		case msg := <-sub.queue:
			// both cases can be ready at once; never send after stop
			select {
			case <-sub.done:
				return
			default:
			}
			if err := sub.sink.Send(msg); err != nil {
				if _, ok := h.remove(sub.handle); ok {
					h.evicted.Add(1)
					h.log.Debug("dropping subscriber after failed send", "subscriber", string(sub.handle), "error", err)
				}
				sub.stop()
				return
			}
			h.delivered.Add(1)
		}
	}
}
