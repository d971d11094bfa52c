// Package relay fans command frames out to every connected websocket
// session. A published frame is delivered to all current subscribers except
// the one named as origin, so sessions never receive their own frames back.
package relay

import (
	"sync"

	"github.com/kbukum/base-api/logger"
)

// subscriberBuffer is the per-subscriber frame queue depth. A subscriber
// that falls this far behind starts losing frames rather than stalling the
// hub.
const subscriberBuffer = 256

// Subscriber is one registered frame consumer.
type Subscriber struct {
	id     string
	frames chan []byte
	log    *logger.Logger
}

// NewSubscriber creates a subscriber identified by id (typically the
// websocket session id).
func NewSubscriber(id string) *Subscriber {
	return &Subscriber{
		id:     id,
		frames: make(chan []byte, subscriberBuffer),
		log:    logger.WithComponent("relay"),
	}
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string { return s.id }

// Frames returns the channel delivering relayed frames. The channel is
// closed when the subscriber is unregistered or the hub shuts down.
func (s *Subscriber) Frames() <-chan []byte { return s.frames }

// deliver queues a frame without blocking. A full queue drops the frame.
func (s *Subscriber) deliver(frame []byte) bool {
	select {
	case s.frames <- frame:
		return true
	default:
		s.log.Warn("Subscriber queue full, dropping frame", logger.Fields(
			logger.FieldSessionID, s.id,
			"frame_size", len(frame),
		))
		return false
	}
}

func (s *Subscriber) close() {
	close(s.frames)
}

// message is one frame in flight with the subscriber id it came from.
type message struct {
	origin string
	frame  []byte
}

// Hub owns the subscriber set and serializes registration, removal and
// publishing through its Run loop.
type Hub struct {
	subscribers map[string]*Subscriber
	register    chan *Subscriber
	unregister  chan *Subscriber
	publish     chan message
	done        chan struct{}
	stopped     bool
	mu          sync.RWMutex
	log         *logger.Logger
}

// NewHub creates an empty hub. Call Run (in a goroutine) before publishing.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		publish:     make(chan message, subscriberBuffer),
		done:        make(chan struct{}),
		log:         logger.WithComponent("relay"),
	}
}

// Run is the hub's event loop. It blocks until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub.id] = sub
			total := len(h.subscribers)
			h.mu.Unlock()
			h.log.Debug("Subscriber registered", logger.Fields(
				logger.FieldSessionID, sub.id,
				"total_subscribers", total,
			))

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[sub.id]; ok {
				delete(h.subscribers, sub.id)
				sub.close()
			}
			total := len(h.subscribers)
			h.mu.Unlock()
			h.log.Debug("Subscriber unregistered", logger.Fields(
				logger.FieldSessionID, sub.id,
				"total_subscribers", total,
			))

		case msg := <-h.publish:
			h.fanOut(msg)
		}
	}
}

// Stop shuts the hub down: all subscriber channels are closed and Run
// returns. Safe to call more than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

// Register adds a subscriber to the fan-out set.
func (h *Hub) Register(sub *Subscriber) {
	select {
	case h.register <- sub:
	case <-h.done:
	}
}

// Unregister removes a subscriber and closes its frame channel.
func (h *Hub) Unregister(sub *Subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Publish queues a frame for delivery to every subscriber except the one
// identified by origin. An empty origin delivers to all. Publishing to a
// stopped hub is a no-op.
func (h *Hub) Publish(origin string, frame []byte) {
	select {
	case h.publish <- message{origin: origin, frame: frame}:
	case <-h.done:
	}
}

// fanOut delivers one frame to all subscribers but its origin. Runs on the
// hub goroutine.
func (h *Hub) fanOut(msg message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, sub := range h.subscribers {
		if id == msg.origin {
			continue
		}
		if sub.deliver(msg.frame) {
			delivered++
		}
	}
	h.log.Debug("Frame relayed", logger.Fields(
		"frame_size", len(msg.frame),
		"delivered", delivered,
		"total_subscribers", len(h.subscribers),
	))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		sub.close()
		delete(h.subscribers, id)
	}
	h.log.Debug("All subscribers closed during shutdown")
}

// SubscriberCount returns the number of registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
