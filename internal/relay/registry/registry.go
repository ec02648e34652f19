// Package registry tracks the set of live subscribers and fans events out to
// them. The registry is the only structure mutated by more than one
// goroutine: transport connections add and remove themselves while the
// pipeline broadcasts.
package registry

import (
	"sync"
	"sync/atomic"
	"time"

	errspkg "github.com/visiona/vlmrelay/internal/relay/errors"
	loggingpkg "github.com/visiona/vlmrelay/internal/relay/logging"
)

// Conn is the outbound side of one subscriber connection. Implementations
// must be safe for concurrent writes; the broadcast goroutine and the
// connection's own keepalive replies share it.
type Conn interface {
	WriteText(payload string) error
	Close() error
}

// Subscriber represents one live connection. Owned exclusively by the
// Registry; the transport layer keeps only the id and its socket.
type Subscriber struct {
	ID          string
	Conn        Conn
	ConnectedAt time.Time

	messagesSent atomic.Int64
}

// NewSubscriber builds a subscriber around an established connection.
func NewSubscriber(id string, conn Conn) *Subscriber {
	return &Subscriber{ID: id, Conn: conn, ConnectedAt: time.Now()}
}

// MessagesSent returns how many events have been delivered to this
// subscriber.
func (s *Subscriber) MessagesSent() int64 {
	return s.messagesSent.Load()
}

// Registry is the concurrency-safe set of connected subscribers.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber
	log  loggingpkg.ServiceLogger
}

// NewRegistry returns an empty registry.
func NewRegistry(log loggingpkg.ServiceLogger) (*Registry, error) {
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	return &Registry{
		subs: make(map[string]*Subscriber),
		log:  log,
	}, nil
}

// Add registers a subscriber. Safe to call while a broadcast is in progress;
// whether the subscriber sees the event currently in flight is unspecified.
func (r *Registry) Add(sub *Subscriber) {
	r.mu.Lock()
	r.subs[sub.ID] = sub
	total := len(r.subs)
	r.mu.Unlock()

	r.log.Info("client connected", loggingpkg.LogFields{"client_id": sub.ID, "total": total})
}

// Remove deregisters a subscriber. Idempotent: removing an unknown id is a
// no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, existed := r.subs[id]
	delete(r.subs, id)
	total := len(r.subs)
	r.mu.Unlock()

	if existed {
		r.log.Info("client disconnected", loggingpkg.LogFields{"client_id": id, "total": total})
	}
}

// Count returns the current number of subscribers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Snapshot returns a point-in-time copy of the subscriber set so no lock is
// held across outbound writes. A slow subscriber therefore never stalls
// connects or disconnects.
func (r *Registry) Snapshot() []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]*Subscriber, 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	return subs
}

// Broadcast writes payload to every subscriber in the current snapshot. A
// failed write is treated as an implicit disconnect: the subscriber is
// removed, a warning is logged, and delivery to the rest continues. Returns
// how many subscribers received the payload and how many were dropped.
func (r *Registry) Broadcast(payload string) (delivered, dropped int) {
	subs := r.Snapshot()
	if len(subs) == 0 {
		return 0, 0
	}

	for _, sub := range subs {
		if err := sub.Conn.WriteText(payload); err != nil {
			r.log.Warn("failed to send to client, dropping", loggingpkg.LogFields{
				"client_id": sub.ID,
				"error":     err,
			})
			r.Remove(sub.ID)
			dropped++
			continue
		}
		sub.messagesSent.Add(1)
		delivered++
	}

	r.log.Debug("broadcast complete", loggingpkg.LogFields{"delivered": delivered, "dropped": dropped})
	return delivered, dropped
}
