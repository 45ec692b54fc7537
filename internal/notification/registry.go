package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrSessionFull is returned when a session cannot keep up with its messages.
var ErrSessionFull = errors.New("session buffer full")

// Session is one live connection of a user.
type Session interface {
	Deliver(message Message) error
}

// Registry tracks which live sessions belong to which user. Sessions register
// when a connection opens and call the returned func when it closes.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[uint64]Session
	nextID   uint64
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]map[uint64]Session)}
}

// Register adds a session for userID and returns its unregister func.
func (r *Registry) Register(userID string, s Session) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	if r.sessions[userID] == nil {
		r.sessions[userID] = make(map[uint64]Session)
	}
	r.sessions[userID][id] = s

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.sessions[userID], id)
			if len(r.sessions[userID]) == 0 {
				delete(r.sessions, userID)
			}
		})
	}
}

// Lookup returns the live sessions of userID.
func (r *Registry) Lookup(userID string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.sessions[userID]))
	for _, s := range r.sessions[userID] {
		out = append(out, s)
	}
	return out
}

// Connected reports how many users have at least one session.
func (r *Registry) Connected() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Dispatcher delivers messages to the sessions held in a registry. Users with
// no live session simply miss the notice.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher builds a dispatcher over registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Send delivers to every session of the destination user.
func (d *Dispatcher) Send(_ context.Context, message Message) error {
	var errs []error
	for _, s := range d.registry.Lookup(message.Destination) {
		if err := s.Deliver(message); err != nil {
			errs = append(errs, fmt.Errorf("deliver %s to %s: %w", message.Kind, message.Destination, err))
		}
	}
	return errors.Join(errs...)
}

// ChannelSession buffers messages for a streaming connection.
type ChannelSession struct {
	ch chan Message
}

// NewChannelSession builds a session with the given buffer size.
func NewChannelSession(buffer int) *ChannelSession {
	return &ChannelSession{ch: make(chan Message, buffer)}
}

// Deliver enqueues without blocking.
func (s *ChannelSession) Deliver(message Message) error {
	select {
	case s.ch <- message:
		return nil
	default:
		return ErrSessionFull
	}
}

// Messages is the receive side of the session.
func (s *ChannelSession) Messages() <-chan Message {
	return s.ch
}
