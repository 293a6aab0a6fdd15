// Package hub tracks the relay's live sessions so the server can report them
// and stop them all on shutdown.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/nfrund/sigrelay/internal/session"
)

// ErrStopped is returned by Register once the hub's Run loop has exited.
var ErrStopped = errors.New("hub stopped")

// Hub is the registry of active sessions. All mutations go through its Run
// loop, so the session set needs no lock.
type Hub struct {
	logger *slog.Logger

	sessions map[*session.Session]struct{}
	count    atomic.Int64

	register   chan *session.Session
	unregister chan *session.Session
	done       chan struct{}
}

// NewHub creates and returns a new Hub instance.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger,
		sessions:   make(map[*session.Session]struct{}),
		register:   make(chan *session.Session),
		unregister: make(chan *session.Session),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until ctx is canceled, then closes every
// session still registered. It must be run in a separate goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case s := <-h.register:
			h.sessions[s] = struct{}{}
			h.count.Store(int64(len(h.sessions)))
			h.logger.Debug("Session registered", "session_id", s.ID(), "total_sessions", len(h.sessions))

		case s := <-h.unregister:
			if _, ok := h.sessions[s]; ok {
				delete(h.sessions, s)
				h.count.Store(int64(len(h.sessions)))
				h.logger.Debug("Session unregistered", "session_id", s.ID(), "total_sessions", len(h.sessions))
			}

		case <-ctx.Done():
			if len(h.sessions) > 0 {
				h.logger.Info("Closing active sessions", "total_sessions", len(h.sessions))
			}
			for s := range h.sessions {
				s.Close()
				delete(h.sessions, s)
			}
			h.count.Store(0)
			return
		}
	}
}

// Register adds s to the hub. Once the hub has stopped it closes s instead
// and returns ErrStopped.
func (h *Hub) Register(s *session.Session) error {
	select {
	case h.register <- s:
		return nil
	case <-h.done:
		s.Close()
		return ErrStopped
	}
}

// Unregister removes s from the hub. It is a no-op after the hub stopped.
func (h *Hub) Unregister(s *session.Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Count returns the number of registered sessions.
func (h *Hub) Count() int {
	return int(h.count.Load())
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
