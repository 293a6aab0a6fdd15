// Package server accepts relay connections on TCP and unix sockets and runs
// a session for each one.
package server

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/spf13/afero"

	"github.com/nfrund/sigrelay/internal/hub"
	"github.com/nfrund/sigrelay/internal/pubsub"
)

var (
	// ErrNoListeners is returned by Start when neither a TCP address nor a
	// unix socket path is configured.
	ErrNoListeners = errors.New("no listener configured")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("server already started")
)

// Config selects the endpoints the server listens on.
type Config struct {
	TCPAddr      string
	UnixPath     string
	MaxFrameSize int
}

// EventBus carries session lifecycle events. The server publishes through
// it and logs what it observes.
type EventBus interface {
	pubsub.Publisher
	pubsub.Subscriber
}

// Server holds the dependencies for the relay listeners.
type Server struct {
	cfg    Config
	bus    *pubsub.Bus
	hub    *hub.Hub
	events EventBus
	logger *slog.Logger
	fs     afero.Fs

	// sessionLogger is handed to each session; it carries component=session.
	sessionLogger *slog.Logger

	mu        sync.Mutex
	started   bool
	stopped   bool
	listeners []net.Listener
	stop      func()

	acceptWG  sync.WaitGroup
	sessionWG sync.WaitGroup
}

// New creates a new Server instance. events may be nil. fs is used to
// clean up the unix socket file.
func New(cfg Config, bus *pubsub.Bus, h *hub.Hub, events EventBus, logger *slog.Logger, fs afero.Fs) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Server{
		cfg:    cfg,
		bus:    bus,
		hub:    h,
		events: events,
		logger: logger.With("component", "server"),
		fs:     fs,

		sessionLogger: logger.With("component", "session"),
	}
}

// Addrs returns the addresses the server is bound to, TCP first.
func (s *Server) Addrs() []net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	addrs := make([]net.Addr, 0, len(s.listeners))
	for _, l := range s.listeners {
		addrs = append(addrs, l.Addr())
	}
	return addrs
}

// Sessions returns the number of live sessions.
func (s *Server) Sessions() int {
	return s.hub.Count()
}
