// Package session runs one client connection: a reader that decodes frames
// and feeds the shared Bus, and a writer that sends the connection the bus
// entries matching its subscriptions. The two halves live and die together.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nfrund/sigrelay/internal/codec"
	"github.com/nfrund/sigrelay/internal/message"
	"github.com/nfrund/sigrelay/internal/netutil"
	"github.com/nfrund/sigrelay/internal/pubsub"
)

// ErrAlreadyStarted is returned when Run is called more than once.
var ErrAlreadyStarted = errors.New("session already started")

// State is the lifecycle stage of a Session.
type State int32

const (
	// StateActive means both halves are running (or about to start).
	StateActive State = iota
	// StateClosing means one half finished and the other is being stopped.
	StateClosing
	// StateClosed means both halves stopped and resources were released.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Stats counts a session's traffic.
type Stats struct {
	FramesIn      uint64 `json:"frames_in"`
	Published     uint64 `json:"published"`
	Subscriptions uint64 `json:"subscriptions"`
	Delivered     uint64 `json:"delivered"`
	Lagged        uint64 `json:"lagged"`
}

type counters struct {
	framesIn      atomic.Uint64
	published     atomic.Uint64
	subscriptions atomic.Uint64
	delivered     atomic.Uint64
	lagged        atomic.Uint64
}

// Session owns one client connection end to end.
type Session struct {
	id           string
	conn         net.Conn
	bus          *pubsub.Bus
	events       pubsub.Publisher
	logger       *slog.Logger
	transport    string
	maxFrameSize int

	state   atomic.Int32
	started atomic.Bool
	stats   counters

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger; session_id and remote attributes are added to it.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithEvents publishes EventOpened and EventClosed through p.
func WithEvents(p pubsub.Publisher) Option {
	return func(s *Session) {
		s.events = p
	}
}

// WithMaxFrameSize limits the body size of inbound frames.
func WithMaxFrameSize(n int) Option {
	return func(s *Session) {
		s.maxFrameSize = n
	}
}

// WithTransport records the listener kind ("tcp", "unix") for logs and events.
func WithTransport(name string) Option {
	return func(s *Session) {
		s.transport = name
	}
}

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// New creates a session for conn publishing to and receiving from bus. The
// session takes ownership of conn and closes it when it ends.
func New(conn net.Conn, bus *pubsub.Bus, opts ...Option) *Session {
	s := &Session{
		id:           uuid.NewString(),
		conn:         conn,
		bus:          bus,
		logger:       slog.Default(),
		transport:    conn.LocalAddr().Network(),
		maxFrameSize: codec.DefaultMaxFrameSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id, "remote", remoteAddr(conn))
	return s
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil && addr.String() != "" {
		return addr.String()
	}
	return "local"
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle stage.
func (s *Session) State() State { return State(s.state.Load()) }

// Stats returns a snapshot of the traffic counters.
func (s *Session) Stats() Stats {
	return Stats{
		FramesIn:      s.stats.framesIn.Load(),
		Published:     s.stats.published.Load(),
		Subscriptions: s.stats.subscriptions.Load(),
		Delivered:     s.stats.delivered.Load(),
		Lagged:        s.stats.lagged.Load(),
	}
}

// Close stops the session from outside. A running session tears down both
// halves; one that never ran just closes its connection.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.cancel != nil {
		s.cancel()
		return
	}
	s.conn.Close()
}

// Run serves the connection until either half ends, then stops the other and
// waits for it. It returns nil when the session ended normally (peer
// disconnect, Close, ctx cancellation, bus shutdown) and the reader's or
// writer's error otherwise, e.g. one matching codec.ErrMalformed when the
// peer violated the protocol.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !s.setCancel(cancel) {
		s.conn.Close()
		s.state.Store(int32(StateClosed))
		return nil
	}

	start := time.Now()
	receiver := s.bus.Subscribe()
	queue := newRegistrationQueue()
	s.publishOpened(ctx, start)
	s.logger.Debug("Session started", "transport", s.transport)

	// A half parked in Read or Write only returns once the connection closes.
	stopCloser := context.AfterFunc(ctx, func() {
		s.conn.Close()
	})
	defer stopCloser()

	g, gctx := errgroup.WithContext(ctx)
	finish := func() {
		s.state.CompareAndSwap(int32(StateActive), int32(StateClosing))
		cancel()
	}
	g.Go(func() error {
		defer finish()
		return s.readLoop(gctx, queue)
	})
	g.Go(func() error {
		defer finish()
		return s.writeLoop(gctx, receiver, queue)
	})
	err := g.Wait()

	s.conn.Close()
	receiver.Close()
	s.state.Store(int32(StateClosed))

	s.publishClosed(ctx, start, err)
	if err != nil {
		s.logger.Info("Session closed", "reason", err, "duration", time.Since(start))
	} else {
		s.logger.Debug("Session closed", "duration", time.Since(start))
	}
	return err
}

func (s *Session) setCancel(cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.cancel = cancel
	return true
}

// readLoop decodes frames in arrival order: signals go to the bus,
// subscriptions to the writer through queue.
func (s *Session) readLoop(ctx context.Context, queue *registrationQueue) error {
	dec := codec.NewDecoder(s.conn, codec.WithMaxFrameSize(s.maxFrameSize))
	for {
		m, err := dec.Next()
		if err != nil {
			return s.readError(ctx, err)
		}
		s.stats.framesIn.Add(1)

		switch m.Type() {
		case message.TypeSignal:
			s.bus.Publish(m.Topic(), m.Value())
			s.stats.published.Add(1)
		case message.TypeSubscription:
			queue.push(m.Topic())
			s.stats.subscriptions.Add(1)
			s.logger.Debug("Subscription received", "topic", m.Topic())
		}
	}
}

func (s *Session) readError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil, netutil.IsExpectedCloseError(err):
		s.logger.Debug("Reader finished", "reason", err)
		return nil
	case errors.Is(err, codec.ErrMalformed):
		s.logger.Warn("Protocol violation, dropping session", "error", err)
	default:
		s.logger.Error("Read failed", "error", err)
	}
	return fmt.Errorf("read frame: %w", err)
}

// writeLoop owns the subscription set. It alternates between applying new
// subscriptions and forwarding bus entries whose topic is in the set.
func (s *Session) writeLoop(ctx context.Context, receiver *pubsub.Receiver, queue *registrationQueue) error {
	enc := codec.NewEncoder(s.conn)
	subscriptions := make(map[string]struct{})

	for ctx.Err() == nil {
		entry, wait, err := receiver.Poll()

		// Drained after Poll so a subscription read before an entry was
		// published is always applied to that entry.
		for _, topic := range queue.drain() {
			subscriptions[topic] = struct{}{}
		}

		switch {
		case err == nil:
			if _, ok := subscriptions[entry.Topic]; !ok {
				continue
			}
			if err := enc.Encode(message.NewSignal(entry.Topic, entry.Value)); err != nil {
				return s.writeError(ctx, err)
			}
			s.stats.delivered.Add(1)

		case errors.Is(err, pubsub.ErrEmpty):
			select {
			case <-ctx.Done():
			case <-queue.ready():
			case <-wait:
			}

		case errors.Is(err, pubsub.ErrLagged):
			var lag *pubsub.LagError
			if errors.As(err, &lag) {
				s.stats.lagged.Add(lag.Skipped)
				s.logger.Warn("Session fell behind the bus, entries dropped", "skipped", lag.Skipped)
			}

		default:
			s.logger.Debug("Bus closed, stopping writer")
			return nil
		}
	}
	return nil
}

func (s *Session) writeError(ctx context.Context, err error) error {
	if ctx.Err() != nil || netutil.IsExpectedCloseError(err) {
		s.logger.Debug("Writer finished", "reason", err)
		return nil
	}
	s.logger.Error("Write failed", "error", err)
	return fmt.Errorf("write signal: %w", err)
}

func (s *Session) publishOpened(ctx context.Context, at time.Time) {
	if s.events == nil {
		return
	}
	payload := Opened{
		SessionID: s.id,
		Transport: s.transport,
		Remote:    remoteAddr(s.conn),
		OpenedAt:  at.UTC(),
	}
	if err := pubsub.Publish(ctx, s.events, EventOpened, s.id, payload); err != nil {
		s.logger.Debug("Failed to publish session event", "event", EventOpened.Name(), "error", err)
	}
}

func (s *Session) publishClosed(ctx context.Context, start time.Time, reason error) {
	if s.events == nil {
		return
	}
	payload := Closed{
		SessionID:  s.id,
		Transport:  s.transport,
		Remote:     remoteAddr(s.conn),
		Reason:     "ok",
		DurationMS: time.Since(start).Milliseconds(),
		Stats:      s.Stats(),
	}
	if reason != nil {
		payload.Reason = reason.Error()
	}
	if err := pubsub.Publish(context.WithoutCancel(ctx), s.events, EventClosed, s.id, payload); err != nil {
		s.logger.Debug("Failed to publish session event", "event", EventClosed.Name(), "error", err)
	}
}
