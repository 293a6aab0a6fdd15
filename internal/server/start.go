package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"github.com/nfrund/sigrelay/internal/pubsub"
	"github.com/nfrund/sigrelay/internal/session"
)

// Start binds the configured listeners and begins accepting connections in
// the background. Sessions run until Shutdown is called or ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	if s.cfg.TCPAddr == "" && s.cfg.UnixPath == "" {
		return ErrNoListeners
	}

	type binding struct {
		listener  net.Listener
		transport string
	}
	var bound []binding
	closeBound := func() {
		for _, b := range bound {
			b.listener.Close()
		}
	}

	var lc net.ListenConfig
	if s.cfg.TCPAddr != "" {
		l, err := lc.Listen(ctx, "tcp", s.cfg.TCPAddr)
		if err != nil {
			return fmt.Errorf("listen tcp %s: %w", s.cfg.TCPAddr, err)
		}
		bound = append(bound, binding{l, "tcp"})
	}
	if s.cfg.UnixPath != "" {
		if err := s.removeStaleSocket(); err != nil {
			closeBound()
			return err
		}
		l, err := lc.Listen(ctx, "unix", s.cfg.UnixPath)
		if err != nil {
			closeBound()
			return fmt.Errorf("listen unix %s: %w", s.cfg.UnixPath, err)
		}
		// Shutdown removes the file through s.fs.
		if ul, ok := l.(*net.UnixListener); ok {
			ul.SetUnlinkOnClose(false)
		}
		bound = append(bound, binding{l, "unix"})
	}

	serveCtx, cancel := context.WithCancel(ctx)
	hubCtx, stopHub := context.WithCancel(serveCtx)
	go s.hub.Run(hubCtx)
	s.stop = func() {
		stopHub()
		cancel()
	}

	if s.events != nil {
		s.observeSessions(serveCtx)
	}

	for _, b := range bound {
		s.listeners = append(s.listeners, b.listener)
		s.acceptWG.Add(1)
		go s.acceptLoop(serveCtx, b.listener, b.transport)
		s.logger.Info("Listening", "transport", b.transport, "addr", b.listener.Addr().String())
	}
	s.started = true
	return nil
}

// removeStaleSocket deletes a socket file left behind by a previous run. It
// refuses to delete anything that is not a socket.
func (s *Server) removeStaleSocket() error {
	info, err := s.fs.Stat(s.cfg.UnixPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat unix socket %s: %w", s.cfg.UnixPath, err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("unix socket path %s exists and is not a socket", s.cfg.UnixPath)
	}
	if err := s.fs.Remove(s.cfg.UnixPath); err != nil {
		return fmt.Errorf("remove stale unix socket %s: %w", s.cfg.UnixPath, err)
	}
	s.logger.Info("Removed stale unix socket", "path", s.cfg.UnixPath)
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, l net.Listener, transport string) {
	defer s.acceptWG.Done()

	var backoff time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
				s.logger.Warn("Accept failed, retrying", "transport", transport, "error", err, "backoff", backoff)
				time.Sleep(backoff)
				continue
			}
			s.logger.Error("Accept failed, listener stopped", "transport", transport, "error", err)
			return
		}
		backoff = 0
		s.serve(ctx, conn, transport)
	}
}

func (s *Server) serve(ctx context.Context, conn net.Conn, transport string) {
	opts := []session.Option{
		session.WithLogger(s.sessionLogger),
		session.WithTransport(transport),
		session.WithMaxFrameSize(s.cfg.MaxFrameSize),
	}
	if s.events != nil {
		opts = append(opts, session.WithEvents(s.events))
	}
	sess := session.New(conn, s.bus, opts...)

	if err := s.hub.Register(sess); err != nil {
		s.logger.Debug("Rejected connection during shutdown", "session_id", sess.ID())
		return
	}

	s.sessionWG.Add(1)
	go func() {
		defer s.sessionWG.Done()
		defer s.hub.Unregister(sess)
		// Protocol errors were already logged by the session itself.
		_ = sess.Run(ctx)
	}()
}

func (s *Server) observeSessions(ctx context.Context) {
	err := pubsub.Subscribe(ctx, s.events, session.EventOpened, func(_ context.Context, e session.Opened) error {
		s.logger.Info("Client connected", "session_id", e.SessionID, "transport", e.Transport, "remote", e.Remote)
		return nil
	})
	if err != nil {
		s.logger.Warn("Failed to observe session events", "event", session.EventOpened.Name(), "error", err)
	}

	err = pubsub.Subscribe(ctx, s.events, session.EventClosed, func(_ context.Context, e session.Closed) error {
		s.logger.Info("Client disconnected",
			"session_id", e.SessionID,
			"reason", e.Reason,
			"duration_ms", e.DurationMS,
			"frames_in", e.Stats.FramesIn,
			"delivered", e.Stats.Delivered,
			"lagged", e.Stats.Lagged,
		)
		return nil
	})
	if err != nil {
		s.logger.Warn("Failed to observe session events", "event", session.EventClosed.Name(), "error", err)
	}
}
