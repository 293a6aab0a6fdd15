package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"syscall"
)

// Shutdown stops accepting connections, closes every live session and waits
// for them to finish, bounded by ctx. It then removes the unix socket file.
// Calling it on a server that is not running is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	listeners := s.listeners
	s.mu.Unlock()

	var errs []error
	for _, l := range listeners {
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close listener %s: %w", l.Addr(), err))
		}
	}
	s.acceptWG.Wait()

	s.logger.Info("Shutting down", "active_sessions", s.hub.Count())
	s.stop()

	done := make(chan struct{})
	go func() {
		s.sessionWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for sessions: %w", ctx.Err()))
	}

	if s.cfg.UnixPath != "" {
		if err := s.fs.Remove(s.cfg.UnixPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove unix socket: %w", err))
		}
	}

	if len(errs) == 0 {
		s.logger.Info("Server stopped")
	}
	return errors.Join(errs...)
}

// WaitForSignal blocks until an interrupt or terminate signal is received or
// ctx is done.
func WaitForSignal(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}
