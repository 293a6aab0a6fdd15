package hub

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/sigrelay/internal/pubsub"
	"github.com/nfrund/sigrelay/internal/session"
)

func newSession(t *testing.T, bus *pubsub.Bus) (*session.Session, chan error) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close() })

	s := session.New(serverConn, bus)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	return s, done
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	bus := pubsub.NewBus(8)
	s1, _ := newSession(t, bus)
	s2, _ := newSession(t, bus)

	require.NoError(t, h.Register(s1))
	require.NoError(t, h.Register(s2))
	require.Eventually(t, func() bool { return h.Count() == 2 }, time.Second, 5*time.Millisecond)

	h.Unregister(s1)
	h.Unregister(s1)
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHub_StopClosesRegisteredSessions(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	bus := pubsub.NewBus(8)
	s, done := newSession(t, bus)
	require.NoError(t, h.Register(s))

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session was not closed by hub shutdown")
	}
	<-h.Done()
	assert.Equal(t, 0, h.Count())
}

func TestHub_RegisterAfterStop(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Run(ctx)

	bus := pubsub.NewBus(8)
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	s := session.New(serverConn, bus)

	assert.ErrorIs(t, h.Register(s), ErrStopped)
	assert.Equal(t, session.StateClosed, waitRun(t, s))
	assert.NotPanics(t, func() { h.Unregister(s) })
}

func waitRun(t *testing.T, s *session.Session) session.State {
	t.Helper()
	require.NoError(t, s.Run(context.Background()))
	return s.State()
}
