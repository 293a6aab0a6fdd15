package client

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/sigrelay/internal/message"
	"github.com/nfrund/sigrelay/internal/pubsub"
	"github.com/nfrund/sigrelay/internal/session"
)

func connect(t *testing.T, bus *pubsub.Bus) (*Client, *session.Session) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	s := session.New(serverConn, bus)
	go s.Run(context.Background())

	c := New(clientConn)
	t.Cleanup(func() {
		c.Close()
		s.Close()
	})
	return c, s
}

func receive(t *testing.T, c *Client) message.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m, err := c.Receive(ctx)
	require.NoError(t, err)
	return m
}

func TestClient_SubscribeAndPublish(t *testing.T) {
	bus := pubsub.NewBus(16)
	c, _ := connect(t, bus)

	require.NoError(t, c.Subscribe("hi"))
	require.NoError(t, c.Publish("hi", message.Int(1)))

	assert.Equal(t, message.NewSignal("hi", message.Int(1)), receive(t, c))
}

func TestClient_ReceiveHonorsContext(t *testing.T) {
	bus := pubsub.NewBus(16)
	c, _ := connect(t, bus)
	require.NoError(t, c.Subscribe("hi"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The connection is still usable afterwards.
	require.NoError(t, c.Publish("hi", message.Float(2.5)))
	assert.Equal(t, message.NewSignal("hi", message.Float(2.5)), receive(t, c))
}

func TestClient_ConcurrentSends(t *testing.T) {
	bus := pubsub.NewBus(256)
	c, s := connect(t, bus)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				assert.NoError(t, c.Publish("load", message.Int(int64(i*100+j))))
			}
		}(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return s.Stats().FramesIn == 100
	}, 2*time.Second, 5*time.Millisecond)
}

func TestClient_ReceiveAfterServerClose(t *testing.T) {
	bus := pubsub.NewBus(16)
	c, s := connect(t, bus)

	s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Receive(ctx)
	assert.True(t, errors.Is(err, io.EOF), "got %v", err)
}

func TestDial_Refused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	_, err = Dial(context.Background(), "tcp", addr)
	assert.Error(t, err)
}
