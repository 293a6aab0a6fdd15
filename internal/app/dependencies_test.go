package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/sigrelay/internal/client"
	"github.com/nfrund/sigrelay/internal/config"
	"github.com/nfrund/sigrelay/internal/message"
	"github.com/nfrund/sigrelay/internal/pubsub"
)

func testContainer(t *testing.T) *do.RootScope {
	t.Helper()
	cfg := config.Default()
	cfg.TCPAddr = "127.0.0.1:0"
	require.NoError(t, cfg.Validate())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, logger, afero.NewMemMapFs())
}

func TestContainer_ProvidesSharedBus(t *testing.T) {
	root := testContainer(t)
	defer root.Shutdown()

	a := do.MustInvoke[*pubsub.Bus](root)
	b := do.MustInvoke[*pubsub.Bus](root)

	assert.Same(t, a, b)
	assert.Equal(t, pubsub.DefaultBusCapacity, a.Capacity())
}

func TestContainer_StartRelayAndShutdown(t *testing.T) {
	root := testContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv, err := Start(ctx, root)
	require.NoError(t, err)
	bus := do.MustInvoke[*pubsub.Bus](root)
	addr := srv.Addrs()[0]

	c, err := client.Dial(ctx, addr.Network(), addr.String())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Subscribe("hi"))
	require.NoError(t, c.Publish("hi", message.Int(1)))
	m, err := c.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, message.NewSignal("hi", message.Int(1)), m)

	require.NoError(t, Shutdown(ctx, root))

	_, _, err = bus.Subscribe().Poll()
	assert.ErrorIs(t, err, pubsub.ErrClosed, "bus is closed after shutdown")
	assert.Equal(t, 0, srv.Sessions())
}
