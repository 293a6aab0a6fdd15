// Package app wires the relay's services together in a dependency container.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/do/v2"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"

	"github.com/nfrund/sigrelay/internal/config"
	"github.com/nfrund/sigrelay/internal/hub"
	"github.com/nfrund/sigrelay/internal/pubsub"
	"github.com/nfrund/sigrelay/internal/server"
)

// Tracing holds the lifecycle event tracer and flushes it on shutdown.
type Tracing struct {
	Tracer   trace.Tracer
	shutdown func(context.Context) error
}

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}

// New builds the container. cfg must already be validated. Services are
// created lazily on first use and shut down in reverse dependency order by
// the returned scope.
func New(cfg *config.Config, logger *slog.Logger, fs afero.Fs) *do.RootScope {
	i := do.New()

	do.ProvideValue(i, cfg)
	do.ProvideValue(i, logger)
	do.ProvideValue[afero.Fs](i, fs)

	do.Provide(i, provideBus)
	do.Provide(i, provideTracing)
	do.Provide(i, provideEvents)
	do.Provide(i, provideHub)
	do.Provide(i, provideServer)

	return i
}

func provideBus(i do.Injector) (*pubsub.Bus, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return pubsub.NewBus(cfg.BusCapacity), nil
}

func provideTracing(i do.Injector) (*Tracing, error) {
	cfg := do.MustInvoke[*config.Config](i)
	tracer, shutdown, err := pubsub.SetupOTel(context.Background(), cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	return &Tracing{Tracer: tracer, shutdown: shutdown}, nil
}

func provideEvents(i do.Injector) (*pubsub.WatermillBridge, error) {
	logger := do.MustInvoke[*slog.Logger](i)
	tracing, err := do.Invoke[*Tracing](i)
	if err != nil {
		return nil, err
	}
	return pubsub.NewWatermillBridgeWithTracer(logger, tracing.Tracer), nil
}

func provideHub(i do.Injector) (*hub.Hub, error) {
	logger := do.MustInvoke[*slog.Logger](i)
	return hub.NewHub(logger.With("component", "hub")), nil
}

func provideServer(i do.Injector) (*server.Server, error) {
	cfg := do.MustInvoke[*config.Config](i)
	logger := do.MustInvoke[*slog.Logger](i)
	fs := do.MustInvoke[afero.Fs](i)
	bus := do.MustInvoke[*pubsub.Bus](i)
	h := do.MustInvoke[*hub.Hub](i)
	events, err := do.Invoke[*pubsub.WatermillBridge](i)
	if err != nil {
		return nil, err
	}

	return server.New(server.Config{
		TCPAddr:      cfg.TCPAddr,
		UnixPath:     cfg.UnixPath,
		MaxFrameSize: cfg.MaxFrameSize,
	}, bus, h, events, logger, fs), nil
}

// Start resolves the server from the container and starts it.
func Start(ctx context.Context, i do.Injector) (*server.Server, error) {
	srv, err := do.Invoke[*server.Server](i)
	if err != nil {
		return nil, fmt.Errorf("build server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return nil, err
	}
	return srv, nil
}

// Shutdown stops every service the container created.
func Shutdown(ctx context.Context, root *do.RootScope) error {
	if report := root.ShutdownWithContext(ctx); report != nil && !report.Succeed {
		return report
	}
	return nil
}
