package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/nfrund/sigrelay/internal/app"
	"github.com/nfrund/sigrelay/internal/config"
	"github.com/nfrund/sigrelay/internal/logging"
	"github.com/nfrund/sigrelay/internal/server"
)

var (
	configPath   string
	busCapacity  int
	maxFrameSize int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay",
	Long: `Run the relay until interrupted.

Settings are read from defaults, then the YAML file named by --config or
RELAY_CONFIG, then .env and the environment (RELAY_TCP_ADDR, RELAY_UNIX_PATH,
RELAY_BUS_CAPACITY, RELAY_MAX_FRAME_SIZE, RELAY_SHUTDOWN_TIMEOUT, LOG_FORMAT,
LOG_LEVEL, RELAY_TRACING_*), then flags.

Examples:
  sigrelay serve --tcp-addr 0.0.0.0:7070
  sigrelay serve --tcp-addr "" --unix-path /run/sigrelay.sock`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "YAML config file")
	serveCmd.Flags().IntVar(&busCapacity, "bus-capacity", 0, "entries buffered for slow subscribers")
	serveCmd.Flags().IntVar(&maxFrameSize, "max-frame-size", 0, "largest accepted frame body in bytes")
	rootCmd.AddCommand(serveCmd)
}

func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(afero.NewOsFs(), configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("tcp-addr") {
		cfg.TCPAddr = tcpAddr
	}
	if flags.Changed("unix-path") {
		cfg.UnixPath = unixPath
	}
	if flags.Changed("bus-capacity") {
		cfg.BusCapacity = busCapacity
	}
	if flags.Changed("max-frame-size") {
		cfg.MaxFrameSize = maxFrameSize
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogFormat, cfg.LogLevel)
	logger.Info("Starting sigrelay", "version", version, "config", cfg)

	root := app.New(cfg, logger, afero.NewOsFs())
	if _, err := app.Start(cmd.Context(), root); err != nil {
		app.Shutdown(context.Background(), root)
		return fmt.Errorf("start relay: %w", err)
	}

	server.WaitForSignal(cmd.Context())
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := app.Shutdown(ctx, root); err != nil {
		slog.Error("Shutdown did not complete cleanly", "error", err)
		return err
	}
	return nil
}
