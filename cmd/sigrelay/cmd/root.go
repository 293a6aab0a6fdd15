package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/nfrund/sigrelay/internal/client"
	"github.com/nfrund/sigrelay/internal/config"
)

var (
	tcpAddr  string
	unixPath string
)

var rootCmd = &cobra.Command{
	Use:   "sigrelay",
	Short: "Topic-based signal relay",
	Long: `sigrelay relays typed signals (integer, float, bool) between clients
connected over TCP or unix sockets. Clients subscribe to topics and receive
every signal published on them after subscribing.

Available commands:
  serve      Run the relay
  listen     Subscribe to topics and print deliveries
  send       Publish a single signal
  loadgen    Publish a synthetic signal stream
  events     List the session lifecycle events the relay emits
  version    Print version information

Use "sigrelay [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&tcpAddr, "tcp-addr", "", "relay TCP address (default "+config.DefaultTCPAddr+" for client commands)")
	rootCmd.PersistentFlags().StringVar(&unixPath, "unix-path", "", "relay unix socket path")
}

// dial connects client commands to the relay, preferring the unix socket
// when one is given.
func dial(ctx context.Context) (*client.Client, error) {
	switch {
	case unixPath != "":
		return client.Dial(ctx, "unix", unixPath)
	case tcpAddr != "":
		return client.Dial(ctx, "tcp", tcpAddr)
	default:
		return client.Dial(ctx, "tcp", config.DefaultTCPAddr)
	}
}
