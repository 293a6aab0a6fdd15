package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfrund/sigrelay/internal/loadgen"
	"github.com/nfrund/sigrelay/internal/logging"
)

var (
	loadProgram  string
	loadDuration time.Duration
	loadTicks    int
)

var loadgenCmd = &cobra.Command{
	Use:   "loadgen",
	Short: "Publish a synthetic signal stream",
	Long: fmt.Sprintf(`Publish one of the built-in signal streams until interrupted.

Programs: %s

Examples:
  sigrelay loadgen --program 1khz
  sigrelay loadgen --program 1khz_4 --duration 30s`, strings.Join(loadgen.Programs(), ", ")),
	RunE: runLoadgen,
}

func init() {
	loadgenCmd.Flags().StringVarP(&loadProgram, "program", "p", "", "program name")
	loadgenCmd.Flags().DurationVar(&loadDuration, "duration", 0, "stop after this long (0 runs until interrupted)")
	loadgenCmd.Flags().IntVar(&loadTicks, "ticks", 0, "stop after this many ticks (0 for no limit)")
	loadgenCmd.MarkFlagRequired("program")
	rootCmd.AddCommand(loadgenCmd)
}

func runLoadgen(cmd *cobra.Command, args []string) error {
	if _, err := loadgen.Lookup(loadProgram); err != nil {
		return err
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if loadDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, loadDuration)
		defer cancel()
	}

	c, err := dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	return loadgen.Run(ctx, loadProgram, c, loadgen.WithLogger(logger), loadgen.WithTicks(loadTicks))
}
