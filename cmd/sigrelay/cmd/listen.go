package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nfrund/sigrelay/internal/message"
)

var (
	listenTopics  []string
	listenNoColor bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Subscribe to topics and print deliveries",
	Long: `Subscribe to one or more topics and print every signal delivered until
interrupted or the relay closes the connection.

Examples:
  sigrelay listen --topic temp
  sigrelay listen -t 1khz_a -t 1khz_b --no-color`,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringSliceVarP(&listenTopics, "topic", "t", nil, "topic to subscribe to (repeatable)")
	listenCmd.Flags().BoolVar(&listenNoColor, "no-color", false, "disable colored output")
	listenCmd.MarkFlagRequired("topic")
	rootCmd.AddCommand(listenCmd)
}

// deliveryPrinter formats received signals, one per line.
type deliveryPrinter struct {
	w     io.Writer
	topic *color.Color
	kind  *color.Color
}

func newDeliveryPrinter(w io.Writer, colored bool) *deliveryPrinter {
	p := &deliveryPrinter{
		w:     w,
		topic: color.New(color.FgCyan, color.Bold),
		kind:  color.New(color.FgYellow),
	}
	if !colored {
		p.topic.DisableColor()
		p.kind.DisableColor()
	}
	return p
}

func (p *deliveryPrinter) print(at time.Time, m message.Message) {
	v := m.Value()
	fmt.Fprintf(p.w, "%s %s %s %s\n",
		at.Format("15:04:05.000"),
		p.topic.Sprint(m.Topic()),
		p.kind.Sprint(v.Kind()),
		v,
	)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	for _, topic := range listenTopics {
		if err := c.Subscribe(topic); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	colored := !listenNoColor
	if f, ok := out.(*os.File); !ok || !isTerminal(f) {
		colored = false
	}
	printer := newDeliveryPrinter(out, colored)

	for {
		m, err := c.Receive(ctx)
		switch {
		case err == nil:
			printer.print(time.Now(), m)
		case errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
			return nil
		default:
			return err
		}
	}
}
