// Package loadgen publishes synthetic signal streams at fixed rates, for
// exercising a relay and the clients listening to it.
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"golang.org/x/time/rate"

	"github.com/nfrund/sigrelay/internal/message"
)

// ErrUnknownProgram is returned for a program name not in Programs.
var ErrUnknownProgram = errors.New("unknown load program")

// Publisher is the sending half of a relay client.
type Publisher interface {
	Publish(topic string, v message.Value) error
}

// Signal is one value a program emits on a tick.
type Signal struct {
	Topic string
	Value message.Value
}

// Program emits a batch of signals every Interval.
type Program struct {
	Name     string
	Interval time.Duration
	// Tick returns the signals for a tick, given the time since the run began.
	Tick func(elapsed time.Duration) []Signal
}

var programs = map[string]Program{
	"100hz": {
		Name:     "100hz",
		Interval: 10 * time.Millisecond,
		Tick:     constant("100hz", message.Int(10)),
	},
	"1khz": {
		Name:     "1khz",
		Interval: time.Millisecond,
		Tick:     constant("1khz", message.Int(10)),
	},
	"1khz_o": {
		Name:     "1khz_o",
		Interval: time.Millisecond,
		Tick: func(elapsed time.Duration) []Signal {
			v := 100 * math.Sin(float64(elapsed.Microseconds()))
			return []Signal{{Topic: "1khz_o", Value: message.Float(v)}}
		},
	},
	"1khz_4": {
		Name:     "1khz_4",
		Interval: time.Millisecond,
		Tick: func(time.Duration) []Signal {
			return []Signal{
				{Topic: "1khz_a", Value: message.Int(10)},
				{Topic: "1khz_b", Value: message.Float(-12)},
				{Topic: "1khz_c", Value: message.Bool(true)},
				{Topic: "1khz_d", Value: message.Int(21)},
			}
		},
	},
}

func constant(topic string, v message.Value) func(time.Duration) []Signal {
	batch := []Signal{{Topic: topic, Value: v}}
	return func(time.Duration) []Signal { return batch }
}

// Programs returns the available program names, sorted.
func Programs() []string {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the named program.
func Lookup(name string) (Program, error) {
	p, ok := programs[name]
	if !ok {
		return Program{}, fmt.Errorf("%w: %q (have %v)", ErrUnknownProgram, name, Programs())
	}
	return p, nil
}

type options struct {
	logger   *slog.Logger
	maxTicks int
}

// Option configures Run.
type Option func(*options)

// WithLogger sets the logger used for progress messages.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTicks stops the run after n ticks. Zero means run until ctx is done.
func WithTicks(n int) Option {
	return func(o *options) { o.maxTicks = n }
}

// Run publishes the named program through p until ctx is done, the tick
// limit is reached or a publish fails. A run ended by ctx returns nil.
func Run(ctx context.Context, name string, p Publisher, opts ...Option) error {
	program, err := Lookup(name)
	if err != nil {
		return err
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	limiter := rate.NewLimiter(rate.Every(program.Interval), 1)
	start := time.Now()
	var sent uint64
	o.logger.Info("Starting load program", "program", program.Name, "interval", program.Interval)

	for tick := 0; o.maxTicks == 0 || tick < o.maxTicks; tick++ {
		if err := limiter.Wait(ctx); err != nil {
			if _, ok := ctx.Deadline(); ok || ctx.Err() != nil {
				break
			}
			return fmt.Errorf("pace %s: %w", program.Name, err)
		}
		for _, sig := range program.Tick(time.Since(start)) {
			if err := p.Publish(sig.Topic, sig.Value); err != nil {
				return fmt.Errorf("publish %s: %w", sig.Topic, err)
			}
			sent++
		}
	}

	o.logger.Info("Load program finished", "program", program.Name, "signals", sent, "elapsed", time.Since(start))
	return nil
}
