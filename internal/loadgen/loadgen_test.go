package loadgen

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/sigrelay/internal/message"
)

type recordingPublisher struct {
	mu      sync.Mutex
	signals []Signal
	err     error
}

func (r *recordingPublisher) Publish(topic string, v message.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.signals = append(r.signals, Signal{Topic: topic, Value: v})
	return nil
}

func TestPrograms(t *testing.T) {
	assert.Equal(t, []string{"100hz", "1khz", "1khz_4", "1khz_o"}, Programs())
}

func TestRun_UnknownProgram(t *testing.T) {
	err := Run(context.Background(), "2khz", &recordingPublisher{})
	assert.ErrorIs(t, err, ErrUnknownProgram)
}

func TestRun_FourTopicsPerTick(t *testing.T) {
	pub := &recordingPublisher{}

	require.NoError(t, Run(context.Background(), "1khz_4", pub, WithTicks(3)))

	require.Len(t, pub.signals, 12)
	assert.Equal(t, []Signal{
		{Topic: "1khz_a", Value: message.Int(10)},
		{Topic: "1khz_b", Value: message.Float(-12)},
		{Topic: "1khz_c", Value: message.Bool(true)},
		{Topic: "1khz_d", Value: message.Int(21)},
	}, pub.signals[:4])
}

func TestRun_OscillatorStaysInRange(t *testing.T) {
	pub := &recordingPublisher{}

	require.NoError(t, Run(context.Background(), "1khz_o", pub, WithTicks(20)))

	require.Len(t, pub.signals, 20)
	for _, sig := range pub.signals {
		assert.Equal(t, "1khz_o", sig.Topic)
		assert.Equal(t, message.KindFloat, sig.Value.Kind())
		assert.LessOrEqual(t, math.Abs(sig.Value.Float()), 100.0)
	}
}

func TestRun_StopsWithContext(t *testing.T) {
	pub := &recordingPublisher{}
	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.NoError(t, Run(ctx, "100hz", pub))

	assert.Less(t, time.Since(start), time.Second)
	assert.NotEmpty(t, pub.signals)
	assert.LessOrEqual(t, len(pub.signals), 7)
	assert.Equal(t, message.NewSignal("100hz", message.Int(10)), message.NewSignal(pub.signals[0].Topic, pub.signals[0].Value))
}

func TestRun_PublishError(t *testing.T) {
	boom := errors.New("boom")
	err := Run(context.Background(), "1khz", &recordingPublisher{err: boom}, WithTicks(1))
	assert.ErrorIs(t, err, boom)
}
