package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nfrund/sigrelay/internal/message"
)

// DefaultBusCapacity is the number of entries a Bus keeps for slow receivers.
const DefaultBusCapacity = 1000

var (
	// ErrClosed is returned by a Receiver once its Bus is closed and every
	// entry buffered before the close has been delivered, or after the
	// Receiver itself was closed.
	ErrClosed = errors.New("bus closed")

	// ErrEmpty is returned by Poll when no entry is ready yet.
	ErrEmpty = errors.New("no entry available")

	// ErrLagged is matched by *LagError.
	ErrLagged = errors.New("receiver lagged")
)

// LagError reports that a receiver fell more than the bus capacity behind and
// the oldest entries were dropped for it. The receiver has already been moved
// to the oldest entry still buffered, so the caller just receives again.
type LagError struct {
	Skipped uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("receiver lagged, %d entries dropped", e.Skipped)
}

func (e *LagError) Is(target error) bool {
	return target == ErrLagged
}

// Entry is one published signal as seen by receivers.
type Entry struct {
	Topic string
	Value message.Value
}

// Bus is a bounded multi-producer, multi-consumer broadcast channel. Every
// receiver sees every entry published after it subscribed, unless it falls
// more than Capacity entries behind, in which case it skips forward.
type Bus struct {
	mu sync.Mutex

	ring []Entry
	// tail is the sequence number the next published entry gets.
	tail uint64

	// wake is closed (and replaced) on publish when a receiver is waiting.
	wake    chan struct{}
	waiting bool

	receivers int
	closed    bool
}

// NewBus creates a Bus buffering up to capacity entries. A capacity below one
// selects DefaultBusCapacity.
func NewBus(capacity int) *Bus {
	if capacity < 1 {
		capacity = DefaultBusCapacity
	}
	return &Bus{
		ring: make([]Entry, capacity),
		wake: make(chan struct{}),
	}
}

// Capacity returns the number of entries buffered per receiver.
func (b *Bus) Capacity() int {
	return len(b.ring)
}

// Receivers returns the number of live receivers.
func (b *Bus) Receivers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.receivers
}

// Publish fans topic and v out to every live receiver and returns how many
// there were. Publishing with no receivers, or on a closed bus, does nothing.
func (b *Bus) Publish(topic string, v message.Value) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.receivers == 0 {
		return 0
	}
	b.ring[b.tail%uint64(len(b.ring))] = Entry{Topic: topic, Value: v}
	b.tail++

	if b.waiting {
		close(b.wake)
		b.wake = make(chan struct{})
		b.waiting = false
	}
	return b.receivers
}

// Subscribe returns a Receiver positioned at the current tail: it observes
// only entries published after this call.
func (b *Bus) Subscribe() *Receiver {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := &Receiver{bus: b, next: b.tail}
	if b.closed {
		r.closed = true
		return r
	}
	b.receivers++
	return r
}

// Close shuts the bus down. Receivers drain what is still buffered and then
// get ErrClosed. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.wake)
}

// Shutdown closes the bus when the process container is torn down.
func (b *Bus) Shutdown() {
	b.Close()
}

// Receiver is one consumer's cursor into a Bus. A Receiver must be used by a
// single goroutine.
type Receiver struct {
	bus    *Bus
	next   uint64
	closed bool
}

// Poll returns the next entry without blocking. When nothing is ready it
// returns ErrEmpty together with a channel that is closed on the next publish
// or when the bus closes.
func (r *Receiver) Poll() (Entry, <-chan struct{}, error) {
	b := r.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	if r.closed {
		return Entry{}, nil, ErrClosed
	}

	if r.next < b.tail {
		size := uint64(len(b.ring))
		if behind := b.tail - r.next; behind > size {
			oldest := b.tail - size
			skipped := oldest - r.next
			r.next = oldest
			return Entry{}, nil, &LagError{Skipped: skipped}
		}
		e := b.ring[r.next%size]
		r.next++
		return e, nil, nil
	}

	if b.closed {
		return Entry{}, nil, ErrClosed
	}
	b.waiting = true
	return Entry{}, b.wake, ErrEmpty
}

// Recv blocks until the next entry is available, the receiver lagged (a
// *LagError, after which Recv can be called again), the bus closed
// (ErrClosed) or ctx is done.
func (r *Receiver) Recv(ctx context.Context) (Entry, error) {
	for {
		e, wait, err := r.Poll()
		if !errors.Is(err, ErrEmpty) {
			return e, err
		}
		select {
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		case <-wait:
		}
	}
}

// Close unregisters the receiver from its bus. It is idempotent.
func (r *Receiver) Close() {
	b := r.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	b.receivers--
}
