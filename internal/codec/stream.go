package codec

import (
	"errors"
	"io"

	"github.com/nfrund/sigrelay/internal/message"
)

const readChunk = 4096

// Decoder reads frames from a byte stream, reassembling frames that arrive
// split across reads. It is not safe for concurrent use.
type Decoder struct {
	r            io.Reader
	buf          []byte
	start        int
	maxFrameSize int
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithMaxFrameSize overrides DefaultMaxFrameSize. Zero or negative disables
// the limit.
func WithMaxFrameSize(n int) DecoderOption {
	return func(d *Decoder) {
		d.maxFrameSize = n
	}
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		r:            r,
		buf:          make([]byte, 0, readChunk),
		maxFrameSize: DefaultMaxFrameSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Buffered returns the number of bytes read from the stream but not yet
// consumed by a decoded frame.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.start
}

// Next returns the next message on the stream. It returns io.EOF when the
// stream ends on a frame boundary, io.ErrUnexpectedEOF when it ends inside a
// frame, and an error matching ErrMalformed on a protocol violation.
func (d *Decoder) Next() (message.Message, error) {
	for {
		m, n, err := decodeFrame(d.buf[d.start:], d.maxFrameSize)
		if err == nil {
			d.start += n
			if d.start == len(d.buf) {
				d.reset()
			}
			return m, nil
		}
		if !errors.Is(err, ErrIncomplete) {
			return message.Message{}, err
		}
		if err := d.fill(); err != nil {
			if errors.Is(err, io.EOF) && d.Buffered() > 0 {
				return message.Message{}, io.ErrUnexpectedEOF
			}
			return message.Message{}, err
		}
	}
}

// reset empties the buffer, releasing storage grown for a large frame.
func (d *Decoder) reset() {
	if cap(d.buf) > readChunk {
		d.buf = make([]byte, 0, readChunk)
	} else {
		d.buf = d.buf[:0]
	}
	d.start = 0
}

// fill reads at least one more byte into the buffer, compacting consumed
// frames out of the way first.
func (d *Decoder) fill() error {
	if d.start > 0 {
		n := copy(d.buf, d.buf[d.start:])
		d.buf = d.buf[:n]
		d.start = 0
	}
	if cap(d.buf)-len(d.buf) < readChunk {
		grown := make([]byte, len(d.buf), 2*cap(d.buf)+readChunk)
		copy(grown, d.buf)
		d.buf = grown
	}
	for {
		n, err := d.r.Read(d.buf[len(d.buf):cap(d.buf)])
		d.buf = d.buf[:len(d.buf)+n]
		if n > 0 {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Encoder writes one frame per Encode call. It is not safe for concurrent use.
type Encoder struct {
	w   io.Writer
	buf []byte
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes m as a single frame with a single Write call.
func (e *Encoder) Encode(m message.Message) error {
	frame, err := AppendFrame(e.buf[:0], m)
	if err != nil {
		return err
	}
	e.buf = frame
	_, err = e.w.Write(frame)
	return err
}
