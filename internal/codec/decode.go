package codec

import (
	"encoding/binary"
	"math"

	"golang.org/x/text/encoding/charmap"

	"github.com/nfrund/sigrelay/internal/message"
)

// DefaultMaxFrameSize bounds frame_length when no explicit limit is set. A
// frame declaring a longer body is rejected before it is buffered.
const DefaultMaxFrameSize = 1 << 20

// Decode parses the first frame in buf without modifying it. On success it
// returns the message and the number of bytes the frame occupied, prefix
// included. When buf does not yet contain a whole frame it returns
// ErrIncomplete and n == 0.
func Decode(buf []byte) (m message.Message, n int, err error) {
	return decodeFrame(buf, DefaultMaxFrameSize)
}

func decodeFrame(buf []byte, maxFrameSize int) (message.Message, int, error) {
	if len(buf) < lengthSize {
		return message.Message{}, 0, ErrIncomplete
	}
	length := binary.LittleEndian.Uint32(buf)
	if maxFrameSize > 0 && uint64(length) > uint64(maxFrameSize) {
		return message.Message{}, 0, malformed("frame length %d exceeds limit %d", length, maxFrameSize)
	}
	if uint64(len(buf)-lengthSize) < uint64(length) {
		return message.Message{}, 0, ErrIncomplete
	}

	total := lengthSize + int(length)
	m, err := parseBody(buf[lengthSize:total])
	if err != nil {
		return message.Message{}, 0, err
	}
	return m, total, nil
}

// body is a read cursor over one isolated frame body. Every field of every
// variant is consumed from it, never from the surrounding stream buffer.
type body struct {
	b []byte
}

func (r *body) uint32(field string) (uint32, error) {
	if len(r.b) < 4 {
		return 0, malformed("truncated %s", field)
	}
	v := binary.LittleEndian.Uint32(r.b)
	r.b = r.b[4:]
	return v, nil
}

func (r *body) uint64(field string) (uint64, error) {
	if len(r.b) < 8 {
		return 0, malformed("truncated %s", field)
	}
	v := binary.LittleEndian.Uint64(r.b)
	r.b = r.b[8:]
	return v, nil
}

func (r *body) name() (string, error) {
	n, err := r.uint64("name length")
	if err != nil {
		return "", err
	}
	if n > uint64(len(r.b)) {
		return "", malformed("name length %d overruns frame body of %d bytes", n, len(r.b))
	}
	raw := r.b[:n]
	r.b = r.b[n:]
	return decodeName(raw)
}

func (r *body) value() (message.Value, error) {
	tag, err := r.uint32("data tag")
	if err != nil {
		return message.Value{}, err
	}
	switch tag {
	case dataInteger:
		v, err := r.uint64("integer value")
		return message.Int(int64(v)), err
	case dataFloat:
		v, err := r.uint64("float value")
		return message.Float(math.Float64frombits(v)), err
	case dataBool:
		if len(r.b) < 1 {
			return message.Value{}, malformed("truncated bool value")
		}
		v := r.b[0] != 0
		r.b = r.b[1:]
		return message.Bool(v), nil
	}
	return message.Value{}, unknownTag("data", tag)
}

func parseBody(b []byte) (message.Message, error) {
	r := &body{b: b}
	tag, err := r.uint32("message tag")
	if err != nil {
		return message.Message{}, err
	}

	var m message.Message
	switch tag {
	case tagSignal:
		name, err := r.name()
		if err != nil {
			return message.Message{}, err
		}
		v, err := r.value()
		if err != nil {
			return message.Message{}, err
		}
		m = message.NewSignal(name, v)
	case tagSubscription:
		name, err := r.name()
		if err != nil {
			return message.Message{}, err
		}
		m = message.NewSubscription(name)
	default:
		return message.Message{}, unknownTag("message", tag)
	}

	if len(r.b) != 0 {
		return message.Message{}, malformed("%d trailing bytes after %s", len(r.b), m.Type())
	}
	return m, nil
}

// decodeName maps each wire byte to the character with the same code point.
func decodeName(raw []byte) (string, error) {
	ascii := true
	for _, c := range raw {
		if c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(raw), nil
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", malformed("topic name: %v", err)
	}
	return string(s), nil
}
