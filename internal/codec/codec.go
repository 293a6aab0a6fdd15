// Package codec implements the relay wire format: little-endian,
// length-prefixed binary frames carrying one message each.
//
//	[u32 frame_length][frame_body]
//	frame_body = [u32 message_tag] + payload
//	  tag 0 Signal:       [u64 name_len][name][u32 data_tag][data]
//	  tag 1 Subscription: [u64 name_len][name]
//	data_tag 0 Integer (i64), 1 Float (f64), 2 Bool (1 byte)
//
// frame_length counts the body only. Topic names travel as one byte per
// character, so only characters U+0000 through U+00FF survive a round trip;
// higher code points are truncated to their low 8 bits.
package codec

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/nfrund/sigrelay/internal/message"
)

const (
	// lengthSize is the size of the frame_length prefix.
	lengthSize = 4

	tagSignal       uint32 = 0
	tagSubscription uint32 = 1

	dataInteger uint32 = 0
	dataFloat   uint32 = 1
	dataBool    uint32 = 2
)

// Encode returns m as a single frame.
func Encode(m message.Message) ([]byte, error) {
	return AppendFrame(nil, m)
}

// AppendFrame appends the frame for m to dst and returns the extended slice.
func AppendFrame(dst []byte, m message.Message) ([]byte, error) {
	nameLen := utf8.RuneCountInString(m.Topic())

	// message tag + name length + name
	body := 4 + 8 + uint64(nameLen)
	if m.IsSignal() {
		body += 4 + uint64(dataSize(m.Value().Kind()))
	}
	if body > math.MaxUint32 {
		return dst, ErrFrameTooLarge
	}

	dst = binary.LittleEndian.AppendUint32(dst, uint32(body))
	switch m.Type() {
	case message.TypeSubscription:
		dst = binary.LittleEndian.AppendUint32(dst, tagSubscription)
		dst = appendName(dst, m.Topic(), nameLen)
	default:
		dst = binary.LittleEndian.AppendUint32(dst, tagSignal)
		dst = appendName(dst, m.Topic(), nameLen)
		dst = appendValue(dst, m.Value())
	}
	return dst, nil
}

func dataSize(k message.Kind) int {
	if k == message.KindBool {
		return 1
	}
	return 8
}

// appendName writes the u64 character count followed by one byte per
// character. A byte that is not part of valid UTF-8 counts as one character
// and is written unchanged.
func appendName(dst []byte, name string, count int) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, uint64(count))
	for i := 0; i < len(name); {
		r, size := utf8.DecodeRuneInString(name[i:])
		if r == utf8.RuneError && size == 1 {
			dst = append(dst, name[i])
		} else {
			dst = append(dst, byte(r))
		}
		i += size
	}
	return dst
}

func appendValue(dst []byte, v message.Value) []byte {
	switch v.Kind() {
	case message.KindFloat:
		dst = binary.LittleEndian.AppendUint32(dst, dataFloat)
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v.Float()))
	case message.KindBool:
		dst = binary.LittleEndian.AppendUint32(dst, dataBool)
		if v.Bool() {
			return append(dst, 1)
		}
		return append(dst, 0)
	default:
		dst = binary.LittleEndian.AppendUint32(dst, dataInteger)
		return binary.LittleEndian.AppendUint64(dst, uint64(v.Int()))
	}
}
