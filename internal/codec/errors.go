package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete reports that the buffer does not yet hold a whole frame.
	// Nothing was consumed; retry once more bytes have arrived.
	ErrIncomplete = errors.New("incomplete frame")

	// ErrMalformed is matched by every *FrameError. A malformed frame cannot be
	// skipped reliably, so the connection that produced it should be dropped.
	ErrMalformed = errors.New("malformed frame")

	// ErrFrameTooLarge is returned by the encoder when a message body does not
	// fit the u32 length prefix.
	ErrFrameTooLarge = errors.New("frame too large")
)

// FrameError describes a protocol violation found while decoding a frame.
type FrameError struct {
	// Reason is a short description of the violation.
	Reason string
	// Tag is the offending message or data tag, when the violation is an unknown tag.
	Tag uint32
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("malformed frame: %s", e.Reason)
}

// Is makes errors.Is(err, ErrMalformed) true for any *FrameError.
func (e *FrameError) Is(target error) bool {
	return target == ErrMalformed
}

func malformed(format string, args ...any) *FrameError {
	return &FrameError{Reason: fmt.Sprintf(format, args...)}
}

func unknownTag(kind string, tag uint32) *FrameError {
	return &FrameError{Reason: fmt.Sprintf("unknown %s tag %d", kind, tag), Tag: tag}
}
