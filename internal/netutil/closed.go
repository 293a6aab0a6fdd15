// Package netutil holds small helpers shared by the relay's connection code.
package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsExpectedCloseError reports whether err only says the connection is gone.
// A session's reader and writer see one of these when the client hangs up or
// when the opposite half has already closed the shared conn; the caller
// treats the session as finished cleanly. Matched errors are io.EOF,
// io.ErrClosedPipe, net.ErrClosed, EPIPE and ECONNRESET.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
