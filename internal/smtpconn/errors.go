package smtpconn

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

// transportError tags err with the reason used in cooldown and error notes.
// connecting is true while the session is being established.
func transportError(err error, connecting bool) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}

	var netErr net.Error
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &TransportError{Reason: "timeout", Err: err}
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed), errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return &TransportError{Reason: "server disconnected", Err: err}
	case connecting:
		return &TransportError{Reason: "connect error: " + err.Error(), Err: err}
	default:
		return &TransportError{Reason: "network error: " + err.Error(), Err: err}
	}
}

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
