package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// Class tells whether a failure may succeed on a later attempt.
type Class int

const (
	// NonRetryable failures are returned to the caller immediately.
	NonRetryable Class = iota
	// Retryable failures are transient and worth another attempt.
	Retryable
)

// String returns the class name used in logs and metrics.
func (c Class) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "non_retryable"
}

// Retryabler is implemented by errors that know their own class.
type Retryabler interface {
	Retryable() bool
}

// Classify decides whether err is transient.
func Classify(err error) Class {
	if err == nil {
		return NonRetryable
	}

	var r Retryabler
	if errors.As(err, &r) {
		if r.Retryable() {
			return Retryable
		}
		return NonRetryable
	}

	switch {
	case errors.Is(err, context.Canceled):
		return NonRetryable
	case errors.Is(err, context.DeadlineExceeded):
		return Retryable
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return Retryable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Retryable
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Retryable
	}

	return NonRetryable
}

// StatusClass classifies an HTTP status code. 4xx responses are client
// faults and never retried; 5xx responses are transient.
func StatusClass(code int) Class {
	if code >= 500 && code <= 599 {
		return Retryable
	}
	return NonRetryable
}

// IsRetryable is shorthand for Classify(err) == Retryable.
func IsRetryable(err error) bool {
	return Classify(err) == Retryable
}
