package toolclient

import (
	"errors"
	"fmt"
)

// ClientFaultError is returned for 4xx responses. The request itself is at
// fault, so it is never retried.
type ClientFaultError struct {
	StatusCode int
	URL        string
	Body       string
	// Attempts counts every attempt of the call, the rejected one included.
	Attempts int
}

func (e *ClientFaultError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("tool server rejected request to %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("tool server rejected request to %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Retryable reports false; client faults are final.
func (e *ClientFaultError) Retryable() bool { return false }

// TransientError covers 5xx responses and network-level failures that may
// succeed on a later attempt.
type TransientError struct {
	// StatusCode is zero when no response was received.
	StatusCode int
	URL        string
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("tool server error from %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("tool server unreachable at %s: %v", e.URL, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Retryable reports true.
func (e *TransientError) Retryable() bool { return true }

// GatewayError is the terminal error of a call that did not succeed,
// either because retries ran out or because the failure was not retryable.
type GatewayError struct {
	Attempts int
	URL      string
	Cause    error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("tool call to %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Cause)
}

func (e *GatewayError) Unwrap() error { return e.Cause }

// IsClientFault reports whether err carries a 4xx response.
func IsClientFault(err error) bool {
	var fault *ClientFaultError
	return errors.As(err, &fault)
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var fault *ClientFaultError
	if errors.As(err, &fault) {
		return fault.StatusCode
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return transient.StatusCode
	}
	return 0
}

// Attempts returns how many attempts a failed call made, or 0 for errors
// that did not come from Do.
func Attempts(err error) int {
	var gw *GatewayError
	if errors.As(err, &gw) {
		return gw.Attempts
	}
	var fault *ClientFaultError
	if errors.As(err, &fault) {
		return fault.Attempts
	}
	return 0
}
