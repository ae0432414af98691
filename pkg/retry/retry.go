// Package retry implements the bounded exponential backoff policy used for
// calls to the remote tool server.
package retry

import (
	"context"
	"errors"
	"math"
	"time"
)

// Default policy values.
const (
	DefaultMaxRetries      = 3
	DefaultBaseDelay       = 1 * time.Second
	DefaultMaxDelay        = 16 * time.Second
	DefaultExponentialBase = 2.0
)

// Policy describes how many times a failed call is retried and how long to
// wait between attempts.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `yaml:"max_retries"`
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration `yaml:"base_delay"`
	// MaxDelay caps every wait.
	MaxDelay time.Duration `yaml:"max_delay"`
	// ExponentialBase is the growth factor between consecutive waits.
	ExponentialBase float64 `yaml:"exponential_base"`
}

// DefaultPolicy returns 3 retries waiting 1s, 2s and 4s, capped at 16s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      DefaultMaxRetries,
		BaseDelay:       DefaultBaseDelay,
		MaxDelay:        DefaultMaxDelay,
		ExponentialBase: DefaultExponentialBase,
	}
}

// Validate reports whether the policy values are usable.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return errors.New("max retries must not be negative")
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return errors.New("delays must not be negative")
	}
	if p.MaxDelay < p.BaseDelay {
		return errors.New("max delay must be at least the base delay")
	}
	if p.ExponentialBase < 1 {
		return errors.New("exponential base must be at least 1")
	}
	return nil
}

// Delay returns the wait before retry number attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	return NextDelay(attempt, p.BaseDelay, p.MaxDelay, p.ExponentialBase)
}

// ShouldRetry reports whether err from the given 0-based attempt warrants
// another attempt.
func (p Policy) ShouldRetry(attempt int, err error) bool {
	return attempt < p.MaxRetries && Classify(err) == Retryable
}

// NextDelay computes min(base * expBase^attempt, max).
func NextDelay(attempt int, base, maxDelay time.Duration, expBase float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(base) * math.Pow(expBase, float64(attempt))
	// Guard against float overflow for large attempts
	if math.IsInf(d, 0) || math.IsNaN(d) || d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
