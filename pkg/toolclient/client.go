// Package toolclient provides the pooled, retrying HTTP client used to talk
// to the remote tool server.
package toolclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aixgo-dev/dailyagent/pkg/observability"
	"github.com/aixgo-dev/dailyagent/pkg/retry"
)

const (
	// DefaultTimeout applies to each attempt of a tool call.
	DefaultTimeout = 45 * time.Second

	// Maximum response body read from the tool server (8MB)
	maxResponseSize = 8 * 1024 * 1024

	// Longest response body excerpt kept on a ClientFaultError
	maxFaultBody = 512
)

// Options configures the connection pool and retry behaviour.
type Options struct {
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// MaxConns bounds connections per host.
	MaxConns int
	// MaxIdleConns bounds idle keep-alive connections.
	MaxIdleConns int
	// IdleConnTimeout closes idle connections after this long.
	IdleConnTimeout time.Duration
	// Retry is the backoff policy for transient failures.
	Retry retry.Policy
	// Transport replaces the tuned default transport (tests).
	Transport http.RoundTripper
	// UserAgent is sent on every request when set.
	UserAgent string
}

// DefaultOptions returns the pool sizing used in production.
func DefaultOptions() Options {
	return Options{
		Timeout:         DefaultTimeout,
		MaxConns:        100,
		MaxIdleConns:    20,
		IdleConnTimeout: 30 * time.Second,
		Retry:           retry.DefaultPolicy(),
		UserAgent:       "dailyagent/1.0",
	}
}

// Response is a successful tool server reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client owns one lazily created connection pool. It is safe for
// concurrent use; all calls share the pool.
type Client struct {
	opts Options
	log  zerolog.Logger

	mu     sync.Mutex
	client *http.Client
}

// New creates a client. The pool is not opened until the first call.
func New(opts Options, log zerolog.Logger) *Client {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = def.MaxConns
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = def.MaxIdleConns
	}
	if opts.IdleConnTimeout <= 0 {
		opts.IdleConnTimeout = def.IdleConnTimeout
	}
	return &Client{opts: opts, log: log}
}

// Options returns the effective options.
func (c *Client) Options() Options {
	return c.opts
}

// pool returns the shared *http.Client, creating it on first use.
func (c *Client) pool() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		base := c.opts.Transport
		if base == nil {
			base = &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxConnsPerHost:       c.opts.MaxConns,
				MaxIdleConns:          c.opts.MaxIdleConns,
				MaxIdleConnsPerHost:   c.opts.MaxIdleConns,
				IdleConnTimeout:       c.opts.IdleConnTimeout,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				ForceAttemptHTTP2:     true,
			}
		}
		// Timeouts are applied per attempt through the request context
		c.client = &http.Client{Transport: otelhttp.NewTransport(base)}
		c.log.Debug().Int("max_conns", c.opts.MaxConns).Msg("tool client pool created")
	}
	return c.client
}

// Close releases pooled connections. The next call opens a fresh pool.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.CloseIdleConnections()
		c.client = nil
	}
}

// CallOption customises a single Do call.
type CallOption func(*callConfig)

type callConfig struct {
	timeout time.Duration
	noRetry bool
	headers http.Header
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) CallOption {
	return func(c *callConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithoutRetry makes the call single-shot.
func WithoutRetry() CallOption {
	return func(c *callConfig) { c.noRetry = true }
}

// WithHeader adds a request header.
func WithHeader(key, value string) CallOption {
	return func(c *callConfig) { c.headers.Set(key, value) }
}

// Do sends a request, retrying transient failures with exponential backoff.
// A non-nil body is JSON encoded. Errors are either *ClientFaultError or
// *GatewayError.
func (c *Client) Do(ctx context.Context, method, rawURL string, body any, opts ...CallOption) (*Response, error) {
	cfg := callConfig{timeout: c.opts.Timeout, headers: make(http.Header)}
	for _, opt := range opts {
		opt(&cfg)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	policy := c.opts.Retry
	if cfg.noRetry || policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}

	client := c.pool()
	host := hostOf(rawURL)

	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, client, method, rawURL, payload, cfg)
		if err == nil {
			return resp, nil
		}
		attempts := attempt + 1

		var fault *ClientFaultError
		if errors.As(err, &fault) {
			fault.Attempts = attempts
			return nil, fault
		}

		// Parent cancellation ends the call regardless of the error class
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &GatewayError{Attempts: attempts, URL: rawURL, Cause: ctxErr}
		}

		if !policy.ShouldRetry(attempt, err) {
			if retry.IsRetryable(err) {
				c.log.Error().Err(err).Str("url", rawURL).Int("attempts", attempts).Msg("tool call retries exhausted")
			}
			return nil, &GatewayError{Attempts: attempts, URL: rawURL, Cause: err}
		}

		delay := policy.Delay(attempt)
		c.log.Warn().
			Err(err).
			Str("url", rawURL).
			Int("attempt", attempts).
			Dur("delay", delay).
			Msg("tool call failed, retrying")
		observability.RecordToolRetry(host, retryReason(err))

		if err := retry.Sleep(ctx, delay); err != nil {
			return nil, &GatewayError{Attempts: attempts, URL: rawURL, Cause: err}
		}
	}
}

// send performs a single attempt under its own timeout.
func (c *Client) send(ctx context.Context, client *http.Client, method, rawURL string, payload []byte, cfg callConfig) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	for k, vs := range cfg.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		if retry.IsRetryable(err) {
			return nil, &TransientError{URL: rawURL, Err: err}
		}
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransientError{URL: rawURL, Err: fmt.Errorf("read response body: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &ClientFaultError{StatusCode: resp.StatusCode, URL: rawURL, Body: excerpt(data)}
	case retry.StatusClass(resp.StatusCode) == retry.Retryable:
		return nil, &TransientError{StatusCode: resp.StatusCode, URL: rawURL}
	default:
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
}

func excerpt(body []byte) string {
	if len(body) > maxFaultBody {
		return string(body[:maxFaultBody]) + "..."
	}
	return string(body)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

func retryReason(err error) string {
	var transient *TransientError
	if errors.As(err, &transient) && transient.StatusCode != 0 {
		return fmt.Sprintf("status_%d", transient.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "network"
}
