// Package tools exposes the remote tool server as typed Go calls.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	tracing "github.com/aixgo-dev/dailyagent/internal/observability"
	"github.com/aixgo-dev/dailyagent/pkg/observability"
	"github.com/aixgo-dev/dailyagent/pkg/toolclient"
)

// DefaultHealthTimeout bounds the health probe.
const DefaultHealthTimeout = 10 * time.Second

// DefaultFinancialSymbols are quoted when the caller names none.
var DefaultFinancialSymbols = []string{"MSFT", "NVDA", "BTC", "ETH", "VOO", "SMR", "GOOGL"}

// Doer sends a request to the tool server. *toolclient.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, method, url string, body any, opts ...toolclient.CallOption) (*toolclient.Response, error)
}

// Preferences fills in arguments the caller leaves empty.
type Preferences struct {
	Location           string
	CommuteOrigin      string
	CommuteDestination string
	TodoBucket         string
	FinancialSymbols   []string
	HealthTimeout      time.Duration
}

// DefaultPreferences returns the stock user preferences.
func DefaultPreferences() Preferences {
	return Preferences{
		Location:           "San Francisco",
		CommuteOrigin:      "Home",
		CommuteDestination: "Office",
		TodoBucket:         "work",
		FinancialSymbols:   DefaultFinancialSymbols,
		HealthTimeout:      DefaultHealthTimeout,
	}
}

// Gateway issues typed tool calls.
type Gateway struct {
	client  Doer
	baseURL string
	prefs   Preferences
	log     zerolog.Logger
	now     func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock overrides the clock used to pick "today".
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New creates a gateway for the tool server at baseURL.
func New(client Doer, baseURL string, prefs Preferences, log zerolog.Logger, opts ...Option) *Gateway {
	def := DefaultPreferences()
	if prefs.TodoBucket == "" {
		prefs.TodoBucket = def.TodoBucket
	}
	if len(prefs.FinancialSymbols) == 0 {
		prefs.FinancialSymbols = def.FinancialSymbols
	}
	if prefs.HealthTimeout <= 0 {
		prefs.HealthTimeout = def.HealthTimeout
	}

	g := &Gateway{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		prefs:   prefs,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Preferences returns the effective defaults.
func (g *Gateway) Preferences() Preferences {
	return g.prefs
}

// Today returns the current date in DateLayout.
func (g *Gateway) Today() string {
	return g.now().Format(DateLayout)
}

// CallTool posts params to /tools/{name} and returns the raw JSON reply.
func (g *Gateway) CallTool(ctx context.Context, name string, params any) (json.RawMessage, error) {
	ctx, span := tracing.StartSpan(ctx, "tools.call", map[string]any{"tool": name})
	start := time.Now()

	resp, err := g.client.Do(ctx, http.MethodPost, g.baseURL+"/tools/"+name, params)

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordToolCall(name, status, time.Since(start))
	tracing.EndSpan(span, err)

	if err != nil {
		g.log.Warn().Err(err).Str("tool", name).Int("attempts", toolclient.Attempts(err)).Msg("tool call failed")
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	g.log.Debug().Str("tool", name).Dur("elapsed", time.Since(start)).Msg("tool call succeeded")
	return json.RawMessage(resp.Body), nil
}

type validator interface {
	Validate() error
}

type rawSetter interface {
	setRaw(json.RawMessage)
}

// invoke validates req, calls the tool and decodes the reply into T.
func invoke[T any](ctx context.Context, g *Gateway, name string, req validator) (*T, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	raw, err := g.CallTool(ctx, name, req)
	if err != nil {
		return nil, err
	}

	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", name, err)
	}
	if rs, ok := any(out).(rawSetter); ok {
		rs.setRaw(raw)
	}
	return out, nil
}

// Weather returns the forecast. Location and When default to the
// preferred location and "today".
func (g *Gateway) Weather(ctx context.Context, req WeatherRequest) (*WeatherReport, error) {
	if req.Location == "" {
		req.Location = g.prefs.Location
	}
	if req.When == "" {
		req.When = "today"
	}
	return invoke[WeatherReport](ctx, g, ToolWeather, req)
}

// CalendarEvents lists the events of date, today when empty.
func (g *Gateway) CalendarEvents(ctx context.Context, date string) (*CalendarDay, error) {
	if date == "" {
		date = g.Today()
	}
	return invoke[CalendarDay](ctx, g, ToolCalendar, CalendarRequest{Date: date})
}

// CalendarRange lists events between two dates inclusive.
func (g *Gateway) CalendarRange(ctx context.Context, req CalendarRangeRequest) (*CalendarRange, error) {
	return invoke[CalendarRange](ctx, g, ToolCalendarRange, req)
}

// Todos lists a todo bucket. An empty bucket lists every bucket.
func (g *Gateway) Todos(ctx context.Context, req TodoRequest) (*TodoList, error) {
	return invoke[TodoList](ctx, g, ToolTodos, req)
}

// Commute estimates a single-mode trip. Empty fields fall back to the
// preferred origin, destination and driving.
func (g *Gateway) Commute(ctx context.Context, req CommuteRequest) (*CommuteReport, error) {
	if req.Origin == "" {
		req.Origin = g.prefs.CommuteOrigin
	}
	if req.Destination == "" {
		req.Destination = g.prefs.CommuteDestination
	}
	if req.Mode == "" {
		req.Mode = "driving"
	}
	return invoke[CommuteReport](ctx, g, ToolCommute, req)
}

// NewCommuteOptionsRequest compares both driving and transit.
func NewCommuteOptionsRequest(direction string) CommuteOptionsRequest {
	return CommuteOptionsRequest{Direction: direction, IncludeDriving: true, IncludeTransit: true}
}

// CommuteOptions compares commute modes for a direction.
func (g *Gateway) CommuteOptions(ctx context.Context, req CommuteOptionsRequest) (*CommuteOptions, error) {
	return invoke[CommuteOptions](ctx, g, ToolCommuteOptions, req)
}

// ShuttleSchedule lists shuttle departures between two stops.
func (g *Gateway) ShuttleSchedule(ctx context.Context, req ShuttleRequest) (*ShuttleSchedule, error) {
	return invoke[ShuttleSchedule](ctx, g, ToolShuttleSchedule, req)
}

// Financial quotes symbols, the preferred list when none are given.
func (g *Gateway) Financial(ctx context.Context, req FinancialRequest) (*FinancialQuotes, error) {
	if len(req.Symbols) == 0 {
		req.Symbols = g.prefs.FinancialSymbols
	}
	if req.DataType == "" {
		req.DataType = "mixed"
	}
	return invoke[FinancialQuotes](ctx, g, ToolFinancial, req)
}

// Health probes GET /health once. It never returns an error.
func (g *Gateway) Health(ctx context.Context) bool {
	_, err := g.client.Do(ctx, http.MethodGet, g.baseURL+"/health", nil,
		toolclient.WithTimeout(g.prefs.HealthTimeout),
		toolclient.WithoutRetry(),
	)
	if err != nil {
		g.log.Debug().Err(err).Msg("tool server health check failed")
		return false
	}
	return true
}
