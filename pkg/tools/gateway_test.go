package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/dailyagent/pkg/retry"
	"github.com/aixgo-dev/dailyagent/pkg/toolclient"
)

// toolServer fakes the tool server: replies maps a tool name to its JSON
// reply, and the last decoded request body per tool is recorded.
type toolServer struct {
	*httptest.Server
	calls atomic.Int32

	mu       sync.Mutex
	requests map[string]map[string]any
}

func (ts *toolServer) request(name string) map[string]any {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.requests[name]
}

func newToolServer(t *testing.T, replies map[string]string) *toolServer {
	t.Helper()
	ts := &toolServer{requests: make(map[string]map[string]any)}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/tools/")
		reply, ok := replies[name]
		if !ok {
			http.Error(w, `{"detail": "unknown tool"}`, http.StatusNotFound)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		ts.mu.Lock()
		ts.requests[name] = body
		ts.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestGateway(t *testing.T, baseURL string) *Gateway {
	t.Helper()
	opts := toolclient.DefaultOptions()
	opts.Timeout = time.Second
	opts.Retry = retry.Policy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, ExponentialBase: 2}
	client := toolclient.New(opts, zerolog.Nop())
	t.Cleanup(client.Close)

	fixed := time.Date(2025, 1, 15, 7, 30, 0, 0, time.UTC)
	return New(client, baseURL+"/", DefaultPreferences(), zerolog.Nop(), WithClock(func() time.Time { return fixed }))
}

const weatherReply = `{"location": "San Francisco, US", "temp_hi": 72.5, "temp_lo": 58.3, "summary": "Partly Cloudy", "precip_chance": 10, "uv_index": 4}`

func TestGateway_Weather(t *testing.T) {
	ts := newToolServer(t, map[string]string{ToolWeather: weatherReply})
	g := newTestGateway(t, ts.URL)

	report, err := g.Weather(context.Background(), WeatherRequest{})
	require.NoError(t, err)

	assert.Equal(t, "San Francisco, US", report.Location)
	assert.Equal(t, 72.5, report.TempHi)
	assert.Equal(t, "Partly Cloudy", report.Summary)
	assert.JSONEq(t, weatherReply, string(report.Raw()))

	assert.Equal(t, "San Francisco", ts.request(ToolWeather)["location"])
	assert.Equal(t, "today", ts.request(ToolWeather)["when"])
}

func TestGateway_CalendarDefaultsToToday(t *testing.T) {
	ts := newToolServer(t, map[string]string{
		ToolCalendar: `{"date": "2025-01-15", "total_events": 1, "events": [{"id": "e1", "title": "Team Standup", "time": "09:00 AM"}]}`,
	})
	g := newTestGateway(t, ts.URL)

	day, err := g.CalendarEvents(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 1, day.TotalEvents)
	require.Len(t, day.Events, 1)
	assert.Equal(t, "Team Standup", day.Events[0].Title)
	assert.Equal(t, "2025-01-15", ts.request(ToolCalendar)["date"])
}

func TestGateway_FinancialDefaults(t *testing.T) {
	ts := newToolServer(t, map[string]string{
		ToolFinancial: `{"summary": "2 instruments tracked", "total_items": 2, "market_status": "mixed",
			"data": [{"symbol": "MSFT", "price": 425.5, "change_percent": 0.54}, {"symbol": "BTC", "price": 98500}]}`,
	})
	g := newTestGateway(t, ts.URL)

	quotes, err := g.Financial(context.Background(), FinancialRequest{})
	require.NoError(t, err)

	assert.Equal(t, 2, quotes.TotalItems)
	assert.Equal(t, "MSFT", quotes.Data[0].Symbol)
	assert.Equal(t, "mixed", ts.request(ToolFinancial)["data_type"])
	assert.Len(t, ts.request(ToolFinancial)["symbols"], len(DefaultFinancialSymbols))
}

func TestGateway_CommuteOptions(t *testing.T) {
	ts := newToolServer(t, map[string]string{
		ToolCommuteOptions: `{"direction": "to_work", "recommendation": "Take transit",
			"driving": {"duration_minutes": 45}, "transit": {"total_duration_minutes": 55}}`,
	})
	g := newTestGateway(t, ts.URL)

	opts, err := g.CommuteOptions(context.Background(), NewCommuteOptionsRequest("to_work"))
	require.NoError(t, err)

	assert.Equal(t, "Take transit", opts.Recommendation)
	assert.Equal(t, 45.0, opts.BestMinutes())
	assert.Equal(t, true, ts.request(ToolCommuteOptions)["include_transit"])
}

func TestGateway_ShuttleDepartureTime(t *testing.T) {
	ts := newToolServer(t, map[string]string{
		ToolShuttleSchedule: `{"origin": "mountain_view_caltrain", "destination": "linkedin_950_1000", "departures": []}`,
	})
	g := newTestGateway(t, ts.URL)

	for _, dep := range []string{"8:00 AM", "8:00am", "17:45"} {
		_, err := g.ShuttleSchedule(context.Background(), ShuttleRequest{
			Origin:        "mountain_view_caltrain",
			Destination:   "linkedin_950_1000",
			DepartureTime: dep,
		})
		require.NoError(t, err, dep)
		assert.Equal(t, dep, ts.request(ToolShuttleSchedule)["departure_time"])
	}
}

func TestGateway_ValidationBeforeIO(t *testing.T) {
	ts := newToolServer(t, map[string]string{})
	g := newTestGateway(t, ts.URL)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"bad weather time", func() error {
			_, err := g.Weather(ctx, WeatherRequest{When: "yesterday"})
			return err
		}},
		{"bad calendar date", func() error {
			_, err := g.CalendarEvents(ctx, "15/01/2025")
			return err
		}},
		{"reversed range", func() error {
			_, err := g.CalendarRange(ctx, CalendarRangeRequest{StartDate: "2025-01-20", EndDate: "2025-01-15"})
			return err
		}},
		{"unknown bucket", func() error {
			_, err := g.Todos(ctx, TodoRequest{Bucket: "garden"})
			return err
		}},
		{"unknown mode", func() error {
			_, err := g.Commute(ctx, CommuteRequest{Mode: "teleport"})
			return err
		}},
		{"no commute modes", func() error {
			_, err := g.CommuteOptions(ctx, CommuteOptionsRequest{Direction: "to_work"})
			return err
		}},
		{"unknown shuttle stop", func() error {
			_, err := g.ShuttleSchedule(ctx, ShuttleRequest{Origin: "moon", Destination: "linkedin_950_1000"})
			return err
		}},
		{"bad shuttle departure", func() error {
			_, err := g.ShuttleSchedule(ctx, ShuttleRequest{
				Origin:        "mountain_view_caltrain",
				Destination:   "linkedin_950_1000",
				DepartureTime: "soon",
			})
			return err
		}},
		{"bad commute departure", func() error {
			req := NewCommuteOptionsRequest("to_work")
			req.DepartureTime = "25:00"
			_, err := g.CommuteOptions(ctx, req)
			return err
		}},
		{"bad data type", func() error {
			_, err := g.Financial(ctx, FinancialRequest{Symbols: []string{"MSFT"}, DataType: "bonds"})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
		})
	}
	assert.Equal(t, int32(0), ts.calls.Load())
}

func TestGateway_ClientFaultSurfaces(t *testing.T) {
	ts := newToolServer(t, map[string]string{})
	g := newTestGateway(t, ts.URL)

	_, err := g.CallTool(context.Background(), "nope", map[string]any{})
	require.Error(t, err)
	assert.True(t, toolclient.IsClientFault(err))
	assert.Equal(t, http.StatusNotFound, toolclient.StatusCode(err))
	assert.Equal(t, int32(1), ts.calls.Load())
}

func TestGateway_DecodeError(t *testing.T) {
	ts := newToolServer(t, map[string]string{ToolTodos: `{"pending_count": "many"}`})
	g := newTestGateway(t, ts.URL)

	_, err := g.Todos(context.Background(), TodoRequest{Bucket: "work"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode todo.list response")
}

func TestGateway_Health(t *testing.T) {
	ts := newToolServer(t, map[string]string{})
	g := newTestGateway(t, ts.URL)
	assert.True(t, g.Health(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	assert.False(t, newTestGateway(t, down.URL).Health(context.Background()))
}

func TestNew_FillsPreferenceDefaults(t *testing.T) {
	g := New(nil, "http://tools", Preferences{Location: "Paris"}, zerolog.Nop())
	prefs := g.Preferences()

	assert.Equal(t, "Paris", prefs.Location)
	assert.Equal(t, "work", prefs.TodoBucket)
	assert.Equal(t, DefaultFinancialSymbols, prefs.FinancialSymbols)
	assert.Equal(t, DefaultHealthTimeout, prefs.HealthTimeout)
}
