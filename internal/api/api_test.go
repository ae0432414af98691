package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/dailyagent/internal/ratelimit"
	"github.com/aixgo-dev/dailyagent/pkg/assistant"
	"github.com/aixgo-dev/dailyagent/pkg/history"
	"github.com/aixgo-dev/dailyagent/pkg/session"
	"github.com/aixgo-dev/dailyagent/pkg/tools"
)

type echoAgent struct {
	mu    sync.Mutex
	calls int
}

func (a *echoAgent) Invoke(_ context.Context, req assistant.AgentRequest) (assistant.AgentResponse, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return assistant.AgentResponse{Output: "You said: " + req.Input}, nil
}

type stubSource struct{}

func (stubSource) MorningData(context.Context, string) tools.MorningSnapshot {
	return tools.MorningSnapshot{
		Weather:  tools.Slot[tools.WeatherReport]{Value: &tools.WeatherReport{Summary: "Fog", TempHi: 61}},
		Calendar: tools.Slot[tools.CalendarDay]{Err: errors.New("calendar backend down")},
		Todos:    tools.Slot[tools.TodoList]{Value: &tools.TodoList{PendingCount: 2}},
		Commute:  tools.Slot[tools.CommuteOptions]{Value: &tools.CommuteOptions{Recommendation: "Shuttle"}},
	}
}

func (stubSource) Financial(context.Context, tools.FinancialRequest) (*tools.FinancialQuotes, error) {
	return nil, errors.New("markets closed")
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

func newTestServer(t *testing.T, agent assistant.Agent, limits Limits) http.Handler {
	t.Helper()
	coord := assistant.New(session.NewStore(session.DefaultConfig()), history.NewFormatter(), agent)
	briefer := assistant.NewBriefer(stubSource{}, nil, assistant.WithUserName("Kevin"))
	return New(coord, briefer, limits, zerolog.Nop()).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestChat(t *testing.T) {
	h := newTestServer(t, &echoAgent{}, Limits{})

	rec := do(t, h, http.MethodPost, "/chat", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	first := decode[chatResponse](t, rec)
	assert.Equal(t, "You said: hello", first.Response)
	assert.True(t, first.NewSession)
	assert.False(t, first.Timestamp.IsZero())
	_, err := uuid.Parse(first.SessionID)
	assert.NoError(t, err)

	rec = do(t, h, http.MethodPost, "/chat", `{"message":"again","session_id":"`+first.SessionID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[chatResponse](t, rec)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.False(t, second.NewSession)
	assert.Contains(t, second.Response, "CURRENT USER MESSAGE: again")
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name   string
		agent  assistant.Agent
		body   string
		status int
		errMsg string
	}{
		{"no agent", nil, `{"message":"hi"}`, http.StatusServiceUnavailable, "Conversational AI not available"},
		{"empty message", &echoAgent{}, `{"message":"  "}`, http.StatusBadRequest, "Message is required"},
		{"bad json", &echoAgent{}, `{"message":`, http.StatusBadRequest, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, tt.agent, Limits{})
			rec := do(t, h, http.MethodPost, "/chat", tt.body)
			require.Equal(t, tt.status, rec.Code)

			body := decode[errorResponse](t, rec)
			assert.Equal(t, tt.errMsg, body.Error)
			assert.Equal(t, tt.status, body.StatusCode)
		})
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, &echoAgent{}, Limits{})
	rec := do(t, h, http.MethodGet, "/chat", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimit(t *testing.T) {
	agent := &echoAgent{}
	h := newTestServer(t, agent, Limits{Chat: ratelimit.NewLocal(1)})

	rec := do(t, h, http.MethodPost, "/chat", `{"message":"one"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do(t, h, http.MethodPost, "/chat", `{"message":"two"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.NotEqual(t, "0", rec.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, "Rate limit exceeded", decode[errorResponse](t, rec).Error)
	assert.Equal(t, 1, agent.calls)

	rec = do(t, h, http.MethodGet, "/briefing", "")
	assert.Equal(t, http.StatusOK, rec.Code, "routes are limited separately")
}

func TestRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	agent := &echoAgent{}
	h := newTestServer(t, agent, Limits{Chat: ratelimit.NewLocal(2)})

	admitted := 0
	for i := range 20 {
		rec := do(t, h, http.MethodPost, "/chat", `{"message":"hi"}`, "X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		if rec.Code == http.StatusOK {
			admitted++
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
	assert.Equal(t, 2, admitted, "rotating X-Forwarded-For from one address shares one budget")
	assert.Equal(t, 2, agent.calls)
}

func TestRateLimitTrustedForwardedFor(t *testing.T) {
	h := newTestServer(t, &echoAgent{}, Limits{Chat: ratelimit.NewLocal(1), TrustForwardedFor: true})

	rec := do(t, h, http.MethodPost, "/chat", `{"message":"one"}`, "X-Forwarded-For", "203.0.113.9")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/chat", `{"message":"two"}`, "X-Forwarded-For", "203.0.113.9")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(t, h, http.MethodPost, "/chat", `{"message":"three"}`, "X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code, "each forwarded client has its own budget")
}

func TestRateLimitFailsOpen(t *testing.T) {
	h := newTestServer(t, &echoAgent{}, Limits{Chat: failingLimiter{}})
	rec := do(t, h, http.MethodPost, "/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestBriefingBasic(t *testing.T) {
	h := newTestServer(t, nil, Limits{})

	rec := do(t, h, http.MethodGet, "/briefing?date=2026-10-16", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Type   string                     `json:"type"`
		Date   string                     `json:"date"`
		Data   map[string]json.RawMessage `json:"data"`
		Errors map[string]string          `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "basic", body.Type)
	assert.Equal(t, "2026-10-16", body.Date)
	assert.Contains(t, body.Data, "weather")
	assert.Equal(t, map[string]string{"calendar": "calendar backend down"}, body.Errors)
}

func TestBriefingSmartFallsBack(t *testing.T) {
	h := newTestServer(t, nil, Limits{})

	rec := do(t, h, http.MethodGet, "/briefing?type=smart", "")
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode[assistant.Briefing](t, rec)
	assert.False(t, out.Generated)
	assert.Contains(t, out.Text, "Good morning, Kevin!")
	assert.Contains(t, out.Text, "Calendar: unavailable")
}

func TestBriefingBadRequest(t *testing.T) {
	h := newTestServer(t, nil, Limits{})

	for _, target := range []string{"/briefing?type=weekly", "/briefing?date=16-10-2026"} {
		rec := do(t, h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestSessionRoutes(t *testing.T) {
	h := newTestServer(t, &echoAgent{}, Limits{})

	id := decode[chatResponse](t, do(t, h, http.MethodPost, "/chat", `{"message":"hello"}`)).SessionID

	rec := do(t, h, http.MethodGet, "/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[session.Info](t, rec)
	assert.Equal(t, 2, info.MessageCount)

	stats := decode[session.Stats](t, do(t, h, http.MethodGet, "/sessions", ""))
	assert.Equal(t, 1, stats.TotalSessions)
	assert.Equal(t, 2, stats.TotalMessages)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/sessions/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/sessions/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/sessions/"+id, "").Code)
}

func TestRequestID(t *testing.T) {
	h := newTestServer(t, nil, Limits{})

	rec := do(t, h, http.MethodGet, "/briefing", "", HeaderRequestID, "req-123")
	assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))

	rec = do(t, h, http.MethodGet, "/briefing", "")
	_, err := uuid.Parse(rec.Header().Get(HeaderRequestID))
	assert.NoError(t, err)
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", clientKey(req, false))

	req.Header.Set("X-Forwarded-For", " 198.51.100.7 , 10.0.0.2")
	assert.Equal(t, "192.0.2.1", clientKey(req, false))
	assert.Equal(t, "198.51.100.7", clientKey(req, true))
}
