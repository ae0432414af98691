package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeToolServer(t *testing.T) *httptest.Server {
	t.Helper()
	replies := map[string]string{
		"weather.get_daily":            `{"location":"San Francisco","temp_hi":64,"temp_lo":52,"summary":"Fog","precip_chance":10}`,
		"calendar.list_events":         `{"date":"2026-10-16","total_events":2,"events":[]}`,
		"todo.list":                    `{"bucket":"work","pending_count":4,"items":[]}`,
		"mobility.get_commute_options": `{"direction":"to_work","recommendation":"Drive","driving":{"duration_minutes":31}}`,
		"financial.get_data":           `{"summary":"Markets are up","total_items":0,"data":[]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		reply, ok := replies[strings.TrimPrefix(r.URL.Path, "/tools/")]
		if !ok {
			http.Error(w, `{"detail":"unknown tool"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setTestEnv(t *testing.T, toolURL string) {
	t.Helper()
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("MCP_SERVER_URL", toolURL)
	t.Setenv("MAX_RETRIES", "0")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("DEFAULT_LLM", "openai")
	t.Setenv("USER_NAME", "Kevin")
	t.Setenv("CONFIG_FILE", "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(io.Discard)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBriefingCommand(t *testing.T) {
	setTestEnv(t, fakeToolServer(t).URL)

	out, err := execute(t, "briefing", "--date", "2026-10-16")
	require.NoError(t, err)

	var snap struct {
		Weather struct {
			Summary string `json:"summary"`
		} `json:"weather"`
		Todos struct {
			PendingCount int `json:"pending_count"`
		} `json:"todos"`
		Calendar struct {
			TotalEvents int `json:"total_events"`
		} `json:"calendar"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, "Fog", snap.Weather.Summary)
	assert.Equal(t, 4, snap.Todos.PendingCount)
	assert.Equal(t, 2, snap.Calendar.TotalEvents)
}

func TestBriefingCommandSmartWithoutAgent(t *testing.T) {
	setTestEnv(t, fakeToolServer(t).URL)

	out, err := execute(t, "briefing", "--smart")
	require.NoError(t, err)
	assert.Contains(t, out, "Good morning, Kevin!")
	assert.Contains(t, out, "Weather: Fog - 64°F")
	assert.Contains(t, out, "Commute: 31 min (Drive)")
	assert.Contains(t, out, "Markets: Markets are up")
}

func TestBriefingCommandRejectsBadDate(t *testing.T) {
	setTestEnv(t, fakeToolServer(t).URL)

	_, err := execute(t, "briefing", "--date", "tomorrow")
	assert.ErrorContains(t, err, "invalid --date")
}

func TestChatCommandWithoutAgent(t *testing.T) {
	setTestEnv(t, fakeToolServer(t).URL)

	out, err := execute(t, "chat", "-m", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "I need an OpenAI API key")
}

func TestHealthCommand(t *testing.T) {
	setTestEnv(t, fakeToolServer(t).URL)

	out, err := execute(t, "health")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "healthy"`)
}

func TestHealthCommandToolServerDown(t *testing.T) {
	srv := fakeToolServer(t)
	setTestEnv(t, srv.URL)
	srv.Close()

	out, err := execute(t, "health")
	require.NoError(t, err, "the tool server check is not critical")
	assert.Contains(t, out, `"status": "degraded"`)
}

func TestInvalidConfiguration(t *testing.T) {
	setTestEnv(t, "not-a-url")

	_, err := execute(t, "health")
	assert.ErrorContains(t, err, "invalid configuration")
}
