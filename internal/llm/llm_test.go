package llm

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aixgo-dev/dailyagent/pkg/toolclient"
	"github.com/aixgo-dev/dailyagent/pkg/tools"
)

// stubDoer answers tool calls by tool name and records the request bodies.
type stubDoer struct {
	mu      sync.Mutex
	replies map[string]string
	bodies  map[string][]byte
}

func (s *stubDoer) Do(_ context.Context, _, url string, body any, _ ...toolclient.CallOption) (*toolclient.Response, error) {
	name := url[strings.LastIndex(url, "/")+1:]
	raw, _ := json.Marshal(body)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bodies == nil {
		s.bodies = make(map[string][]byte)
	}
	s.bodies[name] = raw

	reply, ok := s.replies[name]
	if !ok {
		return nil, &toolclient.ClientFaultError{StatusCode: 404, URL: url, Body: "unknown tool"}
	}
	return &toolclient.Response{StatusCode: 200, Body: []byte(reply)}, nil
}

func (s *stubDoer) body(name string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out map[string]any
	_ = json.Unmarshal(s.bodies[name], &out)
	return out
}

func newTestToolset(doer tools.Doer) *Toolset {
	fixed := time.Date(2025, 1, 15, 7, 0, 0, 0, time.UTC)
	gw := tools.New(doer, "http://tools.local", tools.DefaultPreferences(), zerolog.Nop(),
		tools.WithClock(func() time.Time { return fixed }))
	return NewToolset(gw, zerolog.Nop())
}
