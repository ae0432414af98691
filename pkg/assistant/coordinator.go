package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	tracing "github.com/aixgo-dev/dailyagent/internal/observability"
	"github.com/aixgo-dev/dailyagent/pkg/history"
	"github.com/aixgo-dev/dailyagent/pkg/observability"
	"github.com/aixgo-dev/dailyagent/pkg/session"
)

// ErrEmptyMessage is returned by Chat for a blank message.
var ErrEmptyMessage = errors.New("message is empty")

const (
	unavailableReply = "I need an OpenAI API key to have conversations. Try the specific commands like 'briefing' or 'weather' instead!"
	emptyReply       = "I'm not sure how to help with that."
)

// Chat turn outcomes reported to metrics.
const (
	outcomeOK          = "ok"
	outcomeError       = "error"
	outcomeUnavailable = "unavailable"
)

// TurnResult is what a chat turn hands back to the caller.
type TurnResult struct {
	Response   string `json:"response"`
	SessionID  string `json:"session_id"`
	NewSession bool   `json:"new_session"`
}

// Coordinator runs conversational turns. It is safe for concurrent use.
type Coordinator struct {
	store        *session.Store
	formatter    *history.Formatter
	agent        Agent
	historyLimit int
	log          zerolog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithHistoryLimit caps the prior turns passed to the agent as chat history.
func WithHistoryLimit(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

// New creates a coordinator. agent may be nil, in which case every turn is
// answered with a fixed notice.
func New(store *session.Store, formatter *history.Formatter, agent Agent, opts ...Option) *Coordinator {
	if formatter == nil {
		formatter = history.NewFormatter()
	}
	c := &Coordinator{
		store:        store,
		formatter:    formatter,
		agent:        agent,
		historyLimit: formatter.Limit(),
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether an agent is configured.
func (c *Coordinator) Available() bool {
	return c.agent != nil
}

// Sessions returns the underlying session store.
func (c *Coordinator) Sessions() *session.Store {
	return c.store
}

// Chat answers message within the session sessionID. An unknown, expired or
// empty sessionID starts a new session. Agent failures are reported in the
// response text; the only error returned is ErrEmptyMessage.
func (c *Coordinator) Chat(ctx context.Context, message, sessionID string) (TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return TurnResult{}, ErrEmptyMessage
	}

	id, created := c.resolve(sessionID)
	result := TurnResult{SessionID: id, NewSession: created}
	log := c.log.With().Str("session_id", id).Logger()

	ctx, span := tracing.StartSpan(ctx, "assistant.chat", map[string]any{
		"session_id":  id,
		"new_session": created,
	})
	defer span.End()

	if c.agent == nil {
		observability.RecordChatTurn(outcomeUnavailable)
		result.Response = unavailableReply
		return result, nil
	}

	resp, err := c.agent.Invoke(ctx, c.request(id, message))
	if err != nil {
		tracing.EndSpan(span, err)
		observability.RecordChatTurn(outcomeError)
		log.Error().Err(err).Msg("agent invocation failed")
		result.Response = fmt.Sprintf("Sorry, I encountered an error: %v", err)
		return result, nil
	}

	output := strings.TrimSpace(resp.Output)
	if output == "" {
		output = emptyReply
	}
	if c.store.Enabled() && !c.store.AddExchange(id, message, output, nil) {
		log.Warn().Msg("session vanished before the exchange was stored")
	}

	observability.RecordChatTurn(outcomeOK)
	log.Debug().Int("response_len", len(output)).Msg("chat turn completed")
	result.Response = output
	return result, nil
}

// Context returns the formatted conversation context of a session, or "" when
// memory is disabled or the session has no history.
func (c *Coordinator) Context(sessionID string) string {
	if !c.store.Enabled() {
		return ""
	}
	return c.formatter.Format(c.store.History(sessionID, c.formatter.Limit()))
}

// Forget drops a session and its history.
func (c *Coordinator) Forget(sessionID string) bool {
	return c.store.Delete(sessionID)
}

func (c *Coordinator) resolve(sessionID string) (string, bool) {
	if sessionID != "" {
		if _, ok := c.store.Get(sessionID); ok {
			return sessionID, false
		}
		c.log.Debug().Str("session_id", sessionID).Msg("unknown session, starting a new one")
	}
	return c.store.Create(map[string]any{"source": "chat"}), true
}

// request builds the agent input. With memory enabled the formatted context
// precedes the message and the prior turns travel as chat history.
func (c *Coordinator) request(id, message string) AgentRequest {
	req := AgentRequest{Input: message}
	if !c.store.Enabled() {
		return req
	}

	prior := c.store.History(id, c.historyLimit)
	if len(prior) == 0 {
		return req
	}
	req.ChatHistory = make([]Turn, 0, len(prior))
	for _, m := range prior {
		req.ChatHistory = append(req.ChatHistory, Turn{Role: string(m.Role), Content: m.Content})
	}
	if block := strings.TrimSpace(c.Context(id)); block != "" {
		req.Input = block + "\n\nCURRENT USER MESSAGE: " + message
	}
	return req
}
