package llm

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	tracing "github.com/aixgo-dev/dailyagent/internal/observability"
	"github.com/aixgo-dev/dailyagent/pkg/assistant"
	"github.com/aixgo-dev/dailyagent/pkg/observability"
)

// OpenAIClient interface for testability
type OpenAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIAgent answers with an OpenAI chat model.
type OpenAIAgent struct {
	client OpenAIClient
	cfg    Config
	tools  *Toolset
	log    zerolog.Logger
	now    func() time.Time
}

// NewOpenAIAgent creates an agent on client. ts may be nil.
func NewOpenAIAgent(client OpenAIClient, cfg Config, ts *Toolset, log zerolog.Logger) *OpenAIAgent {
	return &OpenAIAgent{
		client: client,
		cfg:    cfg.withDefaults(),
		tools:  ts,
		log:    log,
		now:    time.Now,
	}
}

// Invoke runs the tool-calling loop until the model gives a final answer.
func (a *OpenAIAgent) Invoke(ctx context.Context, req assistant.AgentRequest) (assistant.AgentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	ctx, span := tracing.StartSpan(ctx, "llm.invoke", map[string]any{
		"provider": ProviderOpenAI,
		"model":    a.cfg.Model,
		"history":  len(req.ChatHistory),
	})
	defer span.End()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.ChatHistory)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: SystemPrompt(a.cfg.Profile, a.now()),
	})
	for _, t := range req.ChatHistory {
		role := openai.ChatMessageRoleUser
		if t.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Input,
	})

	defs := a.toolDefs()
	for round := 0; round < a.cfg.MaxToolRounds; round++ {
		start := time.Now()
		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       a.cfg.Model,
			Messages:    messages,
			Tools:       defs,
			Temperature: openAITemperature(*a.cfg.Temperature),
		})
		observability.RecordLLMCall(ProviderOpenAI, time.Since(start))
		if err != nil {
			tracing.EndSpan(span, err)
			return assistant.AgentResponse{}, err
		}
		if len(resp.Choices) == 0 {
			err := errors.New("no choices in response")
			tracing.EndSpan(span, err)
			return assistant.AgentResponse{}, err
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 || a.tools == nil {
			return assistant.AgentResponse{Output: msg.Content}, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			a.log.Debug().Str("tool", call.Function.Name).Int("round", round).Msg("model requested tool")
			out, _ := a.tools.Call(ctx, call.Function.Name, call.Function.Arguments)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    out,
				ToolCallID: call.ID,
			})
		}
	}

	tracing.EndSpan(span, ErrToolRounds)
	return assistant.AgentResponse{}, ErrToolRounds
}

func (a *OpenAIAgent) toolDefs() []openai.Tool {
	if a.tools == nil {
		return nil
	}
	defs := make([]openai.Tool, 0, len(a.tools.Tools()))
	for _, t := range a.tools.Tools() {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// openAITemperature keeps an explicit zero on the wire; the request field is
// omitted when empty.
func openAITemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}
