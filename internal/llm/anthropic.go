package llm

import (
	"context"
	"strings"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"github.com/rs/zerolog"

	tracing "github.com/aixgo-dev/dailyagent/internal/observability"
	"github.com/aixgo-dev/dailyagent/pkg/assistant"
	"github.com/aixgo-dev/dailyagent/pkg/observability"
)

// AnthropicClient is the part of the Anthropic SDK the agent uses.
type AnthropicClient interface {
	CreateMessages(ctx context.Context, req anthropic.MessagesRequest) (anthropic.MessagesResponse, error)
}

// AnthropicAgent answers with an Anthropic model.
type AnthropicAgent struct {
	client AnthropicClient
	cfg    Config
	tools  *Toolset
	log    zerolog.Logger
	now    func() time.Time
}

// NewAnthropicAgent creates an agent on client. ts may be nil.
func NewAnthropicAgent(client AnthropicClient, cfg Config, ts *Toolset, log zerolog.Logger) *AnthropicAgent {
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}
	return &AnthropicAgent{
		client: client,
		cfg:    cfg.withDefaults(),
		tools:  ts,
		log:    log,
		now:    time.Now,
	}
}

// Invoke runs the tool-calling loop until the model stops asking for tools.
func (a *AnthropicAgent) Invoke(ctx context.Context, req assistant.AgentRequest) (assistant.AgentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	ctx, span := tracing.StartSpan(ctx, "llm.invoke", map[string]any{
		"provider": ProviderAnthropic,
		"model":    a.cfg.Model,
		"history":  len(req.ChatHistory),
	})
	defer span.End()

	messages := make([]anthropic.Message, 0, len(req.ChatHistory)+1)
	for _, t := range req.ChatHistory {
		role := anthropic.RoleUser
		if t.Role == "assistant" {
			role = anthropic.RoleAssistant
		}
		messages = append(messages, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(t.Content)},
		})
	}
	messages = append(messages, anthropic.Message{
		Role:    anthropic.RoleUser,
		Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(req.Input)},
	})

	temperature := float32(*a.cfg.Temperature)
	defs := a.toolDefs()
	for round := 0; round < a.cfg.MaxToolRounds; round++ {
		start := time.Now()
		resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
			Model:       anthropic.Model(a.cfg.Model),
			MultiSystem: []anthropic.MessageSystemPart{{Type: "text", Text: SystemPrompt(a.cfg.Profile, a.now())}},
			Messages:    messages,
			MaxTokens:   defaultMaxTokens,
			Temperature: &temperature,
			Tools:       defs,
		})
		observability.RecordLLMCall(ProviderAnthropic, time.Since(start))
		if err != nil {
			tracing.EndSpan(span, err)
			return assistant.AgentResponse{}, err
		}

		var (
			text    strings.Builder
			results []anthropic.MessageContent
		)
		for _, block := range resp.Content {
			switch block.Type {
			case anthropic.MessagesContentTypeText:
				if block.Text != nil {
					text.WriteString(*block.Text)
				}
			case "tool_use":
				if block.MessageContentToolUse == nil || a.tools == nil {
					continue
				}
				a.log.Debug().Str("tool", block.Name).Int("round", round).Msg("model requested tool")
				out, failed := a.tools.Call(ctx, block.Name, string(block.Input))
				results = append(results, anthropic.NewToolResultMessageContent(block.ID, out, failed))
			}
		}
		if len(results) == 0 {
			return assistant.AgentResponse{Output: text.String()}, nil
		}

		messages = append(messages,
			anthropic.Message{Role: anthropic.RoleAssistant, Content: resp.Content},
			anthropic.Message{Role: anthropic.RoleUser, Content: results},
		)
	}

	tracing.EndSpan(span, ErrToolRounds)
	return assistant.AgentResponse{}, ErrToolRounds
}

func (a *AnthropicAgent) toolDefs() []anthropic.ToolDefinition {
	if a.tools == nil {
		return nil
	}
	defs := make([]anthropic.ToolDefinition, 0, len(a.tools.Tools()))
	for _, t := range a.tools.Tools() {
		defs = append(defs, anthropic.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters(),
		})
	}
	return defs
}
