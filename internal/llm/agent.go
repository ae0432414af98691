// Package llm implements the language-model agents behind the assistant:
// OpenAI and Anthropic chat models driving the tool gateway through a
// bounded tool-calling loop.
package llm

import (
	"errors"
	"fmt"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/aixgo-dev/dailyagent/pkg/assistant"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultTemperature    = 0.1
	DefaultTimeout        = 60 * time.Second
	DefaultMaxToolRounds  = 5
	defaultMaxTokens      = 4096
)

// ErrToolRounds is returned when the model keeps requesting tools past the
// configured number of rounds.
var ErrToolRounds = errors.New("tool call limit reached without a final answer")

// Config selects and tunes the agent.
type Config struct {
	Provider      string
	Model         string
	// Temperature is the sampling temperature; nil selects
	// DefaultTemperature and zero is kept.
	Temperature   *float64
	OpenAIKey     string
	AnthropicKey  string
	Timeout       time.Duration
	MaxToolRounds int
	Profile       Profile
}

func (c Config) withDefaults() Config {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.Model == "" {
		c.Model = DefaultOpenAIModel
		if c.Provider == ProviderAnthropic {
			c.Model = DefaultAnthropicModel
		}
	}
	if c.Temperature == nil {
		t := DefaultTemperature
		c.Temperature = &t
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = DefaultMaxToolRounds
	}
	return c
}

// NewAgent builds the agent of the configured provider. It returns a nil
// agent and no error when that provider has no API key.
func NewAgent(cfg Config, ts *Toolset, log zerolog.Logger) (assistant.Agent, error) {
	cfg = cfg.withDefaults()

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.OpenAIKey == "" {
			log.Warn().Msg("OPENAI_API_KEY not set, conversations are disabled")
			return nil, nil
		}
		return NewOpenAIAgent(openai.NewClient(cfg.OpenAIKey), cfg, ts, log), nil
	case ProviderAnthropic:
		if cfg.AnthropicKey == "" {
			log.Warn().Msg("ANTHROPIC_API_KEY not set, conversations are disabled")
			return nil, nil
		}
		return NewAnthropicAgent(anthropic.NewClient(cfg.AnthropicKey), cfg, ts, log), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}
