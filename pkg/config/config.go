package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aixgo-dev/dailyagent/internal/llm"
	"github.com/aixgo-dev/dailyagent/pkg/retry"
	"github.com/aixgo-dev/dailyagent/pkg/session"
	"github.com/aixgo-dev/dailyagent/pkg/toolclient"
	"github.com/aixgo-dev/dailyagent/pkg/tools"
)

// Maximum accepted config file size (1MB)
const maxConfigSize = 1 << 20

// ErrMissingAPIKey is returned by Validate when production runs without a
// key for the selected language model provider.
var ErrMissingAPIKey = errors.New("missing API key for the selected LLM provider")

// Config represents the application configuration
type Config struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	Server     ServerConfig     `yaml:"server"`
	ToolServer ToolServerConfig `yaml:"tool_server"`
	Retry      retry.Policy     `yaml:"retry"`
	Memory     MemoryConfig     `yaml:"memory"`
	LLM        LLMConfig        `yaml:"llm"`
	User       llm.Profile      `yaml:"user"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Briefing   BriefingConfig   `yaml:"briefing"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ToolServerConfig describes the remote tool server and the pool used to
// reach it
type ToolServerConfig struct {
	URL            string        `yaml:"url"`
	Timeout        time.Duration `yaml:"timeout"`
	HealthTimeout  time.Duration `yaml:"health_timeout"`
	MaxConnections int           `yaml:"max_connections"`
	MaxIdle        int           `yaml:"max_idle"`
	KeepAlive      time.Duration `yaml:"keepalive"`
}

// MemoryConfig holds conversation memory settings
type MemoryConfig struct {
	Enabled      bool          `yaml:"enabled"`
	MaxAge       time.Duration `yaml:"max_age"`
	MaxSessions  int           `yaml:"max_sessions"`
	ContextLimit int           `yaml:"context_limit"`
}

// LLMConfig selects the language model
type LLMConfig struct {
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	Temperature  float64       `yaml:"temperature"`
	Timeout      time.Duration `yaml:"timeout"`
	OpenAIKey    string        `yaml:"openai_key"`
	AnthropicKey string        `yaml:"anthropic_key"`
}

// RateLimitConfig holds per-minute request budgets; zero disables a limit.
// RedisAddr switches the limiter to a shared Redis counter.
type RateLimitConfig struct {
	PerMinute         int    `yaml:"per_minute"`
	ChatPerMinute     int    `yaml:"chat_per_minute"`
	BriefingPerMinute int    `yaml:"briefing_per_minute"`
	RedisAddr         string `yaml:"redis_addr"`
	TrustForwardedFor bool   `yaml:"trust_forwarded_for"`
}

// BriefingConfig schedules the periodic smart briefing
type BriefingConfig struct {
	// Schedule is a cron spec; empty disables the job.
	Schedule string `yaml:"schedule"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	sc := session.DefaultConfig()
	opts := toolclient.DefaultOptions()
	prefs := tools.DefaultPreferences()

	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Server:      ServerConfig{Host: "0.0.0.0", Port: 8000},
		ToolServer: ToolServerConfig{
			URL:            "http://localhost:8001",
			Timeout:        opts.Timeout,
			HealthTimeout:  tools.DefaultHealthTimeout,
			MaxConnections: opts.MaxConns,
			MaxIdle:        opts.MaxIdleConns,
			KeepAlive:      opts.IdleConnTimeout,
		},
		Retry: retry.DefaultPolicy(),
		Memory: MemoryConfig{
			Enabled:      sc.Enabled,
			MaxAge:       sc.MaxAge,
			MaxSessions:  sc.MaxSessions,
			ContextLimit: 10,
		},
		LLM: LLMConfig{
			Provider:    llm.ProviderOpenAI,
			Model:       llm.DefaultOpenAIModel,
			Temperature: llm.DefaultTemperature,
			Timeout:     llm.DefaultTimeout,
		},
		User: llm.Profile{
			UserName:           "Kevin",
			Location:           prefs.Location,
			CommuteOrigin:      prefs.CommuteOrigin,
			CommuteDestination: prefs.CommuteDestination,
		},
		RateLimit: RateLimitConfig{
			PerMinute:         60,
			ChatPerMinute:     10,
			BriefingPerMinute: 20,
		},
	}
}

// Load builds the configuration: .env is loaded into the environment when
// present, then the optional YAML file at path is read over the defaults,
// then environment variables override both.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads configuration from a YAML file without consulting the
// environment.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.readFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxConfigSize+1))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigSize {
		return fmt.Errorf("config file too large (max %d bytes)", maxConfigSize)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.ToolServer.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("tool_server.url must be an absolute http(s) URL, got %q", c.ToolServer.URL)
	}
	if c.ToolServer.Timeout <= 0 || c.ToolServer.HealthTimeout <= 0 {
		return errors.New("tool server timeouts must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if c.Memory.MaxSessions <= 0 || c.Memory.MaxAge <= 0 {
		return errors.New("memory limits must be positive")
	}
	if rl := c.RateLimit; rl.PerMinute < 0 || rl.ChatPerMinute < 0 || rl.BriefingPerMinute < 0 {
		return errors.New("rate limits must not be negative")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature must be between 0 and 2, got %g", c.LLM.Temperature)
	}

	switch c.LLM.Provider {
	case llm.ProviderOpenAI, llm.ProviderAnthropic:
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	if c.IsProduction() && c.providerKey() == "" {
		return fmt.Errorf("%w: %s", ErrMissingAPIKey, c.LLM.Provider)
	}
	return nil
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func (c *Config) providerKey() string {
	if c.LLM.Provider == llm.ProviderAnthropic {
		return c.LLM.AnthropicKey
	}
	return c.LLM.OpenAIKey
}

// RetryPolicy returns the backoff policy for tool calls.
func (c *Config) RetryPolicy() retry.Policy {
	return c.Retry
}

// ToolClientOptions returns the pooled client settings.
func (c *Config) ToolClientOptions() toolclient.Options {
	opts := toolclient.DefaultOptions()
	opts.Timeout = c.ToolServer.Timeout
	opts.MaxConns = c.ToolServer.MaxConnections
	opts.MaxIdleConns = c.ToolServer.MaxIdle
	opts.IdleConnTimeout = c.ToolServer.KeepAlive
	opts.Retry = c.Retry
	return opts
}

// SessionConfig returns the session store settings.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		Enabled:     c.Memory.Enabled,
		MaxAge:      c.Memory.MaxAge,
		MaxSessions: c.Memory.MaxSessions,
	}
}

// Preferences returns the gateway defaults derived from the user profile.
func (c *Config) Preferences() tools.Preferences {
	prefs := tools.DefaultPreferences()
	prefs.Location = c.User.Location
	prefs.CommuteOrigin = c.User.CommuteOrigin
	prefs.CommuteDestination = c.User.CommuteDestination
	prefs.HealthTimeout = c.ToolServer.HealthTimeout
	return prefs
}

// AgentConfig returns the language model settings.
func (c *Config) AgentConfig() llm.Config {
	temperature := c.LLM.Temperature
	return llm.Config{
		Provider:     c.LLM.Provider,
		Model:        c.LLM.Model,
		Temperature:  &temperature,
		OpenAIKey:    c.LLM.OpenAIKey,
		AnthropicKey: c.LLM.AnthropicKey,
		Timeout:      c.LLM.Timeout,
		Profile:      c.User,
	}
}
