package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aixgo-dev/dailyagent/internal/llm"
)

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// applyEnv overrides fields from environment variables. Unset and empty
// variables leave the field alone.
func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.stringVar("ENVIRONMENT", &c.Environment)
	e.stringVar("LOG_LEVEL", &c.LogLevel)
	e.stringVar("HOST", &c.Server.Host)
	e.intVar("PORT", &c.Server.Port)

	e.stringVar("MCP_SERVER_URL", &c.ToolServer.URL)
	e.durationVar("MCP_SERVER_TIMEOUT", &c.ToolServer.Timeout)
	e.durationVar("HEALTH_CHECK_TIMEOUT", &c.ToolServer.HealthTimeout)
	e.intVar("POOL_MAX_CONNECTIONS", &c.ToolServer.MaxConnections)
	e.intVar("POOL_MAX_IDLE", &c.ToolServer.MaxIdle)
	e.durationVar("POOL_KEEPALIVE", &c.ToolServer.KeepAlive)

	e.intVar("MAX_RETRIES", &c.Retry.MaxRetries)
	e.durationVar("RETRY_BASE_DELAY", &c.Retry.BaseDelay)
	e.durationVar("RETRY_MAX_DELAY", &c.Retry.MaxDelay)
	e.floatVar("RETRY_EXPONENTIAL_BASE", &c.Retry.ExponentialBase)

	e.boolVar("ENABLE_MEMORY", &c.Memory.Enabled)
	e.durationVar("SESSION_MAX_AGE", &c.Memory.MaxAge)
	e.intVar("SESSION_MAX_COUNT", &c.Memory.MaxSessions)
	e.intVar("CONTEXT_MESSAGE_LIMIT", &c.Memory.ContextLimit)

	modelSet := e.stringVar("LLM_MODEL", &c.LLM.Model)
	e.stringVar("DEFAULT_LLM", &c.LLM.Provider)
	e.floatVar("LLM_TEMPERATURE", &c.LLM.Temperature)
	e.stringVar("OPENAI_API_KEY", &c.LLM.OpenAIKey)
	e.stringVar("ANTHROPIC_API_KEY", &c.LLM.AnthropicKey)
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
	if !modelSet && c.LLM.Provider == llm.ProviderAnthropic && c.LLM.Model == llm.DefaultOpenAIModel {
		c.LLM.Model = llm.DefaultAnthropicModel
	}

	e.stringVar("USER_NAME", &c.User.UserName)
	e.stringVar("USER_LOCATION", &c.User.Location)
	e.stringVar("DEFAULT_COMMUTE_ORIGIN", &c.User.CommuteOrigin)
	e.stringVar("DEFAULT_COMMUTE_DESTINATION", &c.User.CommuteDestination)

	e.intVar("RATE_LIMIT_PER_MINUTE", &c.RateLimit.PerMinute)
	e.intVar("CHAT_RATE_LIMIT_PER_MINUTE", &c.RateLimit.ChatPerMinute)
	e.intVar("BRIEFING_RATE_LIMIT_PER_MINUTE", &c.RateLimit.BriefingPerMinute)
	e.stringVar("REDIS_ADDR", &c.RateLimit.RedisAddr)
	e.boolVar("TRUST_FORWARDED_FOR", &c.RateLimit.TrustForwardedFor)

	e.stringVar("BRIEFING_SCHEDULE", &c.Briefing.Schedule)

	return e.err
}

// envReader keeps the first parse error so callers can chain reads.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) fail(key, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}

func (e *envReader) stringVar(key string, dst *string) bool {
	v, ok := e.get(key)
	if ok {
		*dst = v
	}
	return ok
}

func (e *envReader) intVar(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) floatVar(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = f
}

func (e *envReader) boolVar(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = b
}

// durationVar accepts a Go duration ("45s", "1m30s") or a plain number of
// seconds ("45", "0.5").
func (e *envReader) durationVar(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = time.Duration(f * float64(time.Second))
}
