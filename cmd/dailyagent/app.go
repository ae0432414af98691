package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aixgo-dev/dailyagent/internal/api"
	"github.com/aixgo-dev/dailyagent/internal/llm"
	"github.com/aixgo-dev/dailyagent/internal/ratelimit"
	"github.com/aixgo-dev/dailyagent/pkg/assistant"
	"github.com/aixgo-dev/dailyagent/pkg/config"
	"github.com/aixgo-dev/dailyagent/pkg/history"
	"github.com/aixgo-dev/dailyagent/pkg/observability"
	"github.com/aixgo-dev/dailyagent/pkg/session"
	"github.com/aixgo-dev/dailyagent/pkg/toolclient"
	"github.com/aixgo-dev/dailyagent/pkg/tools"
)

// app holds the wired components shared by every command.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	client  *toolclient.Client
	gateway *tools.Gateway
	coord   *assistant.Coordinator
	briefer *assistant.Briefer
	health  *observability.HealthChecker
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	client := toolclient.New(cfg.ToolClientOptions(), log.With().Str("component", "toolclient").Logger())
	gw := tools.New(client, cfg.ToolServer.URL, cfg.Preferences(), log.With().Str("component", "tools").Logger())

	agent, err := llm.NewAgent(cfg.AgentConfig(), llm.NewToolset(gw, log), log.With().Str("component", "llm").Logger())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	store := session.NewStore(cfg.SessionConfig(), session.WithLogger(log))
	formatter := history.NewFormatter(history.WithLimit(cfg.Memory.ContextLimit))

	health := observability.NewHealthChecker(Version)
	health.RegisterCheck(observability.PingCheck())
	health.RegisterCheck(observability.ToolServerCheck(gw.Health, cfg.ToolServer.HealthTimeout))

	return &app{
		cfg:     cfg,
		log:     log,
		client:  client,
		gateway: gw,
		coord:   assistant.New(store, formatter, agent, assistant.WithLogger(log)),
		briefer: assistant.NewBriefer(gw, agent,
			assistant.WithUserName(cfg.User.UserName),
			assistant.WithBrieferLogger(log),
		),
		health: health,
	}, nil
}

func (a *app) close() {
	a.client.Close()
}

// limits builds the per-route limiters, shared through Redis when an
// address is configured. The returned func releases the Redis client.
func (a *app) limits(ctx context.Context) (api.Limits, func(), error) {
	rl := a.cfg.RateLimit
	if rl.RedisAddr == "" {
		return api.Limits{
			Default:           ratelimit.NewLocal(rl.PerMinute),
			Chat:              ratelimit.NewLocal(rl.ChatPerMinute),
			Briefing:          ratelimit.NewLocal(rl.BriefingPerMinute),
			TrustForwardedFor: rl.TrustForwardedFor,
		}, func() {}, nil
	}

	client, err := ratelimit.Dial(ctx, rl.RedisAddr)
	if err != nil {
		return api.Limits{}, nil, err
	}
	a.health.RegisterCheck(observability.ExternalServiceCheck("redis", false, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
	a.log.Info().Str("addr", rl.RedisAddr).Msg("using redis rate limiter")

	return api.Limits{
		Default:           ratelimit.NewRedis(client, "default", rl.PerMinute),
		Chat:              ratelimit.NewRedis(client, "chat", rl.ChatPerMinute),
		Briefing:          ratelimit.NewRedis(client, "briefing", rl.BriefingPerMinute),
		TrustForwardedFor: rl.TrustForwardedFor,
	}, func() { _ = client.Close() }, nil
}
