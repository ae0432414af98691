package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aixgo-dev/dailyagent/internal/api"
	tracing "github.com/aixgo-dev/dailyagent/internal/observability"
	"github.com/aixgo-dev/dailyagent/pkg/observability"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with health and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), o)
		},
	}
}

func runServe(ctx context.Context, o *rootOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := o.log
	log.Info().Str("version", Version).Str("environment", o.cfg.Environment).Msg("starting dailyagent")

	if err := tracing.Init(tracing.ConfigFromEnv(), log); err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()
	observability.InitMetrics()

	a, err := newApp(o.cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	limits, closeLimits, err := a.limits(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up rate limiting: %w", err)
	}
	defer closeLimits()

	if spec := o.cfg.Briefing.Schedule; spec != "" {
		c, err := scheduleBriefings(ctx, a, spec)
		if err != nil {
			return err
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	handler := api.New(a.coord, a.briefer, limits, log.With().Str("component", "api").Logger()).Handler()
	srv := observability.NewServer(o.cfg.Addr(), a.health, handler, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	log.Info().Msg("dailyagent stopped")
	return nil
}

// scheduleBriefings logs a smart briefing on every tick of spec.
func scheduleBriefings(ctx context.Context, a *app, spec string) (*cron.Cron, error) {
	cl := cronLogger{log: a.log.With().Str("component", "cron").Logger()}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	_, err := c.AddFunc(spec, func() {
		jctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		b := a.briefer.Smart(jctx, "")
		a.log.Info().
			Bool("generated", b.Generated).
			Str("briefing", b.Text).
			Msg("scheduled morning briefing")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid briefing schedule %q: %w", spec, err)
	}
	a.log.Info().Str("schedule", spec).Msg("morning briefing scheduled")
	return c, nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
