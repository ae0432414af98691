package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Server hosts the health probes, the metrics endpoint and the API
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// NewServer creates a server listening on addr. api, when not nil, serves
// every path not claimed by the health and metrics endpoints.
func NewServer(addr string, health *HealthChecker, api http.Handler, log zerolog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", health.Handler())
	mux.HandleFunc("GET /health/live", LivenessHandler())
	mux.HandleFunc("GET /health/ready", health.ReadinessHandler())
	mux.Handle("GET /metrics", MetricsHandler())
	if api != nil {
		mux.Handle("/", api)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       10 * time.Second,
			// Smart briefings and chat turns wait on the language model
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		log: log,
	}
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
