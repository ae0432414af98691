// Package api serves the assistant over HTTP: conversational turns, morning
// briefings and session housekeeping, each route behind its own rate limit.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aixgo-dev/dailyagent/internal/ratelimit"
	"github.com/aixgo-dev/dailyagent/pkg/assistant"
)

// Maximum accepted request body (64KB)
const maxBodySize = 64 << 10

// Limits holds the limiter of each route group. A nil limiter admits
// everything.
type Limits struct {
	Default  ratelimit.Limiter
	Chat     ratelimit.Limiter
	Briefing ratelimit.Limiter

	// TrustForwardedFor keys clients on X-Forwarded-For. Enable only
	// behind a proxy that overwrites the header.
	TrustForwardedFor bool
}

// Server is the HTTP API.
type Server struct {
	coord   *assistant.Coordinator
	briefer *assistant.Briefer
	limits  Limits
	log     zerolog.Logger
	now     func() time.Time
}

// New creates the API server.
func New(coord *assistant.Coordinator, briefer *assistant.Briefer, limits Limits, log zerolog.Logger) *Server {
	return &Server{
		coord:   coord,
		briefer: briefer,
		limits:  limits,
		log:     log,
		now:     time.Now,
	}
}

// Handler returns the routed handler wrapped in the request id, logging and
// metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /chat", s.limit("chat", s.limits.Chat, http.HandlerFunc(s.handleChat)))
	mux.Handle("GET /briefing", s.limit("briefing", s.limits.Briefing, http.HandlerFunc(s.handleBriefing)))
	mux.Handle("GET /sessions", s.limit("default", s.limits.Default, http.HandlerFunc(s.handleSessionStats)))
	mux.Handle("GET /sessions/{id}", s.limit("default", s.limits.Default, http.HandlerFunc(s.handleSessionInfo)))
	mux.Handle("DELETE /sessions/{id}", s.limit("default", s.limits.Default, http.HandlerFunc(s.handleSessionDelete)))

	return requestID(s.instrument(mux))
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Response   string    `json:"response"`
	SessionID  string    `json:"session_id"`
	NewSession bool      `json:"new_session"`
	Timestamp  time.Time `json:"timestamp"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !s.coord.Available() {
		writeError(w, http.StatusServiceUnavailable, "Conversational AI not available",
			"configure an API key for the selected LLM provider")
		return
	}

	var req chatRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	result, err := s.coord.Chat(r.Context(), req.Message, req.SessionID)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, "Message is required", err.Error())
			return
		}
		s.log.Error().Err(err).Msg("chat failed")
		writeError(w, http.StatusInternalServerError, "Chat failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:   result.Response,
		SessionID:  result.SessionID,
		NewSession: result.NewSession,
		Timestamp:  s.now().UTC(),
	})
}

type basicBriefingResponse struct {
	Type      string         `json:"type"`
	Date      string         `json:"date,omitempty"`
	Data      any            `json:"data"`
	Errors    map[string]any `json:"errors,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := strings.ToLower(q.Get("type"))
	if kind == "" {
		kind = "basic"
	}
	date := q.Get("date")
	if date != "" {
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", "date must be YYYY-MM-DD")
			return
		}
	}

	switch kind {
	case "basic":
		snap := s.briefer.Basic(r.Context(), date)
		resp := basicBriefingResponse{Type: kind, Date: date, Data: snap, Timestamp: s.now().UTC()}
		if errs := snap.Errors(); len(errs) > 0 {
			resp.Errors = make(map[string]any, len(errs))
			for name, err := range errs {
				resp.Errors[name] = err.Error()
			}
		}
		writeJSON(w, http.StatusOK, resp)
	case "smart":
		writeJSON(w, http.StatusOK, s.briefer.Smart(r.Context(), date))
	default:
		writeError(w, http.StatusBadRequest, "Invalid briefing type", "type must be basic or smart")
	}
}

func (s *Server) handleSessionStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Sessions().Stats())
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	info, ok := s.coord.Sessions().Info(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found", "")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if !s.coord.Forget(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "Session not found", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
	Details    string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{Error: message, StatusCode: status, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
