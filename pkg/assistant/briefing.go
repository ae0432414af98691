package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	tracing "github.com/aixgo-dev/dailyagent/internal/observability"
	"github.com/aixgo-dev/dailyagent/pkg/tools"
)

const smartBriefingPrompt = "Give me my complete morning briefing%s with weather, calendar, todos, and commute information. Make it conversational and highlight the most important things."

// BriefingSource supplies the data a briefing is built from.
type BriefingSource interface {
	MorningData(ctx context.Context, date string) tools.MorningSnapshot
	Financial(ctx context.Context, req tools.FinancialRequest) (*tools.FinancialQuotes, error)
}

// Briefing is a rendered morning briefing.
type Briefing struct {
	Date string `json:"date,omitempty"`
	Text string `json:"briefing"`
	// Generated is true when the agent wrote the text.
	Generated   bool      `json:"generated"`
	GeneratedAt time.Time `json:"timestamp"`
}

// Briefer produces morning briefings.
type Briefer struct {
	source   BriefingSource
	agent    Agent
	userName string
	log      zerolog.Logger
	now      func() time.Time
}

// BrieferOption configures a Briefer.
type BrieferOption func(*Briefer)

// WithUserName sets the name used in greetings.
func WithUserName(name string) BrieferOption {
	return func(b *Briefer) {
		if name != "" {
			b.userName = name
		}
	}
}

// WithBrieferLogger sets the briefer logger.
func WithBrieferLogger(log zerolog.Logger) BrieferOption {
	return func(b *Briefer) {
		b.log = log
	}
}

// NewBriefer creates a briefer. agent may be nil.
func NewBriefer(source BriefingSource, agent Agent, opts ...BrieferOption) *Briefer {
	b := &Briefer{
		source:   source,
		agent:    agent,
		userName: "there",
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Basic returns the raw morning data for date ("" means today).
func (b *Briefer) Basic(ctx context.Context, date string) tools.MorningSnapshot {
	return b.source.MorningData(ctx, date)
}

// Smart asks the agent for a conversational briefing. Without an agent, or
// when it fails, a plain-text summary of the morning data is returned.
func (b *Briefer) Smart(ctx context.Context, date string) Briefing {
	ctx, span := tracing.StartSpan(ctx, "assistant.smart_briefing", map[string]any{"date": date})
	defer span.End()

	out := Briefing{Date: date}
	if b.agent != nil {
		resp, err := b.agent.Invoke(ctx, AgentRequest{Input: briefingPrompt(date)})
		switch {
		case err != nil:
			tracing.EndSpan(span, err)
			b.log.Error().Err(err).Msg("error generating briefing, falling back to summary")
		case strings.TrimSpace(resp.Output) != "":
			out.Text = strings.TrimSpace(resp.Output)
			out.Generated = true
			out.GeneratedAt = b.now().UTC()
			return out
		}
	}

	out.Text = b.Summary(ctx, date)
	out.GeneratedAt = b.now().UTC()
	return out
}

// Summary renders the morning data as plain text. Unavailable sources are
// marked as such rather than omitted.
func (b *Briefer) Summary(ctx context.Context, date string) string {
	snap := b.source.MorningData(ctx, date)
	quotes, err := b.source.Financial(ctx, tools.FinancialRequest{})
	if err != nil {
		b.log.Warn().Err(err).Msg("market data unavailable for briefing")
	}
	return renderSummary(b.userName, date, snap, quotes)
}

func briefingPrompt(date string) string {
	when := ""
	if date != "" {
		when = " for " + date
	}
	return fmt.Sprintf(smartBriefingPrompt, when)
}

func renderSummary(name, date string, snap tools.MorningSnapshot, quotes *tools.FinancialQuotes) string {
	const na = "unavailable"

	weather := na
	if w := snap.Weather.Value; snap.Weather.OK() {
		weather = fmt.Sprintf("%s - %.0f°F", w.Summary, w.TempHi)
	}

	commute := na
	if c := snap.Commute.Value; snap.Commute.OK() {
		if best := c.BestMinutes(); best > 0 {
			commute = fmt.Sprintf("%.0f min", best)
		} else {
			commute = "no estimate"
		}
		if c.Recommendation != "" {
			commute += " (" + c.Recommendation + ")"
		}
	}

	calendar := na
	if snap.Calendar.OK() {
		when := "today"
		if date != "" {
			when = "on " + date
		}
		calendar = fmt.Sprintf("%d events %s", snap.Calendar.Value.TotalEvents, when)
	}

	todos := na
	if snap.Todos.OK() {
		todos = fmt.Sprintf("%d pending tasks", snap.Todos.Value.PendingCount)
	}

	lines := []string{
		fmt.Sprintf("Good morning, %s!", name),
		"",
		"Weather: " + weather,
		"Commute: " + commute,
		"Calendar: " + calendar,
		"Todos: " + todos,
	}
	if quotes != nil && quotes.Summary != "" {
		lines = append(lines, "Markets: "+quotes.Summary)
	}
	lines = append(lines, "", "Have a great day!")
	return strings.Join(lines, "\n")
}
