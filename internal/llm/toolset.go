package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	tracing "github.com/aixgo-dev/dailyagent/internal/observability"
	"github.com/aixgo-dev/dailyagent/pkg/toolclient"
	"github.com/aixgo-dev/dailyagent/pkg/tools"
)

// Toolset exposes the tool gateway to a language model. Every call returns
// text for the model; failures are flagged rather than returned as errors.
type Toolset struct {
	gw    *tools.Gateway
	tools []Tool
	index map[string]int
	log   zerolog.Logger
}

// NewToolset builds the agent-facing tools on top of gw.
func NewToolset(gw *tools.Gateway, log zerolog.Logger) *Toolset {
	ts := &Toolset{gw: gw, log: log}
	ts.tools = []Tool{
		{
			Name:        "get_weather",
			Description: "Get weather forecast for a location. Use this when users ask about weather, temperature, or conditions.",
			Schema: objectSchema(`{
				"location": {"type": "string", "description": "Location to get weather for (city, state/country)"},
				"when": {"type": "string", "enum": ` + enumJSON(tools.WeatherTimes) + `, "description": "When to get weather"}
			}`),
			Fn: ts.weather,
		},
		{
			Name:        "get_calendar",
			Description: "Get calendar events for a specific date. Use when users ask about meetings, appointments, or schedule.",
			Schema: objectSchema(`{
				"date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$", "description": "Date to get events for in YYYY-MM-DD format"}
			}`, "date"),
			Fn: ts.calendar,
		},
		{
			Name:        "get_calendar_range",
			Description: "Get calendar events for a date range. Use when users ask about their week, multiple days, or date ranges. Much more efficient than multiple single-date calls.",
			Schema: objectSchema(`{
				"start_date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$", "description": "Start date of the range in YYYY-MM-DD format"},
				"end_date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$", "description": "End date of the range in YYYY-MM-DD format"}
			}`, "start_date", "end_date"),
			Fn: ts.calendarRange,
		},
		{
			Name:        "get_todos",
			Description: "Get todo/task items from different buckets. Use when users ask about tasks, todos, or what they need to do.",
			Schema: objectSchema(`{
				"bucket": {"type": "string", "enum": ` + enumJSON(tools.TodoBuckets) + `, "description": "Todo bucket"}
			}`),
			Fn: ts.todos,
		},
		{
			Name:        "get_commute",
			Description: "Get commute/travel information between locations. Use when users ask about travel time, routes, or transportation.",
			Schema: objectSchema(`{
				"origin": {"type": "string", "description": "Starting location"},
				"destination": {"type": "string", "description": "Destination location"},
				"mode": {"type": "string", "enum": ` + enumJSON(tools.TransportModes) + `, "description": "Transport mode"}
			}`),
			Fn: ts.commute,
		},
		{
			Name:        "get_commute_options",
			Description: "Compare driving with Caltrain plus shuttle for the work commute. Use when users ask how to get to or from work, or whether to drive or take the train.",
			Schema: objectSchema(`{
				"direction": {"type": "string", "enum": ` + enumJSON(tools.CommuteDirections) + `, "description": "Commute direction"},
				"departure_time": {"type": "string", "description": "Preferred departure time, e.g. 8:00 AM"},
				"include_driving": {"type": "boolean"},
				"include_transit": {"type": "boolean"}
			}`, "direction"),
			Fn: ts.commuteOptions,
		},
		{
			Name:        "get_shuttle_schedule",
			Description: "Get the shuttle timetable between two stops.",
			Schema: objectSchema(`{
				"origin": {"type": "string", "enum": ` + enumJSON(tools.ShuttleStops) + `},
				"destination": {"type": "string", "enum": ` + enumJSON(tools.ShuttleStops) + `},
				"departure_time": {"type": "string", "description": "Earliest departure, e.g. 8:00 AM"}
			}`, "origin", "destination"),
			Fn: ts.shuttle,
		},
		{
			Name: "get_financial_data",
			Description: "Get financial data for stocks and cryptocurrencies. Use when users ask about stock prices, crypto prices, portfolio data, tracked symbols, market information, or any financial/investment questions. Default tracked symbols: " +
				strings.Join(gw.Preferences().FinancialSymbols, ", ") + ".",
			Schema: objectSchema(`{
				"symbols": {"type": "array", "items": {"type": "string"}, "description": "Stock/crypto symbols like ['MSFT', 'BTC']. Defaults to the tracked portfolio."},
				"data_type": {"type": "string", "enum": ` + enumJSON(tools.FinancialDataTypes) + `}
			}`),
			Fn: ts.financial,
		},
		{
			Name:        "get_morning_briefing",
			Description: "Get a complete morning briefing with weather, calendar, todos, and commute. Use when users ask about their day, morning routine, or want a summary.",
			Schema:      objectSchema(`{}`),
			Fn:          ts.morningBriefing,
		},
	}

	ts.index = make(map[string]int, len(ts.tools))
	for i, t := range ts.tools {
		ts.index[t.Name] = i
	}
	return ts
}

// Tools returns the tool definitions in a stable order.
func (ts *Toolset) Tools() []Tool {
	return ts.tools
}

// Call validates rawArgs and runs the named tool. Failures are reported to
// the model as text with failed set.
func (ts *Toolset) Call(ctx context.Context, name, rawArgs string) (out string, failed bool) {
	ctx, span := tracing.StartSpan(ctx, "llm.tool", map[string]any{"tool": name})
	defer span.End()

	i, ok := ts.index[name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", name), true
	}
	tool := ts.tools[i]

	args, err := decodeArgs(rawArgs)
	if err == nil {
		err = tool.ValidateArgs(args)
	}
	if err != nil {
		tracing.EndSpan(span, err)
		ts.log.Warn().Err(err).Str("tool", name).Msg("rejected tool call arguments")
		return fmt.Sprintf("Error: %v", err), true
	}

	out, err = tool.Fn(ctx, args)
	if err != nil {
		tracing.EndSpan(span, err)
		ts.log.Warn().Err(err).Str("tool", name).Int("status", toolclient.StatusCode(err)).Msg("tool call failed")
		if toolclient.IsClientFault(err) {
			return fmt.Sprintf("Error calling %s: the tool server rejected the request (status %d)", name, toolclient.StatusCode(err)), true
		}
		return fmt.Sprintf("Error calling %s: %v", name, err), true
	}
	return out, false
}

func (ts *Toolset) weather(ctx context.Context, args map[string]any) (string, error) {
	w, err := ts.gw.Weather(ctx, tools.WeatherRequest{
		Location: stringArg(args, "location"),
		When:     stringArg(args, "when"),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Weather for %s: %s, High: %.0f°F, Low: %.0f°F, Precipitation: %.0f%%",
		w.Location, w.Summary, w.TempHi, w.TempLo, w.PrecipChance), nil
}

func (ts *Toolset) calendar(ctx context.Context, args map[string]any) (string, error) {
	date := stringArg(args, "date")
	day, err := ts.gw.CalendarEvents(ctx, date)
	if err != nil {
		return "", err
	}
	if day.TotalEvents == 0 {
		return "No events scheduled for " + date, nil
	}

	lines := []string{fmt.Sprintf("%d events on %s:", day.TotalEvents, date)}
	for _, e := range firstN(day.Events, 3) {
		lines = append(lines, "- "+eventLine(e))
	}
	if day.TotalEvents > 3 {
		lines = append(lines, fmt.Sprintf("... and %d more events", day.TotalEvents-3))
	}
	return strings.Join(lines, "\n"), nil
}

func (ts *Toolset) calendarRange(ctx context.Context, args map[string]any) (string, error) {
	req := tools.CalendarRangeRequest{
		StartDate: stringArg(args, "start_date"),
		EndDate:   stringArg(args, "end_date"),
	}
	rng, err := ts.gw.CalendarRange(ctx, req)
	if err != nil {
		return "", err
	}
	if rng.TotalEvents == 0 {
		return fmt.Sprintf("No events scheduled from %s to %s", req.StartDate, req.EndDate), nil
	}

	byDate := make(map[string][]tools.Event)
	for _, e := range rng.Events {
		d := e.Date
		if d == "" && len(e.StartTime) >= len(tools.DateLayout) {
			d = e.StartTime[:len(tools.DateLayout)]
		}
		byDate[d] = append(byDate[d], e)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	lines := []string{fmt.Sprintf("%d events from %s to %s:", rng.TotalEvents, req.StartDate, req.EndDate)}
	for _, d := range dates {
		events := byDate[d]
		lines = append(lines, "", d+":")
		for _, e := range firstN(events, 3) {
			lines = append(lines, "  - "+eventLine(e))
		}
		if len(events) > 3 {
			lines = append(lines, fmt.Sprintf("  ... and %d more", len(events)-3))
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (ts *Toolset) todos(ctx context.Context, args map[string]any) (string, error) {
	bucket := stringArg(args, "bucket")
	if bucket == "" {
		bucket = ts.gw.Preferences().TodoBucket
	}
	list, err := ts.gw.Todos(ctx, tools.TodoRequest{Bucket: bucket})
	if err != nil {
		return "", err
	}
	if list.PendingCount == 0 {
		return fmt.Sprintf("No pending %s tasks", bucket), nil
	}

	var high, other []tools.TodoItem
	for _, it := range list.Items {
		if it.Priority == "high" {
			high = append(high, it)
		} else {
			other = append(other, it)
		}
	}
	lines := []string{fmt.Sprintf("%d pending %s tasks:", list.PendingCount, bucket)}
	for _, it := range firstN(high, 2) {
		lines = append(lines, "HIGH: "+it.Title)
	}
	for _, it := range firstN(other, 3) {
		p := it.Priority
		if p == "" {
			p = "medium"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(p), it.Title))
	}
	if len(list.Items) > 5 {
		lines = append(lines, fmt.Sprintf("... and %d more tasks", len(list.Items)-5))
	}
	return strings.Join(lines, "\n"), nil
}

func (ts *Toolset) commute(ctx context.Context, args map[string]any) (string, error) {
	c, err := ts.gw.Commute(ctx, tools.CommuteRequest{
		Origin:      stringArg(args, "origin"),
		Destination: stringArg(args, "destination"),
		Mode:        stringArg(args, "mode"),
	})
	if err != nil {
		return "", err
	}
	out := fmt.Sprintf("Commute from %s to %s (%s): %.0f min, %.1f miles", c.Origin, c.Destination, c.Mode, c.DurationMinutes, c.DistanceMiles)
	if c.TrafficStatus != "" {
		out += ", traffic " + c.TrafficStatus
	}
	return out, nil
}

func (ts *Toolset) commuteOptions(ctx context.Context, args map[string]any) (string, error) {
	req := tools.NewCommuteOptionsRequest(stringArg(args, "direction"))
	req.DepartureTime = stringArg(args, "departure_time")
	req.IncludeDriving = boolArg(args, "include_driving", true)
	req.IncludeTransit = boolArg(args, "include_transit", true)

	opts, err := ts.gw.CommuteOptions(ctx, req)
	if err != nil {
		return "", err
	}

	lines := []string{fmt.Sprintf("Commute options (%s):", opts.Direction)}
	if d := opts.Driving; d != nil {
		lines = append(lines, fmt.Sprintf("Driving: %.0f min via %s (traffic %s)", d.DurationMinutes, d.RouteSummary, d.TrafficStatus))
	}
	if t := opts.Transit; t != nil {
		lines = append(lines, fmt.Sprintf("Transit: %.0f min total (Caltrain %.0f min + shuttle %.0f min)",
			t.TotalDurationMinutes, t.CaltrainDurationMinutes, t.ShuttleDurationMinutes))
		for _, dep := range firstN(t.NextDepartures, 3) {
			lines = append(lines, "  "+departure(dep))
		}
	}
	if opts.Recommendation != "" {
		lines = append(lines, "Recommendation: "+opts.Recommendation)
	}
	return strings.Join(lines, "\n"), nil
}

func (ts *Toolset) shuttle(ctx context.Context, args map[string]any) (string, error) {
	sched, err := ts.gw.ShuttleSchedule(ctx, tools.ShuttleRequest{
		Origin:        stringArg(args, "origin"),
		Destination:   stringArg(args, "destination"),
		DepartureTime: stringArg(args, "departure_time"),
	})
	if err != nil {
		return "", err
	}
	if len(sched.Departures) == 0 {
		return fmt.Sprintf("No shuttles from %s to %s", sched.Origin, sched.Destination), nil
	}

	lines := []string{fmt.Sprintf("Shuttles from %s to %s:", sched.Origin, sched.Destination)}
	for _, dep := range firstN(sched.Departures, 5) {
		lines = append(lines, "- "+departure(dep))
	}
	return strings.Join(lines, "\n"), nil
}

func (ts *Toolset) financial(ctx context.Context, args map[string]any) (string, error) {
	quotes, err := ts.gw.Financial(ctx, tools.FinancialRequest{
		Symbols:  stringsArg(args, "symbols"),
		DataType: stringArg(args, "data_type"),
	})
	if err != nil {
		return "", err
	}
	if len(quotes.Data) == 0 {
		summary := quotes.Summary
		if summary == "" {
			summary = "No data available"
		}
		return "Financial data: " + summary, nil
	}

	lines := []string{"Financial Update: " + quotes.Summary}
	for _, q := range quotes.Data {
		lines = append(lines, fmt.Sprintf("%s (%s): $%.2f %s", q.Symbol, q.Name, q.Price, change(q)))
	}
	return strings.Join(lines, "\n"), nil
}

func (ts *Toolset) morningBriefing(ctx context.Context, _ map[string]any) (string, error) {
	snap := ts.gw.MorningData(ctx, "")
	if !snap.Weather.OK() && !snap.Calendar.OK() && !snap.Todos.OK() && !snap.Commute.OK() {
		return "", errors.New("no morning data available")
	}

	lines := []string{"Morning Briefing:"}
	if w := snap.Weather; w.OK() {
		lines = append(lines, fmt.Sprintf("Weather: %s - %.0f°F", w.Value.Summary, w.Value.TempHi))
	}
	if c := snap.Calendar; c.OK() {
		lines = append(lines, fmt.Sprintf("Calendar: %d events today", c.Value.TotalEvents))
	}
	if t := snap.Todos; t.OK() {
		lines = append(lines, fmt.Sprintf("Todos: %d pending tasks", t.Value.PendingCount))
	}
	if c := snap.Commute; c.OK() {
		line := fmt.Sprintf("Commute: %.0f min to work", c.Value.BestMinutes())
		if c.Value.Recommendation != "" {
			line += " (" + c.Value.Recommendation + ")"
		}
		lines = append(lines, line)
	}
	failed := snap.Errors()
	names := make([]string, 0, len(failed))
	for name := range failed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: unavailable (%v)", name, failed[name]))
	}
	if quotes, err := ts.gw.Financial(ctx, tools.FinancialRequest{}); err == nil && quotes.Summary != "" {
		lines = append(lines, "Markets: "+quotes.Summary)
	}
	return strings.Join(lines, "\n"), nil
}

func eventLine(e tools.Event) string {
	if e.Time != "" {
		return e.Title + " at " + e.Time
	}
	if _, clock, ok := strings.Cut(e.StartTime, "T"); ok && len(clock) >= 5 {
		return e.Title + " at " + clock[:5]
	}
	return e.Title + " (all day)"
}

func departure(d tools.Departure) string {
	s := d.DepartureTime + " -> " + d.ArrivalTime
	if d.TrainNumber != "" {
		s += " (train " + d.TrainNumber + ")"
	}
	return s
}

func change(q tools.Quote) string {
	if q.Change >= 0 {
		return fmt.Sprintf("+$%.2f (+%.1f%%)", q.Change, q.ChangePercent)
	}
	return fmt.Sprintf("-$%.2f (%.1f%%)", -q.Change, q.ChangePercent)
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func objectSchema(properties string, required ...string) string {
	req, _ := json.Marshal(required)
	if len(required) == 0 {
		req = []byte("[]")
	}
	return `{"type": "object", "properties": ` + properties + `, "required": ` + string(req) + `}`
}

func enumJSON(values []string) string {
	b, _ := json.Marshal(values)
	return string(b)
}
