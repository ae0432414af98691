package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/attribute"

	tracing "github.com/aixgo-dev/dailyagent/internal/observability"
)

// Slot holds the outcome of one sub-call of an aggregate: exactly one of
// Value or Err is set.
type Slot[T any] struct {
	Value *T
	Err   error
}

// OK reports whether the slot holds a value.
func (s Slot[T]) OK() bool {
	return s.Err == nil && s.Value != nil
}

// MarshalJSON renders the tool server payload, or {"error": "..."} for a
// failed slot.
func (s Slot[T]) MarshalJSON() ([]byte, error) {
	if !s.OK() {
		msg := "no data"
		if s.Err != nil {
			msg = s.Err.Error()
		}
		return json.Marshal(map[string]string{"error": msg})
	}
	if r, ok := any(s.Value).(interface{ Raw() json.RawMessage }); ok && len(r.Raw()) > 0 {
		return r.Raw(), nil
	}
	return json.Marshal(s.Value)
}

// MorningSnapshot is the aggregate used for briefings. All four slots are
// always populated.
type MorningSnapshot struct {
	Weather  Slot[WeatherReport]  `json:"weather"`
	Calendar Slot[CalendarDay]    `json:"calendar"`
	Todos    Slot[TodoList]       `json:"todos"`
	Commute  Slot[CommuteOptions] `json:"commute"`
}

// Errors returns the failed slots keyed by their JSON name.
func (m MorningSnapshot) Errors() map[string]error {
	errs := make(map[string]error)
	if !m.Weather.OK() {
		errs["weather"] = slotErr(m.Weather.Err)
	}
	if !m.Calendar.OK() {
		errs["calendar"] = slotErr(m.Calendar.Err)
	}
	if !m.Todos.OK() {
		errs["todos"] = slotErr(m.Todos.Err)
	}
	if !m.Commute.OK() {
		errs["commute"] = slotErr(m.Commute.Err)
	}
	return errs
}

func slotErr(err error) error {
	if err == nil {
		return errors.New("no data")
	}
	return err
}

// MorningData fetches weather, the calendar of date, the preferred todo
// bucket and the to_work commute options concurrently. A failing or
// panicking sub-call only marks its own slot; MorningData itself never fails.
func (g *Gateway) MorningData(ctx context.Context, date string) MorningSnapshot {
	if date == "" {
		date = g.Today()
	}
	ctx, span := tracing.StartSpan(ctx, "tools.morning_data", map[string]any{"date": date})
	defer span.End()

	var snap MorningSnapshot
	var wg conc.WaitGroup

	wg.Go(func() {
		snap.Weather = capture(g.log, "weather", func() (*WeatherReport, error) {
			return g.Weather(ctx, WeatherRequest{Location: g.prefs.Location, When: "today"})
		})
	})
	wg.Go(func() {
		snap.Calendar = capture(g.log, "calendar", func() (*CalendarDay, error) {
			return g.CalendarEvents(ctx, date)
		})
	})
	wg.Go(func() {
		snap.Todos = capture(g.log, "todos", func() (*TodoList, error) {
			return g.Todos(ctx, TodoRequest{Bucket: g.prefs.TodoBucket})
		})
	})
	wg.Go(func() {
		snap.Commute = capture(g.log, "commute", func() (*CommuteOptions, error) {
			return g.CommuteOptions(ctx, NewCommuteOptionsRequest("to_work"))
		})
	})
	wg.Wait()

	if failed := len(snap.Errors()); failed > 0 {
		span.SetAttributes(attribute.Int("failed_slots", failed))
	}
	return snap
}

// capture runs fn and converts its error or panic into a Slot.
func capture[T any](log zerolog.Logger, name string, fn func() (*T, error)) Slot[T] {
	var (
		value *T
		err   error
		pc    panics.Catcher
	)
	pc.Try(func() { value, err = fn() })
	if r := pc.Recovered(); r != nil {
		err = fmt.Errorf("%s: %w", name, r.AsError())
	}

	if err == nil && value == nil {
		err = fmt.Errorf("%s: empty response", name)
	}
	if err != nil {
		log.Warn().Err(err).Str("slot", name).Msg("morning data source failed")
		return Slot[T]{Err: err}
	}
	return Slot[T]{Value: value}
}
