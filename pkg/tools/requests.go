package tools

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Tool names understood by the tool server.
const (
	ToolWeather         = "weather.get_daily"
	ToolCalendar        = "calendar.list_events"
	ToolCalendarRange   = "calendar.list_events_range"
	ToolTodos           = "todo.list"
	ToolCommute         = "mobility.get_commute"
	ToolCommuteOptions  = "mobility.get_commute_options"
	ToolShuttleSchedule = "mobility.get_shuttle_schedule"
	ToolFinancial       = "financial.get_data"
)

// DateLayout is the YYYY-MM-DD format the tool server expects.
const DateLayout = "2006-01-02"

// Enumerations accepted by the tool server.
var (
	WeatherTimes       = []string{"today", "tomorrow"}
	TodoBuckets        = []string{"work", "home", "errands", "personal"}
	TransportModes     = []string{"driving", "transit", "bicycling", "walking"}
	CommuteDirections  = []string{"to_work", "from_work"}
	FinancialDataTypes = []string{"stocks", "crypto", "mixed"}
	ShuttleStops       = []string{"mountain_view_caltrain", "linkedin_transit_center", "linkedin_950_1000"}
)

// ValidationError reports a request rejected before any network I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func oneOf(field, value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%q is not one of %s", value, strings.Join(allowed, ", "))}
	}
	return nil
}

func validDate(field, value string) (time.Time, error) {
	d, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", value)}
	}
	return d, nil
}

// Accepted departure time layouts
var clockLayouts = []string{"15:04", "3:04 PM", "3:04PM"}

// optionalClock accepts an empty value or a time of day such as "08:15" or
// "8:15 AM".
func optionalClock(field, value string) error {
	if value == "" {
		return nil
	}
	for _, layout := range clockLayouts {
		if _, err := time.Parse(layout, strings.ToUpper(value)); err == nil {
			return nil
		}
	}
	return &ValidationError{Field: field, Message: fmt.Sprintf("%q is not a time of day (HH:MM or H:MM AM)", value)}
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "must not be empty"}
	}
	return nil
}

// WeatherRequest asks for the daily forecast.
type WeatherRequest struct {
	Location string `json:"location"`
	When     string `json:"when"`
}

// Validate checks the request.
func (r WeatherRequest) Validate() error {
	if err := required("location", r.Location); err != nil {
		return err
	}
	return oneOf("when", r.When, WeatherTimes)
}

// CalendarRequest lists events for one day.
type CalendarRequest struct {
	Date string `json:"date"`
}

// Validate checks the request.
func (r CalendarRequest) Validate() error {
	_, err := validDate("date", r.Date)
	return err
}

// CalendarRangeRequest lists events for an inclusive date range.
type CalendarRangeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Validate checks both dates and their order.
func (r CalendarRangeRequest) Validate() error {
	start, err := validDate("start_date", r.StartDate)
	if err != nil {
		return err
	}
	end, err := validDate("end_date", r.EndDate)
	if err != nil {
		return err
	}
	if end.Before(start) {
		return &ValidationError{Field: "end_date", Message: "must not be before start_date"}
	}
	return nil
}

// TodoRequest lists todo items of a bucket.
type TodoRequest struct {
	Bucket           string `json:"bucket,omitempty"`
	IncludeCompleted bool   `json:"include_completed"`
}

// Validate checks the bucket when one is given.
func (r TodoRequest) Validate() error {
	if r.Bucket == "" {
		return nil
	}
	return oneOf("bucket", r.Bucket, TodoBuckets)
}

// CommuteRequest asks for travel time between two places.
type CommuteRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Mode        string `json:"mode"`
}

// Validate checks the request.
func (r CommuteRequest) Validate() error {
	if err := required("origin", r.Origin); err != nil {
		return err
	}
	if err := required("destination", r.Destination); err != nil {
		return err
	}
	return oneOf("mode", r.Mode, TransportModes)
}

// CommuteOptionsRequest compares driving and transit for a commute leg.
type CommuteOptionsRequest struct {
	Direction      string `json:"direction"`
	DepartureTime  string `json:"departure_time,omitempty"`
	IncludeDriving bool   `json:"include_driving"`
	IncludeTransit bool   `json:"include_transit"`
}

// Validate checks the request.
func (r CommuteOptionsRequest) Validate() error {
	if err := oneOf("direction", r.Direction, CommuteDirections); err != nil {
		return err
	}
	if !r.IncludeDriving && !r.IncludeTransit {
		return &ValidationError{Field: "include_driving", Message: "at least one of driving or transit must be included"}
	}
	return optionalClock("departure_time", r.DepartureTime)
}

// ShuttleRequest asks for the shuttle timetable between two stops.
type ShuttleRequest struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureTime string `json:"departure_time,omitempty"`
}

// Validate checks both stops and the optional departure time.
func (r ShuttleRequest) Validate() error {
	if err := oneOf("origin", r.Origin, ShuttleStops); err != nil {
		return err
	}
	if err := oneOf("destination", r.Destination, ShuttleStops); err != nil {
		return err
	}
	if r.Origin == r.Destination {
		return &ValidationError{Field: "destination", Message: "must differ from origin"}
	}
	return optionalClock("departure_time", r.DepartureTime)
}

// FinancialRequest asks for quotes of the given symbols.
type FinancialRequest struct {
	Symbols  []string `json:"symbols"`
	DataType string   `json:"data_type"`
}

// Validate checks the request.
func (r FinancialRequest) Validate() error {
	if len(r.Symbols) == 0 {
		return &ValidationError{Field: "symbols", Message: "must be a non-empty list"}
	}
	for _, s := range r.Symbols {
		if err := required("symbols", s); err != nil {
			return err
		}
	}
	return oneOf("data_type", r.DataType, FinancialDataTypes)
}
