package tools

import "encoding/json"

// payload keeps the tool server's reply verbatim next to the decoded
// fields, so fields this package does not model are never lost.
type payload struct {
	raw json.RawMessage
}

// Raw returns the reply exactly as the tool server sent it.
func (p payload) Raw() json.RawMessage { return p.raw }

func (p *payload) setRaw(raw json.RawMessage) { p.raw = raw }

// WeatherReport is the daily forecast for one location.
type WeatherReport struct {
	Location     string  `json:"location"`
	Date         string  `json:"date,omitempty"`
	TempHi       float64 `json:"temp_hi"`
	TempLo       float64 `json:"temp_lo"`
	Summary      string  `json:"summary"`
	PrecipChance float64 `json:"precip_chance"`
	Humidity     float64 `json:"humidity"`
	WindSpeed    float64 `json:"wind_speed"`
	payload
}

// Event is a calendar entry.
type Event struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Date      string `json:"date,omitempty"`
	Time      string `json:"time"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Location  string `json:"location,omitempty"`
}

// CalendarDay lists the events of one date.
type CalendarDay struct {
	Date        string  `json:"date"`
	TotalEvents int     `json:"total_events"`
	Events      []Event `json:"events"`
	payload
}

// CalendarRange lists the events between two dates.
type CalendarRange struct {
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	TotalEvents int     `json:"total_events"`
	Events      []Event `json:"events"`
	payload
}

// TodoItem is a single task.
type TodoItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Priority  string `json:"priority"`
	DueDate   string `json:"due_date,omitempty"`
	Bucket    string `json:"bucket"`
	Completed bool   `json:"completed,omitempty"`
}

// TodoList is the content of a todo bucket.
type TodoList struct {
	Bucket       string     `json:"bucket"`
	PendingCount int        `json:"pending_count"`
	Items        []TodoItem `json:"items"`
	payload
}

// CommuteReport is the travel estimate for one mode.
type CommuteReport struct {
	Origin          string  `json:"origin"`
	Destination     string  `json:"destination"`
	Mode            string  `json:"mode"`
	DurationMinutes float64 `json:"duration_minutes"`
	DistanceMiles   float64 `json:"distance_miles"`
	TrafficStatus   string  `json:"traffic_status"`
	RouteSummary    string  `json:"route_summary"`
	payload
}

// Departure is one scheduled train or shuttle run.
type Departure struct {
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
	TrainNumber   string `json:"train_number,omitempty"`
}

// DrivingOption is the driving leg of a commute comparison.
type DrivingOption struct {
	DurationMinutes float64 `json:"duration_minutes"`
	RouteSummary    string  `json:"route_summary"`
	TrafficStatus   string  `json:"traffic_status"`
	DepartureTime   string  `json:"departure_time"`
	ArrivalTime     string  `json:"arrival_time"`
}

// TransitOption is the train plus shuttle leg of a commute comparison.
type TransitOption struct {
	TotalDurationMinutes    float64     `json:"total_duration_minutes"`
	CaltrainDurationMinutes float64     `json:"caltrain_duration_minutes"`
	ShuttleDurationMinutes  float64     `json:"shuttle_duration_minutes"`
	NextDepartures          []Departure `json:"next_departures"`
}

// CommuteOptions compares driving and transit for a commute direction.
type CommuteOptions struct {
	Direction      string         `json:"direction"`
	Recommendation string         `json:"recommendation"`
	Driving        *DrivingOption `json:"driving,omitempty"`
	Transit        *TransitOption `json:"transit,omitempty"`
	payload
}

// BestMinutes returns the shortest available duration, or 0.
func (c *CommuteOptions) BestMinutes() float64 {
	best := 0.0
	if c.Driving != nil && c.Driving.DurationMinutes > 0 {
		best = c.Driving.DurationMinutes
	}
	if c.Transit != nil && c.Transit.TotalDurationMinutes > 0 && (best == 0 || c.Transit.TotalDurationMinutes < best) {
		best = c.Transit.TotalDurationMinutes
	}
	return best
}

// ShuttleSchedule lists shuttle departures between two stops.
type ShuttleSchedule struct {
	Origin      string      `json:"origin"`
	Destination string      `json:"destination"`
	Departures  []Departure `json:"departures"`
	payload
}

// Quote is the market data of one symbol.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Currency      string  `json:"currency"`
	DataType      string  `json:"data_type"`
}

// FinancialQuotes is a batch of quotes with a market summary.
type FinancialQuotes struct {
	Summary      string  `json:"summary"`
	TotalItems   int     `json:"total_items"`
	MarketStatus string  `json:"market_status"`
	Data         []Quote `json:"data"`
	payload
}
