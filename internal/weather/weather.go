// Package weather looks up the open-meteo forecast for an event date.
// Decorative only: callers treat every failure as "no forecast".
package weather

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Forecast is the daily outlook for the event date.
type Forecast struct {
	Date        string  `json:"date"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Code        int     `json:"code"`
	Description string  `json:"description"`
	DayLabel    string  `json:"dayLabel"`
}

const forecastDays = 7

type Client struct {
	baseURL string
	lat     float64
	lon     float64
	httpc   *http.Client
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different forecast endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(lat, lon float64, opts ...Option) *Client {
	c := &Client{
		baseURL: "https://api.open-meteo.com",
		lat:     lat,
		lon:     lon,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForEventDate returns the forecast for the event's date, or nil when the
// date cannot be parsed or falls outside the 7-day forecast range.
func (c *Client) ForEventDate(ctx context.Context, eventDate string) (*Forecast, error) {
	day, ok := ParseEventDate(eventDate)
	if !ok {
		return nil, nil
	}
	if !withinForecastRange(day, c.now()) {
		return nil, nil
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", c.lat))
	q.Set("longitude", fmt.Sprintf("%.4f", c.lon))
	q.Set("daily", "temperature_2m_max,temperature_2m_min,weather_code")
	q.Set("forecast_days", fmt.Sprintf("%d", forecastDays))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building forecast request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching forecast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forecast api returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading forecast response: %w", err)
	}

	wanted := day.Format("2006-01-02")
	idx := -1
	for i, d := range gjson.GetBytes(raw, "daily.time").Array() {
		if d.String() == wanted {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, nil
	}

	code := int(gjson.GetBytes(raw, fmt.Sprintf("daily.weather_code.%d", idx)).Int())
	return &Forecast{
		Date:        wanted,
		High:        gjson.GetBytes(raw, fmt.Sprintf("daily.temperature_2m_max.%d", idx)).Float(),
		Low:         gjson.GetBytes(raw, fmt.Sprintf("daily.temperature_2m_min.%d", idx)).Float(),
		Code:        code,
		Description: describe(code),
		DayLabel:    dayLabel(day, c.now()),
	}, nil
}

// Event dates are free text like "September 4, 2026 at 3pm" or
// "September 4, 2026 from noon". Extract the calendar date if one is there.
var datePattern = regexp.MustCompile(`([A-Za-z]+\s+\d{1,2},?\s+\d{4})`)

// ParseEventDate extracts a calendar date from a free-text event date.
func ParseEventDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	part := strings.SplitN(s, " at ", 2)[0]
	part = strings.SplitN(part, " from ", 2)[0]
	if m := datePattern.FindString(part); m != "" {
		part = m
	}

	for _, layout := range []string{"January 2, 2006", "January 2 2006"} {
		if t, err := time.Parse(layout, part); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func withinForecastRange(day, now time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	target := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return !target.Before(today) && !target.After(today.AddDate(0, 0, forecastDays))
}

func dayLabel(day, now time.Time) string {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	target := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	switch int(target.Sub(today).Hours() / 24) {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	default:
		return target.Weekday().String()
	}
}

func describe(code int) string {
	switch code {
	case 0:
		return "Clear sky"
	case 1:
		return "Mainly clear"
	case 2:
		return "Partly cloudy"
	case 3:
		return "Overcast"
	case 45, 48:
		return "Foggy"
	case 51, 53, 55:
		return "Drizzle"
	case 61, 63, 65:
		return "Rain"
	case 71, 73, 75:
		return "Snow"
	case 80, 81, 82:
		return "Showers"
	case 95, 96, 99:
		return "Thunderstorm"
	default:
		return "Mixed conditions"
	}
}
