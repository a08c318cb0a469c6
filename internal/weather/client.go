// Package weather consumes the two external weather collaborators: the
// current-conditions provider (sunrise/sunset/cloudiness/rain) and the
// historical climate provider (hourly temperature/humidity series).
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Current is a short-term forecast snapshot.
type Current struct {
	Sunrise         time.Time
	Sunset          time.Time
	Cloudiness      float64 // percent, 0-100
	RainProbability float64 // forecast rain, mm
}

type currentPayload struct {
	Sunrise         string  `json:"sunrise"`
	Sunset          string  `json:"sunset"`
	Cloudiness      float64 `json:"cloudiness"`
	RainProbability float64 `json:"rain_probability"`
}

// HourlyRecord is one row of the historical climate series.
type HourlyRecord struct {
	Time          time.Time `json:"time"`
	Temperature   float64   `json:"temperature_2m"`
	Humidity      float64   `json:"relative_humidity_2m"`
	Precipitation float64   `json:"precipitation"`
}

type Client struct {
	currentURL string
	historyURL string
	http       *http.Client
	cb         *gobreaker.CircuitBreaker
}

func New(currentURL, historyURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		currentURL: currentURL,
		historyURL: historyURL,
		http:       &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "weather",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

// Current fetches the forecast snapshot. Sunrise/sunset arrive as ISO-8601
// and keep the provider's offset; callers convert to their local zone.
func (c *Client) Current(ctx context.Context) (Current, error) {
	var p currentPayload
	if err := c.getJSON(ctx, c.currentURL, &p); err != nil {
		return Current{}, err
	}
	sunrise, err := time.Parse(time.RFC3339, p.Sunrise)
	if err != nil {
		return Current{}, fmt.Errorf("weather: bad sunrise %q: %w", p.Sunrise, err)
	}
	sunset, err := time.Parse(time.RFC3339, p.Sunset)
	if err != nil {
		return Current{}, fmt.Errorf("weather: bad sunset %q: %w", p.Sunset, err)
	}
	return Current{
		Sunrise:         sunrise,
		Sunset:          sunset,
		Cloudiness:      p.Cloudiness,
		RainProbability: p.RainProbability,
	}, nil
}

// History fetches the hourly climate series.
func (c *Client) History(ctx context.Context) ([]HourlyRecord, error) {
	var rows []HourlyRecord
	if err := c.getJSON(ctx, c.historyURL, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		res, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return nil, fmt.Errorf("weather: GET %s -> %s", url, res.Status)
		}
		return nil, json.NewDecoder(res.Body).Decode(out)
	})
	return err
}

// TrailingAverages reduces the newest `window` records to mean temperature
// and humidity. With fewer records than the window it uses what is there;
// ok=false means the series is empty.
func TrailingAverages(rows []HourlyRecord, window int) (avgTemp, avgHumidity float64, ok bool) {
	if len(rows) == 0 || window <= 0 {
		return 0, 0, false
	}
	start := len(rows) - window
	if start < 0 {
		start = 0
	}
	n := 0
	for _, r := range rows[start:] {
		avgTemp += r.Temperature
		avgHumidity += r.Humidity
		n++
	}
	return avgTemp / float64(n), avgHumidity / float64(n), true
}
