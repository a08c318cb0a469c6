// Package store is the read-only client for the external relational store
// that owns area/device/rule/schedule definitions. The store is an external
// collaborator: this client only consumes its JSON list endpoints.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/lwx123321/smart-garden/internal/model"
)

type Client struct {
	base string
	http *http.Client
	cb   *gobreaker.CircuitBreaker
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "relational-store",
			Timeout: 10 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

// envelope is the store's list response shape: code 0 means success.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	List    json.RawMessage `json:"list"`
}

func (c *Client) getList(ctx context.Context, path string, out interface{}) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
		if err != nil {
			return nil, err
		}
		res, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return nil, fmt.Errorf("store: GET %s -> %s", path, res.Status)
		}
		var env envelope
		if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", path, err)
		}
		if env.Code != 0 {
			return nil, fmt.Errorf("store: %s: code=%d message=%q", path, env.Code, env.Message)
		}
		if len(env.List) == 0 {
			return nil, nil
		}
		return nil, json.Unmarshal(env.List, out)
	})
	return err
}

func (c *Client) Areas(ctx context.Context) ([]model.Area, error) {
	var out []model.Area
	if err := c.getList(ctx, "/area/list", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Devices(ctx context.Context) ([]model.Device, error) {
	var out []model.Device
	if err := c.getList(ctx, "/device/list", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Rules(ctx context.Context) ([]model.Rule, error) {
	var out []model.Rule
	if err := c.getList(ctx, "/rule/list", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Schedules(ctx context.Context) ([]model.Schedule, error) {
	var out []model.Schedule
	if err := c.getList(ctx, "/schedule/list", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SensorClient reads per-area latest readings from the time-series store's
// HTTP surface. Like Client it is consumed at its interface boundary only.
type SensorClient struct {
	base string
	http *http.Client
	cb   *gobreaker.CircuitBreaker
}

func NewSensorClient(baseURL string, timeout time.Duration) *SensorClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SensorClient{
		base: baseURL,
		http: &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "sensor-store",
			Timeout: 10 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

type sensorRow struct {
	Value float64 `json:"value"`
}

// Latest returns the most recent reading of a measurement in an area.
// ok=false means the store has no data for that pair; the caller skips the
// area rather than treating it as zero.
func (c *SensorClient) Latest(ctx context.Context, area, measurement string) (float64, bool, error) {
	q := url.Values{}
	q.Set("measurement", measurement)
	q.Set("area", area)
	q.Set("inner", "true")

	res, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/data/latest?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("store: sensor data %s/%s -> %s", area, measurement, resp.Status)
		}
		var env struct {
			List []sensorRow `json:"list"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return nil, err
		}
		return env.List, nil
	})
	if err != nil {
		return 0, false, err
	}
	rows := res.([]sensorRow)
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].Value, true, nil
}
