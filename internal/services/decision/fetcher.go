package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/lwx123321/smart-garden/internal/model"
	"github.com/lwx123321/smart-garden/internal/weather"
)

// SensorReader reads latest per-area measurements from the time-series
// store.
type SensorReader interface {
	Latest(ctx context.Context, area, measurement string) (float64, bool, error)
}

// WeatherReader is the pair of external weather collaborators.
type WeatherReader interface {
	Current(ctx context.Context) (weather.Current, error)
	History(ctx context.Context) ([]weather.HourlyRecord, error)
}

// climateWindowHours is how much trailing history feeds the climate
// adjustment factors.
const climateWindowHours = 24

// Snapshot is everything one watering evaluation needs, gathered up front so
// the decision itself is pure.
type Snapshot struct {
	Moisture    float64
	AvgTemp     float64
	AvgHumidity float64
	RainMM      float64
	Cloudiness  float64
	Sunrise     time.Time
	Sunset      time.Time
}

type Fetcher struct {
	sensors SensorReader
	weather WeatherReader
}

func NewFetcher(sensors SensorReader, weather WeatherReader) *Fetcher {
	return &Fetcher{sensors: sensors, weather: weather}
}

// Fetch assembles the snapshot for one area. A missing soil, temperature or
// humidity reading aborts the evaluation: watering on guessed inputs is
// worse than skipping a cycle. Missing climate history degrades to neutral
// adjustment factors.
func (f *Fetcher) Fetch(ctx context.Context, area string) (Snapshot, error) {
	moisture, err := f.latest(ctx, area, model.EntitySoilMoisture)
	if err != nil {
		return Snapshot{}, err
	}
	// the climate averages come from the weather history, but an area with
	// dead temperature or humidity sensors is not healthy enough to water
	if _, err := f.latest(ctx, area, model.EntityTemperature); err != nil {
		return Snapshot{}, err
	}
	if _, err := f.latest(ctx, area, model.EntityHumidity); err != nil {
		return Snapshot{}, err
	}

	cur, err := f.weather.Current(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decision: current weather: %w", err)
	}

	snap := Snapshot{
		Moisture:    moisture,
		AvgTemp:     20,
		AvgHumidity: 60,
		RainMM:      cur.RainProbability,
		Cloudiness:  cur.Cloudiness,
		Sunrise:     cur.Sunrise,
		Sunset:      cur.Sunset,
	}

	rows, err := f.weather.History(ctx)
	if err == nil {
		if t, h, ok := weather.TrailingAverages(rows, climateWindowHours); ok {
			snap.AvgTemp, snap.AvgHumidity = t, h
		}
	}
	return snap, nil
}

func (f *Fetcher) latest(ctx context.Context, area, measurement string) (float64, error) {
	v, ok, err := f.sensors.Latest(ctx, area, measurement)
	if err != nil {
		return 0, fmt.Errorf("decision: %s reading for %s: %w", measurement, area, err)
	}
	if !ok {
		return 0, fmt.Errorf("decision: no %s reading for %s", measurement, area)
	}
	return v, nil
}
