// Package decision runs the watering loop: on every cycle it measures each
// area against its climate-adjusted moisture threshold and switches the
// area's irrigators for the computed duration.
package decision

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lwx123321/smart-garden/internal/model"
)

type Bus interface {
	Publish(topic string, qos byte, payload []byte) error
}

// Source provides area and device definitions; backed by the relational
// store.
type Source interface {
	Areas(ctx context.Context) ([]model.Area, error)
	Devices(ctx context.Context) ([]model.Device, error)
}

// SnapshotFetcher assembles the per-area inputs of one evaluation.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, area string) (Snapshot, error)
}

// cloudyEnoughPct is the forecast cloud cover above which watering inside
// the full-sun window is allowed anyway.
const cloudyEnoughPct = 80.0

var (
	wateringRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "garden_watering_runs_total",
		Help: "Watering cycles that switched at least one irrigator on.",
	})
	wateringSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "garden_watering_skips_total",
		Help: "Watering evaluations that decided not to water, by reason.",
	}, []string{"reason"})
)

type Controller struct {
	bus      Bus
	channels model.Channels
	source   Source
	fetcher  SnapshotFetcher
	now      func() time.Time

	// one watering window per area at a time
	wateringMu    sync.Mutex
	wateringUntil map[int]time.Time

	serviceName string
}

func NewController(bus Bus, channels model.Channels, source Source, fetcher SnapshotFetcher) *Controller {
	return &Controller{
		bus:           bus,
		channels:      channels,
		source:        source,
		fetcher:       fetcher,
		now:           time.Now,
		wateringUntil: make(map[int]time.Time),
		serviceName:   "watering-service",
	}
}

// Evaluate decides how long to water given one snapshot. Zero minutes comes
// with the reason for skipping.
func Evaluate(snap Snapshot, p model.SoilProfile, now time.Time) (minutes float64, skip string) {
	threshold := Threshold(p, now.YearDay(), snap.AvgTemp, snap.AvgHumidity)
	predicted := PredictedMoisture(snap.Moisture, snap.RainMM, p.Absorption)
	if predicted >= threshold {
		return 0, "moist_enough"
	}
	if InSunWindow(now, snap.Sunrise, snap.Sunset) && snap.Cloudiness < cloudyEnoughPct {
		return 0, "full_sun"
	}
	deficit := MoistureDeficit(threshold, snap.Moisture)
	minutes = DurationMinutes(RequiredWaterLiters(deficit), snap.RainMM, p.Adjustment)
	if minutes <= 0 {
		return 0, "rain_covers_deficit"
	}
	return minutes, ""
}

// Run performs one watering cycle over every area. Cycle cadence is the
// scheduler's concern.
func (c *Controller) Run(ctx context.Context) error {
	areas, err := c.source.Areas(ctx)
	if err != nil {
		return err
	}
	devices, err := c.source.Devices(ctx)
	if err != nil {
		return err
	}
	irrigators := model.ActuatorsByArea(devices, model.EntityIrrigator)
	for _, area := range areas {
		c.runArea(ctx, area, irrigators[area.ID])
	}
	return nil
}

func (c *Controller) runArea(ctx context.Context, area model.Area, irrigators []model.Device) {
	if len(irrigators) == 0 {
		return
	}
	now := c.now()

	c.wateringMu.Lock()
	until, busy := c.wateringUntil[area.ID]
	c.wateringMu.Unlock()
	if busy && now.Before(until) {
		log.Printf("decision: skip %s (watering until %s)", area.Name, until.Format(time.RFC3339))
		wateringSkips.WithLabelValues("already_watering").Inc()
		return
	}

	snap, err := c.fetcher.Fetch(ctx, area.Name)
	if err != nil {
		log.Printf("decision: %v", err)
		wateringSkips.WithLabelValues("fetch_error").Inc()
		return
	}

	profile := model.ProfileOrDefault(area.SoilType)
	minutes, skip := Evaluate(snap, profile, now)
	if skip != "" {
		log.Printf("decision: skip %s: %s (moisture=%.3f)", area.Name, skip, snap.Moisture)
		wateringSkips.WithLabelValues(skip).Inc()
		return
	}

	duration := time.Duration(minutes * float64(time.Minute))
	log.Printf("decision: watering %s for %s (moisture=%.3f avgT=%.1f avgH=%.1f rain=%.1fmm)",
		area.Name, duration.Round(time.Second), snap.Moisture, snap.AvgTemp, snap.AvgHumidity, snap.RainMM)

	c.switchArea(area, irrigators, true, duration.Seconds())

	c.wateringMu.Lock()
	c.wateringUntil[area.ID] = now.Add(duration)
	c.wateringMu.Unlock()
	wateringRuns.Inc()

	time.AfterFunc(duration, func() {
		c.switchArea(area, irrigators, false, 0)
		c.wateringMu.Lock()
		delete(c.wateringUntil, area.ID)
		c.wateringMu.Unlock()
	})
}

// switchArea publishes one action command per irrigator in the area.
func (c *Controller) switchArea(area model.Area, irrigators []model.Device, on bool, durationSec float64) {
	cmd := model.Command{Kind: model.CommandAction, Status: on, DurationSeconds: durationSec}
	payload := cmd.Message(area.Name, c.serviceName).Encode()
	for _, d := range irrigators {
		target := c.channels.DeviceCommand(d.Name)
		if err := c.bus.Publish(target, 2, payload); err != nil {
			log.Printf("decision: publish %s: %v", target, err)
		}
	}
}
