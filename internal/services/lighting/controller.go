// Package lighting switches the garden lights on at sunset and off at
// sunrise. The controller is edge-triggered: each crossing publishes exactly
// once per day, and a failed publish is retried on the next tick because the
// edge flag only flips after the command went out.
package lighting

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lwx123321/smart-garden/internal/model"
	"github.com/lwx123321/smart-garden/internal/weather"
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

// WeatherReader provides today's sunrise and sunset.
type WeatherReader interface {
	Current(ctx context.Context) (weather.Current, error)
}

var lightSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "garden_light_switches_total",
	Help: "Light commands published at sunrise/sunset edges.",
}, []string{"edge"})

type Controller struct {
	bus      Bus
	channels model.Channels
	source   Source
	weather  WeatherReader

	// edge flags, reset when the day rolls over
	day         int
	sunriseDone bool
	sunsetDone  bool

	serviceName string
}

func NewController(bus Bus, channels model.Channels, source Source, w WeatherReader) *Controller {
	return &Controller{
		bus:         bus,
		channels:    channels,
		source:      source,
		weather:     w,
		day:         -1,
		serviceName: "lighting-service",
	}
}

// Tick evaluates the sunrise/sunset edges at `now`. Cadence is the
// scheduler's concern; ticking more often than the edges move is harmless.
func (c *Controller) Tick(ctx context.Context, now time.Time) error {
	if d := now.YearDay(); d != c.day {
		c.day = d
		c.sunriseDone = false
		c.sunsetDone = false
	}
	if c.sunriseDone && c.sunsetDone {
		return nil
	}

	cur, err := c.weather.Current(ctx)
	if err != nil {
		return err
	}

	if !c.sunriseDone && now.After(cur.Sunrise) && now.Before(cur.Sunset) {
		if err := c.switchLights(ctx, false); err != nil {
			return err
		}
		c.sunriseDone = true
		lightSwitches.WithLabelValues("sunrise").Inc()
	}
	if !c.sunsetDone && now.After(cur.Sunset) {
		if err := c.switchLights(ctx, true); err != nil {
			return err
		}
		c.sunsetDone = true
		lightSwitches.WithLabelValues("sunset").Inc()
	}
	return nil
}

// switchLights publishes one opt command per registered light actuator.
func (c *Controller) switchLights(ctx context.Context, on bool) error {
	devices, err := c.source.Devices(ctx)
	if err != nil {
		return err
	}
	areas, err := c.source.Areas(ctx)
	if err != nil {
		return err
	}
	areaName := make(map[int]string, len(areas))
	for _, a := range areas {
		areaName[a.ID] = a.Name
	}
	cmd := model.Command{Kind: model.CommandOpt, Status: on}
	published := 0
	for _, d := range devices {
		if d.Actuator != model.EntityLight {
			continue
		}
		payload := cmd.Message(areaName[d.AreaID], c.serviceName).Encode()
		target := c.channels.DeviceCommand(d.Name)
		if err := c.bus.Publish(target, 2, payload); err != nil {
			return err
		}
		published++
	}
	log.Printf("lighting: switched %d lights %s", published, onOff(on))
	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
