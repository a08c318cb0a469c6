// Package auth gates raw telemetry before it reaches storage. Only messages
// from devices registered in the store are republished on the storage/auth
// channel; everything else is counted and dropped.
package auth

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lwx123321/smart-garden/internal/model"
	"github.com/lwx123321/smart-garden/pkg/mqttbus"
)

// Bus is the slice of the bus client the forwarder needs.
type Bus interface {
	Subscribe(pattern string, h mqttbus.Handler) error
	Publish(topic string, qos byte, payload []byte) error
}

// Source provides the registered device list; backed by the relational store.
type Source interface {
	Devices(ctx context.Context) ([]model.Device, error)
}

var (
	forwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "garden_auth_forwarded_total",
		Help: "Telemetry messages from registered devices republished to storage.",
	})
	rejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "garden_auth_rejected_total",
		Help: "Telemetry messages dropped because the device is not registered.",
	})
)

type Forwarder struct {
	bus      Bus
	channels model.Channels
	source   Source
	refresh  time.Duration

	// allowed is an immutable snapshot of registered device names, swapped
	// atomically by the refresh loop.
	allowed atomic.Pointer[map[string]struct{}]
}

func NewForwarder(bus Bus, channels model.Channels, source Source, refresh time.Duration) *Forwarder {
	if refresh <= 0 {
		refresh = time.Minute
	}
	f := &Forwarder{bus: bus, channels: channels, source: source, refresh: refresh}
	empty := map[string]struct{}{}
	f.allowed.Store(&empty)
	return f
}

// SetAllowed replaces the allow-list directly; used by tests.
func (f *Forwarder) SetAllowed(names []string) {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	f.allowed.Store(&set)
}

func (f *Forwarder) Start(ctx context.Context) error {
	if err := f.bus.Subscribe(f.channels.DeviceDataPattern(), f.HandleData); err != nil {
		return err
	}
	if f.source != nil {
		f.refreshOnce(ctx)
		go f.refreshLoop(ctx)
	}
	return nil
}

func (f *Forwarder) refreshLoop(ctx context.Context) {
	t := time.NewTicker(f.refresh)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			f.refreshOnce(ctx)
		}
	}
}

func (f *Forwarder) refreshOnce(ctx context.Context) {
	devices, err := f.source.Devices(ctx)
	if err != nil {
		log.Printf("auth: refresh error (keeping previous allow-list): %v", err)
		return
	}
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name)
	}
	f.SetAllowed(names)
}

// HandleData republishes one telemetry message on the storage/auth channel
// if its device tag is registered. The payload passes through unmodified so
// storage sees exactly what the device sent.
func (f *Forwarder) HandleData(topicStr string, payload []byte) {
	msg, err := model.DecodeMessage(payload)
	if err != nil {
		log.Printf("auth: %s: %v", topicStr, err)
		rejected.Inc()
		return
	}
	device := msg.Device()
	if _, ok := (*f.allowed.Load())[device]; !ok {
		rejected.Inc()
		log.Printf("auth: dropping message from unregistered device %q on %s", device, topicStr)
		return
	}
	entity := f.channels.DataEntity(topicStr)
	target := f.channels.StorageAuth(entity)
	if err := f.bus.Publish(target, 2, payload); err != nil {
		log.Printf("auth: publish %s: %v", target, err)
		return
	}
	forwarded.Inc()
}
