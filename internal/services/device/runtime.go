// Package device runs the per-device runtimes: every registered device gets
// its own goroutine owning the device's state machine, telemetry loop and
// status broadcast.
package device

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lwx123321/smart-garden/internal/model"
	"github.com/lwx123321/smart-garden/pkg/mqttbus"
)

type Bus interface {
	Subscribe(pattern string, h mqttbus.Handler) error
	Publish(topic string, qos byte, payload []byte) error
}

// Sensor produces one reading. Implementations that also expose SetWet get
// told when the runtime's own actuator opens, so simulated soil responds to
// watering.
type Sensor interface {
	Read(now time.Time) float64
}

type wettable interface {
	SetWet(bool)
}

const (
	defaultPollInterval   = 15 * time.Second
	defaultStatusInterval = 30 * time.Second
)

var (
	commandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "garden_device_commands_total",
		Help: "Commands handled by device runtimes, by kind.",
	}, []string{"kind"})
	commandErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "garden_device_command_errors_total",
		Help: "Command payloads rejected by device runtimes.",
	})
)

// Runtime is one device's state machine. A device starts working; a running
// command starts or stops the whole device, and stopping forces the actuator
// off. Action and opt commands switch the actuator and are only honored
// while the device is working.
type Runtime struct {
	bus      Bus
	channels model.Channels
	device   model.Device
	area     string
	sensor   Sensor

	pollInterval   time.Duration
	statusInterval time.Duration
	now            func() time.Time

	mu         sync.Mutex
	working    bool
	actuatorOn bool
}

func NewRuntime(bus Bus, channels model.Channels, dev model.Device, area string, sensor Sensor) *Runtime {
	return &Runtime{
		bus:            bus,
		channels:       channels,
		device:         dev,
		area:           area,
		sensor:         sensor,
		pollInterval:   defaultPollInterval,
		statusInterval: defaultStatusInterval,
		now:            time.Now,
		working:        true,
	}
}

// Start subscribes to the device's command topic and runs the telemetry and
// status loops until ctx is done.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.bus.Subscribe(r.channels.DeviceCommand(r.device.Name), r.HandleCommand); err != nil {
		return err
	}
	go r.statusLoop(ctx)
	if r.sensor != nil && r.device.Entity != "" {
		go r.pollLoop(ctx)
	}
	<-ctx.Done()
	return nil
}

// HandleCommand applies one command to the state machine. Unknown kinds are
// a decode error at the boundary; the switch below is exhaustive over the
// decoded kinds.
func (r *Runtime) HandleCommand(topicStr string, payload []byte) {
	cmd, err := model.DecodeCommand(payload)
	if err != nil {
		commandErrors.Inc()
		log.Printf("device %s: %v", r.device.Name, err)
		return
	}

	r.mu.Lock()
	switch cmd.Kind {
	case model.CommandRunning:
		r.working = cmd.Status
		if !cmd.Status {
			r.actuatorOn = false
			r.tellSensorLocked(false)
		}
	case model.CommandAction, model.CommandOpt:
		if !r.working {
			r.mu.Unlock()
			log.Printf("device %s: ignoring %s while stopped", r.device.Name, cmd.Kind)
			return
		}
		if r.device.Actuator == "" {
			r.mu.Unlock()
			log.Printf("device %s: ignoring %s, no actuator", r.device.Name, cmd.Kind)
			return
		}
		r.actuatorOn = cmd.Status
		r.tellSensorLocked(cmd.Status)
	}
	working, actuatorOn := r.working, r.actuatorOn
	r.mu.Unlock()

	commandsHandled.WithLabelValues(string(cmd.Kind)).Inc()
	log.Printf("device %s: %s %v -> working=%v actuator=%v", r.device.Name, cmd.Kind, cmd.Status, working, actuatorOn)
	r.publishStatus()
}

func (r *Runtime) tellSensorLocked(wet bool) {
	if w, ok := r.sensor.(wettable); ok {
		w.SetWet(wet)
	}
}

// Working reports whether the device is running.
func (r *Runtime) Working() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.working
}

// ActuatorOn reports whether the actuator is switched on.
func (r *Runtime) ActuatorOn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.actuatorOn
}

func (r *Runtime) pollLoop(ctx context.Context) {
	t := time.NewTicker(r.pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.PollOnce()
		}
	}
}

// PollOnce reads the sensor and publishes one telemetry message. A stopped
// device measures nothing.
func (r *Runtime) PollOnce() {
	r.mu.Lock()
	working := r.working
	r.mu.Unlock()
	if !working || r.sensor == nil {
		return
	}

	value := r.sensor.Read(r.now())
	msg := model.NewMessage(r.area, r.device.Name)
	msg.Fields["value"] = value

	target := r.channels.DeviceData(r.device.Entity)
	if err := r.bus.Publish(target, 2, msg.Encode()); err != nil {
		log.Printf("device %s: publish %s: %v", r.device.Name, target, err)
	}
}

func (r *Runtime) statusLoop(ctx context.Context) {
	t := time.NewTicker(r.statusInterval)
	defer t.Stop()
	r.publishStatus()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.publishStatus()
		}
	}
}

func (r *Runtime) publishStatus() {
	r.mu.Lock()
	working, actuatorOn := r.working, r.actuatorOn
	r.mu.Unlock()

	msg := model.NewMessage(r.area, r.device.Name)
	msg.Fields["working"] = working
	msg.Fields["actuator_on"] = actuatorOn
	// a sensor measures only while its device works
	msg.Fields["sensor_running"] = working && r.sensor != nil

	target := r.channels.DeviceStatus(r.device.Name)
	if err := r.bus.Publish(target, 1, msg.Encode()); err != nil {
		log.Printf("device %s: publish %s: %v", r.device.Name, target, err)
	}
}
