// Package schedule drives every fixed-cadence job in the system from one
// cron runner: the stored device schedules, the hourly watering cycle and
// the lighting edge ticks.
package schedule

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"

	"github.com/lwx123321/smart-garden/internal/model"
)

type Bus interface {
	Publish(topic string, qos byte, payload []byte) error
}

// Source provides the schedule rows; backed by the relational store.
type Source interface {
	Schedules(ctx context.Context) ([]model.Schedule, error)
}

var scheduleFires = promauto.NewCounter(prometheus.CounterOpts{
	Name: "garden_schedule_fires_total",
	Help: "Stored schedules whose cadence elapsed and published a command.",
})

// Scheduler evaluates stored schedules once a minute. Each active row fires
// every Duration seconds, publishing its configured on/off command; pairing
// an on row with an off row at an offset models a recurring open/close
// cycle.
type Scheduler struct {
	bus      Bus
	channels model.Channels
	source   Source
	now      func() time.Time

	// schedules is an immutable snapshot swapped atomically by the refresh
	// job; Tick never blocks on a refresh.
	schedules atomic.Pointer[[]model.Schedule]

	mu        sync.Mutex
	lastFired map[int]time.Time

	serviceName string
}

func NewScheduler(bus Bus, channels model.Channels, source Source) *Scheduler {
	s := &Scheduler{
		bus:         bus,
		channels:    channels,
		source:      source,
		now:         time.Now,
		lastFired:   make(map[int]time.Time),
		serviceName: "schedule-service",
	}
	empty := []model.Schedule{}
	s.schedules.Store(&empty)
	return s
}

// SetSchedules replaces the snapshot directly; used by tests.
func (s *Scheduler) SetSchedules(rows []model.Schedule) {
	s.schedules.Store(&rows)
}

// Start registers the refresh and tick jobs plus any extra cadenced jobs
// (watering cycle, lighting ticks) and runs the cron until ctx is done.
func (s *Scheduler) Start(ctx context.Context, extra map[string]func()) error {
	c := cron.New()
	if _, err := c.AddFunc("@every 60s", func() {
		s.refreshOnce(ctx)
		s.Tick(s.now())
	}); err != nil {
		return err
	}
	for spec, job := range extra {
		if _, err := c.AddFunc(spec, job); err != nil {
			return err
		}
	}
	s.refreshOnce(ctx)
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}

func (s *Scheduler) refreshOnce(ctx context.Context) {
	rows, err := s.source.Schedules(ctx)
	if err != nil {
		log.Printf("schedule: refresh error (keeping previous list): %v", err)
		return
	}
	s.SetSchedules(rows)
}

// Tick fires every schedule whose cadence elapsed since its last fire. A
// schedule's first evaluation arms it without firing, so a freshly loaded
// row waits one full period.
func (s *Scheduler) Tick(now time.Time) {
	for _, row := range *s.schedules.Load() {
		if row.IsDeleted || row.Target == "" || row.Duration <= 0 {
			continue
		}
		s.mu.Lock()
		last, seen := s.lastFired[row.ID]
		if !seen {
			s.lastFired[row.ID] = now
			s.mu.Unlock()
			continue
		}
		if now.Sub(last) < time.Duration(row.Duration)*time.Second {
			s.mu.Unlock()
			continue
		}
		s.lastFired[row.ID] = now
		s.mu.Unlock()

		s.fire(row)
	}
}

func (s *Scheduler) fire(row model.Schedule) {
	cmd := model.Command{Kind: model.CommandOpt, Status: row.Opt}
	payload := cmd.Message("", s.serviceName).Encode()
	target := s.channels.DeviceCommand(row.Target)
	if err := s.bus.Publish(target, 2, payload); err != nil {
		log.Printf("schedule %d: publish %s: %v", row.ID, target, err)
		return
	}
	scheduleFires.Inc()
	log.Printf("schedule %d fired: opt %s -> %s", row.ID, onOff(row.Opt), target)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
