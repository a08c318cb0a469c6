// Package rule evaluates declarative telemetry rules: when an entity's field
// compares true against a rule's value, the rule's operation becomes a
// command on the destination device's command topic.
package rule

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

// Bus is the slice of the bus client the engine needs.
type Bus interface {
	Subscribe(pattern string, h mqttbus.Handler) error
	Publish(topic string, qos byte, payload []byte) error
}

// Source provides the current rule list; backed by the relational store.
type Source interface {
	Rules(ctx context.Context) ([]model.Rule, error)
}

var (
	rulesFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "garden_rules_fired_total",
		Help: "Rules that matched and published a command.",
	})
	ruleEvalErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "garden_rule_eval_errors_total",
		Help: "Rule evaluations skipped due to coercion or conversion errors.",
	})
)

type Engine struct {
	bus      Bus
	channels model.Channels
	source   Source
	refresh  time.Duration

	// rules is an immutable snapshot swapped atomically by the refresh loop;
	// the receive path never blocks on a refresh.
	rules atomic.Pointer[[]model.Rule]

	serviceName string
}

func NewEngine(bus Bus, channels model.Channels, source Source, refresh time.Duration) *Engine {
	if refresh <= 0 {
		refresh = time.Minute
	}
	e := &Engine{
		bus:         bus,
		channels:    channels,
		source:      source,
		refresh:     refresh,
		serviceName: "rule-service",
	}
	empty := []model.Rule{}
	e.rules.Store(&empty)
	return e
}

// SetRules replaces the rule snapshot directly; used by tests and by callers
// that manage their own refresh.
func (e *Engine) SetRules(rules []model.Rule) {
	e.rules.Store(&rules)
}

// Start subscribes to all telemetry and launches the refresh loop. It
// returns once the subscription is registered; evaluation happens on the
// bus receive path.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.bus.Subscribe(e.channels.DeviceDataPattern(), e.HandleData); err != nil {
		return err
	}
	if e.source != nil {
		e.refreshOnce(ctx)
		go e.refreshLoop(ctx)
	}
	return nil
}

func (e *Engine) refreshLoop(ctx context.Context) {
	t := time.NewTicker(e.refresh)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.refreshOnce(ctx)
		}
	}
}

func (e *Engine) refreshOnce(ctx context.Context) {
	rules, err := e.source.Rules(ctx)
	if err != nil {
		log.Printf("rule: refresh error (keeping previous list): %v", err)
		return
	}
	e.SetRules(rules)
}

// HandleData evaluates every enabled rule against one telemetry message.
// Rules are independent: each match publishes exactly one command, and an
// evaluation error on one rule never affects the others.
func (e *Engine) HandleData(topicStr string, payload []byte) {
	entity := e.channels.DataEntity(topicStr)
	msg, err := model.DecodeMessage(payload)
	if err != nil {
		log.Printf("rule: %s: %v", topicStr, err)
		return
	}
	device := msg.Device()

	for _, r := range *e.rules.Load() {
		if !r.Enabled || r.Entity != entity || r.SourceDevice != device {
			continue
		}
		fieldVal, ok := msg.Fields[r.Field]
		if !ok {
			ruleEvalErrors.Inc()
			log.Printf("rule %d: message on %s missing field %q", r.ID, topicStr, r.Field)
			continue
		}
		match, err := Evaluate(r.Compare, fieldVal, r.Value)
		if err != nil {
			ruleEvalErrors.Inc()
			log.Printf("rule %d: evaluation error: %v", r.ID, err)
			continue
		}
		if !match {
			continue
		}
		cmd, err := ConvertOperation(r)
		if err != nil {
			ruleEvalErrors.Inc()
			log.Printf("rule %d: %v", r.ID, err)
			continue
		}
		target := e.channels.DeviceCommand(r.DestinationDevice)
		out := cmd.Message(msg.Area(), e.serviceName).Encode()
		if err := e.bus.Publish(target, 2, out); err != nil {
			log.Printf("rule %d: publish %s: %v", r.ID, target, err)
			continue
		}
		rulesFired.Inc()
		log.Printf("rule %d fired: %s.%s %s %v -> %s", r.ID, r.Entity, r.Field, r.Compare, r.Value, target)
	}
}
