package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwx123321/smart-garden/internal/model"
	"github.com/lwx123321/smart-garden/pkg/mqttbus"
)

type fakeBus struct {
	published []publishedMsg
}

type publishedMsg struct {
	topic   string
	payload []byte
}

func (f *fakeBus) Subscribe(string, mqttbus.Handler) error { return nil }
func (f *fakeBus) Publish(topic string, _ byte, payload []byte) error {
	f.published = append(f.published, publishedMsg{topic, payload})
	return nil
}

func tempRule() model.Rule {
	return model.Rule{
		ID:                1,
		SourceDevice:      "d1",
		Entity:            "temperature",
		Field:             "value",
		Compare:           model.CompareGreaterThan,
		Value:             25.0,
		DestinationDevice: "light",
		Operation:         OpTurnOff,
		Enabled:           true,
	}
}

func telemetry(device string, value interface{}) []byte {
	m := model.NewMessage("a1", device)
	m.Fields["value"] = value
	return m.Encode()
}

func newTestEngine(rules ...model.Rule) (*Engine, *fakeBus) {
	bus := &fakeBus{}
	e := NewEngine(bus, model.NewChannels("garden"), nil, 0)
	e.SetRules(rules)
	return e, bus
}

func TestRuleFiresOnce(t *testing.T) {
	e, bus := newTestEngine(tempRule())

	e.HandleData("garden/device/data/temperature", telemetry("d1", 30.0))

	require.Len(t, bus.published, 1)
	assert.Equal(t, "garden/device/command/light", bus.published[0].topic)

	cmd, err := model.DecodeCommand(bus.published[0].payload)
	require.NoError(t, err)
	assert.Equal(t, model.CommandOpt, cmd.Kind)
	assert.False(t, cmd.Status)
}

func TestRuleBelowThresholdNoPublish(t *testing.T) {
	e, bus := newTestEngine(tempRule())
	e.HandleData("garden/device/data/temperature", telemetry("d1", 20.0))
	assert.Empty(t, bus.published)
}

func TestRuleFiltersEntityAndDevice(t *testing.T) {
	e, bus := newTestEngine(tempRule())

	// right value, wrong entity
	e.HandleData("garden/device/data/humidity", telemetry("d1", 30.0))
	// right entity, wrong source device
	e.HandleData("garden/device/data/temperature", telemetry("d2", 30.0))

	assert.Empty(t, bus.published)
}

func TestDisabledRuleIgnored(t *testing.T) {
	r := tempRule()
	r.Enabled = false
	e, bus := newTestEngine(r)
	e.HandleData("garden/device/data/temperature", telemetry("d1", 30.0))
	assert.Empty(t, bus.published)
}

func TestMultipleRulesFireIndependently(t *testing.T) {
	heater := tempRule()
	heater.ID = 2
	heater.DestinationDevice = "heater"
	heater.Operation = OpTurnOn

	e, bus := newTestEngine(tempRule(), heater)
	e.HandleData("garden/device/data/temperature", telemetry("d1", 30.0))

	require.Len(t, bus.published, 2)
	assert.Equal(t, "garden/device/command/light", bus.published[0].topic)
	assert.Equal(t, "garden/device/command/heater", bus.published[1].topic)
}

func TestCoercionErrorSkipsRuleOnly(t *testing.T) {
	bad := tempRule()
	bad.ID = 3
	bad.Value = "not a number"

	e, bus := newTestEngine(bad, tempRule())
	e.HandleData("garden/device/data/temperature", telemetry("d1", 30.0))

	// bad rule skipped, good rule still fires
	require.Len(t, bus.published, 1)
}

func TestStringCoercionInTelemetry(t *testing.T) {
	e, bus := newTestEngine(tempRule())
	e.HandleData("garden/device/data/temperature", telemetry("d1", "30.5"))
	assert.Len(t, bus.published, 1)
}

func TestMalformedPayloadIgnored(t *testing.T) {
	e, bus := newTestEngine(tempRule())
	e.HandleData("garden/device/data/temperature", []byte("not json"))
	assert.Empty(t, bus.published)
}
