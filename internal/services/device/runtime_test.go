package device

import (
	"testing"
	"time"

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

func (f *fakeBus) onTopic(topic string) []publishedMsg {
	var out []publishedMsg
	for _, m := range f.published {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func command(kind model.CommandKind, status bool) []byte {
	return model.Command{Kind: kind, Status: status}.Message("a1", "test").Encode()
}

func newValveRuntime() (*Runtime, *fakeBus) {
	bus := &fakeBus{}
	dev := model.Device{ID: 10, Name: "valve-1", AreaID: 1, Actuator: model.EntityIrrigator}
	return NewRuntime(bus, model.NewChannels("garden"), dev, "a1", nil), bus
}

func TestRuntimeStartsWorking(t *testing.T) {
	r, _ := newValveRuntime()
	assert.True(t, r.Working())
	assert.False(t, r.ActuatorOn())
}

func TestActionSwitchesActuatorWhileWorking(t *testing.T) {
	r, _ := newValveRuntime()

	r.HandleCommand("", command(model.CommandAction, true))
	assert.True(t, r.ActuatorOn())

	r.HandleCommand("", command(model.CommandAction, false))
	assert.False(t, r.ActuatorOn())
}

func TestActionIgnoredWhileStopped(t *testing.T) {
	r, _ := newValveRuntime()

	r.HandleCommand("", command(model.CommandRunning, false))
	require.False(t, r.Working())

	r.HandleCommand("", command(model.CommandAction, true))
	assert.False(t, r.ActuatorOn())

	r.HandleCommand("", command(model.CommandOpt, true))
	assert.False(t, r.ActuatorOn())
}

func TestStopForcesActuatorOff(t *testing.T) {
	r, _ := newValveRuntime()

	r.HandleCommand("", command(model.CommandAction, true))
	require.True(t, r.ActuatorOn())

	r.HandleCommand("", command(model.CommandRunning, false))
	assert.False(t, r.Working())
	assert.False(t, r.ActuatorOn())
}

func TestRestartLeavesActuatorOff(t *testing.T) {
	r, _ := newValveRuntime()

	r.HandleCommand("", command(model.CommandAction, true))
	r.HandleCommand("", command(model.CommandRunning, false))
	r.HandleCommand("", command(model.CommandRunning, true))

	assert.True(t, r.Working())
	assert.False(t, r.ActuatorOn())
}

func TestUnknownCommandKindRejected(t *testing.T) {
	r, _ := newValveRuntime()

	m := model.NewMessage("a1", "test")
	m.Fields["type"] = "reboot"
	m.Fields["status"] = true
	r.HandleCommand("", m.Encode())

	assert.True(t, r.Working())
	assert.False(t, r.ActuatorOn())
}

func TestOptOnSensorOnlyDeviceIgnored(t *testing.T) {
	bus := &fakeBus{}
	dev := model.Device{ID: 11, Name: "temp-1", AreaID: 1, Entity: model.EntityTemperature}
	r := NewRuntime(bus, model.NewChannels("garden"), dev, "a1", NewTempSensor())

	r.HandleCommand("", command(model.CommandOpt, true))
	assert.False(t, r.ActuatorOn())
}

func TestPollPublishesTelemetryOnlyWhileWorking(t *testing.T) {
	bus := &fakeBus{}
	dev := model.Device{ID: 12, Name: "soil-1", AreaID: 1, Entity: model.EntitySoilMoisture}
	r := NewRuntime(bus, model.NewChannels("garden"), dev, "a1", NewSoilSensor())
	base := time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	r.PollOnce()
	data := bus.onTopic("garden/device/data/soil")
	require.Len(t, data, 1)

	msg, err := model.DecodeMessage(data[0].payload)
	require.NoError(t, err)
	assert.Equal(t, "a1", msg.Area())
	assert.Equal(t, "soil-1", msg.Device())
	v, err := msg.Float("value")
	require.NoError(t, err)
	assert.InDelta(t, 0.30, v, 0.05)

	r.HandleCommand("", command(model.CommandRunning, false))
	r.PollOnce()
	assert.Len(t, bus.onTopic("garden/device/data/soil"), 1)
}

func TestStatusBroadcastReflectsState(t *testing.T) {
	r, bus := newValveRuntime()

	r.HandleCommand("", command(model.CommandAction, true))

	statuses := bus.onTopic("garden/device/status/valve-1")
	require.NotEmpty(t, statuses)
	msg, err := model.DecodeMessage(statuses[len(statuses)-1].payload)
	require.NoError(t, err)
	assert.Equal(t, true, msg.Fields["working"])
	assert.Equal(t, true, msg.Fields["actuator_on"])
	// a plain valve carries no sensor
	assert.Equal(t, false, msg.Fields["sensor_running"])
}

func TestStatusBroadcastReportsSensorState(t *testing.T) {
	bus := &fakeBus{}
	dev := model.Device{ID: 12, Name: "soil-1", AreaID: 1, Entity: model.EntitySoilMoisture}
	r := NewRuntime(bus, model.NewChannels("garden"), dev, "a1", NewSoilSensor())

	lastStatus := func() model.Message {
		statuses := bus.onTopic("garden/device/status/soil-1")
		require.NotEmpty(t, statuses)
		msg, err := model.DecodeMessage(statuses[len(statuses)-1].payload)
		require.NoError(t, err)
		return msg
	}

	r.HandleCommand("", command(model.CommandRunning, true))
	assert.Equal(t, true, lastStatus().Fields["sensor_running"])

	r.HandleCommand("", command(model.CommandRunning, false))
	status := lastStatus()
	assert.Equal(t, false, status.Fields["working"])
	assert.Equal(t, false, status.Fields["sensor_running"])
}

func TestSoilSensorRespondsToWatering(t *testing.T) {
	s := NewSoilSensor()
	base := time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)

	first := s.Read(base)
	dry := s.Read(base.Add(30 * time.Minute))
	assert.Less(t, dry, first)

	s.SetWet(true)
	wet := s.Read(base.Add(60 * time.Minute))
	assert.Greater(t, wet, dry)

	// long watering saturates but never exceeds 1
	soaked := s.Read(base.Add(24 * time.Hour))
	assert.LessOrEqual(t, soaked, 1.0)
}
