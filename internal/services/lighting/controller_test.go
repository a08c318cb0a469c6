package lighting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwx123321/smart-garden/internal/model"
	"github.com/lwx123321/smart-garden/internal/weather"
)

type fakeBus struct {
	fail      bool
	published []publishedMsg
}

type publishedMsg struct {
	topic   string
	payload []byte
}

func (f *fakeBus) Publish(topic string, _ byte, payload []byte) error {
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, publishedMsg{topic, payload})
	return nil
}

type fakeSource struct{}

func (fakeSource) Areas(context.Context) ([]model.Area, error) {
	return []model.Area{{ID: 1, Name: "a1"}}, nil
}

func (fakeSource) Devices(context.Context) ([]model.Device, error) {
	return []model.Device{
		{ID: 20, Name: "light-1", AreaID: 1, Actuator: model.EntityLight},
		{ID: 10, Name: "valve-1", AreaID: 1, Actuator: model.EntityIrrigator},
	}, nil
}

type fakeWeather struct {
	sunrise, sunset time.Time
}

func (f fakeWeather) Current(context.Context) (weather.Current, error) {
	return weather.Current{Sunrise: f.sunrise, Sunset: f.sunset}, nil
}

func at(h, m int) time.Time {
	return time.Date(2026, 6, 10, h, m, 0, 0, time.UTC)
}

func newTestController() (*Controller, *fakeBus) {
	bus := &fakeBus{}
	c := NewController(bus, model.NewChannels("garden"), fakeSource{}, fakeWeather{sunrise: at(6, 0), sunset: at(21, 0)})
	return c, bus
}

func TestSunriseEdgeFiresExactlyOnce(t *testing.T) {
	c, bus := newTestController()

	require.NoError(t, c.Tick(context.Background(), at(5, 59)))
	assert.Empty(t, bus.published)

	require.NoError(t, c.Tick(context.Background(), at(6, 1)))
	require.Len(t, bus.published, 1)
	assert.Equal(t, "garden/device/command/light-1", bus.published[0].topic)

	cmd, err := model.DecodeCommand(bus.published[0].payload)
	require.NoError(t, err)
	assert.Equal(t, model.CommandOpt, cmd.Kind)
	assert.False(t, cmd.Status)

	// repeated ticks after the edge stay silent
	require.NoError(t, c.Tick(context.Background(), at(6, 5)))
	assert.Len(t, bus.published, 1)
}

func TestSunsetEdgeTurnsLightsOn(t *testing.T) {
	c, bus := newTestController()
	c.sunriseDone = true
	c.day = at(0, 0).YearDay()

	require.NoError(t, c.Tick(context.Background(), at(21, 30)))
	require.Len(t, bus.published, 1)

	cmd, err := model.DecodeCommand(bus.published[0].payload)
	require.NoError(t, err)
	assert.True(t, cmd.Status)
}

func TestFailedPublishRetriesNextTick(t *testing.T) {
	c, bus := newTestController()
	bus.fail = true

	assert.Error(t, c.Tick(context.Background(), at(6, 1)))
	assert.Empty(t, bus.published)

	bus.fail = false
	require.NoError(t, c.Tick(context.Background(), at(6, 2)))
	assert.Len(t, bus.published, 1)
}

func TestEdgesResetAtMidnight(t *testing.T) {
	c, bus := newTestController()

	require.NoError(t, c.Tick(context.Background(), at(6, 1)))
	require.Len(t, bus.published, 1)

	nextDay := at(6, 1).Add(24 * time.Hour)
	require.NoError(t, c.Tick(context.Background(), nextDay))
	assert.Len(t, bus.published, 2)
}
