package auth

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

func newTestForwarder(allowed ...string) (*Forwarder, *fakeBus) {
	bus := &fakeBus{}
	f := NewForwarder(bus, model.NewChannels("garden"), nil, 0)
	f.SetAllowed(allowed)
	return f, bus
}

func TestForwardRegisteredDevice(t *testing.T) {
	f, bus := newTestForwarder("soil-1")

	m := model.NewMessage("a1", "soil-1")
	m.Fields["value"] = 0.31
	payload := m.Encode()

	f.HandleData("garden/device/data/soil", payload)

	require.Len(t, bus.published, 1)
	assert.Equal(t, "garden/storage/auth/soil", bus.published[0].topic)
	// payload passes through byte-for-byte
	assert.Equal(t, payload, bus.published[0].payload)
}

func TestDropUnregisteredDevice(t *testing.T) {
	f, bus := newTestForwarder("soil-1")

	m := model.NewMessage("a1", "intruder")
	f.HandleData("garden/device/data/soil", m.Encode())

	assert.Empty(t, bus.published)
}

func TestDropMalformedPayload(t *testing.T) {
	f, bus := newTestForwarder("soil-1")
	f.HandleData("garden/device/data/soil", []byte("{broken"))
	assert.Empty(t, bus.published)
}

func TestEmptyAllowListDropsEverything(t *testing.T) {
	f, bus := newTestForwarder()
	m := model.NewMessage("a1", "soil-1")
	f.HandleData("garden/device/data/soil", m.Encode())
	assert.Empty(t, bus.published)
}
