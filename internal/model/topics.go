package model

import "strings"

// DefaultTopicPrefix is the broker namespace the deployment publishes under.
const DefaultTopicPrefix = "iot/lwx123321/test/"

// Channels builds the bus topics every service shares. Using these helpers
// keeps the topic scheme in one place:
//
//	<prefix>device/data/<entity>      telemetry from device runtimes
//	<prefix>device/command/<device>   commands to exactly one device runtime
//	<prefix>device/status/<device>    periodic status snapshots
//	<prefix>storage/auth/<entity>     telemetry that passed the allow-list
type Channels struct {
	Prefix string
}

func NewChannels(prefix string) Channels {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return Channels{Prefix: prefix}
}

func (c Channels) DeviceData(entity string) string { return c.Prefix + "device/data/" + entity }

// DeviceDataPattern subscribes to telemetry for every entity.
func (c Channels) DeviceDataPattern() string { return c.Prefix + "device/data/+" }

// DataEntity extracts the entity segment from a concrete data topic.
func (c Channels) DataEntity(topic string) string {
	return strings.TrimPrefix(topic, c.Prefix+"device/data/")
}

func (c Channels) DeviceCommand(device string) string { return c.Prefix + "device/command/" + device }

func (c Channels) DeviceStatus(device string) string { return c.Prefix + "device/status/" + device }

func (c Channels) StorageAuth(entity string) string { return c.Prefix + "storage/auth/" + entity }

// StorageAuthPattern subscribes to every authorized telemetry entity.
func (c Channels) StorageAuthPattern() string { return c.Prefix + "storage/auth/+" }

// StorageAuthEntity extracts the entity segment from an authorized topic.
func (c Channels) StorageAuthEntity(topic string) string {
	return strings.TrimPrefix(topic, c.Prefix+"storage/auth/")
}
