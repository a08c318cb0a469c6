package device

import (
	"context"
	"log"

	"github.com/lwx123321/smart-garden/internal/model"
)

// Source provides area and device definitions; backed by the relational
// store.
type Source interface {
	Areas(ctx context.Context) ([]model.Area, error)
	Devices(ctx context.Context) ([]model.Device, error)
}

// Manager spawns one runtime goroutine per registered device and waits for
// shutdown. The device list is read once at startup; registering a device
// means restarting the service.
type Manager struct {
	bus      Bus
	channels model.Channels
	source   Source
}

func NewManager(bus Bus, channels model.Channels, source Source) *Manager {
	return &Manager{bus: bus, channels: channels, source: source}
}

func (m *Manager) Start(ctx context.Context) error {
	areas, err := m.source.Areas(ctx)
	if err != nil {
		return err
	}
	devices, err := m.source.Devices(ctx)
	if err != nil {
		return err
	}
	areaName := make(map[int]string, len(areas))
	for _, a := range areas {
		areaName[a.ID] = a.Name
	}

	for _, dev := range devices {
		rt := NewRuntime(m.bus, m.channels, dev, areaName[dev.AreaID], SensorFor(dev))
		go func(d model.Device) {
			if err := rt.Start(ctx); err != nil {
				log.Printf("device %s: %v", d.Name, err)
			}
		}(dev)
		log.Printf("device %s: runtime started (area=%s entity=%q actuator=%q)",
			dev.Name, areaName[dev.AreaID], dev.Entity, dev.Actuator)
	}
	<-ctx.Done()
	return nil
}
