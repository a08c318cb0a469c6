package model

// Area is a spatial grouping of devices sharing soil type and irrigation
// actuators. Rows come from the relational store.
type Area struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	SoilType SoilType `json:"soil_type"`
}

// Device is a registered sensor/actuator unit. Entity names the measurement
// it reports (temperature, humidity, soil); Actuator names the actuator kind
// it drives (irrigator, light) or is empty.
type Device struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	AreaID   int    `json:"area_id"`
	Entity   string `json:"entity"`
	Actuator string `json:"actuator"`
}

// Common entity names.
const (
	EntityTemperature  = "temperature"
	EntityHumidity     = "humidity"
	EntitySoilMoisture = "soil"
	EntityLight        = "light"
	EntityIrrigator    = "irrigator"
	EntityGate         = "gate"
)

// ActuatorsByArea groups a device list by area, keeping only devices that
// drive the named actuator kind.
func ActuatorsByArea(devices []Device, actuator string) map[int][]Device {
	out := make(map[int][]Device)
	for _, d := range devices {
		if d.Actuator != actuator {
			continue
		}
		out[d.AreaID] = append(out[d.AreaID], d)
	}
	return out
}
