package device

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/lwx123321/smart-garden/internal/model"
)

// Simulated sensors stand in for field hardware. Each keeps just enough
// state to produce a plausible series; readings are deterministic in shape
// with a little jitter on top.

const (
	// moisture change per minute of simulated time, as a fraction of
	// saturation
	soilGainPerMin  = 0.006
	soilDecayPerMin = 0.001

	soilSeed = 0.30
)

// SoilSensor integrates moisture over time: it dries slowly while the valve
// is closed and gains while water is flowing.
type SoilSensor struct {
	mu       sync.Mutex
	moisture float64
	wet      bool
	last     time.Time
}

func NewSoilSensor() *SoilSensor {
	return &SoilSensor{moisture: soilSeed}
}

// SetWet tells the sensor whether its area is being watered.
func (s *SoilSensor) SetWet(wet bool) {
	s.mu.Lock()
	s.wet = wet
	s.mu.Unlock()
}

func (s *SoilSensor) Read(now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.last.IsZero() {
		dtMin := now.Sub(s.last).Minutes()
		if dtMin > 0 {
			if s.wet {
				s.moisture += soilGainPerMin * dtMin
			} else {
				s.moisture -= soilDecayPerMin * dtMin
			}
			s.moisture = clamp01(s.moisture)
		}
	}
	s.last = now
	return s.moisture
}

// TempSensor follows a diurnal sinusoid around a daily mean, coldest before
// dawn.
type TempSensor struct {
	Mean      float64
	Amplitude float64
}

func NewTempSensor() *TempSensor {
	return &TempSensor{Mean: 18, Amplitude: 7}
}

func (s *TempSensor) Read(now time.Time) float64 {
	h := float64(now.Hour()) + float64(now.Minute())/60
	phase := math.Sin(2 * math.Pi * (h - 9) / 24)
	return s.Mean + s.Amplitude*phase + rand.Float64()*0.4 - 0.2
}

// HumiditySensor mirrors the temperature curve: humid nights, drier
// afternoons.
type HumiditySensor struct {
	Mean      float64
	Amplitude float64
}

func NewHumiditySensor() *HumiditySensor {
	return &HumiditySensor{Mean: 65, Amplitude: 20}
}

func (s *HumiditySensor) Read(now time.Time) float64 {
	h := float64(now.Hour()) + float64(now.Minute())/60
	phase := math.Sin(2 * math.Pi * (h - 9) / 24)
	v := s.Mean - s.Amplitude*phase + rand.Float64()*2 - 1
	return math.Max(0, math.Min(100, v))
}

// LightSensor reports ambient light in lux, near zero outside daylight
// hours.
type LightSensor struct{}

func (LightSensor) Read(now time.Time) float64 {
	h := float64(now.Hour()) + float64(now.Minute())/60
	if h < 6 || h > 21 {
		return rand.Float64() * 5
	}
	phase := math.Sin(math.Pi * (h - 6) / 15)
	return 20000*phase + rand.Float64()*500
}

// SensorFor builds the simulated sensor matching a device's entity; nil for
// pure actuators.
func SensorFor(dev model.Device) Sensor {
	switch dev.Entity {
	case model.EntitySoilMoisture:
		return NewSoilSensor()
	case model.EntityTemperature:
		return NewTempSensor()
	case model.EntityHumidity:
		return NewHumiditySensor()
	case model.EntityLight:
		return LightSensor{}
	default:
		return nil
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
