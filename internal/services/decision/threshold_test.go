package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwx123321/smart-garden/internal/model"
)

func TestBaselineThresholdStaysInsideSoilBand(t *testing.T) {
	for _, soil := range []model.SoilType{model.SoilSandy, model.SoilClay, model.SoilLoamy, model.SoilSilty, model.SoilPeaty} {
		p, ok := model.Profile(soil)
		require.True(t, ok, soil)
		for day := 1; day <= 365; day += 30 {
			b := BaselineThreshold(p, day)
			assert.Greater(t, b, 0.0, "%s day %d", soil, day)
			assert.Less(t, b, p.FieldCapacity/100, "%s day %d", soil, day)
		}
	}
}

func TestClimateFactorsNeutralInMildWeather(t *testing.T) {
	assert.Equal(t, 1.0, TempFactor(20))
	assert.Equal(t, 1.0, TempFactor(12))
	assert.Equal(t, 1.0, HumidityFactor(60))
	assert.Equal(t, 1.0, HumidityFactor(85))
}

func TestClimateFactorsLowerThresholdInHotDryWeather(t *testing.T) {
	assert.InDelta(t, 0.9, TempFactor(30), 1e-9)
	assert.InDelta(t, 0.8, HumidityFactor(40), 1e-9)
	// hotter means lower
	assert.Less(t, TempFactor(35), TempFactor(28))
	// drier means lower
	assert.Less(t, HumidityFactor(20), HumidityFactor(50))
}

func TestAdjustmentFactorsOrderIndependent(t *testing.T) {
	p := model.ProfileOrDefault(model.SoilLoamy)
	base := BaselineThreshold(p, 100)
	a := base * TempFactor(28) * HumidityFactor(45)
	b := base * HumidityFactor(45) * TempFactor(28)
	assert.InEpsilon(t, a, b, 1e-12)
}

func TestPredictedMoistureClampsAtSaturation(t *testing.T) {
	assert.InDelta(t, 0.65, PredictedMoisture(0.3, 0.5, 0.7), 1e-9)
	assert.InDelta(t, 0.1085, PredictedMoisture(0.10, 0.01, 0.85), 1e-9)
	assert.Equal(t, 1.0, PredictedMoisture(0.95, 10, 1.0))
	// no rain, no change
	assert.Equal(t, 0.3, PredictedMoisture(0.3, 0, 0.85))
}

func TestMoistureDeficitNeverNegative(t *testing.T) {
	assert.InDelta(t, 5.0, MoistureDeficit(0.25, 0.20), 1e-9)
	assert.Equal(t, 0.0, MoistureDeficit(0.20, 0.25))
}

func TestDurationMonotonicInRain(t *testing.T) {
	liters := RequiredWaterLiters(8)
	prev := DurationMinutes(liters, 0, 0.85)
	assert.Greater(t, prev, 0.0)
	for rain := 1.0; rain <= 50; rain += 1 {
		d := DurationMinutes(liters, rain, 0.85)
		assert.LessOrEqual(t, d, prev, "rain=%v", rain)
		assert.GreaterOrEqual(t, d, 0.0, "rain=%v", rain)
		prev = d
	}
	// enough rain drives the duration to exactly zero, never below
	assert.Equal(t, 0.0, DurationMinutes(liters, 1000, 0.85))
}

func TestInSunWindow(t *testing.T) {
	sunrise := time.Date(2026, 6, 10, 5, 30, 0, 0, time.UTC)
	sunset := time.Date(2026, 6, 10, 20, 30, 0, 0, time.UTC)

	assert.False(t, InSunWindow(time.Date(2026, 6, 10, 6, 0, 0, 0, time.UTC), sunrise, sunset))
	assert.True(t, InSunWindow(time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC), sunrise, sunset))
	assert.False(t, InSunWindow(time.Date(2026, 6, 10, 20, 0, 0, 0, time.UTC), sunrise, sunset))
	// boundaries are exclusive
	assert.False(t, InSunWindow(sunrise.Add(time.Hour), sunrise, sunset))
	assert.False(t, InSunWindow(sunset.Add(-time.Hour), sunrise, sunset))
}
