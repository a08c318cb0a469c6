package decision

import (
	"math"
	"time"

	"github.com/lwx123321/smart-garden/internal/model"
)

// Watering geometry and hydraulics shared by every area. Moisture values are
// fractions of saturation (0..1); water amounts are liters unless named mm.
const (
	// fraction of the deficit one watering run is allowed to replenish
	depletionFraction = 0.3
	// liters of water held by a cubic meter of saturated root zone
	soilWaterCapacity = 1300.0
	// irrigated surface per area, square meters
	areaSquareMeters = 50.0
	// irrigator output, liters per hour
	flowLitersPerHour = 1800.0
	// rain contribution per mm over the area, liters
	rainLitersPerMM = 50.0
)

// BaselineThreshold is the seasonal target moisture for a soil: the midpoint
// of the wilting-point..field-capacity band scaled by the soil's adjustment,
// swinging +-10% over the year with the peak in early summer.
func BaselineThreshold(p model.SoilProfile, dayOfYear int) float64 {
	mid := (p.WiltingPoint + p.FieldCapacity) / 2 / 100
	seasonal := 1 + 0.1*math.Sin(2*math.Pi*float64(dayOfYear-105)/365)
	return mid * p.Adjustment * seasonal
}

// TempFactor lowers the threshold 1% per degree of mean temperature above
// 20C. At or below 20C it is neutral.
func TempFactor(avgTemp float64) float64 {
	if avgTemp <= 20 {
		return 1
	}
	return 1 - (avgTemp-20)/100
}

// HumidityFactor lowers the threshold 1% per point of mean relative humidity
// below 60%. At or above 60% it is neutral.
func HumidityFactor(avgHumidity float64) float64 {
	if avgHumidity >= 60 {
		return 1
	}
	return 1 - (60-avgHumidity)/100
}

// Threshold is the climate-adjusted moisture target an area should hold.
func Threshold(p model.SoilProfile, dayOfYear int, avgTemp, avgHumidity float64) float64 {
	return BaselineThreshold(p, dayOfYear) * TempFactor(avgTemp) * HumidityFactor(avgHumidity)
}

// PredictedMoisture projects the current moisture after the forecast rain
// soaks in: the forecast amount scaled by the soil's absorption factor,
// clamped at saturation.
func PredictedMoisture(moisture, rainMM, absorption float64) float64 {
	return math.Min(moisture+rainMM*absorption, 1.0)
}

// MoistureDeficit is the gap below threshold in percentage points; never
// negative.
func MoistureDeficit(threshold, moisture float64) float64 {
	return math.Max(0, (threshold-moisture)*100)
}

// RequiredWaterLiters converts a deficit into the liters one run should
// apply over the area's root zone.
func RequiredWaterLiters(deficitPct float64) float64 {
	return deficitPct * depletionFraction * soilWaterCapacity * areaSquareMeters / 100
}

// DurationMinutes is the valve-open time needed to deliver the required
// water, net of the forecast rain's contribution. The soil adjustment scales
// both sides: heavy soils take water slowly and also keep the rain better.
func DurationMinutes(requiredLiters, rainMM, adjustment float64) float64 {
	net := requiredLiters*adjustment - rainMM*rainLitersPerMM*adjustment
	return math.Max(0, net/flowLitersPerHour*60)
}

// InSunWindow reports whether now falls strictly inside the full-sun band:
// more than an hour after sunrise and more than an hour before sunset.
// Watering inside the band is wasteful unless heavy cloud cover is forecast.
func InSunWindow(now, sunrise, sunset time.Time) bool {
	return now.After(sunrise.Add(time.Hour)) && now.Before(sunset.Add(-time.Hour))
}
