package model

import "strings"

// SoilType is the fixed enumeration of soils an area can declare.
type SoilType string

const (
	SoilSandy SoilType = "sandy"
	SoilClay  SoilType = "clay"
	SoilLoamy SoilType = "loamy"
	SoilSilty SoilType = "silty"
	SoilPeaty SoilType = "peaty"
)

// SoilProfile holds the per-soil constants the watering decision uses.
// FieldCapacity and WiltingPoint are moisture percentages; Adjustment scales
// the baseline threshold; Absorption converts forecast rain (mm) into a
// moisture-fraction increase.
type SoilProfile struct {
	FieldCapacity float64
	WiltingPoint  float64
	Adjustment    float64
	Absorption    float64
}

var soilProfiles = map[SoilType]SoilProfile{
	SoilSandy: {FieldCapacity: 15, WiltingPoint: 4, Adjustment: 0.3, Absorption: 0.85},
	SoilClay:  {FieldCapacity: 50, WiltingPoint: 15, Adjustment: 1.0, Absorption: 0.3},
	SoilLoamy: {FieldCapacity: 25, WiltingPoint: 10, Adjustment: 0.85, Absorption: 0.7},
	SoilSilty: {FieldCapacity: 35, WiltingPoint: 12, Adjustment: 0.9, Absorption: 0.6},
	SoilPeaty: {FieldCapacity: 40, WiltingPoint: 10, Adjustment: 0.88, Absorption: 0.8},
}

// DefaultSoilProfile is the documented fallback for an unknown soil type.
var DefaultSoilProfile = SoilProfile{
	FieldCapacity: 30,
	WiltingPoint:  10,
	Adjustment:    0.5,
	Absorption:    0.5,
}

// Profile returns the constants for a soil type, case-insensitively.
func Profile(t SoilType) (SoilProfile, bool) {
	p, ok := soilProfiles[SoilType(strings.ToLower(string(t)))]
	return p, ok
}

// ProfileOrDefault falls back to DefaultSoilProfile for unknown soils.
func ProfileOrDefault(t SoilType) SoilProfile {
	if p, ok := Profile(t); ok {
		return p
	}
	return DefaultSoilProfile
}
