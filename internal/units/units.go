// Package units converts vehicle speeds for report output. Simulation
// output always carries speeds in metres per second; reports may be
// labelled in any unit listed here.
package units

// Accepted unit names.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph" // alias for kmph
)

// factors maps a unit name to its multiplier from metres per second.
var factors = map[string]float64{
	MPS:  1,
	MPH:  2.23694,
	KMPH: 3.6,
	KPH:  3.6,
}

// IsValid reports whether unit names a supported speed unit.
func IsValid(unit string) bool {
	_, ok := factors[unit]
	return ok
}

// ValidList returns the supported unit names for flag help and errors.
func ValidList() string {
	return "mps, mph, kmph, kph"
}

// ConvertSpeed converts a speed in m/s to the target unit. Unknown units
// pass the value through unchanged.
func ConvertSpeed(speedMPS float64, targetUnit string) float64 {
	f, ok := factors[targetUnit]
	if !ok {
		return speedMPS
	}
	return speedMPS * f
}
