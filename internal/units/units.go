// Package units converts estimated speeds for display. The filter and the
// store always work in metres per second.
package units

import "strings"

const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

const mpsToMPH = 2.2369362920544

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ValidUnitsString returns the valid units for flag help and error messages.
func ValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertSpeed converts a speed in m/s to unit. Unknown units leave the
// value in m/s.
func ConvertSpeed(speedMPS float64, unit string) float64 {
	switch unit {
	case MPH:
		return speedMPS * mpsToMPH
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// Label returns the display suffix for unit.
func Label(unit string) string {
	switch unit {
	case MPH:
		return "mph"
	case KMPH, KPH:
		return "km/h"
	default:
		return "m/s"
	}
}
