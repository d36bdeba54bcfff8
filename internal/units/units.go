// Package units provides the speed units reported by the receiver and the
// conversion into the canonical m/s stored on every fix.
package units

// Unit constants
const (
	MPS   = "mps"
	MPH   = "mph"
	KPH   = "kph"
	KMPH  = "kmph"
	Knots = "knots"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KPH, KMPH, Knots}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ToMPS converts a speed in the given units to metres per second. Unknown
// units are treated as m/s.
func ToMPS(speed float64, from string) float64 {
	switch from {
	case KPH, KMPH:
		return speed / 3.6
	case MPH:
		return speed * 0.44704
	case Knots:
		return speed * 1852.0 / 3600.0
	default:
		return speed
	}
}

// ConvertSpeed converts a speed from metres per second to the target units.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS / 0.44704
	case KPH, KMPH:
		return speedMPS * 3.6
	case Knots:
		return speedMPS * 3600.0 / 1852.0
	default:
		return speedMPS
	}
}
