// Package units provides shared constants and validation for rating scales
package units

// Scale constants
const (
	Unit     = "unit"
	Scale5   = "scale5"
	Scale10  = "scale10"
	Scale100 = "scale100"
)

// ValidScales contains all valid scale values
var ValidScales = []string{Unit, Scale5, Scale10, Scale100}

// IsValid checks if the given scale is in the list of valid scales
func IsValid(scale string) bool {
	for _, validScale := range ValidScales {
		if scale == validScale {
			return true
		}
	}
	return false
}

// GetValidScalesString returns a comma-separated string of valid scales for error messages
func GetValidScalesString() string {
	return "unit, scale5, scale10, scale100"
}

// ScaleMax returns the top of the native rating range for a scale.
// The unit scale is already bounded by (0,1).
func ScaleMax(scale string) float64 {
	switch scale {
	case Scale5:
		return 5
	case Scale10:
		return 10
	case Scale100:
		return 100
	default:
		return 1
	}
}

// ConvertEffect converts an effect from the unit interval to the target scale
// Model output is always on the unit interval (0,1)
func ConvertEffect(effectUnit float64, targetScale string) float64 {
	switch targetScale {
	case Scale5:
		return effectUnit * 5
	case Scale10:
		return effectUnit * 10
	case Scale100:
		return effectUnit * 100
	case Unit:
		return effectUnit
	default:
		return effectUnit
	}
}
