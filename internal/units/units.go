// Package units provides shared constants and validation for level units
package units

// Unit constants
const (
	CM = "cm"
	MM = "mm"
	IN = "in"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{CM, MM, IN}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "cm, mm, in"
}

// ConvertLength converts a level from centimeters to the target units
// The pipeline and database work in cm (centimeters)
func ConvertLength(lengthCM float64, targetUnits string) float64 {
	switch targetUnits {
	case MM:
		return lengthCM * 10
	case IN:
		return lengthCM / 2.54
	case CM:
		return lengthCM
	default:
		return lengthCM // default to cm if unknown unit
	}
}
