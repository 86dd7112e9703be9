package units

// Volume unit constants
const (
	Liters  = "l"
	Gallons = "gal"
)

// ConvertVolume converts a volume from liters to the target units
// Database stores volumes in liters
func ConvertVolume(volumeL float64, targetUnits string) float64 {
	switch targetUnits {
	case Gallons:
		return volumeL * 0.264172 // liters to US gallons
	case Liters:
		return volumeL
	default:
		return volumeL
	}
}
