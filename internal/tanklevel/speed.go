// Package tanklevel implements the measurement-conditioning pipeline for an
// ultrasonic tank level sensor: raw pulse sampling, temperature-compensated
// speed-of-sound conversion, outlier-trimmed estimation and moving-average
// smoothing, feeding a static tank geometry model.
package tanklevel

// Speed of sound in dry air is close to linear in temperature over the range
// a water tank ever sees: 331.3 + 0.606*T m/s.
const (
	speedOfSoundBase  = 331.3 // m/s at 0 degC
	speedOfSoundSlope = 0.606 // m/s per degC
)

// DefaultTemperature is the ambient temperature assumed until an external
// temperature report arrives.
const DefaultTemperature = 20.0

// SpeedOfSound maps the ambient temperature to the factor used to turn echo
// round-trip microseconds into centimeters. The factor is read by the
// Estimator on every sample and replaced whenever a new temperature lands.
type SpeedOfSound struct {
	factor float64
}

// NewSpeedOfSound returns a model seeded with the given temperature.
func NewSpeedOfSound(celsius float64) *SpeedOfSound {
	s := &SpeedOfSound{}
	s.SetTemperature(celsius)
	return s
}

// SetTemperature recomputes the conversion factor for the given ambient
// temperature in degrees Celsius and returns the new factor. Any finite
// value is accepted; an implausible temperature produces an implausible but
// well-defined factor.
func (s *SpeedOfSound) SetTemperature(celsius float64) float64 {
	// m/s to cm/us divides by 1e4.
	s.factor = (speedOfSoundBase + speedOfSoundSlope*celsius) / 10000
	return s.factor
}

// Factor returns the current conversion factor in cm per microsecond.
func (s *SpeedOfSound) Factor() float64 {
	return s.factor
}
