package tanklevel

import (
	"math"
	"testing"
)

func TestSetTemperature(t *testing.T) {
	tests := []struct {
		name     string
		celsius  float64
		expected float64 // cm/us
	}{
		{"freezing", 0, 0.03313},
		{"room temperature", 20, 0.03434},
		{"hot summer loft", 30, 0.03495},
		{"cold cellar", 5, 0.03343},
		{"implausible but defined", -300, 0.01495},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &SpeedOfSound{}
			got := s.SetTemperature(tt.celsius)
			if math.Abs(got-tt.expected) > 0.0001 {
				t.Errorf("SetTemperature(%g) = %g, want %g", tt.celsius, got, tt.expected)
			}
			if got != s.Factor() {
				t.Errorf("Factor() = %g, want the value SetTemperature returned (%g)", s.Factor(), got)
			}
		})
	}
}

func TestNewSpeedOfSoundSeedsFactor(t *testing.T) {
	s := NewSpeedOfSound(DefaultTemperature)
	if s.Factor() <= 0 {
		t.Fatalf("factor must be strictly positive, got %g", s.Factor())
	}

	warmer := NewSpeedOfSound(DefaultTemperature + 10)
	if warmer.Factor() <= s.Factor() {
		t.Errorf("factor must grow with temperature: %g at 20C vs %g at 30C", s.Factor(), warmer.Factor())
	}
}
