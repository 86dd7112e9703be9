package tanklevel

import (
	"fmt"
	"math"
)

// Geometry describes the static dimensions of a vertical cylindrical tank.
// All lengths are centimeters. The sensor looks straight down from the top
// of the tank, so the measured distance is the air gap above the surface.
type Geometry struct {
	Height   float64 // sensor face to tank bottom
	Radius   float64
	MinDepth float64 // water below this depth cannot be drawn

	maxUseful   float64
	volumePerCm float64 // cm^3 of water per cm of depth
}

// NewGeometry validates the dimensions and precomputes the derived
// constants used on every reading.
func NewGeometry(height, radius, minDepth float64) (*Geometry, error) {
	if height <= 0 {
		return nil, fmt.Errorf("tank: height must be positive, got %g", height)
	}
	if radius <= 0 {
		return nil, fmt.Errorf("tank: radius must be positive, got %g", radius)
	}
	if minDepth < 0 || minDepth >= height {
		return nil, fmt.Errorf("tank: min depth %g must be within [0, %g)", minDepth, height)
	}
	return &Geometry{
		Height:      height,
		Radius:      radius,
		MinDepth:    minDepth,
		maxUseful:   height - minDepth,
		volumePerCm: math.Pi * radius * radius,
	}, nil
}

// Reading is the derived state of the tank for one smoothed distance.
type Reading struct {
	UsefulLevel   float64 `json:"useful_level_cm"`
	VolumeLiters  float64 `json:"volume_l"`
	UsefulPercent float64 `json:"useful_percent"`
}

// Derive maps a smoothed sensor distance to a tank reading. Pure and total:
// the useful level clamps at zero when the surface sits below the minimum
// draw depth, but the percentage is deliberately not clamped at 100. An
// overfull tank (or a sensor mounted above the rim) shows up as >100%
// instead of being hidden.
func (g *Geometry) Derive(smoothedDistance float64) Reading {
	waterLevel := g.Height - smoothedDistance
	useful := waterLevel - g.MinDepth
	if useful < 0 {
		useful = 0
	}
	return Reading{
		UsefulLevel:   useful,
		VolumeLiters:  g.volumePerCm * useful / 1000,
		UsefulPercent: useful / g.maxUseful * 100,
	}
}

// MaxUsefulHeight returns the depth range that maps to 0..100%.
func (g *Geometry) MaxUsefulHeight() float64 {
	return g.maxUseful
}

// VolumePerCm returns the water volume, in cm^3, held by one centimeter of
// depth.
func (g *Geometry) VolumePerCm() float64 {
	return g.volumePerCm
}
