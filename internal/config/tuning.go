// Package config loads the tank monitor tuning parameters from JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kiniou-labs/level.report/internal/units"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the measurement pipeline and collector parameters.
// Fields are pointers so a partial JSON file only overrides what it names;
// the Get* accessors supply defaults for everything left unset.
type TuningConfig struct {
	// Estimator params
	SampleCount *int    `json:"sample_count,omitempty"`
	TrimCount   *int    `json:"trim_count,omitempty"`
	SettleDelay *string `json:"settle_delay,omitempty"` // duration string like "60ms"
	EchoTimeout *string `json:"echo_timeout,omitempty"` // duration string like "250ms"

	// Loop params
	Period          *string `json:"period,omitempty"` // duration string like "1s"
	SmoothingWindow *int    `json:"smoothing_window,omitempty"`

	// Environment params
	DefaultTemperatureC *float64 `json:"default_temperature_c,omitempty"`

	// Tank geometry (centimeters)
	TankHeightCm   *float64 `json:"tank_height_cm,omitempty"`
	TankRadiusCm   *float64 `json:"tank_radius_cm,omitempty"`
	TankMinDepthCm *float64 `json:"tank_min_depth_cm,omitempty"`

	// Collector params
	SerialPort *string `json:"serial_port,omitempty"`
	BaudRate   *int    `json:"baud_rate,omitempty"`
	Units      *string `json:"units,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset so every
// accessor falls back to its default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the max file size. Fields omitted
// from the file retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable. Batch sizing is
// checked here so a window that trims itself empty fails at startup, never
// at estimation time.
func (c *TuningConfig) Validate() error {
	if c.SampleCount != nil && *c.SampleCount <= 0 {
		return fmt.Errorf("sample_count must be positive, got %d", *c.SampleCount)
	}
	if c.TrimCount != nil && *c.TrimCount < 0 {
		return fmt.Errorf("trim_count must be non-negative, got %d", *c.TrimCount)
	}
	if kept := c.GetSampleCount() - 2*c.GetTrimCount(); kept <= 0 {
		return fmt.Errorf("sample_count %d leaves no samples after trimming %d from each side",
			c.GetSampleCount(), c.GetTrimCount())
	}

	if c.SmoothingWindow != nil && *c.SmoothingWindow <= 0 {
		return fmt.Errorf("smoothing_window must be positive, got %d", *c.SmoothingWindow)
	}

	for name, field := range map[string]*string{
		"settle_delay": c.SettleDelay,
		"echo_timeout": c.EchoTimeout,
		"period":       c.Period,
	} {
		if field != nil && *field != "" {
			if _, err := time.ParseDuration(*field); err != nil {
				return fmt.Errorf("invalid %s %q: %w", name, *field, err)
			}
		}
	}

	if c.TankHeightCm != nil && *c.TankHeightCm <= 0 {
		return fmt.Errorf("tank_height_cm must be positive, got %g", *c.TankHeightCm)
	}
	if c.TankRadiusCm != nil && *c.TankRadiusCm <= 0 {
		return fmt.Errorf("tank_radius_cm must be positive, got %g", *c.TankRadiusCm)
	}
	if c.TankMinDepthCm != nil {
		if *c.TankMinDepthCm < 0 || *c.TankMinDepthCm >= c.GetTankHeightCm() {
			return fmt.Errorf("tank_min_depth_cm %g must be within [0, %g)", *c.TankMinDepthCm, c.GetTankHeightCm())
		}
	}

	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("invalid units %q: expected one of %s", *c.Units, units.GetValidUnitsString())
	}

	return nil
}

// GetSampleCount returns the batch size or the default.
func (c *TuningConfig) GetSampleCount() int {
	if c.SampleCount == nil {
		return 15
	}
	return *c.SampleCount
}

// GetTrimCount returns the per-side trim count or the default.
func (c *TuningConfig) GetTrimCount() int {
	if c.TrimCount == nil {
		return 2
	}
	return *c.TrimCount
}

// GetSettleDelay parses and returns the inter-sample settle delay.
func (c *TuningConfig) GetSettleDelay() time.Duration {
	return c.duration(c.SettleDelay, 60*time.Millisecond)
}

// GetEchoTimeout parses and returns the per-measurement echo deadline.
func (c *TuningConfig) GetEchoTimeout() time.Duration {
	return c.duration(c.EchoTimeout, 250*time.Millisecond)
}

// GetPeriod parses and returns the sampling loop period.
func (c *TuningConfig) GetPeriod() time.Duration {
	return c.duration(c.Period, time.Second)
}

// GetSmoothingWindow returns the moving-average window size or the default.
func (c *TuningConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 10
	}
	return *c.SmoothingWindow
}

// GetDefaultTemperatureC returns the ambient temperature assumed before the
// first external report.
func (c *TuningConfig) GetDefaultTemperatureC() float64 {
	if c.DefaultTemperatureC == nil {
		return 20
	}
	return *c.DefaultTemperatureC
}

// GetTankHeightCm returns the sensor-to-bottom height or the default.
func (c *TuningConfig) GetTankHeightCm() float64 {
	if c.TankHeightCm == nil {
		return 90
	}
	return *c.TankHeightCm
}

// GetTankRadiusCm returns the tank radius or the default.
func (c *TuningConfig) GetTankRadiusCm() float64 {
	if c.TankRadiusCm == nil {
		return 40
	}
	return *c.TankRadiusCm
}

// GetTankMinDepthCm returns the unusable bottom depth or the default.
func (c *TuningConfig) GetTankMinDepthCm() float64 {
	if c.TankMinDepthCm == nil {
		return 10
	}
	return *c.TankMinDepthCm
}

// GetSerialPort returns the sensor bridge port path or the default.
func (c *TuningConfig) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return "/dev/ttyACM0"
	}
	return *c.SerialPort
}

// GetBaudRate returns the serial baud rate or the default.
func (c *TuningConfig) GetBaudRate() int {
	if c.BaudRate == nil || *c.BaudRate <= 0 {
		return 9600
	}
	return *c.BaudRate
}

// GetUnits returns the reporting length unit or the default.
func (c *TuningConfig) GetUnits() string {
	if c.Units == nil || *c.Units == "" {
		return units.CM
	}
	return *c.Units
}

func (c *TuningConfig) duration(field *string, fallback time.Duration) time.Duration {
	if field == nil || *field == "" {
		return fallback
	}
	d, err := time.ParseDuration(*field)
	if err != nil {
		return fallback
	}
	return d
}
