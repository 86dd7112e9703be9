package tanklevel

import (
	"context"
	"fmt"
	"time"

	"github.com/kiniou-labs/level.report/internal/monitoring"
)

// Reporter receives one conditioned measurement per sampling period. The
// reporter owns formatting, transmission and persistence; the pipeline only
// hands over the values.
type Reporter interface {
	Report(result TrimResult, smoothedDistance float64, reading Reading)
}

// ReporterFunc adapts a plain function to the Reporter interface.
type ReporterFunc func(result TrimResult, smoothedDistance float64, reading Reading)

// Report calls f.
func (f ReporterFunc) Report(result TrimResult, smoothedDistance float64, reading Reading) {
	f(result, smoothedDistance, reading)
}

// Monitor composes the pipeline stages and drives them at a fixed period.
// All pipeline state (conversion factor, batch scratch, smoothing window)
// is owned by the single goroutine running the loop; the temperature
// channel is the only input shared with other goroutines.
type Monitor struct {
	speed     *SpeedOfSound
	estimator *Estimator
	smoother  *Smoother
	geometry  *Geometry
	reporter  Reporter
	period    time.Duration

	// temps holds at most the latest unconsumed temperature update.
	temps chan float64
}

// NewMonitor wires the pipeline stages into a sampling loop with the given
// period.
func NewMonitor(speed *SpeedOfSound, estimator *Estimator, smoother *Smoother, geometry *Geometry, reporter Reporter, period time.Duration) (*Monitor, error) {
	if speed == nil || estimator == nil || smoother == nil || geometry == nil {
		return nil, fmt.Errorf("monitor: all pipeline stages are required")
	}
	if reporter == nil {
		return nil, fmt.Errorf("monitor: reporter is required")
	}
	if period <= 0 {
		return nil, fmt.Errorf("monitor: period must be positive, got %s", period)
	}
	return &Monitor{
		speed:     speed,
		estimator: estimator,
		smoother:  smoother,
		geometry:  geometry,
		reporter:  reporter,
		period:    period,
		temps:     make(chan float64, 1),
	}, nil
}

// UpdateTemperature hands a new ambient temperature to the pipeline. It
// never blocks: if the loop has not consumed the previous update yet, the
// older value is discarded and the latest wins. The update takes effect
// before the next measurement batch starts.
func (m *Monitor) UpdateTemperature(celsius float64) {
	select {
	case m.temps <- celsius:
	default:
		select {
		case <-m.temps:
		default:
		}
		select {
		case m.temps <- celsius:
		default:
		}
	}
}

// Run executes the sampling loop until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tick runs one measurement period: apply a pending temperature update if
// one arrived, then estimate, smooth, derive and report. Exported so tests
// and the simulator can step the pipeline without real time passing.
func (m *Monitor) Tick() {
	select {
	case celsius := <-m.temps:
		factor := m.speed.SetTemperature(celsius)
		monitoring.Logf("ambient temperature %.1fC, conversion factor %.5f cm/us", celsius, factor)
	default:
	}

	result := m.estimator.Estimate()
	smoothed := m.smoother.Update(result.TrimmedMean)
	reading := m.geometry.Derive(smoothed)
	m.reporter.Report(result, smoothed, reading)
}
