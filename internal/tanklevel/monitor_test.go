package tanklevel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	results  []TrimResult
	smoothed []float64
	readings []Reading
}

func (r *recordingReporter) Report(result TrimResult, smoothedDistance float64, reading Reading) {
	r.results = append(r.results, result)
	r.smoothed = append(r.smoothed, smoothedDistance)
	r.readings = append(r.readings, reading)
}

func newTestMonitor(t *testing.T, sampler Sampler, reporter Reporter) (*Monitor, *SpeedOfSound) {
	t.Helper()

	speed := NewSpeedOfSound(DefaultTemperature)
	estimator, err := NewEstimator(sampler, speed, 5, 1, 0)
	require.NoError(t, err)
	estimator.sleep = func(time.Duration) {}

	smoother, err := NewSmoother(4)
	require.NoError(t, err)

	geometry, err := NewGeometry(90, 40, 10)
	require.NoError(t, err)

	m, err := NewMonitor(speed, estimator, smoother, geometry, reporter, time.Second)
	require.NoError(t, err)
	return m, speed
}

func TestMonitorTickReportsOncePerPeriod(t *testing.T) {
	reporter := &recordingReporter{}
	sampler := SamplerFunc(func() time.Duration { return 2914 * time.Microsecond })
	m, speed := newTestMonitor(t, sampler, reporter)

	m.Tick()
	m.Tick()

	require.Len(t, reporter.readings, 2)

	wantDistance := 2914.0 / 2 * speed.Factor()
	assert.InDelta(t, wantDistance, reporter.smoothed[0], 1e-9)
	assert.InDelta(t, wantDistance, reporter.results[0].TrimmedMean, 1e-9)

	// Constant input: the derived reading is stable across periods.
	assert.Equal(t, reporter.readings[0], reporter.readings[1])
	assert.InDelta(t, 90-wantDistance-10, reporter.readings[0].UsefulLevel, 1e-9)
}

func TestMonitorTemperatureUpdateAppliesBeforeNextBatch(t *testing.T) {
	reporter := &recordingReporter{}
	sampler := SamplerFunc(func() time.Duration { return 2914 * time.Microsecond })
	m, speed := newTestMonitor(t, sampler, reporter)

	m.Tick()
	before := speed.Factor()

	m.UpdateTemperature(30)
	m.Tick()

	assert.Greater(t, speed.Factor(), before, "update must land before the next batch")
	assert.Greater(t, reporter.results[1].TrimmedMean, reporter.results[0].TrimmedMean)
}

func TestMonitorLatestTemperatureWins(t *testing.T) {
	reporter := &recordingReporter{}
	sampler := SamplerFunc(func() time.Duration { return 1000 * time.Microsecond })
	m, speed := newTestMonitor(t, sampler, reporter)

	// Two updates between ticks: only the newest is consumed, and pushing
	// while the buffer is full must never block.
	m.UpdateTemperature(25)
	m.UpdateTemperature(31)
	m.Tick()

	want := (speedOfSoundBase + speedOfSoundSlope*31) / 10000
	assert.InDelta(t, want, speed.Factor(), 1e-12)
}

func TestMonitorRunStopsOnCancel(t *testing.T) {
	reported := make(chan struct{}, 16)
	reporter := ReporterFunc(func(TrimResult, float64, Reading) {
		select {
		case reported <- struct{}{}:
		default:
		}
	})
	sampler := SamplerFunc(func() time.Duration { return 1000 * time.Microsecond })

	speed := NewSpeedOfSound(DefaultTemperature)
	estimator, err := NewEstimator(sampler, speed, 5, 1, 0)
	require.NoError(t, err)
	estimator.sleep = func(time.Duration) {}
	smoother, err := NewSmoother(4)
	require.NoError(t, err)
	geometry, err := NewGeometry(90, 40, 10)
	require.NoError(t, err)

	m, err := NewMonitor(speed, estimator, smoother, geometry, reporter, time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case <-reported:
	case <-time.After(5 * time.Second):
		t.Fatal("no report before timeout")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestNewMonitorValidation(t *testing.T) {
	speed := NewSpeedOfSound(DefaultTemperature)
	estimator, err := NewEstimator(SamplerFunc(func() time.Duration { return 0 }), speed, 5, 1, 0)
	require.NoError(t, err)
	smoother, err := NewSmoother(4)
	require.NoError(t, err)
	geometry, err := NewGeometry(90, 40, 10)
	require.NoError(t, err)
	reporter := ReporterFunc(func(TrimResult, float64, Reading) {})

	_, err = NewMonitor(nil, estimator, smoother, geometry, reporter, time.Second)
	assert.Error(t, err)
	_, err = NewMonitor(speed, estimator, smoother, geometry, nil, time.Second)
	assert.Error(t, err)
	_, err = NewMonitor(speed, estimator, smoother, geometry, reporter, 0)
	assert.Error(t, err)
}
