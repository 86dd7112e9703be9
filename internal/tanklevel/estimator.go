package tanklevel

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// TrimResult is one period's distance estimate together with the batch
// extrema kept for observability. All distances are in centimeters.
type TrimResult struct {
	RawMin      float64 `json:"raw_min"`
	RawMax      float64 `json:"raw_max"`
	TrimmedMin  float64 `json:"trimmed_min"`
	TrimmedMax  float64 `json:"trimmed_max"`
	TrimmedMean float64 `json:"trimmed_mean"`
}

// Estimator condenses a batch of raw echo durations into one distance
// estimate by sorting the converted distances and discarding the extremes
// on both ends before averaging. A single wild reading (echo timeout,
// reflection off a ripple) lands in the trimmed band and never reaches the
// mean as long as fewer than trimCount+1 samples misbehave.
type Estimator struct {
	sampler     Sampler
	speed       *SpeedOfSound
	sampleCount int
	trimCount   int
	settleDelay time.Duration

	// batch is scratch space reused across periods.
	batch []float64

	// sleep is replaced in tests to avoid real settle delays.
	sleep func(time.Duration)
}

// NewEstimator validates the batch parameters and returns an estimator.
// sampleCount samples are taken per period and trimCount are discarded from
// each end of the sorted batch; sampleCount must exceed 2*trimCount or no
// values would survive trimming, which is a configuration error and is
// rejected here rather than at estimation time.
func NewEstimator(sampler Sampler, speed *SpeedOfSound, sampleCount, trimCount int, settleDelay time.Duration) (*Estimator, error) {
	if sampler == nil {
		return nil, fmt.Errorf("estimator: sampler is required")
	}
	if speed == nil {
		return nil, fmt.Errorf("estimator: speed-of-sound model is required")
	}
	if trimCount < 0 {
		return nil, fmt.Errorf("estimator: trim count must be non-negative, got %d", trimCount)
	}
	if kept := sampleCount - 2*trimCount; kept <= 0 {
		return nil, fmt.Errorf("estimator: %d samples leave nothing to average after trimming %d from each side", sampleCount, trimCount)
	}
	return &Estimator{
		sampler:     sampler,
		speed:       speed,
		sampleCount: sampleCount,
		trimCount:   trimCount,
		settleDelay: settleDelay,
		batch:       make([]float64, 0, sampleCount),
		sleep:       time.Sleep,
	}, nil
}

// Estimate runs one measurement period: sampleCount echo cycles, each
// separated by the settle delay so acoustic ringing from the previous pulse
// dies down before the next trigger. Each duration is converted with the
// conversion factor current at that moment; a temperature update landing
// mid-batch simply applies from the next sample on.
func (e *Estimator) Estimate() TrimResult {
	e.batch = e.batch[:0]
	for i := 0; i < e.sampleCount; i++ {
		if i > 0 {
			e.sleep(e.settleDelay)
		}
		raw := e.sampler.Measure()
		e.batch = append(e.batch, e.distance(raw))
	}

	sort.Float64s(e.batch)

	trimmed := e.batch[e.trimCount : len(e.batch)-e.trimCount]
	return TrimResult{
		RawMin:      e.batch[0],
		RawMax:      e.batch[len(e.batch)-1],
		TrimmedMin:  trimmed[0],
		TrimmedMax:  trimmed[len(trimmed)-1],
		TrimmedMean: stat.Mean(trimmed, nil),
	}
}

// distance converts a raw round-trip duration to centimeters. The echo
// covers the sensor-to-surface path twice, so the one-way distance uses
// half the duration.
func (e *Estimator) distance(raw time.Duration) float64 {
	us := float64(raw.Nanoseconds()) / 1e3
	return us / 2 * e.speed.Factor()
}
