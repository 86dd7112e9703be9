// Command tanksim drives the measurement pipeline with a synthetic
// ultrasonic sensor so the conditioning stages can be watched (and tuned)
// without hardware. It prints one key-value report line per period.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/kiniou-labs/level.report/internal/tanklevel"
)

var (
	periods     = flag.Int("periods", 120, "Number of sampling periods to simulate")
	period      = flag.Duration("period", time.Second, "Simulated sampling period")
	samples     = flag.Int("samples", 15, "Samples per batch")
	trim        = flag.Int("trim", 2, "Samples trimmed from each end of the batch")
	window      = flag.Int("window", 10, "Smoothing window size")
	height      = flag.Float64("height", 90, "Tank height in cm")
	radius      = flag.Float64("radius", 40, "Tank radius in cm")
	minDepth    = flag.Float64("min-depth", 10, "Unusable bottom depth in cm")
	startLevel  = flag.Float64("start-level", 40, "Initial water level in cm")
	fillRate    = flag.Float64("fill-rate", 0.5, "Fill rate in cm/min (negative drains)")
	noiseUS     = flag.Float64("noise", 15, "Echo jitter standard deviation in us")
	outlierProb = flag.Float64("outlier-prob", 0.05, "Probability of an echo-timeout spike per sample")
	temperature = flag.Float64("temperature", 20, "Ambient temperature in C")
	seed        = flag.Int64("seed", 1, "RNG seed")
)

// simSampler fabricates echo durations for the current water level, with
// gaussian jitter and occasional echo-timeout spikes.
type simSampler struct {
	rng         *rand.Rand
	speed       *tanklevel.SpeedOfSound
	distance    *float64 // current true air gap, cm
	noiseUS     float64
	outlierProb float64
}

func (s *simSampler) Measure() time.Duration {
	if s.rng.Float64() < s.outlierProb {
		// the bridge reports its echo timeout as a very long round trip
		return 60 * time.Millisecond
	}
	us := *s.distance * 2 / s.speed.Factor()
	us += s.rng.NormFloat64() * s.noiseUS
	if us < 0 {
		us = 0
	}
	return time.Duration(us * float64(time.Microsecond))
}

func main() {
	flag.Parse()

	speed := tanklevel.NewSpeedOfSound(*temperature)

	level := *startLevel
	distance := *height - level

	sampler := &simSampler{
		rng:         rand.New(rand.NewSource(*seed)),
		speed:       speed,
		distance:    &distance,
		noiseUS:     *noiseUS,
		outlierProb: *outlierProb,
	}

	estimator, err := tanklevel.NewEstimator(sampler, speed, *samples, *trim, 0)
	if err != nil {
		log.Fatalf("bad estimator configuration: %v", err)
	}
	smoother, err := tanklevel.NewSmoother(*window)
	if err != nil {
		log.Fatalf("bad smoother configuration: %v", err)
	}
	geometry, err := tanklevel.NewGeometry(*height, *radius, *minDepth)
	if err != nil {
		log.Fatalf("bad tank geometry: %v", err)
	}

	elapsed := time.Duration(0)
	reporter := tanklevel.ReporterFunc(func(result tanklevel.TrimResult, smoothed float64, reading tanklevel.Reading) {
		fmt.Printf("t=%s true_level=%.2f level=%.2f volume_l=%.1f fill_pct=%.1f smoothed=%.2f trimmed_mean=%.2f raw_min=%.2f raw_max=%.2f\n",
			elapsed, level, reading.UsefulLevel, reading.VolumeLiters, reading.UsefulPercent,
			smoothed, result.TrimmedMean, result.RawMin, result.RawMax)
	})

	monitor, err := tanklevel.NewMonitor(speed, estimator, smoother, geometry, reporter, *period)
	if err != nil {
		log.Fatalf("bad monitor configuration: %v", err)
	}

	for i := 0; i < *periods; i++ {
		monitor.Tick()

		// advance the simulated water level for the next period
		elapsed += *period
		level += *fillRate * period.Minutes()
		if level < 0 {
			level = 0
		}
		if level > *height {
			level = *height
		}
		distance = *height - level
	}
}
