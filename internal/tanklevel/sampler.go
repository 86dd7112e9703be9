package tanklevel

import "time"

// Sampler performs one hardware trigger/echo cycle and returns the raw
// round-trip pulse duration. Measure blocks for the physical round trip,
// bounded in practice by the transducer's echo timeout.
//
// Measure has no error return on purpose: a timed-out or garbled cycle is
// reported as a zero (or otherwise implausible) duration and flows into the
// Estimator, where trimming and smoothing absorb it. The sampling loop
// never stalls on a bad read.
type Sampler interface {
	Measure() time.Duration
}

// SamplerFunc adapts a plain function to the Sampler interface.
type SamplerFunc func() time.Duration

// Measure calls f.
func (f SamplerFunc) Measure() time.Duration {
	return f()
}
