package tanklevel

import (
	"strconv"
	"strings"
	"time"

	"github.com/kiniou-labs/level.report/internal/monitoring"
)

// measureCommand asks the sensor bridge for one trigger/echo cycle. The
// bridge answers with a single line carrying the round-trip time in
// microseconds.
const measureCommand = "M"

// DeviceLink is the slice of the serial mux the sampler needs: a line
// subscription and a way to write commands to the device.
type DeviceLink interface {
	Subscribe() (string, chan string)
	Unsubscribe(id string)
	SendCommand(command string) error
}

// SerialSampler requests raw echo durations from a sensor bridge attached
// over a serial link. It subscribes to the device's line stream once and
// holds the subscription for its lifetime.
type SerialSampler struct {
	link    DeviceLink
	id      string
	lines   chan string
	timeout time.Duration
}

// NewSerialSampler returns a sampler backed by the given device link. The
// timeout bounds how long one Measure waits for an echo line; a silent or
// babbling device yields a zero duration, which the estimator's trim stage
// treats like any other implausible sample.
func NewSerialSampler(link DeviceLink, timeout time.Duration) *SerialSampler {
	id, lines := link.Subscribe()
	return &SerialSampler{
		link:    link,
		id:      id,
		lines:   lines,
		timeout: timeout,
	}
}

// Measure triggers one echo cycle and blocks until the bridge reports the
// round-trip duration or the timeout elapses.
func (s *SerialSampler) Measure() time.Duration {
	if err := s.link.SendCommand(measureCommand); err != nil {
		monitoring.Logf("measure request failed: %v", err)
		return 0
	}

	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()

	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return 0
			}
			us, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
			if err != nil || us < 0 {
				// Not an echo report (status chatter, partial line);
				// keep waiting until the deadline.
				continue
			}
			return time.Duration(us * float64(time.Microsecond))
		case <-deadline.C:
			monitoring.Logf("echo timeout after %s", s.timeout)
			return 0
		}
	}
}

// Close releases the line subscription.
func (s *SerialSampler) Close() {
	s.link.Unsubscribe(s.id)
}
