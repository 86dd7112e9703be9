package tanklevel

import "fmt"

// Smoother is a fixed-capacity moving average over the estimator's trimmed
// means. The window is a ring buffer overwritten round-robin; the running
// sum is adjusted incrementally (subtract the evicted slot, add the new
// value) so Update stays O(1) whatever the window size.
type Smoother struct {
	window []float64
	sum    float64
	next   int
	seeded bool
}

// NewSmoother returns a smoother averaging over a window of the given size.
func NewSmoother(size int) (*Smoother, error) {
	if size <= 0 {
		return nil, fmt.Errorf("smoother: window size must be positive, got %d", size)
	}
	return &Smoother{window: make([]float64, size)}, nil
}

// Update pushes one value into the window, evicting the oldest, and returns
// the new mean over all slots.
//
// The first value seeds the entire window so the reported average is
// immediately meaningful. A zero-filled window would drag the mean toward
// zero for the first size periods, which reads as a phantom overfull tank.
func (s *Smoother) Update(x float64) float64 {
	if !s.seeded {
		for i := range s.window {
			s.window[i] = x
		}
		s.sum = x * float64(len(s.window))
		s.seeded = true
		return x
	}
	s.sum -= s.window[s.next]
	s.sum += x
	s.window[s.next] = x
	s.next = (s.next + 1) % len(s.window)
	return s.sum / float64(len(s.window))
}

// Mean returns the current window mean without pushing a value. Before the
// first Update it returns zero.
func (s *Smoother) Mean() float64 {
	if !s.seeded {
		return 0
	}
	return s.sum / float64(len(s.window))
}

// Size returns the window capacity.
func (s *Smoother) Size() int {
	return len(s.window)
}
