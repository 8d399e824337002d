package monitoring

import (
	"fmt"
	"time"
)

// LatencyStats accumulates per-frame processing durations.
// The zero value is ready to use. Not safe for concurrent use.
type LatencyStats struct {
	count int
	total time.Duration
	max   time.Duration
	min   time.Duration
}

// Observe records one frame's duration.
func (s *LatencyStats) Observe(d time.Duration) {
	if s.count == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	s.count++
	s.total += d
}

// Count returns the number of observed frames.
func (s *LatencyStats) Count() int { return s.count }

// Total returns the sum of all observed durations.
func (s *LatencyStats) Total() time.Duration { return s.total }

// Max returns the slowest observed frame.
func (s *LatencyStats) Max() time.Duration { return s.max }

// Min returns the fastest observed frame.
func (s *LatencyStats) Min() time.Duration { return s.min }

// Mean returns the mean frame duration, or 0 with no observations.
func (s *LatencyStats) Mean() time.Duration {
	if s.count == 0 {
		return 0
	}
	return s.total / time.Duration(s.count)
}

// FPS returns frames per second over the observed total, or 0 when nothing
// has been observed.
func (s *LatencyStats) FPS() float64 {
	if s.total <= 0 {
		return 0
	}
	return float64(s.count) / s.total.Seconds()
}

func (s *LatencyStats) String() string {
	return fmt.Sprintf("frames=%d mean=%v max=%v fps=%.1f", s.count, s.Mean(), s.max, s.FPS())
}
