package stats

import "math"

const (
	Epsilon = 1e-6
)

func FuzzyEqual(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// Statistic accumulates running statistics over a stream of values, such
// as the gaps between a player's byes or the fitted scores of a roster.
type Statistic struct {
	count int
	min   float64
	max   float64

	// For Welford's algorithm:
	oldM float64
	newM float64
	oldS float64
	newS float64
}

func (s *Statistic) Push(val float64) {
	s.count++
	if s.count == 1 {
		s.oldM = val
		s.newM = val
		s.oldS = 0
		s.min = val
		s.max = val
		return
	}
	s.newM = s.oldM + (val-s.oldM)/float64(s.count)
	s.newS = s.oldS + (val-s.oldM)*(val-s.newM)
	s.oldM = s.newM
	s.oldS = s.newS
	s.min = math.Min(s.min, val)
	s.max = math.Max(s.max, val)
}

func (s *Statistic) Mean() float64 {
	if s.count > 0 {
		return s.newM
	}
	return 0.0
}

func (s *Statistic) Variance() float64 {
	if s.count <= 1 {
		return 0.0
	}
	return s.newS / float64(s.count-1)
}

func (s *Statistic) Stdev() float64 {
	return math.Sqrt(s.Variance())
}

// Min returns the smallest pushed value, or 0 if nothing was pushed.
func (s *Statistic) Min() float64 {
	return s.min
}

// Max returns the largest pushed value, or 0 if nothing was pushed.
func (s *Statistic) Max() float64 {
	return s.max
}

// Spread is Max - Min.
func (s *Statistic) Spread() float64 {
	return s.max - s.min
}

func (s *Statistic) Count() int {
	return s.count
}
