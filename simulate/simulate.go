// Package simulate plays out matches between players of known skill, for
// checking that ratings recover the skills that produced the results.
package simulate

import (
	"encoding/binary"
	"math"

	"lukechampine.com/frand"

	"github.com/domino14/courtrank/pairwise"
	"github.com/domino14/courtrank/rating"
	"github.com/domino14/courtrank/tournament"
)

const (
	rngBufferSize = 1024
	rngRounds     = 12
)

type Simulator struct {
	rng         *frand.RNG
	pointsToWin int
	periods     int
}

// New returns a simulator seeded from the system entropy source.
func New(pointsToWin, periods int) *Simulator {
	return &Simulator{rng: frand.New(), pointsToWin: pointsToWin, periods: periods}
}

// NewSeeded returns a simulator whose results are reproducible.
func NewSeeded(seed uint64, pointsToWin, periods int) *Simulator {
	key := make([]byte, 32)
	binary.LittleEndian.PutUint64(key, seed)
	return &Simulator{
		rng:         frand.NewCustom(key, rngBufferSize, rngRounds),
		pointsToWin: pointsToWin,
		periods:     periods,
	}
}

// Period plays one first-to-n period where home wins each point with
// probability p.
func (s *Simulator) Period(p float64) (home, away int) {
	for home < s.pointsToWin && away < s.pointsToWin {
		if s.rng.Float64() < p {
			home++
		} else {
			away++
		}
	}
	return home, away
}

// Match plays a best-of-periods match between two teams. skills are
// natural-log skills indexed by player.
func (s *Simulator) Match(home, away []int, skills []float64) (rating.Match, [][2]int) {
	d := pairwise.TeamStrength(skills, home) - pairwise.TeamStrength(skills, away)
	p := 1 / (1 + math.Exp(-d))
	need := s.periods/2 + 1
	m := rating.Match{Home: home, Away: away}
	var periods [][2]int
	homeWins, awayWins := 0, 0
	for homeWins < need && awayWins < need {
		h, a := s.Period(p)
		periods = append(periods, [2]int{h, a})
		m.HomePoints += h
		m.AwayPoints += a
		if h > a {
			homeWins++
		} else {
			awayWins++
		}
	}
	return m, periods
}

// Schedule plays every fixture of plan.
func (s *Simulator) Schedule(plan *tournament.Plan, skills []float64) []rating.Match {
	var out []rating.Match
	for _, r := range plan.Rounds() {
		for _, f := range r.Fixtures {
			m, _ := s.Match(f.Home, f.Away, skills)
			out = append(out, m)
		}
	}
	return out
}

// Skills draws n natural-log skills uniformly from [0, spread).
func (s *Simulator) Skills(n int, spread float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = s.rng.Float64() * spread
	}
	return out
}
