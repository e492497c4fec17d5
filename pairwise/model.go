// Package pairwise implements the team-vs-team pairwise comparison model
// behind the ratings: a Bradley-Terry style likelihood over point totals,
// where a team's strength is the mean of its members' log-skills.
package pairwise

import "math"

// Match is a finished match between two teams. Players are dense indices
// into the skill vector.
type Match struct {
	Home       []int
	Away       []int
	HomePoints int
	AwayPoints int
}

// Model is the negative log-likelihood of a set of matches, regularized
// by an imaginary anchor player with skill 0.
type Model struct {
	players        int
	matches        []Match
	regularization float64
}

// NewModel builds a model over the given matches. Every real player is
// assumed to have drawn regularization-regularization against the anchor;
// a regularization of 0 disables the anchor.
func NewModel(players int, matches []Match, regularization float64) *Model {
	return &Model{
		players:        players,
		matches:        matches,
		regularization: regularization,
	}
}

// Players is the roster size the model was built for.
func (m *Model) Players() int {
	return m.players
}

// logAddExp computes log(exp(a) + exp(b)) without overflow.
func logAddExp(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	hi := math.Max(a, b)
	return hi + math.Log1p(math.Exp(-math.Abs(a-b)))
}

// TeamStrength is the arithmetic mean of member skills in log space, i.e.
// the geometric mean of their linear strengths.
func TeamStrength(x []float64, team []int) float64 {
	if len(team) == 0 {
		return 0
	}
	s := 0.0
	for _, i := range team {
		s += x[i]
	}
	return s / float64(len(team))
}

// NegLogLikelihood evaluates the objective at x.
func (m *Model) NegLogLikelihood(x []float64) float64 {
	nll := 0.0
	for _, mt := range m.matches {
		hx := TeamStrength(x, mt.Home)
		ax := TeamStrength(x, mt.Away)
		lz := logAddExp(hx, ax)
		nll -= float64(mt.HomePoints)*(hx-lz) + float64(mt.AwayPoints)*(ax-lz)
	}
	if m.regularization > 0 {
		for _, xi := range x {
			lz := logAddExp(xi, 0)
			nll -= m.regularization * ((xi - lz) + (0 - lz))
		}
	}
	return nll
}

// Gradient writes the gradient of NegLogLikelihood at x into grad.
func (m *Model) Gradient(grad, x []float64) {
	for i := range grad {
		grad[i] = 0
	}
	for _, mt := range m.matches {
		hx := TeamStrength(x, mt.Home)
		ax := TeamStrength(x, mt.Away)
		lz := logAddExp(hx, ax)
		p := math.Exp(hx - lz)
		q := math.Exp(ax - lz)
		kh := float64(mt.HomePoints)
		ka := float64(mt.AwayPoints)
		n := kh + ka

		dh := (n*p - kh) / float64(len(mt.Home))
		for _, i := range mt.Home {
			grad[i] += dh
		}
		da := (n*q - ka) / float64(len(mt.Away))
		for _, i := range mt.Away {
			grad[i] += da
		}
	}
	if m.regularization > 0 {
		for i, xi := range x {
			sigma := math.Exp(xi - logAddExp(xi, 0))
			grad[i] += m.regularization * (2*sigma - 1)
		}
	}
}
