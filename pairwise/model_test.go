package pairwise

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/diff/fd"
)

var doublesMatches = []Match{
	{Home: []int{0, 1}, Away: []int{2, 3}, HomePoints: 21, AwayPoints: 15},
	{Home: []int{0, 2}, Away: []int{1, 4}, HomePoints: 19, AwayPoints: 21},
	{Home: []int{3}, Away: []int{4}, HomePoints: 21, AwayPoints: 7},
}

func TestGradientMatchesFiniteDifferences(t *testing.T) {
	for _, reg := range []float64{0, 0.5, 3} {
		m := NewModel(5, doublesMatches, reg)
		x := []float64{0.3, -0.2, 1.1, 0, -0.7}

		grad := make([]float64, len(x))
		m.Gradient(grad, x)
		want := fd.Gradient(nil, m.NegLogLikelihood, x, &fd.Settings{Formula: fd.Central})

		for i := range grad {
			assert.InDelta(t, want[i], grad[i], 1e-5, "reg %v player %d", reg, i)
		}
	}
}

func TestRegularizationPullsTowardsZero(t *testing.T) {
	m := NewModel(1, nil, 2)
	assert.InDelta(t, 4*math.Ln2, m.NegLogLikelihood([]float64{0}), 1e-12)
	assert.Greater(t, m.NegLogLikelihood([]float64{1}), m.NegLogLikelihood([]float64{0}))
	assert.Greater(t, m.NegLogLikelihood([]float64{-1}), m.NegLogLikelihood([]float64{0}))

	grad := []float64{0}
	m.Gradient(grad, []float64{0})
	assert.InDelta(t, 0, grad[0], 1e-12)
}

func TestTeamStrengthIsMean(t *testing.T) {
	x := []float64{1, 3, -2}
	assert.Equal(t, 2.0, TeamStrength(x, []int{0, 1}))
	assert.Equal(t, 2.0/3, TeamStrength(x, []int{0, 1, 2}))
	assert.Equal(t, 0.0, TeamStrength(x, nil))
}

func TestLogAddExpLargeValues(t *testing.T) {
	assert.InDelta(t, 1000+math.Ln2, logAddExp(1000, 1000), 1e-9)
	assert.Equal(t, 3.0, logAddExp(math.Inf(-1), 3))
}
