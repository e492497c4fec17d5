package pairwise

import (
	"testing"

	"github.com/matryer/is"
	"github.com/stretchr/testify/assert"
)

func TestScoresToPAndQEqualScores(t *testing.T) {
	is := is.New(t)
	for _, x := range []float64{-40, 0, 10, 17.125, 1e6} {
		p, q := ScoresToPAndQ(x, x)
		is.Equal(p, 0.5)
		is.Equal(q, 0.5)
	}
}

func TestScoresToPAndQ(t *testing.T) {
	// Ten display points double the odds.
	p, q := ScoresToPAndQ(20, 10)
	assert.InDelta(t, 2.0/3, p, 1e-12)
	assert.InDelta(t, 1.0/3, q, 1e-12)

	p, q = ScoresToPAndQ(10, 30)
	assert.InDelta(t, 0.2, p, 1e-12)
	assert.InDelta(t, 0.8, q, 1e-12)

	p, q = ScoresToPAndQ(5000, 0)
	assert.Equal(t, 1.0, p)
	assert.InDelta(t, 0, q, 1e-100)
}

func TestScoreToP(t *testing.T) {
	is := is.New(t)
	is.Equal(ScoreToP(0), 1.0)
	is.Equal(ScoreToP(10), 2.0)
	is.Equal(ScoreToP(-20), 0.25)
}

func TestScoreToResult(t *testing.T) {
	is := is.New(t)
	h, a := ScoreToResult(20, 10, 21)
	is.Equal(h, 21.0)
	is.Equal(a, 10.5)

	h, a = ScoreToResult(10, 20, 21)
	is.Equal(h, 10.5)
	is.Equal(a, 21.0)

	h, a = ScoreToResult(12, 12, 15)
	is.Equal(h, 15.0)
	is.Equal(a, 15.0)

	h, a = ExpectedPointRatio(10, 30)
	is.Equal(h, 250.0)
	is.Equal(a, 1000.0)
}

func TestPeriodProbabilities(t *testing.T) {
	h, a := ScoresToPeriodProbabilities(15, 15, 21)
	assert.InDelta(t, 50, h, 1e-9)
	assert.InDelta(t, 50, a, 1e-9)

	h, a = ScoresToPeriodProbabilities(25, 15, 21)
	assert.InDelta(t, 100, h+a, 1e-9)
	assert.Greater(t, h, 90.0)

	// First to one point is a single point.
	h, a = ScoresToPeriodProbabilities(20, 10, 1)
	assert.InDelta(t, 100*2.0/3, h, 1e-9)
	assert.InDelta(t, 100*1.0/3, a, 1e-9)

	h, a = ScoresToPeriodProbabilities(20, 10, 0)
	assert.Equal(t, 50.0, h)
	assert.Equal(t, 50.0, a)
}

func TestExpectedResultIsUnsurprising(t *testing.T) {
	h, a := ScoreToResult(14, 14, 21)
	ph, pa := ResultToPerformance(h, a, 14, 14)
	assert.InDelta(t, 50, ph, 1e-9)
	assert.InDelta(t, 50, pa, 1e-9)

	p, _ := ScoresToPAndQ(14, 14)
	assert.InDelta(t, 0, ResultToSurprisingness(h, p, h+a), 1e-9)

	// With unequal scores the expected split is not the median of the
	// skewed binomial, so the performance drifts from 50 towards the
	// underdog, more so as the gap grows.
	for _, tc := range []struct {
		home, away, want float64
	}{
		{30, 20, 49.193},
		{20, 30, 50.807},
		{50, 10, 45.705},
	} {
		h, a = ScoreToResult(tc.home, tc.away, 21)
		ph, pa = ResultToPerformance(h, a, tc.home, tc.away)
		assert.InDelta(t, tc.want, ph, 0.001, "%v v %v", tc.home, tc.away)
		assert.InDelta(t, 100, ph+pa, 1e-12)
	}
}

func TestPerformanceDirection(t *testing.T) {
	// Equal teams, home wins 21-5.
	ph, pa := ResultToPerformance(21, 5, 10, 10)
	assert.Greater(t, ph, 99.0)
	assert.InDelta(t, 100, ph+pa, 1e-12)

	// Huge favourite only wins 21-19.
	ph, _ = ResultToPerformance(21, 19, 40, 10)
	assert.Less(t, ph, 5.0)

	ph, pa = ResultToPerformance(0, 0, 40, 10)
	assert.Equal(t, 50.0, ph)
	assert.Equal(t, 50.0, pa)
}

func TestSurprisingnessSign(t *testing.T) {
	p, _ := ScoresToPAndQ(10, 10)
	assert.Greater(t, ResultToSurprisingness(21, p, 26), 5.0)
	assert.Less(t, ResultToSurprisingness(5, p, 26), -5.0)
	assert.Equal(t, 0.0, ResultToSurprisingness(0, p, 0))
	assert.LessOrEqual(t, ResultToSurprisingness(1000, 1e-300, 1000), maxSurprise)
}

func TestPerformanceStars(t *testing.T) {
	is := is.New(t)
	h, a := PerformanceStars(50)
	is.Equal(h, 0)
	is.Equal(a, 0)

	// 90% is log2(9) bits.
	h, a = PerformanceStars(90)
	is.Equal(h, 3)
	is.Equal(a, 0)

	h, a = PerformanceStars(5)
	is.Equal(h, 0)
	is.Equal(a, 4)

	h, a = PerformanceStars(100)
	is.Equal(h, 5)
	is.Equal(a, 0)
}

func TestEffectiveTarget(t *testing.T) {
	is := is.New(t)
	is.Equal(EffectiveTarget(21, 0, 0), 21)
	is.Equal(EffectiveTarget(21, 15, 11), 15)
	is.Equal(EffectiveTarget(21, 23, 21), 21)
}
