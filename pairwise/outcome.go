package pairwise

import (
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// maxSurprise bounds the surprisingness in bits so that degenerate point
// probabilities never produce infinities.
const maxSurprise = 64.0

// binomialCDF is P(X <= k) for X ~ Binomial(n, p), continuous in k so that
// expected (non-integer) point totals can be evaluated.
func binomialCDF(k, n, p float64) float64 {
	switch {
	case k < 0:
		return 0
	case k >= n:
		return 1
	case p <= 0:
		return 1
	case p >= 1:
		return 0
	}
	return mathext.RegIncBeta(n-k, k+1, 1-p)
}

// binomialSF is P(X > k), evaluated directly rather than as 1 - CDF.
func binomialSF(k, n, p float64) float64 {
	switch {
	case k < 0:
		return 1
	case k >= n:
		return 0
	case p <= 0:
		return 0
	case p >= 1:
		return 1
	}
	return mathext.RegIncBeta(k+1, n-k, p)
}

// ScoresToPeriodProbabilities returns the percentage chance that each side
// wins a first-to-n period: the opponent must fail to reach n points out
// of the 2n-1 points that decide it.
func ScoresToPeriodProbabilities(x, y float64, n int) (float64, float64) {
	if n < 1 {
		return 50, 50
	}
	p, q := ScoresToPAndQ(x, y)
	total := float64(2*n - 1)
	home := distuv.Binomial{N: total, P: q}.CDF(float64(n - 1))
	away := distuv.Binomial{N: total, P: p}.CDF(float64(n - 1))
	return 100 * home, 100 * away
}

// ResultToPerformance rates a result from 0 to 100 against what the
// pre-match scores x and y predicted. A result exactly as expected is
// close to 50; home and away always sum to 100.
func ResultToPerformance(homePoints, awayPoints, x, y float64) (float64, float64) {
	n := homePoints + awayPoints
	if n <= 0 {
		return 50, 50
	}
	p, _ := ScoresToPAndQ(x, y)
	home := 100 * (binomialCDF(homePoints-1, n, p) + binomialCDF(homePoints, n, p)) / 2
	return home, 100 - home
}

// ResultToSurprisingness returns, in bits of log-odds, how far k home
// points out of n are from what a per-point win probability p predicts.
// Positive values mean the home side did better than expected.
func ResultToSurprisingness(k, p, n float64) float64 {
	if n <= 0 {
		return 0
	}
	// Mid-probabilities of the lower and upper tails at k.
	lower := (binomialCDF(k, n, p) + binomialCDF(k-1, n, p)) / 2
	upper := (binomialSF(k, n, p) + binomialSF(k-1, n, p)) / 2
	s := (math.Log(lower) - math.Log(upper)) / math.Ln2
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(-maxSurprise, math.Min(maxSurprise, s))
}

// PerformanceStars converts a home performance percentage to a 0-5 star
// award for each side: one star per bit of log-odds.
func PerformanceStars(performance float64) (int, int) {
	if math.IsNaN(performance) {
		return 0, 0
	}
	f := performance / 100
	s := math.Log2(f) - math.Log2(1-f)
	clip := func(v float64) int {
		return int(math.Max(0, math.Min(5, math.Floor(v))))
	}
	return clip(s), clip(-s)
}
