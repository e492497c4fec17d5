package pairwise

import "math"

// PointsPerDoubling is the display-scale difference that doubles the odds
// of winning a single point.
const PointsPerDoubling = 10.0

// DisplayPerNat converts natural-log skills to display points.
var DisplayPerNat = PointsPerDoubling / math.Ln2

// ScoreToP converts a display-scale skill difference to an odds ratio.
func ScoreToP(diff float64) float64 {
	return math.Exp2(diff / PointsPerDoubling)
}

// ScoresToPAndQ returns the probabilities that the side with display score
// x (p) or y (q) wins a single point. Equal scores give exactly (0.5, 0.5).
func ScoresToPAndQ(x, y float64) (float64, float64) {
	d := (x - y) / DisplayPerNat
	if d >= 0 {
		e := math.Exp(-d)
		return 1 / (1 + e), e / (1 + e)
	}
	e := math.Exp(d)
	return e / (1 + e), 1 / (1 + e)
}

// ScoreToResult returns the expected point split of a first-to-n period.
// The favored side keeps n, the other side is scaled down by the odds. Ties
// go to home.
func ScoreToResult(x, y float64, n float64) (float64, float64) {
	if x >= y {
		return n, n * ScoreToP(y-x)
	}
	return n * ScoreToP(x-y), n
}

// ExpectedPointRatio is ScoreToResult normalized to 1000 points for the
// favored side.
func ExpectedPointRatio(x, y float64) (float64, float64) {
	return ScoreToResult(x, y, 1000)
}

// EffectiveTarget returns the first-to-n target actually in use for a match:
// the configured points to win, unless the recorded periods show a lower
// target was played.
func EffectiveTarget(pointsToWin, maxHome, maxAway int) int {
	s := max(maxHome, maxAway, 0)
	if s == 0 {
		return pointsToWin
	}
	return min(pointsToWin, s)
}
