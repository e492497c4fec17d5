package league

import (
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/domino14/courtrank/pairwise"
)

// TeamScore is the mean display score of the rated members of team. ok is
// false when no member is rated.
func TeamScore(scores map[uuid.UUID]float64, team []uuid.UUID) (score float64, ok bool) {
	rated := lo.FilterMap(team, func(id uuid.UUID, _ int) (float64, bool) {
		s, ok := scores[id]
		return s, ok
	})
	if len(rated) == 0 {
		return 0, false
	}
	return lo.Sum(rated) / float64(len(rated)), true
}

// Forecast is what the model expects from a match between two teams.
type Forecast struct {
	HomeScore   float64 `json:"home_score"`
	AwayScore   float64 `json:"away_score"`
	PointsToWin int     `json:"points_to_win"`

	ExpectedHome float64 `json:"expected_home"`
	ExpectedAway float64 `json:"expected_away"`
	// Point ratio scaled to 1000 for the favorite.
	RatioHome float64 `json:"ratio_home"`
	RatioAway float64 `json:"ratio_away"`
	// Percentages.
	PointWinHome  float64 `json:"point_win_home"`
	PointWinAway  float64 `json:"point_win_away"`
	PeriodWinHome float64 `json:"period_win_home"`
	PeriodWinAway float64 `json:"period_win_away"`
}

// Preview forecasts a first-to-pointsToWin period between teams with the
// given display scores.
func Preview(home, away float64, pointsToWin int) Forecast {
	f := Forecast{HomeScore: home, AwayScore: away, PointsToWin: pointsToWin}
	f.ExpectedHome, f.ExpectedAway = pairwise.ScoreToResult(home, away, float64(pointsToWin))
	f.RatioHome, f.RatioAway = pairwise.ExpectedPointRatio(home, away)
	p, q := pairwise.ScoresToPAndQ(home, away)
	f.PointWinHome, f.PointWinAway = 100*p, 100*q
	f.PeriodWinHome, f.PeriodWinAway = pairwise.ScoresToPeriodProbabilities(home, away, pointsToWin)
	return f
}

// Verdict compares a finished match to its forecast.
type Verdict struct {
	Forecast
	// PerformanceHome and PerformanceAway are nil for a match without
	// points.
	PerformanceHome *float64 `json:"performance_home,omitempty"`
	PerformanceAway *float64 `json:"performance_away,omitempty"`
	StarsHome       int     `json:"stars_home"`
	StarsAway       int     `json:"stars_away"`
	// Surprise is in bits; positive means better than expected.
	SurpriseHome float64 `json:"surprise_home"`
	SurpriseAway float64 `json:"surprise_away"`
}

// Review scores a finished match r between teams whose pre-match display
// scores were home and away. If r's periods show a lower target than
// pointsToWin, the lower one is used for the forecast.
func Review(home, away float64, pointsToWin int, r Result) Verdict {
	maxHome, maxAway := 0, 0
	for _, p := range r.Periods {
		maxHome = max(maxHome, p.Home)
		maxAway = max(maxAway, p.Away)
	}
	target := pairwise.EffectiveTarget(pointsToWin, maxHome, maxAway)
	v := Verdict{Forecast: Preview(home, away, target)}

	x, y := float64(r.HomePoints), float64(r.AwayPoints)
	if x+y <= 0 {
		return v
	}
	ph, pa := pairwise.ResultToPerformance(x, y, home, away)
	v.PerformanceHome, v.PerformanceAway = lo.ToPtr(ph), lo.ToPtr(pa)
	v.StarsHome, v.StarsAway = pairwise.PerformanceStars(ph)
	p, _ := pairwise.ScoresToPAndQ(home, away)
	v.SurpriseHome = pairwise.ResultToSurprisingness(x, p, x+y)
	v.SurpriseAway = -v.SurpriseHome
	return v
}
