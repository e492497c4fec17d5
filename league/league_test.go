package league

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/domino14/courtrank/pairing"
	"github.com/domino14/courtrank/rating"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	os.Exit(m.Run())
}

func roster(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return ids
}

func TestRateByUUID(t *testing.T) {
	is := is.New(t)
	ids := roster(3)
	a, b, c := ids[0], ids[1], ids[2]
	res, err := Rate(ids, []Result{
		{Home: []uuid.UUID{a}, Away: []uuid.UUID{b}, HomePoints: 21, AwayPoints: 10},
	}, nil, rating.DefaultOptions())
	is.NoErr(err)
	is.Equal(len(res.Scores), 2)
	is.Equal(res.Unrated, []uuid.UUID{c})
	is.Equal(res.Scores[b], rating.DefaultBaseScore)
	is.True(res.Scores[a] > res.Scores[b])
	_, ok := res.Raw[c]
	is.True(!ok)
}

func TestRateWarmStart(t *testing.T) {
	ids := roster(4)
	results := []Result{
		{Home: ids[:2], Away: ids[2:], HomePoints: 21, AwayPoints: 15},
		{Home: []uuid.UUID{ids[0], ids[2]}, Away: []uuid.UUID{ids[1], ids[3]}, HomePoints: 21, AwayPoints: 18},
		{Home: []uuid.UUID{ids[0], ids[3]}, Away: []uuid.UUID{ids[1], ids[2]}, HomePoints: 12, AwayPoints: 21},
	}
	first, err := Rate(ids, results, nil, rating.DefaultOptions())
	assert.Nil(t, err)

	warm := map[uuid.UUID]float64{uuid.New(): 3} // not on the roster
	for id, v := range first.Raw {
		warm[id] = v
	}
	second, err := Rate(ids, results, warm, rating.DefaultOptions())
	assert.Nil(t, err)
	for _, id := range ids {
		assert.InDelta(t, first.Scores[id], second.Scores[id], 0.01)
	}
}

func TestRateRejectsBadRoster(t *testing.T) {
	is := is.New(t)
	ids := roster(2)

	_, err := Rate([]uuid.UUID{ids[0], ids[0]}, nil, nil, rating.DefaultOptions())
	is.True(errors.Is(err, ErrDuplicatePlayer))

	_, err = Rate(ids, []Result{
		{Home: []uuid.UUID{ids[0]}, Away: []uuid.UUID{uuid.New()}, HomePoints: 1},
	}, nil, rating.DefaultOptions())
	is.True(errors.Is(err, ErrUnknownPlayer))
}

func TestRateScopes(t *testing.T) {
	is := is.New(t)
	ids := roster(4)
	all := []Result{
		{Home: ids[:1], Away: ids[1:2], HomePoints: 21, AwayPoints: 5},
		{Home: ids[2:3], Away: ids[3:4], HomePoints: 21, AwayPoints: 19},
	}
	scopes := []Scope{
		{Name: "league", Roster: ids, Results: all},
		{Name: "stage", Roster: ids, Results: all[1:]},
	}
	out, err := RateScopes(context.Background(), scopes, rating.DefaultOptions())
	is.NoErr(err)
	is.Equal(len(out), 2)
	is.Equal(len(out[0].Scores), 4)
	is.Equal(len(out[1].Scores), 2)
	is.Equal(len(out[1].Unrated), 2)

	scopes = append(scopes, Scope{
		Name:   "broken",
		Roster: ids[:1],
		Results: []Result{
			{Home: ids[:1], Away: ids[1:2], HomePoints: 3},
		},
	})
	_, err = RateScopes(context.Background(), scopes, rating.DefaultOptions())
	is.True(errors.Is(err, ErrUnknownPlayer))
}

func TestProposeRoundsSpecialPlayer(t *testing.T) {
	is := is.New(t)
	ids := roster(10)
	special := ids[3]
	sched, err := ProposeRounds(context.Background(), ids, &special, ScheduleOptions{
		TeamSize: 2,
		Shuffle:  true,
	})
	is.NoErr(err)
	is.True(len(sched.Rounds) > 0)

	members := map[uuid.UUID]bool{}
	for _, id := range ids {
		members[id] = true
	}
	for _, round := range sched.Rounds {
		is.Equal(round[0].Court, 1)
		is.Equal(round[0].Home[0], special)
		for _, f := range round {
			for _, id := range append(append([]uuid.UUID{}, f.Home...), f.Away...) {
				is.True(members[id])
			}
		}
	}
	is.Equal(len(sched.Order), 10)

	_, err = ProposeRounds(context.Background(), ids[4:], &special, ScheduleOptions{TeamSize: 2})
	is.True(errors.Is(err, ErrUnknownPlayer))
}

func TestProposeRoundsExact(t *testing.T) {
	is := is.New(t)
	ids := roster(4)
	sched, err := ProposeRounds(context.Background(), ids, nil, ScheduleOptions{TeamSize: 2, Exact: true})
	is.NoErr(err)
	is.Equal(len(sched.Rounds), 3)

	partnered := map[[2]uuid.UUID]int{}
	for _, round := range sched.Rounds {
		is.Equal(len(round), 1)
		for _, team := range [][]uuid.UUID{round[0].Home, round[0].Away} {
			is.Equal(len(team), 2)
			partnered[[2]uuid.UUID{team[0], team[1]}]++
		}
	}
	is.Equal(len(partnered), 6)

	// Too few players for teams of two is an empty schedule from the
	// greedy generator.
	sched, err = ProposeRounds(context.Background(), ids[:3], nil, ScheduleOptions{TeamSize: 2})
	is.NoErr(err)
	is.Equal(len(sched.Rounds), 0)
	is.Equal(len(sched.Order), 3)
}

func TestProposePairsAvoidsRematches(t *testing.T) {
	is := is.New(t)
	ids := roster(4)
	a, b, c, d := ids[0], ids[1], ids[2], ids[3]
	history := []Result{
		{Home: []uuid.UUID{a}, Away: []uuid.UUID{b}, HomePoints: 21, AwayPoints: 3},
		// team games and outsiders don't count
		{Home: []uuid.UUID{a, c}, Away: []uuid.UUID{b, d}, HomePoints: 21, AwayPoints: 3},
		{Home: []uuid.UUID{a}, Away: []uuid.UUID{uuid.New()}, HomePoints: 21, AwayPoints: 3},
	}
	res, err := ProposePairs(context.Background(), ids, nil, history, pairing.Options{})
	is.NoErr(err)
	is.Equal(res.Pairs, []Pair{{A: a, B: c}, {A: b, B: d}})
	is.Equal(res.Cost.Contact, 0)
	is.True(res.Optimal)
	is.True(res.Extra == nil)
}

func TestProposePairsOddRoster(t *testing.T) {
	is := is.New(t)
	ids := roster(3)
	scores := map[uuid.UUID]float64{ids[0]: 30, ids[1]: 20}
	res, err := ProposePairs(context.Background(), ids, scores, nil, pairing.Options{OddMode: pairing.SitOut})
	is.NoErr(err)
	is.True(res.Extra != nil)
	is.Equal(len(res.Pairs), 1)
	is.True(res.Pairs[0].A != *res.Extra)
	is.True(res.Pairs[0].B != *res.Extra)
}

func TestTeamScore(t *testing.T) {
	is := is.New(t)
	ids := roster(3)
	scores := map[uuid.UUID]float64{ids[0]: 10, ids[1]: 20}

	s, ok := TeamScore(scores, ids[:2])
	is.True(ok)
	is.Equal(s, 15.0)

	s, ok = TeamScore(scores, ids[1:])
	is.True(ok)
	is.Equal(s, 20.0)

	_, ok = TeamScore(scores, ids[2:])
	is.True(!ok)
}

func TestPreview(t *testing.T) {
	f := Preview(20, 20, 21)
	assert.Equal(t, 21.0, f.ExpectedHome)
	assert.Equal(t, 21.0, f.ExpectedAway)
	assert.Equal(t, 1000.0, f.RatioHome)
	assert.Equal(t, 1000.0, f.RatioAway)
	assert.InDelta(t, 50, f.PointWinHome, 1e-9)
	assert.InDelta(t, 50, f.PeriodWinHome, 1e-9)

	// Ten display points double the odds of winning a point.
	f = Preview(20, 10, 21)
	assert.InDelta(t, 21, f.ExpectedHome, 1e-9)
	assert.InDelta(t, 10.5, f.ExpectedAway, 1e-9)
	assert.InDelta(t, 500, f.RatioAway, 1e-9)
	assert.InDelta(t, 200.0/3, f.PointWinHome, 1e-9)
	assert.Greater(t, f.PeriodWinHome, f.PointWinHome)
	assert.InDelta(t, 100, f.PeriodWinHome+f.PeriodWinAway, 1e-9)
}

func TestReview(t *testing.T) {
	v := Review(20, 20, 21, Result{HomePoints: 21, AwayPoints: 10})
	is := is.New(t)
	is.True(v.PerformanceHome != nil)
	assert.Greater(t, *v.PerformanceHome, 90.0)
	assert.InDelta(t, 100, *v.PerformanceHome+*v.PerformanceAway, 1e-9)
	assert.GreaterOrEqual(t, v.StarsHome, 4)
	assert.Equal(t, 0, v.StarsAway)
	assert.Greater(t, v.SurpriseHome, 0.0)
	assert.Equal(t, -v.SurpriseHome, v.SurpriseAway)

	// Periods played to 11 shorten the forecast target.
	v = Review(20, 20, 21, Result{
		HomePoints: 22, AwayPoints: 12,
		Periods:    []Period{{Home: 11, Away: 5}, {Home: 11, Away: 7}},
	})
	assert.Equal(t, 11, v.PointsToWin)
	assert.Equal(t, 11.0, v.ExpectedHome)

	// No points played: no performance, but the forecast still encodes.
	v = Review(20, 10, 21, Result{})
	is.True(v.PerformanceHome == nil)
	is.True(v.PerformanceAway == nil)
	assert.Equal(t, 0, v.StarsHome)
	assert.Equal(t, 21.0, v.ExpectedHome)
	data, err := json.Marshal(v)
	is.NoErr(err)
	is.True(!strings.Contains(string(data), "performance_home"))
	is.True(strings.Contains(string(data), `"expected_home":21`))
}

func TestStandings(t *testing.T) {
	is := is.New(t)
	ids := roster(4)
	r := &Ratings{
		Scores: map[uuid.UUID]float64{ids[0]: 31.5, ids[1]: 20, ids[2]: 31.5, ids[3]: 10},
	}
	st := Standings(r)
	is.Equal(len(st), 4)

	// The two leaders tie on position 1 and nobody takes position 2.
	is.Equal(st[0].Position, 1)
	is.Equal(st[1].Position, 1)
	is.Equal(st[0].Score, st[1].Score)
	is.True(st[0].Player.String() < st[1].Player.String())
	is.Equal(st[0].Below, 2)
	is.Equal(st[2].Player, ids[1])
	is.Equal(st[2].Position, 3)
	is.Equal(st[3].Player, ids[3])
	is.Equal(st[3].Above, 3)
	is.Equal(st[3].Below, 0)

	for _, s := range st {
		is.Equal(s.Total, 4)
		is.Equal(s.Min, 10.0)
		is.Equal(s.Max, 31.5)
	}
	assert.Equal(t, 100.0, st[0].RelativePosition)
	assert.InDelta(t, 100.0/3, st[2].RelativePosition, 1e-9)
	assert.Equal(t, 0.0, st[3].RelativePosition)

	// A field of one is at the top.
	st = Standings(&Ratings{Scores: map[uuid.UUID]float64{ids[0]: 10}})
	is.Equal(len(st), 1)
	is.Equal(st[0].RelativePosition, 100.0)
	is.Equal(len(Standings(&Ratings{})), 0)
}

func TestStandingsFromRate(t *testing.T) {
	is := is.New(t)
	ids := roster(3)
	r, err := Rate(ids, []Result{
		{Home: ids[:1], Away: ids[1:2], HomePoints: 21, AwayPoints: 10},
	}, nil, rating.DefaultOptions())
	is.NoErr(err)
	st := Standings(r)
	is.Equal(len(st), 2) // the unrated player has no standing
	is.Equal(st[0].Player, ids[0])
	is.Equal(st[1].Score, rating.DefaultBaseScore)
	is.Equal(st[1].Min, rating.DefaultBaseScore)
}
