package league

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/domino14/courtrank/pairing"
	"github.com/domino14/courtrank/teaming"
	"github.com/domino14/courtrank/tournament"
)

type ScheduleOptions struct {
	TeamSize int
	Courts   int
	// Exact uses the backtracking generator instead of the greedy one.
	Exact bool
	// Shuffle randomizes which roster member gets which column, so the
	// same roster does not always get the same schedule.
	Shuffle             bool
	CacheMemoryFraction float64
}

type Fixture struct {
	Court int         `json:"court" yaml:"court"`
	Home  []uuid.UUID `json:"home" yaml:"home"`
	Away  []uuid.UUID `json:"away" yaml:"away"`
}

type Schedule struct {
	Rounds [][]Fixture
	// Order lists the roster from the most evenly scheduled player to
	// the least.
	Order []uuid.UUID
}

// columns lays the roster out for the generators, with the special
// player, if any, first.
func columns(roster []uuid.UUID, special *uuid.UUID, shuffle bool) ([]uuid.UUID, error) {
	idx, err := index(roster)
	if err != nil {
		return nil, err
	}
	var cols, rest []uuid.UUID
	if special != nil {
		if _, ok := idx[*special]; !ok {
			return nil, fmt.Errorf("%w: special player %s", ErrUnknownPlayer, *special)
		}
		cols = append(cols, *special)
	}
	for _, id := range roster {
		if special != nil && id == *special {
			continue
		}
		rest = append(rest, id)
	}
	if shuffle {
		frand.Shuffle(len(rest), func(i, j int) {
			rest[i], rest[j] = rest[j], rest[i]
		})
	}
	return append(cols, rest...), nil
}

// ProposeRounds generates rounds for roster. With a special player, that
// player is on court 1 in every round (greedy generator only).
func ProposeRounds(ctx context.Context, roster []uuid.UUID, special *uuid.UUID, opts ScheduleOptions) (*Schedule, error) {
	cols, err := columns(roster, special, opts.Shuffle)
	if err != nil {
		return nil, err
	}
	topts := tournament.Options{
		Courts:              opts.Courts,
		SpecialPlayer:       special != nil,
		CacheMemoryFraction: opts.CacheMemoryFraction,
	}
	var plan *tournament.Plan
	if opts.Exact {
		plan, err = tournament.Exact(ctx, len(cols), opts.TeamSize, topts)
	} else {
		plan, err = tournament.Greedy(len(cols), opts.TeamSize, topts)
	}
	if err != nil {
		return nil, err
	}

	ids := func(team []int) []uuid.UUID {
		out := make([]uuid.UUID, len(team))
		for i, p := range team {
			out[i] = cols[p]
		}
		return out
	}
	sched := &Schedule{}
	for _, r := range plan.Rounds() {
		fixtures := make([]Fixture, 0, len(r.Fixtures))
		for _, f := range r.Fixtures {
			fixtures = append(fixtures, Fixture{Court: f.Court, Home: ids(f.Home), Away: ids(f.Away)})
		}
		sched.Rounds = append(sched.Rounds, fixtures)
	}
	order := plan.PlayerOrder
	if order == nil {
		order = tournament.SortPlayers(plan)
	}
	sched.Order = ids(order)
	log.Debug().Int("players", len(cols)).Int("rounds", len(sched.Rounds)).
		Bool("exact", opts.Exact).Msg("rounds-proposed")
	return sched, nil
}

type Pair struct {
	A uuid.UUID `json:"a"`
	B uuid.UUID `json:"b"`
}

type Pairing struct {
	Pairs   []Pair
	Cost    pairing.Cost
	Optimal bool
	// Extra is the player who plays twice or sits out on an odd roster.
	Extra *uuid.UUID
}

// ProposePairs pairs up roster for one-on-one games. Earlier one-on-one
// results between roster members count as contact; results of team games
// or involving players outside the roster are ignored. Roster members
// missing from scores are treated as unrated.
func ProposePairs(ctx context.Context, roster []uuid.UUID, scores map[uuid.UUID]float64, history []Result, opts pairing.Options) (*Pairing, error) {
	idx, err := index(roster)
	if err != nil {
		return nil, err
	}
	n := len(roster)
	var rows [][]int
	for _, r := range history {
		if len(r.Home) != 1 || len(r.Away) != 1 {
			continue
		}
		h, hok := idx[r.Home[0]]
		a, aok := idx[r.Away[0]]
		if !hok || !aok {
			continue
		}
		row := make([]int, n)
		row[h], row[a] = teaming.Home, teaming.Away
		rows = append(rows, row)
	}
	counts := teaming.Analyse(rows, n)

	in := pairing.Input{
		Players: n,
		Scores:  make([]float64, n),
		Contact: counts.ContactMatrix(),
		Played:  make([]int, n),
	}
	for i, id := range roster {
		s, ok := scores[id]
		if !ok {
			s = math.NaN()
		}
		in.Scores[i] = s
		in.Played[i] = counts.Played(i)
	}

	res, err := pairing.Search(ctx, in, opts)
	if err != nil {
		return nil, err
	}
	out := &Pairing{Cost: res.Cost, Optimal: res.Optimal}
	for _, p := range res.Pairs {
		out.Pairs = append(out.Pairs, Pair{A: roster[p.A], B: roster[p.B]})
	}
	if res.Extra >= 0 {
		extra := roster[res.Extra]
		out.Extra = &extra
	}
	return out, nil
}
