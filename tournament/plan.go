// Package tournament generates rounds of team-vs-team matches so that every
// player partners every other player a fair number of times, and orders
// those rounds so that byes are spread out.
package tournament

import (
	"errors"
	"fmt"
	"sort"

	"github.com/domino14/courtrank/teaming"
)

var (
	ErrTeamSize         = errors.New("team size must be at least 1")
	ErrNotEnoughPlayers = errors.New("not enough players for two teams")
	ErrSingletonTeams   = errors.New("single-player teams are not supported by the round generators")
	ErrNoSolution       = errors.New("no complete schedule exists")
)

type Options struct {
	// Courts caps the number of simultaneous matches per round. Zero or
	// less means as many as the roster allows.
	Courts int
	// SpecialPlayer puts player 0 on the home side of the first court in
	// every round and spreads everyone else's games with and against them.
	SpecialPlayer bool
	// CacheMemoryFraction sizes the exact generator's dead-end cache as a
	// fraction of system memory. Zero disables it.
	CacheMemoryFraction float64
}

// Plan is a generated schedule. Matches has one row per court-match with
// one entry per player (teaming.Home, teaming.Away or teaming.Out); each
// round is Courts consecutive rows. Columns always refer to input player
// indices.
type Plan struct {
	Players  int
	TeamSize int
	Courts   int
	Matches  [][]int
	// PlayerOrder lists player indices from the best balanced schedule to
	// the worst, for display.
	PlayerOrder []int
}

type Fixture struct {
	Court int
	Home  []int
	Away  []int
}

type Round struct {
	Number   int
	Fixtures []Fixture
}

// courtsFor is the number of matches played per round.
func courtsFor(n, m, courts int) int {
	k := n / (2 * m)
	if courts > 0 {
		k = min(k, courts)
	}
	return k
}

func validate(n, m int) error {
	if m < 1 {
		return fmt.Errorf("%w: got %d", ErrTeamSize, m)
	}
	if n < 0 {
		return fmt.Errorf("%w: %d players", ErrNotEnoughPlayers, n)
	}
	return nil
}

// Empty reports whether the plan has no matches.
func (p *Plan) Empty() bool {
	return len(p.Matches) == 0
}

// RoundCount is the number of rounds in the plan.
func (p *Plan) RoundCount() int {
	if p.Courts == 0 {
		return 0
	}
	return len(p.Matches) / p.Courts
}

// Counts runs the teaming analysis over the whole plan.
func (p *Plan) Counts() teaming.Counts {
	return teaming.Analyse(p.Matches, p.Players)
}

// Rounds splits the plan into rounds of fixtures. Team members are listed
// in ascending index order.
func (p *Plan) Rounds() []Round {
	rounds := make([]Round, 0, p.RoundCount())
	for r := 0; r < p.RoundCount(); r++ {
		round := Round{Number: r + 1}
		for c := 0; c < p.Courts; c++ {
			row := p.Matches[r*p.Courts+c]
			f := Fixture{Court: c + 1}
			for player, side := range row {
				switch side {
				case teaming.Home:
					f.Home = append(f.Home, player)
				case teaming.Away:
					f.Away = append(f.Away, player)
				}
			}
			round.Fixtures = append(round.Fixtures, f)
		}
		rounds = append(rounds, round)
	}
	return rounds
}

// fillOrder returns the court and side of every position in a round.
// Courts are walked forwards then backwards so that the first pick on one
// court is balanced by a late pick on the next: home forwards, away
// backwards, away forwards, home backwards, and so on.
func fillOrder(k, positions int) (games, sides []int) {
	games = make([]int, positions)
	sides = make([]int, positions)
	for i := 0; i < positions; i++ {
		block := (i / k) % 4
		j := i % k
		if block == 1 || block == 3 {
			games[i] = k - 1 - j
		} else {
			games[i] = j
		}
		if block == 0 || block == 3 {
			sides[i] = teaming.Home
		} else {
			sides[i] = teaming.Away
		}
	}
	return games, sides
}

func newRound(k, n int) [][]int {
	rows := make([][]int, k)
	for i := range rows {
		rows[i] = make([]int, n)
	}
	return rows
}

func copyRound(rows [][]int) [][]int {
	out := make([][]int, len(rows))
	for i, r := range rows {
		out[i] = append([]int(nil), r...)
	}
	return out
}

// arglexmin returns the first index whose criteria tuple is smallest.
// criteria[c][i] is criterion c of candidate i, most significant first.
func arglexmin(criteria ...[]int) int {
	best := 0
	n := len(criteria[0])
	for i := 1; i < n; i++ {
		for _, c := range criteria {
			if c[i] != c[best] {
				if c[i] < c[best] {
					best = i
				}
				break
			}
		}
	}
	return best
}

// lexorder returns all indices sorted by their criteria tuples, most
// significant first. Ties keep index order.
func lexorder(n int, criteria ...[]int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		for _, c := range criteria {
			if c[order[a]] != c[order[b]] {
				return c[order[a]] < c[order[b]]
			}
		}
		return false
	})
	return order
}
