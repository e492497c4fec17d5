package tournament

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/domino14/courtrank/teaming"
)

// specialPlayer is the column of the designated player in special mode.
const specialPlayer = 0

// roundSearchLimit caps the positions tried while backtracking inside one
// round.
const roundSearchLimit = 20000

type greedyGen struct {
	n, m, k   int
	special   bool
	positions int
	games     []int
	sides     []int
}

// Greedy builds rounds one at a time, filling each court position with the
// best available player, until every player has partnered everyone else
// m-1 times or some pair has partnered m times. A player is never placed
// next to someone they have already partnered m times; when a position has
// nobody left who qualifies, the round backtracks to the previous position.
// Generation also ends early if no such round can be built. It is fast but
// does not guarantee a perfect schedule.
//
// Fewer than 2m players gives an empty plan.
func Greedy(n, m int, opts Options) (*Plan, error) {
	if err := validate(n, m); err != nil {
		return nil, err
	}
	if n < 2*m {
		return &Plan{Players: n, TeamSize: m}, nil
	}
	if m == 1 {
		return nil, ErrSingletonTeams
	}
	k := courtsFor(n, m, opts.Courts)
	g := &greedyGen{n: n, m: m, k: k, special: opts.SpecialPlayer, positions: 2 * m * k}
	g.games, g.sides = fillOrder(k, g.positions)

	var matches [][]int
	counts := teaming.Analyse(nil, n)
	rounds := 0
	for g.keepGoing(counts) {
		rows, ok := g.round(counts)
		if !ok {
			log.Debug().Int("players", n).Int("team-size", m).Int("rounds", rounds).
				Msg("greedy-no-round-under-partnership-cap")
			break
		}
		if e := log.Debug(); e.Enabled() {
			e.Int("round", rounds+1).Str("fixtures", describe(rows)).Msg("greedy-round")
		}
		matches = append(matches, rows...)
		counts = teaming.Analyse(matches, n)
		rounds++
	}
	log.Debug().Int("players", n).Int("team-size", m).Int("courts", k).
		Int("rounds", rounds).Bool("special", g.special).Msg("greedy-generated")

	plan := &Plan{Players: n, TeamSize: m, Courts: k, Matches: matches}
	plan = SortRounds(plan)
	plan.PlayerOrder = SortPlayers(plan)
	return plan, nil
}

// keepGoing is the stopping rule. Without a special player, rounds are
// added while nobody has met the m-1 threshold with everyone and no pair
// has partnered m times. In both modes at least one player must reach
// m-1 partnerships with everyone.
func (g *greedyGen) keepGoing(c teaming.Counts) bool {
	bestColumnMin := 0
	for j := 0; j < g.n; j++ {
		bestColumnMin = max(bestColumnMin, c.ColumnMin(j))
	}
	if bestColumnMin < g.m-1 {
		return true
	}
	return !g.special && c.TogetherMin() < g.m-1 && c.TogetherOffDiagonalMax() < g.m
}

type slotKind int

const (
	openSlot slotKind = iota
	withSpecialSlot
	againstSpecialSlot
)

type slot struct {
	kind       slotKind
	game, side int
}

type roundBuilder struct {
	g       *greedyGen
	c       teaming.Counts
	rows    [][]int
	inRound []int
	filled  int
	nodes   int

	played         []int
	withSpecial    []int
	againstSpecial []int
	specialLoad    []int
}

func (b *roundBuilder) put(game, side, player int) {
	b.rows[game][player] = side
	b.inRound[player] = 1
	b.filled++
}

func (b *roundBuilder) take(game, player int) {
	b.rows[game][player] = teaming.Out
	b.inRound[player] = 0
	b.filled--
}

// members returns the players on the given side of a court.
func (b *roundBuilder) members(game, side int) []int {
	var out []int
	for p, s := range b.rows[game] {
		if s == side {
			out = append(out, p)
		}
	}
	return out
}

func (b *roundBuilder) present(game int) []int {
	var out []int
	for p, s := range b.rows[game] {
		if s != teaming.Out {
			out = append(out, p)
		}
	}
	return out
}

// perPlayer evaluates f for every player.
func (b *roundBuilder) perPlayer(f func(p int) int) []int {
	out := make([]int, b.g.n)
	for p := range out {
		out[p] = f(p)
	}
	return out
}

// clipToRoundMin raises every value below the k-th smallest value among
// the players still free this round, k being the number of open positions.
// Players who would all make the cut anyway then tie on this criterion.
func (b *roundBuilder) clipToRoundMin(x []int) []int {
	var free []int
	for p, in := range b.inRound {
		if in == 0 {
			free = append(free, x[p])
		}
	}
	left := b.g.positions - b.filled
	if left <= 0 || left > len(free) {
		return x
	}
	sort.Ints(free)
	floor := free[left-1]
	out := make([]int, len(x))
	for i, v := range x {
		out[i] = max(v, floor)
	}
	return out
}

// eligible reports whether p is free this round and has partnered each of
// teammates fewer than m times.
func (b *roundBuilder) eligible(p int, teammates []int) bool {
	if b.inRound[p] != 0 {
		return false
	}
	for _, q := range teammates {
		if b.c.Together(p, q) >= b.g.m {
			return false
		}
	}
	return true
}

// candidates lists the eligible players for s, best first.
func (b *roundBuilder) candidates(s slot) []int {
	c := b.c
	teammates := b.members(s.game, s.side)
	opponents := b.members(s.game, -s.side)

	var criteria [][]int
	switch s.kind {
	case withSpecialSlot:
		criteria = [][]int{
			b.withSpecial,
			b.perPlayer(func(p int) int { return b.played[p] - b.withSpecial[p] }),
			b.perPlayer(func(p int) int { return -b.againstSpecial[p] }),
			b.perPlayer(func(p int) int { return sumOver(c.Together, p, teammates) }),
		}
	case againstSpecialSlot:
		criteria = [][]int{
			b.againstSpecial,
			b.perPlayer(func(p int) int { return sumOver(c.Together, p, teammates) }),
			b.perPlayer(func(p int) int { return sumOver(c.Against, p, opponents) }),
			b.withSpecial,
			b.perPlayer(func(p int) int { return -(b.played[p] - b.againstSpecial[p] - b.withSpecial[p]) }),
		}
	default:
		onCourt := b.present(s.game)
		criteria = [][]int{
			b.clipToRoundMin(b.perPlayer(func(p int) int { return b.played[p] - b.specialLoad[p] })),
			b.specialLoad,
			b.perPlayer(func(p int) int { return maxOver(c.Together, p, teammates) }),
			b.perPlayer(func(p int) int { return maxOver(c.Against, p, opponents) }),
			b.perPlayer(func(p int) int {
				met := 0
				for _, q := range onCourt {
					if c.Together(p, q)+c.Against(p, q) > 0 {
						met++
					}
				}
				return met
			}),
		}
	}
	var out []int
	for _, p := range lexorder(b.g.n, criteria...) {
		if b.eligible(p, teammates) {
			out = append(out, p)
		}
	}
	return out
}

// fill places a player in slots[i:], trying candidates in order and
// undoing the choice when the rest of the round cannot be completed.
func (b *roundBuilder) fill(slots []slot, i int) bool {
	if i == len(slots) {
		return true
	}
	b.nodes++
	if b.nodes > roundSearchLimit {
		return false
	}
	s := slots[i]
	for _, p := range b.candidates(s) {
		b.put(s.game, s.side, p)
		if b.fill(slots, i+1) {
			return true
		}
		b.take(s.game, p)
	}
	return false
}

// round builds the next round, or reports false if every position cannot
// be filled under the partnership cap.
func (g *greedyGen) round(c teaming.Counts) ([][]int, bool) {
	b := &roundBuilder{
		g:       g,
		c:       c,
		rows:    newRound(g.k, g.n),
		inRound: make([]int, g.n),
	}
	sp := specialPlayer
	b.played = b.perPlayer(c.Played)
	b.withSpecial = b.perPlayer(func(p int) int { return c.Together(sp, p) })
	b.againstSpecial = b.perPlayer(func(p int) int { return c.Against(sp, p) })
	b.specialLoad = make([]int, g.n)

	var slots []slot
	if g.special {
		b.put(0, teaming.Home, sp)
		b.specialLoad = b.perPlayer(func(p int) int { return b.withSpecial[p] + b.againstSpecial[p] })
		for i := 0; i < g.m-1; i++ {
			slots = append(slots, slot{kind: withSpecialSlot, game: 0, side: teaming.Home})
		}
		for i := 0; i < g.m; i++ {
			slots = append(slots, slot{kind: againstSpecialSlot, game: 0, side: teaming.Away})
		}
	}
	for ind := 0; ind < g.positions; ind++ {
		game, side := g.games[ind], g.sides[ind]
		if game == 0 && g.special {
			continue
		}
		slots = append(slots, slot{kind: openSlot, game: game, side: side})
	}
	if !b.fill(slots, 0) {
		return nil, false
	}
	return b.rows, true
}

func sumOver(f func(i, j int) int, p int, others []int) int {
	s := 0
	for _, q := range others {
		s += f(p, q)
	}
	return s
}

// maxOver is the largest f(p, q) over others, or 0 when others is empty.
func maxOver(f func(i, j int) int, p int, others []int) int {
	best := 0
	for _, q := range others {
		best = max(best, f(p, q))
	}
	return best
}

// describe renders a round for debug logs.
func describe(rows [][]int) string {
	s := ""
	for c, row := range rows {
		var home, away []int
		for p, side := range row {
			if side > 0 {
				home = append(home, p)
			} else if side < 0 {
				away = append(away, p)
			}
		}
		s += fmt.Sprintf("[%d: %v v %v]", c+1, home, away)
	}
	return s
}
