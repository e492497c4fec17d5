package tournament

import (
	"github.com/samber/lo"

	"github.com/domino14/courtrank/stats"
	"github.com/domino14/courtrank/teaming"
)

// Breaks returns, for every round and player, how many matches the player
// plays in that round: 1 for playing and 0 for a bye.
func Breaks(p *Plan) [][]int {
	rounds := make([][]int, p.RoundCount())
	for r := range rounds {
		rounds[r] = make([]int, p.Players)
		for c := 0; c < p.Courts; c++ {
			for player, side := range p.Matches[r*p.Courts+c] {
				if side != teaming.Out {
					rounds[r][player]++
				}
			}
		}
	}
	return rounds
}

// SortRounds reorders whole rounds so that byes are spread out. Rounds are
// picked one at a time: first the round that brings back the players who
// have rested longest, then the one that rests the players who have played
// longest without a break, then the one that uses up the most remaining
// byes. This is a greedy heuristic, not an optimal ordering.
func SortRounds(p *Plan) *Plan {
	out := *p
	if p.Empty() {
		return &out
	}
	rounds := Breaks(p)
	r := len(rounds)
	n := p.Players

	remaining := lo.Range(r)
	sorted := make([]int, 0, r)

	for i := 0; i < r; i++ {
		// byes each player still has in the unplaced rounds
		byesLeft := make([]int, n)
		for _, j := range remaining {
			for q := 0; q < n; q++ {
				if rounds[j][q] == 0 {
					byesLeft[q]++
				}
			}
		}
		// last placed round (1-based) each player rested and played in
		lastRest := make([]int, n)
		lastPlay := make([]int, n)
		for t, j := range sorted {
			for q := 0; q < n; q++ {
				if rounds[j][q] == 0 {
					lastRest[q] = t + 1
				} else {
					lastPlay[q] = t + 1
				}
			}
		}

		restedFor := make([]int, len(remaining))
		playedFor := make([]int, len(remaining))
		byeWeight := make([]int, len(remaining))
		for idx, j := range remaining {
			for q := 0; q < n; q++ {
				if rounds[j][q] == 0 {
					playedFor[idx] -= i - lastRest[q]
					byeWeight[idx] -= byesLeft[q]
				} else {
					restedFor[idx] -= i - lastPlay[q]
				}
			}
		}
		pick := arglexmin(restedFor, playedFor, byeWeight)
		sorted = append(sorted, remaining[pick])
		remaining = append(remaining[:pick:pick], remaining[pick+1:]...)
	}

	out.Matches = make([][]int, 0, len(p.Matches))
	for _, j := range sorted {
		out.Matches = append(out.Matches, p.Matches[j*p.Courts:(j+1)*p.Courts]...)
	}
	return &out
}

// SortPlayers returns the player indices ordered from the most evenly
// scheduled to the least: highest minimum partnerships first, then fewest
// maximum partnerships, then highest minimum and lowest maximum
// oppositions. Ties keep index order.
func SortPlayers(p *Plan) []int {
	n := p.Players
	if p.Empty() {
		return lo.Range(n)
	}
	c := p.Counts()
	negMinTogether := make([]int, n)
	maxTogether := make([]int, n)
	negMinAgainst := make([]int, n)
	maxAgainst := make([]int, n)
	for j := 0; j < n; j++ {
		col := lo.Range(n)
		together := lo.Map(col, func(i, _ int) int { return c.Together(i, j) })
		against := lo.Map(col, func(i, _ int) int { return c.Against(i, j) })
		negMinTogether[j] = -lo.Min(together)
		maxTogether[j] = lo.Max(together)
		negMinAgainst[j] = -lo.Min(against)
		maxAgainst[j] = lo.Max(against)
	}
	return lexorder(n, negMinTogether, maxTogether, negMinAgainst, maxAgainst)
}

// PlayerRest summarizes one player's sequence of games and byes.
type PlayerRest struct {
	Player      int
	Played      int
	Byes        int
	LongestRun  int
	LongestRest int
	// Runs and Rests hold the lengths of consecutive playing and
	// sitting-out streaks.
	Runs  stats.Statistic
	Rests stats.Statistic
}

// RestReport walks the rounds in order and reports each player's streaks.
func RestReport(p *Plan) []PlayerRest {
	rounds := Breaks(p)
	report := make([]PlayerRest, p.Players)
	for q := range report {
		pr := PlayerRest{Player: q}
		run, rest := 0, 0
		for _, r := range rounds {
			if r[q] > 0 {
				pr.Played++
				run++
				if rest > 0 {
					pr.Rests.Push(float64(rest))
					rest = 0
				}
				continue
			}
			pr.Byes++
			rest++
			if run > 0 {
				pr.Runs.Push(float64(run))
				run = 0
			}
		}
		if run > 0 {
			pr.Runs.Push(float64(run))
		}
		if rest > 0 {
			pr.Rests.Push(float64(rest))
		}
		pr.LongestRun = int(pr.Runs.Max())
		pr.LongestRest = int(pr.Rests.Max())
		report[q] = pr
	}
	return report
}
