// Package pairing finds one-on-one pairings that avoid repeat meetings and,
// after that, keep paired players close in skill.
package pairing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	DefaultTimeout = 5 * time.Second

	deadlineCheckPeriod = 64
)

var (
	ErrNoPairing  = errors.New("no pairing found")
	ErrRosterSize = errors.New("invalid roster")
)

// OddMode says what happens to the odd player out when the roster size
// is odd.
type OddMode int

const (
	// PlayTwice schedules the least played player in two pairs.
	PlayTwice OddMode = iota
	// SitOut leaves the most played player without a game, so that
	// repeated rounds rotate the bye.
	SitOut
)

func (m OddMode) String() string {
	switch m {
	case PlayTwice:
		return "play-twice"
	case SitOut:
		return "sit-out"
	}
	return fmt.Sprintf("OddMode(%d)", int(m))
}

type Input struct {
	Players int
	// Scores are display-scale skill scores; NaN marks an unrated player.
	// nil means nobody is rated.
	Scores []float64
	// Contact[i][j] is how many times i and j already met. nil means never.
	Contact [][]int
	// Played is how many games each player has had, for the odd-roster
	// choice. nil means zero for everyone.
	Played []int
}

type Options struct {
	// Timeout bounds the search. Once a pairing has been found, running
	// out of time returns the best one so far.
	Timeout time.Duration
	OddMode OddMode
	// StrictBound replaces the claim-based skill-gap estimate with half the
	// sum of nearest distances. It never overestimates, so the search is
	// exact, but it prunes less.
	StrictBound bool
}

type Pair struct {
	A, B int
}

// Cost is compared lexicographically: contact first, then squared skill
// gap.
type Cost struct {
	Contact int
	Gap     float64
}

func (c Cost) Less(o Cost) bool {
	if c.Contact != o.Contact {
		return c.Contact < o.Contact
	}
	return c.Gap < o.Gap
}

func (c Cost) Add(o Cost) Cost {
	return Cost{Contact: c.Contact + o.Contact, Gap: c.Gap + o.Gap}
}

type Result struct {
	Pairs []Pair
	Cost  Cost
	// Optimal is false when the search stopped early.
	Optimal bool
	// Extra is the player who plays twice or sits out, or -1.
	Extra int
	Nodes int
}

func validate(in Input) error {
	if in.Players < 2 {
		return fmt.Errorf("%w: %d players", ErrRosterSize, in.Players)
	}
	if in.Scores != nil && len(in.Scores) != in.Players {
		return fmt.Errorf("%w: %d scores for %d players", ErrRosterSize, len(in.Scores), in.Players)
	}
	if in.Played != nil && len(in.Played) != in.Players {
		return fmt.Errorf("%w: %d played counts for %d players", ErrRosterSize, len(in.Played), in.Players)
	}
	if in.Contact != nil {
		if len(in.Contact) != in.Players {
			return fmt.Errorf("%w: contact matrix has %d rows for %d players", ErrRosterSize, len(in.Contact), in.Players)
		}
		for i, row := range in.Contact {
			if len(row) != in.Players {
				return fmt.Errorf("%w: contact row %d has %d entries", ErrRosterSize, i, len(row))
			}
		}
	}
	return nil
}

// pricedScores fills unrated players with the mean rated score.
func pricedScores(in Input) []float64 {
	out := make([]float64, in.Players)
	rated := lo.Filter(in.Scores, func(s float64, _ int) bool { return !math.IsNaN(s) })
	mean := 0.0
	if len(rated) > 0 {
		mean = lo.Sum(rated) / float64(len(rated))
	}
	for i := range out {
		if in.Scores == nil || math.IsNaN(in.Scores[i]) {
			out[i] = mean
		} else {
			out[i] = in.Scores[i]
		}
	}
	return out
}

// oddOneOut picks the player who plays twice or sits out.
func oddOneOut(in Input, scores []float64, mode OddMode) int {
	played := func(i int) int {
		if in.Played == nil {
			return 0
		}
		return in.Played[i]
	}
	best := 0
	for i := 1; i < in.Players; i++ {
		pi, pb := played(i), played(best)
		if pi != pb {
			if (mode == PlayTwice && pi < pb) || (mode == SitOut && pi > pb) {
				best = i
			}
			continue
		}
		if scores[i] < scores[best] {
			best = i
		}
	}
	return best
}

type searcher struct {
	// players maps participants to players; with PlayTwice the extra
	// player appears twice and may not meet itself.
	players []int
	contact [][]int
	scores  []float64

	strict bool
	paired []bool
	best   *Cost
	bestAt []Pair
	nodes  int
}

func (s *searcher) cost(a, b int) Cost {
	pa, pb := s.players[a], s.players[b]
	c := Cost{}
	if s.contact != nil {
		c.Contact = s.contact[pa][pb]
	}
	d := s.scores[pa] - s.scores[pb]
	c.Gap = d * d
	return c
}

func (s *searcher) allowed(a, b int) bool {
	if a == b {
		return false
	}
	return s.players[a] != s.players[b]
}

// lowerBound estimates the cheapest way to pair the unpaired participants.
// The contact part sums each participant's smallest contact and halves it.
// The gap part takes each participant's closest opponent among those that
// keep within the remaining contact budget, then repeatedly claims the
// largest of those distances and drops that participant and its opponent,
// until half the participants are used up.
func (s *searcher) lowerBound(budget int) Cost {
	var rest []int
	for i, p := range s.paired {
		if !p {
			rest = append(rest, i)
		}
	}
	if len(rest) == 0 {
		return Cost{}
	}
	contactSum := 0
	nearest := make([]float64, len(rest))
	partner := make([]int, len(rest))
	for x, i := range rest {
		minContact := math.MaxInt
		nearest[x] = math.Inf(1)
		partner[x] = -1
		for y, j := range rest {
			if !s.allowed(i, j) {
				continue
			}
			c := s.cost(i, j)
			minContact = min(minContact, c.Contact)
			if c.Contact <= budget && c.Gap < nearest[x] {
				nearest[x] = c.Gap
				partner[x] = y
			}
		}
		if minContact == math.MaxInt {
			return Cost{Contact: math.MaxInt / 2, Gap: math.Inf(1)}
		}
		contactSum += minContact
	}

	gap := 0.0
	if s.strict {
		for _, d := range nearest {
			gap += d
		}
		return Cost{Contact: (contactSum + 1) / 2, Gap: gap / 2}
	}
	used := make([]bool, len(rest))
	for claimed := 0; claimed < len(rest)/2; claimed++ {
		worst := -1
		for x := range rest {
			if !used[x] && (worst < 0 || nearest[x] > nearest[worst]) {
				worst = x
			}
		}
		if worst < 0 {
			break
		}
		gap += nearest[worst]
		used[worst] = true
		if partner[worst] >= 0 {
			used[partner[worst]] = true
		}
	}
	return Cost{Contact: (contactSum + 1) / 2, Gap: gap}
}

// candidates lists a's possible partners, least contact and then closest
// in skill first.
func (s *searcher) candidates(a int) []int {
	cands := lo.Filter(lo.Range(len(s.players)), func(b, _ int) bool {
		return !s.paired[b] && s.allowed(a, b)
	})
	sort.SliceStable(cands, func(x, y int) bool {
		return s.cost(a, cands[x]).Less(s.cost(a, cands[y]))
	})
	return cands
}

func (s *searcher) firstUnpaired() int {
	for i, p := range s.paired {
		if !p {
			return i
		}
	}
	return -1
}

type frame struct {
	a      int
	cands  []int
	next   int
	chosen int
	base   Cost
}

// Search finds the pairing of minimum cost. It is an anytime search: when
// the timeout passes or ctx is cancelled after at least one pairing has
// been found, the best pairing so far is returned with Optimal false.
func Search(ctx context.Context, in Input, opts Options) (*Result, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)
	ts := time.Now()

	scores := pricedScores(in)
	s := &searcher{contact: in.Contact, scores: scores, strict: opts.StrictBound}
	extra := -1
	if in.Players%2 == 1 {
		extra = oddOneOut(in, scores, opts.OddMode)
	}
	for p := 0; p < in.Players; p++ {
		if p == extra && opts.OddMode == SitOut {
			continue
		}
		s.players = append(s.players, p)
	}
	if extra >= 0 && opts.OddMode == PlayTwice {
		s.players = append(s.players, extra)
	}
	s.paired = make([]bool, len(s.players))

	optimal := true
	stack := []frame{{a: 0, cands: s.candidates(0), chosen: -1}}
	s.paired[0] = true

	for len(stack) > 0 {
		s.nodes++
		if s.nodes%deadlineCheckPeriod == 0 && (ctx.Err() != nil || time.Now().After(deadline)) {
			if s.best != nil {
				optimal = false
				break
			}
			return nil, fmt.Errorf("%w: stopped after %d nodes", ErrNoPairing, s.nodes)
		}
		f := &stack[len(stack)-1]
		if f.chosen >= 0 {
			s.paired[f.chosen] = false
			f.chosen = -1
		}
		b, cur := -1, Cost{}
		for f.next < len(f.cands) {
			cand := f.cands[f.next]
			f.next++
			if s.paired[cand] {
				continue
			}
			cur = f.base.Add(s.cost(f.a, cand))
			if s.best != nil {
				s.paired[cand] = true
				bound := cur.Add(s.lowerBound(s.best.Contact - cur.Contact))
				s.paired[cand] = false
				if !bound.Less(*s.best) {
					continue
				}
			}
			b = cand
			break
		}
		if b < 0 {
			s.paired[f.a] = false
			stack = stack[:len(stack)-1]
			continue
		}
		f.chosen = b
		s.paired[b] = true

		next := s.firstUnpaired()
		if next < 0 {
			if s.best == nil || cur.Less(*s.best) {
				c := cur
				s.best = &c
				s.bestAt = s.bestAt[:0]
				for _, fr := range stack {
					s.bestAt = append(s.bestAt, Pair{A: s.players[fr.a], B: s.players[fr.chosen]})
				}
				log.Debug().Int("contact", c.Contact).Float64("gap", c.Gap).Int("nodes", s.nodes).
					Msg("pairing-improved")
			}
			continue
		}
		s.paired[next] = true
		stack = append(stack, frame{a: next, cands: s.candidates(next), chosen: -1, base: cur})
	}

	log.Debug().Int("players", in.Players).Int("nodes", s.nodes).
		Dur("elapsed", time.Since(ts)).Bool("optimal", optimal).
		Msg("pairing-search-returning")

	if s.best == nil {
		return nil, ErrNoPairing
	}
	return &Result{
		Pairs:   append([]Pair(nil), s.bestAt...),
		Cost:    *s.best,
		Optimal: optimal,
		Extra:   extra,
		Nodes:   s.nodes,
	}, nil
}

// Series plans several consecutive rounds, feeding each round's pairs back
// into the contact and played counts before searching the next.
func Series(ctx context.Context, in Input, rounds int, opts Options) ([]*Result, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	contact := make([][]int, in.Players)
	for i := range contact {
		contact[i] = make([]int, in.Players)
		if in.Contact != nil && i < len(in.Contact) {
			copy(contact[i], in.Contact[i])
		}
	}
	played := make([]int, in.Players)
	if in.Played != nil {
		copy(played, in.Played)
	}
	results := make([]*Result, 0, rounds)
	for r := 0; r < rounds; r++ {
		res, err := Search(ctx, Input{
			Players: in.Players,
			Scores:  in.Scores,
			Contact: contact,
			Played:  played,
		}, opts)
		if err != nil {
			return results, fmt.Errorf("round %d: %w", r+1, err)
		}
		for _, p := range res.Pairs {
			contact[p.A][p.B]++
			contact[p.B][p.A]++
			played[p.A]++
			played[p.B]++
		}
		results = append(results, res)
	}
	return results, nil
}
