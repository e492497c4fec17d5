package tournament

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/cespare/xxhash"
	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"

	"github.com/domino14/courtrank/teaming"
)

const (
	deadEndEntrySize  = 8
	minDeadEndPower   = 10
	maxDeadEndPower   = 24
	cancelCheckPeriod = 1024
)

// deadEnds remembers round-start states from which no schedule could be
// completed. The search from a round start depends only on the teaming
// counts and the number of matches so far, so those are all that is hashed.
type deadEnds struct {
	table    []uint64
	sizeMask uint64
	stored   int
	hits     int
	buf      []byte
}

func newDeadEnds(fractionOfMemory float64) *deadEnds {
	if fractionOfMemory <= 0 {
		return nil
	}
	totalMem := memory.TotalMemory()
	desired := fractionOfMemory * float64(totalMem) / deadEndEntrySize
	power := int(math.Log2(math.Max(desired, 1)))
	power = max(minDeadEndPower, min(maxDeadEndPower, power))
	numElems := 1 << power
	log.Debug().Int("num-elems", numElems).
		Uint64("total-system-memory-bytes", totalMem).
		Msg("dead-end-cache-size")
	return &deadEnds{
		table:    make([]uint64, numElems),
		sizeMask: uint64(numElems - 1),
	}
}

func (d *deadEnds) key(c teaming.Counts, matches int) uint64 {
	together, against := c.Raw()
	need := 8 * (len(together) + len(against) + 1)
	if cap(d.buf) < need {
		d.buf = make([]byte, need)
	}
	b := d.buf[:need]
	off := 0
	for _, v := range together {
		binary.LittleEndian.PutUint64(b[off:], uint64(v))
		off += 8
	}
	for _, v := range against {
		binary.LittleEndian.PutUint64(b[off:], uint64(v))
		off += 8
	}
	binary.LittleEndian.PutUint64(b[off:], uint64(matches))
	h := xxhash.Sum64(b)
	// zero marks an empty slot
	if h == 0 {
		h = 1
	}
	return h
}

func (d *deadEnds) contains(h uint64) bool {
	if d == nil {
		return false
	}
	if d.table[h&d.sizeMask] == h {
		d.hits++
		return true
	}
	return false
}

func (d *deadEnds) store(h uint64) {
	if d == nil {
		return
	}
	// overwrite whatever is there
	d.table[h&d.sizeMask] = h
	d.stored++
}

// position is one court slot being filled. order is the candidate order
// computed when the slot was reached; next is the cursor into it.
type position struct {
	order  []int
	next   int
	chosen int
}

// roundFrame is a round under construction on top of the completed rounds
// below it on the stack.
type roundFrame struct {
	counts    teaming.Counts
	key       uint64
	slots     [][]int
	positions []position
}

type exactGen struct {
	n, m, k   int
	positions int
	games     []int
	sides     []int
	target    int
	cache     *deadEnds
	nodes     int
}

// Exact searches for a perfect schedule: enough matches that every pair
// could have partnered once, with no pair of teammates ever partnering
// more than m-1 times. Court positions are filled depth first, trying the
// least used players first and backtracking on dead ends.
//
// If the search space is exhausted ErrNoSolution is returned; a cancelled
// context returns ctx.Err().
func Exact(ctx context.Context, n, m int, opts Options) (*Plan, error) {
	if err := validate(n, m); err != nil {
		return nil, err
	}
	if n < 2*m {
		return nil, ErrNotEnoughPlayers
	}
	if m == 1 {
		return nil, ErrSingletonTeams
	}
	k := courtsFor(n, m, opts.Courts)
	matchCount := n * (n - 1) / (2 * m)
	rounds := (matchCount + k - 1) / k
	g := &exactGen{
		n:         n,
		m:         m,
		k:         k,
		positions: 2 * m * k,
		target:    rounds,
		cache:     newDeadEnds(opts.CacheMemoryFraction),
	}
	g.games, g.sides = fillOrder(k, g.positions)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ts := time.Now()
	matches, err := g.search(ctx)
	ev := log.Debug().Int("players", n).Int("team-size", m).Int("courts", k).
		Int("nodes", g.nodes).Dur("elapsed", time.Since(ts))
	if g.cache != nil {
		ev = ev.Int("dead-ends", g.cache.stored).Int("dead-end-hits", g.cache.hits)
	}
	if err != nil {
		ev.Err(err).Msg("exact-returning")
		return nil, err
	}
	ev.Int("rounds", rounds).Msg("exact-returning")

	plan := &Plan{Players: n, TeamSize: m, Courts: k, Matches: matches}
	plan = SortRounds(plan)
	plan.PlayerOrder = SortPlayers(plan)
	return plan, nil
}

func (g *exactGen) flatten(stack []*roundFrame) [][]int {
	var out [][]int
	for _, f := range stack {
		out = append(out, f.slots...)
	}
	return out
}

func (g *exactGen) newFrame(stack []*roundFrame) *roundFrame {
	done := g.flatten(stack)
	f := &roundFrame{
		counts: teaming.Analyse(done, g.n),
		slots:  newRound(g.k, g.n),
	}
	if g.cache != nil {
		f.key = g.cache.key(f.counts, len(done))
	}
	return f
}

// candidates orders players for the next open position of f: players not
// yet in this round first, then the fewest matches played, then the least
// partnered with the current teammates, then the least faced against the
// current opponents.
func (g *exactGen) candidates(f *roundFrame, ind int) []int {
	game, side := g.games[ind], g.sides[ind]
	var teammates, opponents []int
	inRound := make([]int, g.n)
	for _, row := range f.slots {
		for p, s := range row {
			if s != teaming.Out {
				inRound[p] = 1
			}
		}
	}
	for p, s := range f.slots[game] {
		switch s {
		case side:
			teammates = append(teammates, p)
		case -side:
			opponents = append(opponents, p)
		}
	}
	played := make([]int, g.n)
	partnered := make([]int, g.n)
	faced := make([]int, g.n)
	for p := 0; p < g.n; p++ {
		played[p] = f.counts.Played(p)
		partnered[p] = maxOver(f.counts.Together, p, teammates)
		faced[p] = sumOver(f.counts.Against, p, opponents)
	}
	order := lexorder(g.n, inRound, played, partnered, faced)

	// Candidates already in this round sort last; the first one ends the
	// list. Those that would partner someone too often are skipped.
	out := make([]int, 0, len(order))
	for _, p := range order {
		if inRound[p] > 0 {
			break
		}
		if partnered[p] >= g.m-1 {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (g *exactGen) search(ctx context.Context) ([][]int, error) {
	stack := []*roundFrame{g.newFrame(nil)}
	top := stack[0]
	top.positions = append(top.positions, position{order: g.candidates(top, 0), chosen: -1})

	for len(stack) > 0 {
		g.nodes++
		if g.nodes%cancelCheckPeriod == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		f := stack[len(stack)-1]
		ind := len(f.positions) - 1
		pos := &f.positions[ind]
		game, side := g.games[ind], g.sides[ind]
		if pos.chosen >= 0 {
			f.slots[game][pos.chosen] = teaming.Out
			pos.chosen = -1
		}
		if pos.next >= len(pos.order) {
			// Exhausted this position; back up one.
			f.positions = f.positions[:ind]
			if len(f.positions) == 0 {
				g.cache.store(f.key)
				stack = stack[:len(stack)-1]
			}
			continue
		}
		p := pos.order[pos.next]
		pos.next++
		pos.chosen = p
		f.slots[game][p] = side

		if ind+1 < g.positions {
			f.positions = append(f.positions, position{order: g.candidates(f, ind+1), chosen: -1})
			continue
		}
		if len(stack) >= g.target {
			return copyRound(g.flatten(stack)), nil
		}
		next := g.newFrame(stack)
		if g.cache.contains(next.key) {
			// Known dead end; try the next candidate for this position.
			continue
		}
		next.positions = append(next.positions, position{order: g.candidates(next, 0), chosen: -1})
		stack = append(stack, next)
	}
	return nil, ErrNoSolution
}
