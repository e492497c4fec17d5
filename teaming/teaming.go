// Package teaming counts how often players shared a side or faced each
// other across a set of court assignments.
package teaming

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Side values in an assignment row.
const (
	Home = 1
	Away = -1
	Out  = 0
)

// Counts holds the symmetric together and against matrices for n players.
// Together(i, i) is the number of matches player i appeared in.
type Counts struct {
	n        int
	together []int
	against  []int
}

// Analyse aggregates assignment rows. Each row has one entry per player:
// Home, Away or Out. Rows shorter than n are treated as padded with Out.
func Analyse(matches [][]int, n int) Counts {
	c := Counts{
		n:        n,
		together: make([]int, n*n),
		against:  make([]int, n*n),
	}
	if n == 0 || len(matches) == 0 {
		return c
	}
	home := mat.NewDense(len(matches), n, nil)
	away := mat.NewDense(len(matches), n, nil)
	for r, row := range matches {
		for p, v := range row {
			if p >= n {
				break
			}
			switch {
			case v > 0:
				home.Set(r, p, 1)
			case v < 0:
				away.Set(r, p, 1)
			}
		}
	}

	var hh, aa, ha, ah mat.Dense
	hh.Mul(home.T(), home)
	aa.Mul(away.T(), away)
	ha.Mul(home.T(), away)
	ah.Mul(away.T(), home)

	var together, against mat.Dense
	together.Add(&hh, &aa)
	against.Add(&ha, &ah)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			c.together[i*n+j] = int(math.Round(together.At(i, j)))
			c.against[i*n+j] = int(math.Round(against.At(i, j)))
		}
	}
	return c
}

// Players returns the roster size the counts were built for.
func (c Counts) Players() int {
	return c.n
}

// Together is how many matches i and j played on the same side.
func (c Counts) Together(i, j int) int {
	return c.together[i*c.n+j]
}

// Against is how many matches i and j played on opposite sides.
func (c Counts) Against(i, j int) int {
	return c.against[i*c.n+j]
}

// Played is the number of matches player i appeared in.
func (c Counts) Played(i int) int {
	return c.together[i*c.n+i]
}

// Contact is how many times i and j met on court, on either side. It is
// zero on the diagonal.
func (c Counts) Contact(i, j int) int {
	if i == j {
		return 0
	}
	return c.Together(i, j) + c.Against(i, j)
}

// TogetherOffDiagonalMax is the largest number of times any two distinct
// players shared a side.
func (c Counts) TogetherOffDiagonalMax() int {
	best := 0
	for i := 0; i < c.n; i++ {
		for j := 0; j < c.n; j++ {
			if i != j && c.Together(i, j) > best {
				best = c.Together(i, j)
			}
		}
	}
	return best
}

// TogetherMin is the smallest entry of the together matrix, diagonal
// included.
func (c Counts) TogetherMin() int {
	if c.n == 0 {
		return 0
	}
	best := math.MaxInt
	for _, v := range c.together {
		best = min(best, v)
	}
	return best
}

// ColumnMin returns the smallest together count in column j, diagonal
// included.
func (c Counts) ColumnMin(j int) int {
	best := math.MaxInt
	for i := 0; i < c.n; i++ {
		best = min(best, c.Together(i, j))
	}
	return best
}

// ContactMatrix returns Contact as a dense [][]int.
func (c Counts) ContactMatrix() [][]int {
	out := make([][]int, c.n)
	for i := range out {
		out[i] = make([]int, c.n)
		for j := range out[i] {
			out[i][j] = c.Contact(i, j)
		}
	}
	return out
}

// Equal reports whether two sets of counts are identical.
func (c Counts) Equal(o Counts) bool {
	if c.n != o.n {
		return false
	}
	for i := range c.together {
		if c.together[i] != o.together[i] || c.against[i] != o.against[i] {
			return false
		}
	}
	return true
}

// Raw exposes the flattened row-major matrices, mainly for hashing.
func (c Counts) Raw() (together, against []int) {
	return c.together, c.against
}
