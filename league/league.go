// Package league is the boundary between stored league data, where players
// are identified by UUIDs, and the engines, which work on dense indices.
package league

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/domino14/courtrank/rating"
)

var (
	ErrUnknownPlayer   = errors.New("player is not on the roster")
	ErrDuplicatePlayer = errors.New("player listed twice")
)

// Period is the score of a single first-to-n period.
type Period struct {
	Home int `json:"home" yaml:"home"`
	Away int `json:"away" yaml:"away"`
}

// Result is a finished (or scheduled) match between two teams.
type Result struct {
	Home       []uuid.UUID `json:"home" yaml:"home"`
	Away       []uuid.UUID `json:"away" yaml:"away"`
	HomePoints int         `json:"home_points" yaml:"home_points"`
	AwayPoints int         `json:"away_points" yaml:"away_points"`
	// Periods is optional; when present it is used to detect a shorter
	// first-to-n target than the league default.
	Periods []Period `json:"periods,omitempty" yaml:"periods,omitempty"`
}

// Ratings holds the outcome of rating a roster. Players who have not
// played a rated match are absent from Scores and Raw and listed in
// Unrated.
type Ratings struct {
	Scores  map[uuid.UUID]float64
	Raw     map[uuid.UUID]float64
	Unrated []uuid.UUID

	Iterations int
	Converged  bool
}

// index maps roster members to their column.
func index(roster []uuid.UUID) (map[uuid.UUID]int, error) {
	idx := make(map[uuid.UUID]int, len(roster))
	for i, id := range roster {
		if _, ok := idx[id]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlayer, id)
		}
		idx[id] = i
	}
	return idx, nil
}

func lookup(idx map[uuid.UUID]int, team []uuid.UUID) ([]int, error) {
	out := make([]int, len(team))
	for i, id := range team {
		col, ok := idx[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
		}
		out[i] = col
	}
	return out, nil
}

// Rate fits scores for roster from results. warm is an optional previous
// Ratings.Raw; entries for players not on the roster are ignored.
func Rate(roster []uuid.UUID, results []Result, warm map[uuid.UUID]float64, opts rating.Options) (*Ratings, error) {
	idx, err := index(roster)
	if err != nil {
		return nil, err
	}
	matches := make([]rating.Match, 0, len(results))
	for i, r := range results {
		home, err := lookup(idx, r.Home)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		away, err := lookup(idx, r.Away)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		matches = append(matches, rating.Match{
			Home:       home,
			Away:       away,
			HomePoints: r.HomePoints,
			AwayPoints: r.AwayPoints,
		})
	}
	if warm != nil {
		opts.WarmStart = make([]float64, len(roster))
		for i, id := range roster {
			v, ok := warm[id]
			if !ok {
				v = math.NaN()
			}
			opts.WarmStart[i] = v
		}
	}

	res, err := rating.Fit(matches, len(roster), opts)
	if err != nil {
		return nil, err
	}
	out := &Ratings{
		Scores:     make(map[uuid.UUID]float64, len(roster)),
		Raw:        make(map[uuid.UUID]float64, len(roster)),
		Iterations: res.Iterations,
		Converged:  res.Converged,
	}
	for i, id := range roster {
		if !res.Scores[i].Valid {
			out.Unrated = append(out.Unrated, id)
			continue
		}
		out.Scores[id] = res.Scores[i].Value
		out.Raw[id] = res.Raw[i]
	}
	return out, nil
}

// Scope is one independent rating problem, such as a whole league or a
// single stage of it.
type Scope struct {
	Name    string
	Roster  []uuid.UUID
	Results []Result
	Warm    map[uuid.UUID]float64
}

// RateScopes rates every scope concurrently. The returned slice is in the
// same order as scopes. The first failure cancels the scopes that have not
// started yet.
func RateScopes(ctx context.Context, scopes []Scope, opts rating.Options) ([]*Ratings, error) {
	out := make([]*Ratings, len(scopes))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, s := range scopes {
		i, s := i, s
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := Rate(s.Roster, s.Results, s.Warm, opts)
			if err != nil {
				return fmt.Errorf("scope %q: %w", s.Name, err)
			}
			log.Debug().Str("scope", s.Name).Int("rated", len(r.Scores)).
				Int("iterations", r.Iterations).Msg("scope-rated")
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
