// Package rating fits per-player skill scores to a history of team-vs-team
// results by maximum likelihood over the pairwise comparison model.
package rating

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/domino14/courtrank/pairwise"
)

const (
	DefaultMaxIterations  = 50
	DefaultBaseScore      = 10.0
	DefaultRegularization = 1.0

	gradientThreshold = 1e-6
	roundingFactor    = 1000.0
)

var (
	ErrRegularization = errors.New("regularization must be a non-negative number")
	ErrWarmStart      = errors.New("warm start length does not match the roster")
	ErrInvalidMatch   = errors.New("invalid match")
)

// Match is a finished match; player references are roster indices.
type Match = pairwise.Match

// Score is a display-scale skill score. Valid is false for players that
// did not appear in any rated match.
type Score struct {
	Value float64
	Valid bool
}

// Options controls a fit. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// Regularization is the pseudo-count of points each player is assumed
	// to have won and lost against a fixed zero-skill anchor.
	Regularization float64
	// MaxIterations caps the optimizer. Values <= 0 use DefaultMaxIterations.
	MaxIterations int
	// BaseScore is the display score given to the weakest rated player.
	BaseScore float64
	// WarmStart is an optional previous Result.Raw; NaN entries start at 0.
	WarmStart []float64
}

// DefaultOptions returns the league defaults.
func DefaultOptions() Options {
	return Options{
		Regularization: DefaultRegularization,
		MaxIterations:  DefaultMaxIterations,
		BaseScore:      DefaultBaseScore,
	}
}

// Result is the outcome of Fit, indexed by player.
type Result struct {
	Scores []Score
	// Raw is the unshifted optimizer solution in natural-log units, NaN for
	// unrated players. Feed it back as Options.WarmStart on the next fit.
	Raw []float64

	Iterations       int
	Converged        bool
	GradNorm         float64
	NegLogLikelihood float64
}

// Rated returns the number of players with a valid score.
func (r *Result) Rated() int {
	n := 0
	for _, s := range r.Scores {
		if s.Valid {
			n++
		}
	}
	return n
}

func validate(matches []Match, players int) error {
	for idx, m := range matches {
		if len(m.Home) == 0 || len(m.Away) == 0 {
			return fmt.Errorf("%w: match %d has an empty side", ErrInvalidMatch, idx)
		}
		if m.HomePoints < 0 || m.AwayPoints < 0 {
			return fmt.Errorf("%w: match %d has negative points", ErrInvalidMatch, idx)
		}
		home := make(map[int]bool, len(m.Home))
		for _, p := range m.Home {
			if p < 0 || p >= players {
				return fmt.Errorf("%w: match %d references player %d of %d", ErrInvalidMatch, idx, p, players)
			}
			home[p] = true
		}
		for _, p := range m.Away {
			if p < 0 || p >= players {
				return fmt.Errorf("%w: match %d references player %d of %d", ErrInvalidMatch, idx, p, players)
			}
			if home[p] {
				return fmt.Errorf("%w: player %d is on both sides of match %d", ErrInvalidMatch, p, idx)
			}
		}
	}
	return nil
}

// informative drops matches without any points; they carry no information.
func informative(matches []Match) []Match {
	kept := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.HomePoints > 0 || m.AwayPoints > 0 {
			kept = append(kept, m)
		}
	}
	return kept
}

// Fit computes scores for a roster of the given size. It is recomputed
// from scratch on every call; only the optimizer's starting point carries
// over through Options.WarmStart.
func Fit(matches []Match, players int, opts Options) (*Result, error) {
	if opts.Regularization < 0 || math.IsNaN(opts.Regularization) || math.IsInf(opts.Regularization, 0) {
		return nil, fmt.Errorf("%w: %v", ErrRegularization, opts.Regularization)
	}
	if opts.WarmStart != nil && len(opts.WarmStart) != players {
		return nil, fmt.Errorf("%w: %d values for %d players", ErrWarmStart, len(opts.WarmStart), players)
	}
	if players <= 0 {
		return &Result{Converged: true}, nil
	}
	if err := validate(matches, players); err != nil {
		return nil, err
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	kept := informative(matches)
	played := make([]bool, players)
	for _, m := range kept {
		for _, p := range m.Home {
			played[p] = true
		}
		for _, p := range m.Away {
			played[p] = true
		}
	}

	res := &Result{
		Scores: make([]Score, players),
		Raw:    make([]float64, players),
	}
	if len(kept) == 0 {
		for i := range res.Raw {
			res.Raw[i] = math.NaN()
		}
		res.Converged = true
		log.Debug().Int("players", players).Int("matches", len(matches)).Msg("rating-no-informative-matches")
		return res, nil
	}

	x0 := make([]float64, players)
	for i := range x0 {
		if opts.WarmStart != nil && !math.IsNaN(opts.WarmStart[i]) && !math.IsInf(opts.WarmStart[i], 0) {
			x0[i] = opts.WarmStart[i]
		}
	}

	model := pairwise.NewModel(players, kept, opts.Regularization)
	x, iterations, converged, err := minimize(model, x0, maxIter)
	if err != nil {
		return nil, err
	}

	grad := make([]float64, players)
	model.Gradient(grad, x)
	res.Iterations = iterations
	res.Converged = converged
	res.GradNorm = floats.Norm(grad, 2)
	res.NegLogLikelihood = model.NegLogLikelihood(x)

	if !converged {
		log.Warn().
			Int("iterations", iterations).
			Float64("grad-norm", res.GradNorm).
			Int("players", players).
			Int("matches", len(kept)).
			Msg("rating-fit-not-converged")
	}

	lowest := math.Inf(1)
	for i, xi := range x {
		if played[i] {
			lowest = math.Min(lowest, xi)
		}
	}
	for i, xi := range x {
		if !played[i] {
			res.Raw[i] = math.NaN()
			continue
		}
		res.Raw[i] = xi
		v := opts.BaseScore + pairwise.DisplayPerNat*(xi-lowest)
		res.Scores[i] = Score{Value: math.Round(v*roundingFactor) / roundingFactor, Valid: true}
	}
	log.Debug().
		Int("players", players).
		Int("rated", res.Rated()).
		Int("iterations", iterations).
		Float64("nll", res.NegLogLikelihood).
		Msg("rating-fit-done")
	return res, nil
}

// minimize runs BFGS from x0. Running out of iterations or a failed line
// search is not an error: the best iterate found so far is returned.
func minimize(model *pairwise.Model, x0 []float64, maxIter int) ([]float64, int, bool, error) {
	problem := optimize.Problem{
		Func: model.NegLogLikelihood,
		Grad: model.Gradient,
	}
	settings := &optimize.Settings{
		MajorIterations:   maxIter,
		GradientThreshold: gradientThreshold,
	}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.BFGS{})
	if result == nil {
		return nil, 0, false, fmt.Errorf("rating optimizer: %w", err)
	}
	if err != nil {
		log.Debug().Err(err).Str("status", result.Status.String()).Msg("rating-optimizer-stopped")
	}
	x := result.Location.X
	if math.IsInf(result.Location.F, 1) || len(x) != len(x0) {
		x = x0
	}
	converged := false
	if err == nil {
		switch result.Status {
		case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence,
			optimize.StepConvergence, optimize.MethodConverge, optimize.FunctionThreshold:
			converged = true
		}
	}
	return x, result.Stats.MajorIterations, converged, nil
}
