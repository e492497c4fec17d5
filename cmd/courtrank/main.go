package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"lukechampine.com/frand"

	"github.com/domino14/courtrank/config"
	"github.com/domino14/courtrank/league"
	"github.com/domino14/courtrank/pairing"
	"github.com/domino14/courtrank/pairwise"
	"github.com/domino14/courtrank/rating"
	"github.com/domino14/courtrank/service"
	"github.com/domino14/courtrank/simulate"
	"github.com/domino14/courtrank/stats"
	"github.com/domino14/courtrank/tournament"
)

func usage(w io.Writer) {
	io.WriteString(w, "usage: courtrank <command> [flags]\n")
	io.WriteString(w, "commands:\n")
	io.WriteString(w, "rate <fixture.yaml> - fit scores to the results and print them, best first\n")
	io.WriteString(w, "schedule --players N [--special] [--exact] [--shuffle] - generate rounds\n")
	io.WriteString(w, "pair <fixture.yaml> [--odd-mode sit-out] - pair the roster for one-on-one games\n")
	io.WriteString(w, "simulate --players N [--spread S] [--repeats R] - rate simulated results and compare to the true skills\n")
	io.WriteString(w, "serve - answer requests over NATS until interrupted\n")
	io.WriteString(w, "rate, schedule and pair take --remote to ask a running serve instead\n")
	io.WriteString(w, "run a command with --help to see all of its flags\n")
}

func ratingOptions(cfg config.Config) rating.Options {
	return rating.Options{
		Regularization: cfg.GetFloat64(config.ConfigRegularization),
		MaxIterations:  cfg.GetInt(config.ConfigMaxIterations),
		BaseScore:      cfg.GetFloat64(config.ConfigBaseScore),
	}
}

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := os.Args[1]

	cfg := config.DefaultConfig()
	fs := cfg.Flags(cmd)
	players := fs.Int("players", 8, "roster size")
	special := fs.Bool("special", false, "schedule player 1 on court 1 in every round")
	exact := fs.Bool("exact", false, "use the exact scheduler")
	shuffle := fs.Bool("shuffle", false, "shuffle the roster before scheduling")
	oddMode := fs.String("odd-mode", pairing.PlayTwice.String(), "what to do with the odd player out: play-twice or sit-out")
	spread := fs.Float64("spread", 2, "range of the simulated natural-log skills")
	repeats := fs.Int("repeats", 3, "times to replay the simulated schedule")
	remote := fs.Bool("remote", false, "send the request to a running courtrank serve")

	if err := fs.Parse(os.Args[2:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatal().Err(err).Msg("bad-flags")
	}
	if err := cfg.Load(fs); err != nil {
		log.Fatal().Err(err).Msg("config-load-failed")
	}
	if cfg.GetBool(config.ConfigDebug) {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "rate":
		err = rate(ctx, cfg, fs.Args(), *remote, os.Stdout)
	case "schedule":
		sf := scheduleFlags{players: *players, special: *special, exact: *exact, shuffle: *shuffle, remote: *remote}
		err = schedule(ctx, cfg, sf, os.Stdout)
	case "pair":
		err = pair(ctx, cfg, fs.Args(), *oddMode, *remote, os.Stdout)
	case "simulate":
		err = simulateLeague(cfg, *players, *spread, *repeats, os.Stdout)
	case "serve":
		err = serve(ctx, cfg)
	default:
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", cmd).Msg("command-failed")
	}
}

func fixtureArg(args []string) (*fixture, error) {
	if len(args) != 1 {
		return nil, errors.New("expected exactly one fixture file")
	}
	return loadFixture(args[0])
}

// dial connects to the service for --remote. The returned func closes
// the connection.
func dial(ctx context.Context, cfg config.Config) (*service.Client, func(), error) {
	nc, err := service.Connect(ctx, cfg.GetString(config.ConfigNatsURL))
	if err != nil {
		return nil, nil, err
	}
	c := service.NewClient(nc, cfg.GetString(config.ConfigNatsSubjectPrefix), cfg.GetDuration(config.ConfigRequestTimeout))
	return c, nc.Close, nil
}

func rate(ctx context.Context, cfg config.Config, args []string, remote bool, w io.Writer) error {
	f, err := fixtureArg(args)
	if err != nil {
		return err
	}
	var (
		standings  []league.Standing
		unrated    []uuid.UUID
		iterations int
		converged  bool
	)
	if remote {
		c, done, err := dial(ctx, cfg)
		if err != nil {
			return err
		}
		defer done()
		resp, err := c.Rate(service.RateRequest{
			Roster:         f.roster(),
			Results:        f.Results,
			Regularization: lo.ToPtr(cfg.GetFloat64(config.ConfigRegularization)),
		})
		if err != nil {
			return err
		}
		standings, unrated, iterations, converged = resp.Standings, resp.Unrated, resp.Iterations, resp.Converged
	} else {
		r, err := league.Rate(f.roster(), f.Results, nil, ratingOptions(cfg))
		if err != nil {
			return err
		}
		standings, unrated, iterations, converged = league.Standings(r), r.Unrated, r.Iterations, r.Converged
	}
	for _, s := range standings {
		fmt.Fprintf(w, "%3d. %-24s %8.3f %6.1f%%\n", s.Position, f.name(s.Player), s.Score, s.RelativePosition)
	}
	for _, id := range unrated {
		fmt.Fprintf(w, "  -. %-24s %8s\n", f.name(id), "unrated")
	}
	if !converged {
		log.Warn().Int("iterations", iterations).Msg("scores-may-be-inaccurate")
	}
	return nil
}

type scheduleFlags struct {
	players                         int
	special, exact, shuffle, remote bool
}

func schedule(ctx context.Context, cfg config.Config, sf scheduleFlags, w io.Writer) error {
	if sf.remote {
		return remoteSchedule(ctx, cfg, sf, w)
	}
	n := sf.players
	m := cfg.GetInt(config.ConfigTeamSize)
	opts := tournament.Options{
		Courts:              cfg.GetInt(config.ConfigCourts),
		SpecialPlayer:       sf.special,
		CacheMemoryFraction: cfg.GetFloat64(config.ConfigExactCacheMemoryFraction),
	}
	var (
		plan *tournament.Plan
		err  error
	)
	if sf.exact {
		plan, err = tournament.Exact(ctx, n, m, opts)
	} else {
		plan, err = tournament.Greedy(n, m, opts)
	}
	if err != nil {
		return err
	}
	// Shuffling only relabels players; the schedule is the same.
	label := lo.Range(n)
	if sf.shuffle {
		frand.Shuffle(n, func(i, j int) { label[i], label[j] = label[j], label[i] })
	}
	team := func(t []int) string {
		return strings.Join(lo.Map(t, func(p, _ int) string { return fmt.Sprint(label[p] + 1) }), " ")
	}
	for _, r := range plan.Rounds() {
		fmt.Fprintf(w, "Round %d\n", r.Number)
		for _, f := range r.Fixtures {
			fmt.Fprintf(w, "  court %d: %s v %s\n", f.Court, team(f.Home), team(f.Away))
		}
	}
	if plan.Empty() {
		fmt.Fprintln(w, "not enough players for a match")
		return nil
	}
	fmt.Fprintln(w)
	c := plan.Counts()
	for _, r := range tournament.RestReport(plan) {
		fmt.Fprintf(w, "player %2d: played %2d, byes %2d, longest run %2d, longest rest %2d, partners min %d\n",
			label[r.Player]+1, r.Played, r.Byes, r.LongestRun, r.LongestRest, c.ColumnMin(r.Player))
	}
	return nil
}

// remoteSchedule asks the service for rounds over a roster of fresh ids,
// numbered from 1 in roster order.
func remoteSchedule(ctx context.Context, cfg config.Config, sf scheduleFlags, w io.Writer) error {
	ids := make([]uuid.UUID, sf.players)
	label := make(map[uuid.UUID]int, sf.players)
	for i := range ids {
		ids[i] = uuid.New()
		label[ids[i]] = i + 1
	}
	req := service.ScheduleRequest{
		Roster:   ids,
		TeamSize: cfg.GetInt(config.ConfigTeamSize),
		Courts:   cfg.GetInt(config.ConfigCourts),
		Exact:    sf.exact,
		Shuffle:  sf.shuffle,
	}
	if sf.special && len(ids) > 0 {
		req.Special = &ids[0]
	}
	c, done, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer done()
	resp, err := c.Schedule(req)
	if err != nil {
		return err
	}
	team := func(t []uuid.UUID) string {
		return strings.Join(lo.Map(t, func(id uuid.UUID, _ int) string { return fmt.Sprint(label[id]) }), " ")
	}
	for i, round := range resp.Rounds {
		fmt.Fprintf(w, "Round %d\n", i+1)
		for _, f := range round {
			fmt.Fprintf(w, "  court %d: %s v %s\n", f.Court, team(f.Home), team(f.Away))
		}
	}
	if len(resp.Rounds) == 0 {
		fmt.Fprintln(w, "not enough players for a match")
	}
	return nil
}

func pair(ctx context.Context, cfg config.Config, args []string, oddMode string, remote bool, w io.Writer) error {
	f, err := fixtureArg(args)
	if err != nil {
		return err
	}
	mode, err := service.ParseOddMode(oddMode)
	if err != nil {
		return err
	}
	var p league.Pairing
	if remote {
		c, done, err := dial(ctx, cfg)
		if err != nil {
			return err
		}
		defer done()
		resp, err := c.Pair(service.PairRequest{
			Roster:  f.roster(),
			Scores:  f.scores(),
			History: f.Results,
			OddMode: oddMode,
		})
		if err != nil {
			return err
		}
		p = league.Pairing{
			Pairs:   resp.Pairs,
			Cost:    pairing.Cost{Contact: resp.Contact, Gap: resp.Gap},
			Optimal: resp.Optimal,
			Extra:   resp.Extra,
		}
	} else {
		local, err := league.ProposePairs(ctx, f.roster(), f.scores(), f.Results, pairing.Options{
			Timeout: cfg.GetDuration(config.ConfigPairingTimeout),
			OddMode: mode,
		})
		if err != nil {
			return err
		}
		p = *local
	}
	for i, pr := range p.Pairs {
		fmt.Fprintf(w, "%2d. %s v %s\n", i+1, f.name(pr.A), f.name(pr.B))
	}
	if p.Extra != nil {
		fmt.Fprintf(w, "%s: %s\n", mode, f.name(*p.Extra))
	}
	fmt.Fprintf(w, "rematches %d, squared score gap %.2f, optimal %v\n", p.Cost.Contact, p.Cost.Gap, p.Optimal)
	return nil
}

func simulateLeague(cfg config.Config, n int, spread float64, repeats int, w io.Writer) error {
	sim := simulate.New(cfg.GetInt(config.ConfigPointsToWin), cfg.GetInt(config.ConfigPeriods))
	skills := sim.Skills(n, spread)
	plan, err := tournament.Greedy(n, cfg.GetInt(config.ConfigTeamSize), tournament.Options{
		Courts: cfg.GetInt(config.ConfigCourts),
	})
	if err != nil {
		return err
	}
	var matches []rating.Match
	for i := 0; i < repeats; i++ {
		matches = append(matches, sim.Schedule(plan, skills)...)
	}
	opts := ratingOptions(cfg)
	res, err := rating.Fit(matches, n, opts)
	if err != nil {
		return err
	}
	lowest := lo.Min(skills)
	fmt.Fprintf(w, "%d matches\n", len(matches))
	fmt.Fprintf(w, "%6s %8s %8s\n", "player", "true", "fitted")
	var diff stats.Statistic
	for i, s := range skills {
		truth := opts.BaseScore + pairwise.DisplayPerNat*(s-lowest)
		fitted := math.NaN()
		if res.Scores[i].Valid {
			fitted = res.Scores[i].Value
			diff.Push(fitted - truth)
		}
		fmt.Fprintf(w, "%6d %8.3f %8.3f\n", i+1, truth, fitted)
	}
	// The two columns are anchored at different players, so only the
	// spread of the difference matters.
	fmt.Fprintf(w, "fitted - true: mean %.3f, stdev %.3f, from %.3f to %.3f (range %.3f)\n",
		diff.Mean(), diff.Stdev(), diff.Min(), diff.Max(), diff.Spread())
	return nil
}

func serve(ctx context.Context, cfg config.Config) error {
	nc, err := service.Connect(ctx, cfg.GetString(config.ConfigNatsURL))
	if err != nil {
		return err
	}
	defer nc.Close()
	return service.NewServer(cfg).Serve(ctx, nc)
}
