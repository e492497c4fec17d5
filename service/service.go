// Package service exposes rating, scheduling and pairing over NATS
// request/reply. Requests and responses are JSON.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/domino14/courtrank/config"
	"github.com/domino14/courtrank/league"
	"github.com/domino14/courtrank/pairing"
	"github.com/domino14/courtrank/rating"
)

const (
	OpRate     = "rate"
	OpSchedule = "schedule"
	OpPair     = "pair"

	connectAttempts = 5
)

var ErrUnknownSubject = errors.New("unknown subject")

type RateRequest struct {
	Roster  []uuid.UUID           `json:"roster"`
	Results []league.Result       `json:"results"`
	Warm    map[uuid.UUID]float64 `json:"warm,omitempty"`
	// Regularization overrides the configured value when set.
	Regularization *float64 `json:"regularization,omitempty"`
}

type RateResponse struct {
	Scores     map[uuid.UUID]float64 `json:"scores"`
	Raw        map[uuid.UUID]float64 `json:"raw"`
	Unrated    []uuid.UUID           `json:"unrated"`
	Standings  []league.Standing     `json:"standings"`
	Iterations int                   `json:"iterations"`
	Converged  bool                  `json:"converged"`
}

type ScheduleRequest struct {
	Roster   []uuid.UUID `json:"roster"`
	Special  *uuid.UUID  `json:"special,omitempty"`
	TeamSize int         `json:"team_size,omitempty"`
	Courts   int         `json:"courts,omitempty"`
	Exact    bool        `json:"exact,omitempty"`
	Shuffle  bool        `json:"shuffle,omitempty"`
}

type ScheduleResponse struct {
	Rounds [][]league.Fixture `json:"rounds"`
	Order  []uuid.UUID        `json:"order"`
}

type PairRequest struct {
	Roster  []uuid.UUID           `json:"roster"`
	Scores  map[uuid.UUID]float64 `json:"scores,omitempty"`
	History []league.Result       `json:"history,omitempty"`
	// OddMode is "play-twice" (the default) or "sit-out".
	OddMode string `json:"odd_mode,omitempty"`
}

type PairResponse struct {
	Pairs   []league.Pair `json:"pairs"`
	Contact int           `json:"contact"`
	Gap     float64       `json:"gap"`
	Optimal bool          `json:"optimal"`
	Extra   *uuid.UUID    `json:"extra,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	cfg    config.Config
	prefix string
}

func NewServer(cfg config.Config) *Server {
	return &Server{cfg: cfg, prefix: cfg.GetString(config.ConfigNatsSubjectPrefix)}
}

// Subjects lists the subjects the server answers on.
func (s *Server) Subjects() []string {
	return []string{s.prefix + "." + OpRate, s.prefix + "." + OpSchedule, s.prefix + "." + OpPair}
}

func errorReply(err error) []byte {
	data, _ := json.Marshal(errorResponse{Error: err.Error()})
	return data
}

// Handle answers a single request. It never fails; errors are encoded in
// the reply.
func (s *Server) Handle(ctx context.Context, subject string, data []byte) []byte {
	var (
		resp any
		err  error
	)
	switch strings.TrimPrefix(subject, s.prefix+".") {
	case OpRate:
		resp, err = s.rate(data)
	case OpSchedule:
		resp, err = s.schedule(ctx, data)
	case OpPair:
		resp, err = s.pair(ctx, data)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownSubject, subject)
	}
	if err != nil {
		log.Err(err).Str("subject", subject).Msg("request-failed")
		return errorReply(err)
	}
	out, err := json.Marshal(resp)
	if err != nil {
		log.Err(err).Str("subject", subject).Msg("response-marshal-failed")
		return errorReply(err)
	}
	return out
}

func (s *Server) rate(data []byte) (*RateResponse, error) {
	var req RateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	opts := rating.Options{
		Regularization: s.cfg.GetFloat64(config.ConfigRegularization),
		MaxIterations:  s.cfg.GetInt(config.ConfigMaxIterations),
		BaseScore:      s.cfg.GetFloat64(config.ConfigBaseScore),
	}
	if req.Regularization != nil {
		opts.Regularization = *req.Regularization
	}
	r, err := league.Rate(req.Roster, req.Results, req.Warm, opts)
	if err != nil {
		return nil, err
	}
	return &RateResponse{
		Scores:     r.Scores,
		Raw:        r.Raw,
		Unrated:    r.Unrated,
		Standings:  league.Standings(r),
		Iterations: r.Iterations,
		Converged:  r.Converged,
	}, nil
}

func (s *Server) schedule(ctx context.Context, data []byte) (*ScheduleResponse, error) {
	var req ScheduleRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	opts := league.ScheduleOptions{
		TeamSize:            req.TeamSize,
		Courts:              req.Courts,
		Exact:               req.Exact,
		Shuffle:             req.Shuffle,
		CacheMemoryFraction: s.cfg.GetFloat64(config.ConfigExactCacheMemoryFraction),
	}
	if opts.TeamSize == 0 {
		opts.TeamSize = s.cfg.GetInt(config.ConfigTeamSize)
	}
	if opts.Courts == 0 {
		opts.Courts = s.cfg.GetInt(config.ConfigCourts)
	}
	sched, err := league.ProposeRounds(ctx, req.Roster, req.Special, opts)
	if err != nil {
		return nil, err
	}
	return &ScheduleResponse{Rounds: sched.Rounds, Order: sched.Order}, nil
}

// ParseOddMode accepts the names printed by pairing.OddMode.
func ParseOddMode(s string) (pairing.OddMode, error) {
	switch s {
	case "", pairing.PlayTwice.String():
		return pairing.PlayTwice, nil
	case pairing.SitOut.String():
		return pairing.SitOut, nil
	}
	return 0, fmt.Errorf("unknown odd mode %q", s)
}

func (s *Server) pair(ctx context.Context, data []byte) (*PairResponse, error) {
	var req PairRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	mode, err := ParseOddMode(req.OddMode)
	if err != nil {
		return nil, err
	}
	p, err := league.ProposePairs(ctx, req.Roster, req.Scores, req.History, pairing.Options{
		Timeout: s.cfg.GetDuration(config.ConfigPairingTimeout),
		OddMode: mode,
	})
	if err != nil {
		return nil, err
	}
	return &PairResponse{
		Pairs:   p.Pairs,
		Contact: p.Cost.Contact,
		Gap:     p.Cost.Gap,
		Optimal: p.Optimal,
		Extra:   p.Extra,
	}, nil
}

// Connect dials NATS, backing off between failed attempts.
func Connect(ctx context.Context, url string) (*nats.Conn, error) {
	var nc *nats.Conn
	err := retry.Do(
		func() error {
			var err error
			nc, err = nats.Connect(url)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(connectAttempts),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			log.Err(err).Uint("n", n).Str("url", url).Msg("nats-connect-failed-try-again")
			return retry.BackOffDelay(n, err, config)
		}),
	)
	if err != nil {
		return nil, err
	}
	return nc, nil
}

// Listen subscribes to every subject on nc. Requests are answered once it
// returns; ctx is passed on to the handlers.
func (s *Server) Listen(ctx context.Context, nc *nats.Conn) error {
	for _, subject := range s.Subjects() {
		_, err := nc.Subscribe(subject, func(m *nats.Msg) {
			log.Info().Str("subject", m.Subject).Int("bytes", len(m.Data)).Msg("request-received")
			if err := m.Respond(s.Handle(ctx, m.Subject, m.Data)); err != nil {
				log.Err(err).Str("subject", m.Subject).Msg("respond-failed")
			}
		})
		if err != nil {
			return err
		}
	}
	if err := nc.Flush(); err != nil {
		return err
	}
	if err := nc.LastError(); err != nil {
		return err
	}
	log.Info().Strs("subjects", s.Subjects()).Msg("listening")
	return nil
}

// Serve answers requests on nc until ctx is done, then drains the
// subscriptions.
func (s *Server) Serve(ctx context.Context, nc *nats.Conn) error {
	if err := s.Listen(ctx, nc); err != nil {
		return err
	}
	<-ctx.Done()
	log.Info().Msg("draining")
	return nc.Drain()
}
