package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/domino14/courtrank/config"
	"github.com/domino14/courtrank/league"
	"github.com/domino14/courtrank/pairing"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func roster(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return ids
}

func call(t *testing.T, s *Server, op string, req, out any) error {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return decodeReply(s.Handle(context.Background(), "courtrank."+op, data), out)
}

func TestSubjects(t *testing.T) {
	is := is.New(t)
	s := NewServer(config.DefaultConfig())
	is.Equal(s.Subjects(), []string{"courtrank.rate", "courtrank.schedule", "courtrank.pair"})
}

func TestHandleRate(t *testing.T) {
	is := is.New(t)
	s := NewServer(config.DefaultConfig())
	ids := roster(3)
	var resp RateResponse
	err := call(t, s, OpRate, RateRequest{
		Roster: ids,
		Results: []league.Result{
			{Home: ids[:1], Away: ids[1:2], HomePoints: 21, AwayPoints: 12},
		},
	}, &resp)
	is.NoErr(err)
	is.Equal(len(resp.Scores), 2)
	is.True(resp.Scores[ids[0]] > resp.Scores[ids[1]])
	is.Equal(resp.Unrated, []uuid.UUID{ids[2]})
}

func TestHandleSchedule(t *testing.T) {
	is := is.New(t)
	s := NewServer(config.DefaultConfig())
	var resp ScheduleResponse
	err := call(t, s, OpSchedule, ScheduleRequest{Roster: roster(5)}, &resp)
	is.NoErr(err)
	// team size comes from the configuration
	is.Equal(len(resp.Rounds), 5)
	for _, round := range resp.Rounds {
		is.Equal(len(round[0].Home), 2)
	}
	is.Equal(len(resp.Order), 5)
}

func TestHandlePair(t *testing.T) {
	is := is.New(t)
	s := NewServer(config.DefaultConfig())
	ids := roster(5)
	var resp PairResponse
	err := call(t, s, OpPair, PairRequest{Roster: ids, OddMode: "sit-out"}, &resp)
	is.NoErr(err)
	is.Equal(len(resp.Pairs), 2)
	is.True(resp.Extra != nil)
	is.True(resp.Optimal)
}

func TestHandleErrors(t *testing.T) {
	is := is.New(t)
	s := NewServer(config.DefaultConfig())

	var resp PairResponse
	err := call(t, s, OpPair, PairRequest{Roster: roster(4), OddMode: "coin-flip"}, &resp)
	is.True(errors.Is(err, ErrRemote))

	id := uuid.New()
	var sched ScheduleResponse
	err = call(t, s, OpSchedule, ScheduleRequest{Roster: roster(4), Special: &id}, &sched)
	is.True(errors.Is(err, ErrRemote))

	reply := s.Handle(context.Background(), "courtrank.rank", []byte("{}"))
	err = decodeReply(reply, &resp)
	is.True(errors.Is(err, ErrRemote))

	reply = s.Handle(context.Background(), "courtrank.rate", []byte("not json"))
	var e errorResponse
	is.NoErr(json.Unmarshal(reply, &e))
	is.True(e.Error != "")
}

func TestParseOddMode(t *testing.T) {
	is := is.New(t)
	m, err := ParseOddMode("")
	is.NoErr(err)
	is.Equal(m, pairing.PlayTwice)
	m, err = ParseOddMode("sit-out")
	is.NoErr(err)
	is.Equal(m, pairing.SitOut)
}
