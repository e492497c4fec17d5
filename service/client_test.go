package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/matryer/is"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"

	"github.com/domino14/courtrank/config"
	"github.com/domino14/courtrank/league"
)

// runServer starts an in-process NATS server and a courtrank server
// listening on it.
func runServer(t *testing.T) *nats.Conn {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	ns := natsserver.RunServer(&opts)
	t.Cleanup(ns.Shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srvConn, err := Connect(ctx, ns.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(srvConn.Close)
	if err := NewServer(config.DefaultConfig()).Listen(ctx, srvConn); err != nil {
		t.Fatal(err)
	}

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func TestClientRoundTrip(t *testing.T) {
	is := is.New(t)
	c := NewClient(runServer(t), "courtrank", 0)
	ids := roster(4)

	rated, err := c.Rate(RateRequest{
		Roster: ids,
		Results: []league.Result{
			{Home: ids[:1], Away: ids[1:2], HomePoints: 21, AwayPoints: 7},
		},
	})
	is.NoErr(err)
	is.Equal(len(rated.Scores), 2)
	is.Equal(len(rated.Unrated), 2)
	is.Equal(len(rated.Standings), 2)
	is.Equal(rated.Standings[0].Player, ids[0])
	is.Equal(rated.Standings[0].Position, 1)
	assert.Greater(t, rated.Scores[ids[0]], rated.Scores[ids[1]])

	sched, err := c.Schedule(ScheduleRequest{Roster: ids})
	is.NoErr(err)
	is.Equal(len(sched.Rounds), 3)
	is.Equal(len(sched.Order), 4)

	paired, err := c.Pair(PairRequest{Roster: ids, History: []league.Result{
		{Home: ids[:1], Away: ids[1:2], HomePoints: 21, AwayPoints: 7},
	}})
	is.NoErr(err)
	is.Equal(len(paired.Pairs), 2)
	is.Equal(paired.Contact, 0)
}

func TestClientRemoteError(t *testing.T) {
	is := is.New(t)
	c := NewClient(runServer(t), "courtrank", 0)
	ids := roster(2)
	_, err := c.Rate(RateRequest{Roster: []uuid.UUID{ids[0], ids[0]}})
	is.True(errors.Is(err, ErrRemote))

	_, err = c.Pair(PairRequest{Roster: ids, OddMode: "coin-flip"})
	is.True(errors.Is(err, ErrRemote))
}

func TestClientNoServer(t *testing.T) {
	is := is.New(t)
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	ns := natsserver.RunServer(&opts)
	defer ns.Shutdown()
	nc, err := nats.Connect(ns.ClientURL())
	is.NoErr(err)
	defer nc.Close()

	_, err = NewClient(nc, "courtrank", 0).Schedule(ScheduleRequest{Roster: roster(4)})
	is.True(errors.Is(err, nats.ErrNoResponders))
}
