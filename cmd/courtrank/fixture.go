package main

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/domino14/courtrank/league"
)

type fixturePlayer struct {
	ID   uuid.UUID `yaml:"id"`
	Name string    `yaml:"name"`
	// Score is an optional display score, used by pair.
	Score *float64 `yaml:"score,omitempty"`
}

// fixture is a league snapshot: the roster and the results so far.
type fixture struct {
	Players []fixturePlayer `yaml:"players"`
	Results []league.Result `yaml:"results"`
}

func readFixture(r io.Reader) (*fixture, error) {
	var f fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	for i, p := range f.Players {
		if p.ID == uuid.Nil {
			return nil, fmt.Errorf("player %d (%q) has no id", i, p.Name)
		}
	}
	return &f, nil
}

func loadFixture(path string) (*fixture, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return readFixture(fh)
}

func (f *fixture) roster() []uuid.UUID {
	out := make([]uuid.UUID, len(f.Players))
	for i, p := range f.Players {
		out[i] = p.ID
	}
	return out
}

func (f *fixture) scores() map[uuid.UUID]float64 {
	out := map[uuid.UUID]float64{}
	for _, p := range f.Players {
		if p.Score != nil && !math.IsNaN(*p.Score) {
			out[p.ID] = *p.Score
		}
	}
	return out
}

// name falls back to the id for players without one.
func (f *fixture) name(id uuid.UUID) string {
	for _, p := range f.Players {
		if p.ID == id && p.Name != "" {
			return p.Name
		}
	}
	return id.String()
}
