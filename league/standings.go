package league

import (
	"sort"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Standing places one rated player among the rest of the rated field.
type Standing struct {
	Player uuid.UUID `json:"player"`
	Score  float64   `json:"score"`
	// Position is one more than the number of players scoring strictly
	// higher, so tied players share a position.
	Position int `json:"position"`
	// RelativePosition is 100 for the top of the field and 0 for the
	// bottom.
	RelativePosition float64 `json:"relative_position"`
	Above            int     `json:"above"`
	Below            int     `json:"below"`
	Total            int     `json:"total"`
	Min              float64 `json:"min"`
	Max              float64 `json:"max"`
}

// Standings ranks the rated players of r, best first. Ties are listed in
// UUID order. Unrated players are left out.
func Standings(r *Ratings) []Standing {
	if r == nil || len(r.Scores) == 0 {
		return nil
	}
	scores := lo.Values(r.Scores)
	lowest, highest := lo.Min(scores), lo.Max(scores)
	total := len(scores)

	out := make([]Standing, 0, total)
	for id, s := range r.Scores {
		above := lo.CountBy(scores, func(o float64) bool { return o > s })
		below := lo.CountBy(scores, func(o float64) bool { return o < s })
		relative := 100.0
		if total > 1 {
			relative = 100 * (1 - float64(above)/float64(total-1))
		}
		out = append(out, Standing{
			Player:           id,
			Score:            s,
			Position:         1 + above,
			RelativePosition: relative,
			Above:            above,
			Below:            below,
			Total:            total,
			Min:              lowest,
			Max:              highest,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Player.String() < out[j].Player.String()
	})
	return out
}
