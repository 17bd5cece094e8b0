// internal/rating/finalize.go
package rating

import (
	"sort"

	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/Furiten/riichi-api/internal/game"
	"github.com/Furiten/riichi-api/internal/points"
	"github.com/Furiten/riichi-api/internal/ruleset"
	"github.com/google/uuid"
)

// PlaceResult is a player's final standing in a finished session.
type PlaceResult struct {
	PlayerID        uuid.UUID `json:"player_id"`
	Seat            int       `json:"seat"`
	Score           int       `json:"score"`
	Place           int       `json:"place"`
	RankBonus       int       `json:"rank_bonus"` // uma, plus oka for the 1st place
	Chombo          int       `json:"chombo"`
	NormalizedScore float64   `json:"normalized_score"`
	RatingDelta     float64   `json:"rating_delta"`
}

// Finalize converts the scores of a finished session into places, rank
// bonuses and rating deltas. Results are ordered by place.
//
//  1. Seats are ranked by descending score. Equal scores go to the seat closer
//     to the current dealer, counting in seating order from the dealer seat.
//  2. With riichiGoesToWinner, bets left on the table are added to the 1st place.
//  3. Uma is looked up for the final scores, oka goes to the 1st place.
//  4. Normalized score is score/tenboDivider + rank bonus - chombo penalties.
func Finalize(s *game.SessionState) ([]PlaceResult, error) {
	if !s.IsFinished() {
		return nil, errs.Invalid("session is not finished yet")
	}
	rules := s.Rules()
	players := s.Players()
	scores := s.Scores()
	chombo := s.ChomboCounts()
	dealer := s.DealerSeat()

	results := make([]PlaceResult, len(players))
	for i, p := range players {
		results[i] = PlaceResult{PlayerID: p, Seat: i, Score: scores[i], Chombo: chombo[i]}
	}

	distance := func(seat int) int {
		return (seat - dealer + points.Seats) % points.Seats
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score // descending
		}
		return distance(results[i].Seat) < distance(results[j].Seat)
	})

	if rules.RiichiGoesToWinner {
		results[0].Score += 1000 * s.RiichiBets()
	}

	final := make([]int, len(results))
	for i, r := range results {
		final[i] = r.Score
	}
	uma, err := rules.Uma(final)
	if err != nil {
		return nil, err
	}
	if len(uma) != len(results) {
		return nil, errs.Invalid("ruleset %s returned %d uma values for %d players", rules.Name, len(uma), len(results))
	}

	for i := range results {
		r := &results[i]
		r.Place = i + 1
		r.RankBonus = uma[i]
		if r.Place == 1 {
			r.RankBonus += rules.Oka
		}
		r.NormalizedScore = float64(r.Score)/float64(rules.TenboDivider) +
			float64(r.RankBonus) -
			float64(rules.ChomboPenalty*r.Chombo)
		r.RatingDelta = Delta(rules, r.NormalizedScore)
	}
	return results, nil
}

// Delta turns a normalized score into a rating change: the distance from an
// even finish, in rating units.
func Delta(rules ruleset.Ruleset, normalized float64) float64 {
	even := float64(rules.StartPoints) / float64(rules.TenboDivider)
	return (normalized - even) * float64(rules.TenboDivider) / float64(rules.RatingDivider)
}

// StartRating is the rating of a player with no finished sessions.
func StartRating(rules ruleset.Ruleset) float64 {
	return float64(rules.StartRating)
}

// ApplyDelta adds a session's rating change to a player's current rating.
func ApplyDelta(current, delta float64) float64 {
	return current + delta
}
