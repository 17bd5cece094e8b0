// internal/game/multiron.go
package game

import (
	"slices"

	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/google/uuid"
)

// NearestWinner scans the seating ring clockwise starting after the loser and
// returns the first winner met.
func NearestWinner(seating []uuid.UUID, loser uuid.UUID, winners []uuid.UUID) (uuid.UUID, error) {
	from := slices.Index(seating, loser)
	if from < 0 {
		return uuid.Nil, errs.NotFound("loser %s is not seated", loser)
	}
	for _, w := range winners {
		if !slices.Contains(seating, w) {
			return uuid.Nil, errs.NotFound("winner %s is not seated", w)
		}
	}
	for step := 1; step < len(seating); step++ {
		candidate := seating[(from+step)%len(seating)]
		if slices.Contains(winners, candidate) {
			return candidate, nil
		}
	}
	return uuid.Nil, errs.Invalid("no winner found around the table from loser %s", loser)
}

// BetAssignment tells which riichi bets each multi-ron winner collects.
type BetAssignment struct {
	Bets    map[uuid.UUID][]uuid.UUID // winner -> bettors whose bets they collect
	Nearest uuid.UUID                 // also collects the bets already on the table
}

// AssignRiichiBets distributes this round's riichi bets among the winners of a
// multi-ron. A winner who declared riichi takes their own bet back; every other
// bet goes to the winner nearest to the loser in seating order.
func AssignRiichiBets(seating []uuid.UUID, loser uuid.UUID, winners, bettors []uuid.UUID) (BetAssignment, error) {
	nearest, err := NearestWinner(seating, loser, winners)
	if err != nil {
		return BetAssignment{}, err
	}

	out := BetAssignment{Bets: make(map[uuid.UUID][]uuid.UUID, len(winners)), Nearest: nearest}
	for _, w := range winners {
		out.Bets[w] = []uuid.UUID{}
	}
	seen := make(map[uuid.UUID]bool, len(bettors))
	for _, b := range bettors {
		if seen[b] {
			return BetAssignment{}, errs.Invalid("player %s declared riichi twice", b)
		}
		seen[b] = true
		if !slices.Contains(seating, b) {
			return BetAssignment{}, errs.NotFound("riichi bettor %s is not seated", b)
		}
		if _, isWinner := out.Bets[b]; isWinner {
			out.Bets[b] = append(out.Bets[b], b)
			continue
		}
		out.Bets[nearest] = append(out.Bets[nearest], b)
	}
	return out, nil
}
