// internal/game/overview.go
package game

import (
	"fmt"

	"github.com/google/uuid"
)

// PlayerOverview is one seat as shown to table clients.
type PlayerOverview struct {
	PlayerID uuid.UUID `json:"player_id"`
	Seat     int       `json:"seat"`
	Score    int       `json:"score"`
	IsDealer bool      `json:"isDealer"`
	Chombo   int       `json:"chombo"`
}

// Overview is a read-only summary of a session for clients.
type Overview struct {
	Dealer     uuid.UUID        `json:"dealer"`
	Round      int              `json:"round"`
	RoundName  string           `json:"roundName"`
	Honba      int              `json:"honba"`
	RiichiBets int              `json:"riichiBets"`
	Finished   bool             `json:"finished"`
	Players    []PlayerOverview `json:"players"`
}

var winds = []string{"East", "South", "West", "North"}

// RoundName renders an absolute round index as e.g. "South 2".
func RoundName(round int) string {
	if round < 1 {
		return ""
	}
	wind := (round - 1) / 4
	if wind >= len(winds) {
		return fmt.Sprintf("Round %d", round)
	}
	return fmt.Sprintf("%s %d", winds[wind], (round-1)%4+1)
}

// Overview summarizes the current state.
func (s *SessionState) Overview() Overview {
	ov := Overview{
		Dealer:     s.players[s.dealer],
		Round:      s.round,
		RoundName:  RoundName(s.round),
		Honba:      s.honba,
		RiichiBets: s.riichiBets,
		Finished:   s.finished,
	}
	for i, p := range s.players {
		ov.Players = append(ov.Players, PlayerOverview{
			PlayerID: p,
			Seat:     i,
			Score:    s.scores[i],
			IsDealer: i == s.dealer,
			Chombo:   s.chombo[i],
		})
	}
	return ov
}
