// internal/game/snapshot.go
package game

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/Furiten/riichi-api/internal/points"
	"github.com/Furiten/riichi-api/internal/ruleset"
	"github.com/google/uuid"
)

// snapshot is the serialized form of a SessionState. Scores and chombo counts
// are keyed by player id; Seating keeps the order.
type snapshot struct {
	Seating    []uuid.UUID       `json:"seating"`
	Scores     map[uuid.UUID]int `json:"scores"`
	Dealer     int               `json:"dealer"`
	Round      int               `json:"round"`
	Honba      int               `json:"honba"`
	RiichiBets int               `json:"riichiBets"`
	Finished   bool              `json:"finished"`
	Chombo     map[uuid.UUID]int `json:"chombo"`
}

// MarshalJSON serializes every field needed to restore the state verbatim.
func (s *SessionState) MarshalJSON() ([]byte, error) {
	snap := snapshot{
		Seating:    s.players,
		Scores:     make(map[uuid.UUID]int, len(s.players)),
		Dealer:     s.dealer,
		Round:      s.round,
		Honba:      s.honba,
		RiichiBets: s.riichiBets,
		Finished:   s.finished,
		Chombo:     make(map[uuid.UUID]int, len(s.players)),
	}
	for i, p := range s.players {
		snap.Scores[p] = s.scores[i]
		snap.Chombo[p] = s.chombo[i]
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session state: %w", err)
	}
	return b, nil
}

// RestoreState rebuilds a SessionState from MarshalJSON output. The snapshot
// must describe exactly the given players in the same seating order.
func RestoreState(rules ruleset.Ruleset, players []uuid.UUID, data []byte) (*SessionState, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errs.Malformed(0, "", "session snapshot is not valid JSON: %v", err)
	}

	s, err := NewSessionState(rules, players)
	if err != nil {
		return nil, err
	}
	if len(snap.Scores) != len(players) {
		return nil, errs.Invalid("snapshot holds %d players, session has %d", len(snap.Scores), len(players))
	}
	for i, p := range players {
		score, ok := snap.Scores[p]
		if !ok {
			return nil, errs.Invalid("snapshot does not contain player %s", p)
		}
		s.scores[i] = score
		s.chombo[i] = snap.Chombo[p]
	}
	if snap.Seating != nil && !slices.Equal(snap.Seating, players) {
		return nil, errs.Invalid("snapshot seating order does not match the session")
	}
	if snap.Dealer < 0 || snap.Dealer >= points.Seats {
		return nil, errs.Invalid("snapshot dealer seat %d is out of range", snap.Dealer)
	}
	if snap.Round < 1 || snap.Honba < 0 || snap.RiichiBets < 0 {
		return nil, errs.Invalid("snapshot round counters are negative")
	}

	s.dealer = snap.Dealer
	s.round = snap.Round
	s.honba = snap.Honba
	s.riichiBets = snap.RiichiBets
	s.finished = snap.Finished
	return s, nil
}
