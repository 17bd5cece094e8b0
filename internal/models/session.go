// internal/models/session.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	SessionInProgress = "inprogress"
	SessionFinished   = "finished"
)

// Session is one match at a table. Players are in seating order, east first.
// State holds the serialized game state after the latest round.
type Session struct {
	ID         uuid.UUID       `json:"id"`
	EventID    uuid.UUID       `json:"event_id"`
	Status     string          `json:"status"`
	Players    []uuid.UUID     `json:"players"`
	State      json.RawMessage `json:"state"`
	Origin     string          `json:"origin"` // "online" for round-by-round entry, "textlog" for a parsed log
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// SessionResult is a player's final standing in a session.
type SessionResult struct {
	SessionID       uuid.UUID `json:"session_id"`
	PlayerID        uuid.UUID `json:"player_id"`
	Score           int       `json:"score"`
	Place           int       `json:"place"`
	RankBonus       int       `json:"rank_bonus"`
	NormalizedScore float64   `json:"normalized_score"`
	RatingDelta     float64   `json:"rating_delta"`
}
