// internal/models/round_event.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Round event actions published for every change to a session.
const (
	ActionGameStarted  = "game_started"
	ActionRoundAdded   = "round_added"
	ActionRoundDropped = "round_dropped"
	ActionGameFinished = "game_finished"
)

// RoundEvent captures a change to a session for the live feed and the round log.
type RoundEvent struct {
	SessionID uuid.UUID              `json:"session_id"`
	Action    string                 `json:"action"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}
