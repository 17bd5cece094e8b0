// internal/models/player.go
package models

import "github.com/google/uuid"

// Player is a registered participant of an event. Alias is the name used in text logs.
type Player struct {
	ID          uuid.UUID `json:"id"`
	EventID     uuid.UUID `json:"event_id"`
	Alias       string    `json:"alias"`
	DisplayName string    `json:"display_name"`
	Rating      float64   `json:"rating"`
}
