// internal/models/event.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Event groups players and sessions played under one ruleset.
type Event struct {
	ID            uuid.UUID              `json:"id"`
	Title         string                 `json:"title"`
	Ruleset       string                 `json:"ruleset"`
	RuleOverrides map[string]interface{} `json:"rule_overrides,omitempty"`
	PasswordHash  string                 `json:"-"`
	CreatedAt     time.Time              `json:"created_at"`
}
