// internal/models/round.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RoundRecord is what applying an outcome yields: the outcome with the round
// index and honba in effect, plus the state snapshot taken right before it.
type RoundRecord struct {
	Index    int             `json:"index"`
	Honba    int             `json:"honba"`
	Outcome  Outcome         `json:"-"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// Round is a RoundRecord as stored for a session.
type Round struct {
	ID        uuid.UUID   `json:"id"`
	SessionID uuid.UUID   `json:"session_id"`
	Seq       int         `json:"seq"` // order of application within the session
	Record    RoundRecord `json:"record"`
	CreatedAt time.Time   `json:"created_at"`
}

// MarshalJSON inlines the outcome envelope next to the record fields.
func (r RoundRecord) MarshalJSON() ([]byte, error) {
	type plain RoundRecord
	var outcome json.RawMessage
	if r.Outcome != nil {
		b, err := MarshalOutcome(r.Outcome)
		if err != nil {
			return nil, err
		}
		outcome = b
	}
	return json.Marshal(struct {
		plain
		Outcome json.RawMessage `json:"outcome,omitempty"`
	}{plain(r), outcome})
}

// UnmarshalJSON decodes what MarshalJSON produced.
func (r *RoundRecord) UnmarshalJSON(b []byte) error {
	type plain RoundRecord
	var aux struct {
		plain
		Outcome json.RawMessage `json:"outcome"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = RoundRecord(aux.plain)
	if len(aux.Outcome) > 0 && string(aux.Outcome) != "null" {
		o, err := UnmarshalOutcome(aux.Outcome)
		if err != nil {
			return err
		}
		r.Outcome = o
	}
	return nil
}
