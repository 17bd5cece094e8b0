// internal/models/outcome.go
package models

import (
	"encoding/json"
	"fmt"

	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/google/uuid"
)

// OutcomeKind names a round result.
type OutcomeKind string

const (
	KindRon          OutcomeKind = "ron"
	KindMultiRon     OutcomeKind = "multiron"
	KindTsumo        OutcomeKind = "tsumo"
	KindDraw         OutcomeKind = "draw"
	KindAbortiveDraw OutcomeKind = "abort"
	KindChombo       OutcomeKind = "chombo"
)

// Outcome is the result of one round. Concrete values are Ron, MultiRon, Tsumo,
// Draw, AbortiveDraw and Chombo.
type Outcome interface {
	Kind() OutcomeKind
}

// Win is the hand description shared by ron and tsumo.
type Win struct {
	Han      int   `json:"han"`
	Fu       int   `json:"fu"`
	Yakuman  bool  `json:"yakuman"`
	Yaku     []int `json:"yaku,omitempty"`
	Dora     int   `json:"dora"`
	OpenHand bool  `json:"openHand"`
}

// Ron is a win off another player's discard.
type Ron struct {
	Winner uuid.UUID   `json:"winner"`
	Loser  uuid.UUID   `json:"loser"`
	Riichi []uuid.UUID `json:"riichi"` // this round's bettors collected by Winner
	Win
}

// MultiRon is two or three simultaneous rons off one discard. Riichi of every
// win lists the bets that win collects; every Loser must equal the outer Loser.
type MultiRon struct {
	Loser uuid.UUID `json:"loser"`
	Wins  []Ron     `json:"wins"`
}

// Tsumo is a self-drawn win.
type Tsumo struct {
	Winner uuid.UUID   `json:"winner"`
	Riichi []uuid.UUID `json:"riichi"`
	Win
}

// Draw is an exhaustive draw.
type Draw struct {
	Tempai []uuid.UUID `json:"tempai"`
	Riichi []uuid.UUID `json:"riichi"`
}

// AbortiveDraw ends the round without tempai payments.
type AbortiveDraw struct {
	Riichi []uuid.UUID `json:"riichi"`
}

// Chombo is a penalty against Loser.
type Chombo struct {
	Loser uuid.UUID `json:"loser"`
}

func (Ron) Kind() OutcomeKind          { return KindRon }
func (MultiRon) Kind() OutcomeKind     { return KindMultiRon }
func (Tsumo) Kind() OutcomeKind        { return KindTsumo }
func (Draw) Kind() OutcomeKind         { return KindDraw }
func (AbortiveDraw) Kind() OutcomeKind { return KindAbortiveDraw }
func (Chombo) Kind() OutcomeKind       { return KindChombo }

// envelope is the persisted and wire form of an outcome.
type envelope struct {
	Outcome OutcomeKind     `json:"outcome"`
	Data    json.RawMessage `json:"data"`
}

// MarshalOutcome encodes an outcome as {"outcome": kind, "data": {...}}.
func MarshalOutcome(o Outcome) ([]byte, error) {
	if o == nil {
		return nil, errs.Invalid("cannot marshal a nil outcome")
	}
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s outcome: %w", o.Kind(), err)
	}
	return json.Marshal(envelope{Outcome: o.Kind(), Data: data})
}

// UnmarshalOutcome is the inverse of MarshalOutcome.
func UnmarshalOutcome(b []byte) (Outcome, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, errs.Malformed(0, "", "outcome is not valid JSON: %v", err)
	}

	var (
		out Outcome
		err error
	)
	switch env.Outcome {
	case KindRon:
		var v Ron
		err = json.Unmarshal(env.Data, &v)
		out = v
	case KindMultiRon:
		var v MultiRon
		err = json.Unmarshal(env.Data, &v)
		out = v
	case KindTsumo:
		var v Tsumo
		err = json.Unmarshal(env.Data, &v)
		out = v
	case KindDraw:
		var v Draw
		err = json.Unmarshal(env.Data, &v)
		out = v
	case KindAbortiveDraw:
		var v AbortiveDraw
		err = json.Unmarshal(env.Data, &v)
		out = v
	case KindChombo:
		var v Chombo
		err = json.Unmarshal(env.Data, &v)
		out = v
	default:
		return nil, errs.Malformed(0, string(env.Outcome), "unknown outcome kind")
	}
	if err != nil {
		return nil, errs.Malformed(0, string(env.Outcome), "bad outcome payload: %v", err)
	}
	return out, nil
}
