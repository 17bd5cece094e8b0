// internal/textlog/replay.go
package textlog

import (
	"errors"

	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/Furiten/riichi-api/internal/game"
	"github.com/Furiten/riichi-api/internal/models"
	"github.com/Furiten/riichi-api/internal/ruleset"
)

// Replay is a log played through a fresh session state.
type Replay struct {
	State   *game.SessionState
	Records []models.RoundRecord
	Scores  map[string]int // computed final scores by alias
	Counts  Counts
}

// Replay applies every parsed round, in order, to a new session seated as in
// the header. The session is finished afterwards even if the match length was
// not reached. When the computed scores differ from the last score line the
// replay is still returned together with a *errs.MismatchError.
func (l *Log) Replay(rules ruleset.Ruleset) (*Replay, error) {
	state, err := game.NewSessionState(rules, l.Players)
	if err != nil {
		return nil, err
	}

	out := &Replay{State: state, Counts: l.Counts}
	for _, r := range l.Rounds {
		if state.IsFinished() {
			return nil, errs.Invalid("round recorded after the session ended").AtLine(r.Line)
		}
		rec, err := state.Apply(r.Outcome)
		if err != nil {
			var e *errs.Error
			if errors.As(err, &e) {
				return nil, e.AtLine(r.Line)
			}
			return nil, err
		}
		out.Records = append(out.Records, rec)
	}
	if !state.IsFinished() {
		if err := state.Finish(); err != nil {
			return nil, err
		}
	}

	scores := state.Scores()
	out.Scores = make(map[string]int, len(l.Aliases))
	for i, a := range l.Aliases {
		out.Scores[a] = scores[i]
	}

	for alias, declared := range l.Declared {
		if out.Scores[alias] != declared {
			return out, &errs.MismatchError{Declared: l.Declared, Computed: out.Scores}
		}
	}
	return out, nil
}
