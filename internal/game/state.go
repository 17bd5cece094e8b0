// internal/game/state.go
package game

import (
	"errors"
	"slices"

	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/Furiten/riichi-api/internal/models"
	"github.com/Furiten/riichi-api/internal/points"
	"github.com/Furiten/riichi-api/internal/ruleset"
	"github.com/google/uuid"
)

const riichiBet = 1000

// SessionState holds the scoring state of a single match. It is not safe for
// concurrent use; callers serialize writers per session.
type SessionState struct {
	rules   ruleset.Ruleset
	players []uuid.UUID // seating order, east first

	scores     []int
	dealer     int // seat index of the current dealer
	round      int // 1-based: 1-4 east, 5-8 south
	honba      int
	riichiBets int // bets sitting on the table
	finished   bool
	chombo     []int // chombo count per seat
}

// NewSessionState seats four distinct players with the ruleset's starting points.
func NewSessionState(rules ruleset.Ruleset, players []uuid.UUID) (*SessionState, error) {
	if len(players) != points.Seats {
		return nil, errs.Invalid("a session needs exactly %d players, got %d", points.Seats, len(players))
	}
	seen := make(map[uuid.UUID]bool, len(players))
	for _, p := range players {
		if p == uuid.Nil {
			return nil, errs.Invalid("player id must be set")
		}
		if seen[p] {
			return nil, errs.Invalid("player %s is seated twice", p)
		}
		seen[p] = true
	}

	s := &SessionState{
		rules:   rules,
		players: slices.Clone(players),
		scores:  make([]int, points.Seats),
		round:   1,
		chombo:  make([]int, points.Seats),
	}
	for i := range s.scores {
		s.scores[i] = rules.StartPoints
	}
	return s, nil
}

// Rules returns the ruleset the session is scored under.
func (s *SessionState) Rules() ruleset.Ruleset { return s.rules }

// Players returns the seating order.
func (s *SessionState) Players() []uuid.UUID { return slices.Clone(s.players) }

// Scores returns current scores in seating order.
func (s *SessionState) Scores() []int { return slices.Clone(s.scores) }

// ScoresByPlayer returns current scores keyed by player id.
func (s *SessionState) ScoresByPlayer() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(s.players))
	for i, p := range s.players {
		out[p] = s.scores[i]
	}
	return out
}

// ChomboCounts returns the number of chombo penalties per seat.
func (s *SessionState) ChomboCounts() []int { return slices.Clone(s.chombo) }

func (s *SessionState) CurrentDealer() uuid.UUID { return s.players[s.dealer] }
func (s *SessionState) DealerSeat() int          { return s.dealer }
func (s *SessionState) Round() int               { return s.round }
func (s *SessionState) Honba() int               { return s.honba }
func (s *SessionState) RiichiBets() int          { return s.riichiBets }
func (s *SessionState) IsFinished() bool         { return s.finished }

// TotalCapital is the sum of scores plus the bets on the table. It never
// changes during a session.
func (s *SessionState) TotalCapital() int {
	total := riichiBet * s.riichiBets
	for _, v := range s.scores {
		total += v
	}
	return total
}

// SeatOf resolves a player id to a seat index.
func (s *SessionState) SeatOf(id uuid.UUID) (int, error) {
	for i, p := range s.players {
		if p == id {
			return i, nil
		}
	}
	return points.NoSeat, errs.NotFound("player %s is not seated in this session", id)
}

// seatOfActor is SeatOf, with uuid.Nil reported as an unset actor.
func (s *SessionState) seatOfActor(id uuid.UUID, role string) (int, error) {
	if id == uuid.Nil {
		return points.NoSeat, errs.Invalid("%s is not set", role)
	}
	return s.SeatOf(id)
}

func (s *SessionState) seatsOf(ids []uuid.UUID, role string) ([]int, error) {
	seats := make([]int, 0, len(ids))
	for _, id := range ids {
		seat, err := s.seatOfActor(id, role)
		if err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	return seats, nil
}

func (s *SessionState) pointsContext() points.Context {
	return points.Context{
		Rules:         s.rules,
		Dealer:        s.dealer,
		Honba:         s.honba,
		RiichiOnTable: s.riichiBets,
	}
}

// transition is the result of pricing one outcome, committed only when the
// whole outcome is valid.
type transition struct {
	scores      []int
	riichiBets  int
	dealerKeeps bool
	// honbaUp keeps counting honba even though the dealer passes (exhaustive draw).
	honbaUp bool
	// renchan is true when the dealer kept the seat by winning or being tempai.
	renchan bool
	chombo  int // seat that received a chombo, or NoSeat
}

// Apply records one round outcome. It returns the round index and honba in
// effect together with the snapshot taken before the outcome was applied.
func (s *SessionState) Apply(o models.Outcome) (models.RoundRecord, error) {
	if s.finished {
		return models.RoundRecord{}, errs.Invalid("session is already finished").AtRound(s.round)
	}
	if o == nil {
		return models.RoundRecord{}, errs.Invalid("outcome is not set").AtRound(s.round)
	}

	snapshot, err := s.MarshalJSON()
	if err != nil {
		return models.RoundRecord{}, err
	}
	rec := models.RoundRecord{Index: s.round, Honba: s.honba, Outcome: o, Snapshot: snapshot}

	var t transition
	switch v := o.(type) {
	case models.Ron:
		t, err = s.applyRon(v)
	case models.MultiRon:
		t, err = s.applyMultiRon(v)
	case models.Tsumo:
		t, err = s.applyTsumo(v)
	case models.Draw:
		t, err = s.applyDraw(v)
	case models.AbortiveDraw:
		t, err = s.applyAbort(v)
	case models.Chombo:
		t, err = s.applyChombo(v)
	default:
		err = errs.Invalid("unsupported outcome %q", o.Kind())
	}
	if err != nil {
		return models.RoundRecord{}, annotateRound(err, s.round)
	}

	s.commit(t)
	s.checkTermination(t)
	return rec, nil
}

func annotateRound(err error, round int) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.AtRound(round)
	}
	return err
}

func (s *SessionState) commit(t transition) {
	s.scores = t.scores
	s.riichiBets = t.riichiBets
	if t.chombo != points.NoSeat {
		s.chombo[t.chombo]++
	}
	switch {
	case t.chombo != points.NoSeat:
		// chombo replays the hand with the same dealer and honba
	case t.dealerKeeps:
		s.honba++
	case t.honbaUp:
		s.honba++
		s.passDealer()
	default:
		s.honba = 0
		s.passDealer()
	}
}

func (s *SessionState) passDealer() {
	s.dealer = (s.dealer + 1) % points.Seats
	s.round++
}

func (s *SessionState) applyRon(r models.Ron) (transition, error) {
	winner, err := s.seatOfActor(r.Winner, "ron winner")
	if err != nil {
		return transition{}, err
	}
	loser, err := s.seatOfActor(r.Loser, "ron loser")
	if err != nil {
		return transition{}, err
	}
	riichi, err := s.seatsOf(r.Riichi, "riichi bettor")
	if err != nil {
		return transition{}, err
	}
	scores, err := points.Ron(s.pointsContext(), s.scores, winner, loser, handOf(r.Win), riichi)
	if err != nil {
		return transition{}, err
	}
	keeps := winner == s.dealer
	return transition{scores: scores, dealerKeeps: keeps, renchan: keeps, chombo: points.NoSeat}, nil
}

func (s *SessionState) applyTsumo(r models.Tsumo) (transition, error) {
	winner, err := s.seatOfActor(r.Winner, "tsumo winner")
	if err != nil {
		return transition{}, err
	}
	riichi, err := s.seatsOf(r.Riichi, "riichi bettor")
	if err != nil {
		return transition{}, err
	}
	scores, err := points.Tsumo(s.pointsContext(), s.scores, winner, handOf(r.Win), riichi)
	if err != nil {
		return transition{}, err
	}
	keeps := winner == s.dealer
	return transition{scores: scores, dealerKeeps: keeps, renchan: keeps, chombo: points.NoSeat}, nil
}

// applyMultiRon pays every win in turn. Honba is paid on each win. Bets
// declared this round are pooled from every win and handed out by
// AssignRiichiBets, so the per-win Riichi lists only declare who bet. With
// atamahane only the winner nearest to the loser is paid and takes every bet.
func (s *SessionState) applyMultiRon(m models.MultiRon) (transition, error) {
	if len(m.Wins) < 2 || len(m.Wins) > 3 {
		return transition{}, errs.Invalid("multi-ron needs 2 or 3 winners, got %d", len(m.Wins))
	}
	loser, err := s.seatOfActor(m.Loser, "ron loser")
	if err != nil {
		return transition{}, err
	}

	winners := make([]uuid.UUID, 0, len(m.Wins))
	var bettors []uuid.UUID
	for _, w := range m.Wins {
		if w.Loser != uuid.Nil && w.Loser != m.Loser {
			return transition{}, errs.Invalid("multi-ron wins name different losers")
		}
		if _, err := s.seatOfActor(w.Winner, "ron winner"); err != nil {
			return transition{}, err
		}
		if slices.Contains(winners, w.Winner) {
			return transition{}, errs.Invalid("player %s wins twice in one multi-ron", w.Winner)
		}
		winners = append(winners, w.Winner)
		bettors = append(bettors, w.Riichi...)
	}
	assigned, err := AssignRiichiBets(s.players, m.Loser, winners, bettors)
	if err != nil {
		return transition{}, err
	}

	wins := make([]models.Ron, 0, len(m.Wins))
	for _, w := range m.Wins {
		if s.rules.WithAtamahane {
			if w.Winner != assigned.Nearest {
				continue
			}
			w.Riichi = bettors
		} else {
			w.Riichi = assigned.Bets[w.Winner]
		}
		wins = append(wins, w)
	}

	scores := s.scores
	dealerKeeps := false
	for _, w := range wins {
		winner, err := s.seatOfActor(w.Winner, "ron winner")
		if err != nil {
			return transition{}, err
		}
		if winner == loser {
			return transition{}, errs.Invalid("ron winner and loser must differ")
		}
		riichi, err := s.seatsOf(w.Riichi, "riichi bettor")
		if err != nil {
			return transition{}, err
		}
		ctx := s.pointsContext()
		if w.Winner != assigned.Nearest {
			ctx.RiichiOnTable = 0
		}
		scores, err = points.Ron(ctx, scores, winner, loser, handOf(w.Win), riichi)
		if err != nil {
			return transition{}, err
		}
		if winner == s.dealer {
			dealerKeeps = true
		}
	}
	return transition{scores: scores, dealerKeeps: dealerKeeps, renchan: dealerKeeps, chombo: points.NoSeat}, nil
}

func (s *SessionState) applyDraw(d models.Draw) (transition, error) {
	tempai, err := s.seatsOf(d.Tempai, "tempai player")
	if err != nil {
		return transition{}, err
	}
	riichi, err := s.seatsOf(d.Riichi, "riichi bettor")
	if err != nil {
		return transition{}, err
	}
	scores, err := points.Draw(s.scores, tempai, riichi)
	if err != nil {
		return transition{}, err
	}
	keeps := slices.Contains(tempai, s.dealer)
	return transition{
		scores:      scores,
		riichiBets:  s.riichiBets + len(riichi),
		dealerKeeps: keeps,
		honbaUp:     !keeps,
		renchan:     keeps,
		chombo:      points.NoSeat,
	}, nil
}

func (s *SessionState) applyAbort(a models.AbortiveDraw) (transition, error) {
	if !s.rules.WithAbortives {
		return transition{}, errs.Invalid("abortive draws are disabled in ruleset %s", s.rules.Name)
	}
	riichi, err := s.seatsOf(a.Riichi, "riichi bettor")
	if err != nil {
		return transition{}, err
	}
	scores, err := points.Abort(s.scores, riichi)
	if err != nil {
		return transition{}, err
	}
	return transition{
		scores:      scores,
		riichiBets:  s.riichiBets + len(riichi),
		dealerKeeps: true,
		chombo:      points.NoSeat,
	}, nil
}

// applyChombo leaves honba, dealer and the table untouched.
func (s *SessionState) applyChombo(c models.Chombo) (transition, error) {
	loser, err := s.seatOfActor(c.Loser, "chombo loser")
	if err != nil {
		return transition{}, err
	}
	scores, err := points.Chombo(s.pointsContext(), s.scores, loser)
	if err != nil {
		return transition{}, err
	}
	return transition{scores: scores, riichiBets: s.riichiBets, chombo: loser}, nil
}

func (s *SessionState) checkTermination(t transition) {
	if s.rules.WithButtobi {
		for _, v := range s.scores {
			if v < 0 {
				s.finished = true
				return
			}
		}
	}

	last := s.rules.MatchLength()
	if s.rules.WithLeadingDealerGameOver && t.renchan && s.round == last && s.dealerLeads() {
		s.finished = true
		return
	}

	if s.round > last {
		s.finished = true
	}
}

// dealerLeads reports whether the dealer has the top score. Equal scores are
// ranked by proximity to the dealer, so the dealer wins ties.
func (s *SessionState) dealerLeads() bool {
	for i, v := range s.scores {
		if i != s.dealer && v > s.scores[s.dealer] {
			return false
		}
	}
	return true
}

// Finish ends the session administratively, e.g. when time runs out.
func (s *SessionState) Finish() error {
	if s.finished {
		return errs.Invalid("session is already finished")
	}
	s.finished = true
	return nil
}

// Rollback restores the state captured before rec was applied. Only the most
// recently applied round can be rolled back.
func (s *SessionState) Rollback(rec models.RoundRecord) error {
	if len(rec.Snapshot) == 0 {
		return errs.Invalid("round %d carries no snapshot", rec.Index)
	}
	restored, err := RestoreState(s.rules, s.players, rec.Snapshot)
	if err != nil {
		return err
	}
	*s = *restored
	return nil
}

func handOf(w models.Win) points.Hand {
	return points.Hand{Han: w.Han, Fu: w.Fu, Yakuman: w.Yakuman}
}
