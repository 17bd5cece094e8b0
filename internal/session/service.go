// internal/session/service.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Furiten/riichi-api/internal/auth"
	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/Furiten/riichi-api/internal/game"
	"github.com/Furiten/riichi-api/internal/models"
	"github.com/Furiten/riichi-api/internal/rating"
	"github.com/Furiten/riichi-api/internal/ruleset"
	"github.com/Furiten/riichi-api/internal/textlog"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	OriginOnline  = "online"
	OriginTextLog = "textlog"
)

// Publisher fans round events out to the live feed and the round log.
type Publisher interface {
	Publish(ctx context.Context, ev models.RoundEvent) error
}

// Service runs the session use cases on top of a Store. Writers of one session
// are serialized; different sessions proceed in parallel.
type Service struct {
	store  Store
	pub    Publisher
	logger *logrus.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewService wires a service. pub may be nil when nothing listens for events.
func NewService(store Store, pub Publisher, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		store:  store,
		pub:    pub,
		logger: logger,
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Service) lock(sessionID uuid.UUID) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// publish never fails the caller; a lost event only affects observers.
func (s *Service) publish(ctx context.Context, sessionID uuid.UUID, action string, payload map[string]interface{}) {
	if s.pub == nil {
		return
	}
	ev := models.RoundEvent{SessionID: sessionID, Action: action, Payload: payload, Timestamp: time.Now()}
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.logger.WithFields(logrus.Fields{
			"session": sessionID,
			"action":  action,
		}).WithError(err).Warn("failed to publish round event")
	}
}

// CreateEvent registers an event played under a named ruleset. An empty
// password leaves the event without an admin login.
func (s *Service) CreateEvent(ctx context.Context, title, rulesetName string, overrides map[string]interface{}, password string) (*models.Event, error) {
	if title == "" {
		return nil, errs.Invalid("event title is empty")
	}
	if _, err := ruleset.Resolve(rulesetName, overrides); err != nil {
		return nil, err
	}
	e := &models.Event{Title: title, Ruleset: rulesetName, RuleOverrides: overrides}
	if password != "" {
		hash, err := auth.CreateHash(password, auth.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to hash event password: %w", err)
		}
		e.PasswordHash = hash
	}
	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"event": e.ID, "ruleset": rulesetName}).Info("event created")
	return e, nil
}

// Login checks the event admin password and returns a signed event token.
func (s *Service) Login(ctx context.Context, eventID uuid.UUID, password string) (string, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return "", err
	}
	if e.PasswordHash == "" {
		return "", errs.Invalid("event %s has no admin password", eventID)
	}
	ok, err := auth.ComparePasswordAndHash(password, e.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("failed to check event password: %w", err)
	}
	if !ok {
		return "", auth.ErrBadCredentials
	}
	return auth.CreateEventToken(eventID.String())
}

// Rules resolves the ruleset of an event.
func (s *Service) Rules(ctx context.Context, eventID uuid.UUID) (ruleset.Ruleset, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return ruleset.Ruleset{}, err
	}
	return ruleset.Resolve(e.Ruleset, e.RuleOverrides)
}

// RegisterPlayer adds a player to an event at the ruleset's start rating.
func (s *Service) RegisterPlayer(ctx context.Context, eventID uuid.UUID, alias, displayName string) (*models.Player, error) {
	if alias == "" {
		return nil, errs.Invalid("player alias is empty")
	}
	rules, err := s.Rules(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = alias
	}
	p := &models.Player{EventID: eventID, Alias: alias, DisplayName: displayName, Rating: rating.StartRating(rules)}
	if err := s.store.AddPlayer(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Players lists the players of an event.
func (s *Service) Players(ctx context.Context, eventID uuid.UUID) ([]models.Player, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.ListPlayers(ctx, eventID)
}

// StartGame seats four players of an event, east first.
func (s *Service) StartGame(ctx context.Context, eventID uuid.UUID, seating []uuid.UUID) (*models.Session, error) {
	rules, err := s.Rules(ctx, eventID)
	if err != nil {
		return nil, err
	}
	registered, err := s.store.ListPlayers(ctx, eventID)
	if err != nil {
		return nil, err
	}
	known := make(map[uuid.UUID]bool, len(registered))
	for _, p := range registered {
		known[p.ID] = true
	}
	for _, id := range seating {
		if !known[id] {
			return nil, errs.NotFound("player %s is not registered for event %s", id, eventID)
		}
	}

	state, err := game.NewSessionState(rules, seating)
	if err != nil {
		return nil, err
	}
	sess, err := newSession(eventID, state, OriginOnline)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"event": eventID, "session": sess.ID}).Info("game started")
	s.publish(ctx, sess.ID, models.ActionGameStarted, map[string]interface{}{
		"event_id": eventID,
		"players":  sess.Players,
		"overview": state.Overview(),
	})
	return sess, nil
}

func newSession(eventID uuid.UUID, state *game.SessionState, origin string) (*models.Session, error) {
	data, err := state.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return &models.Session{
		ID:      uuid.New(),
		EventID: eventID,
		Status:  models.SessionInProgress,
		Players: state.Players(),
		State:   data,
		Origin:  origin,
	}, nil
}

// load reads a session and rebuilds its live state.
func (s *Service) load(ctx context.Context, sessionID uuid.UUID) (*models.Session, *game.SessionState, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	rules, err := s.Rules(ctx, sess.EventID)
	if err != nil {
		return nil, nil, err
	}
	state, err := game.RestoreState(rules, sess.Players, sess.State)
	if err != nil {
		return nil, nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	return sess, state, nil
}

// RoundResult is the answer to a round submission.
type RoundResult struct {
	Record   models.RoundRecord   `json:"record"`
	Overview game.Overview        `json:"overview"`
	Results  []rating.PlaceResult `json:"results,omitempty"` // set when the round ended the game
	DryRun   bool                 `json:"dry_run"`
}

// AddRound applies an outcome to a running session. With dryRun nothing is
// stored and the returned overview shows what the round would lead to.
func (s *Service) AddRound(ctx context.Context, sessionID uuid.UUID, o models.Outcome, dryRun bool) (*RoundResult, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	sess, state, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == models.SessionFinished {
		return nil, errs.Invalid("session %s is finished", sessionID)
	}
	rec, err := state.Apply(o)
	if err != nil {
		return nil, err
	}

	res := &RoundResult{Record: rec, Overview: state.Overview(), DryRun: dryRun}
	if dryRun {
		return res, nil
	}

	if sess.State, err = state.MarshalJSON(); err != nil {
		return nil, err
	}
	if err := s.store.AppendRounds(ctx, sess, models.Round{ID: uuid.New(), Record: rec}); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"session": sessionID,
		"round":   rec.Index,
		"outcome": o.Kind(),
	}).Debug("round added")
	s.publish(ctx, sessionID, models.ActionRoundAdded, map[string]interface{}{
		"record":   rec,
		"overview": res.Overview,
	})

	if state.IsFinished() {
		if res.Results, err = s.finish(ctx, sess, state); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// DropLastRound undoes the latest round of a running session.
func (s *Service) DropLastRound(ctx context.Context, sessionID uuid.UUID) (game.Overview, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	sess, state, err := s.load(ctx, sessionID)
	if err != nil {
		return game.Overview{}, err
	}
	if sess.Status == models.SessionFinished {
		return game.Overview{}, errs.Invalid("session %s is finished", sessionID)
	}
	last, err := s.store.LastRound(ctx, sessionID)
	if err != nil {
		return game.Overview{}, err
	}
	if err := state.Rollback(last.Record); err != nil {
		return game.Overview{}, err
	}
	if sess.State, err = state.MarshalJSON(); err != nil {
		return game.Overview{}, err
	}
	if err := s.store.DeleteRound(ctx, sess, last.ID); err != nil {
		return game.Overview{}, err
	}

	ov := state.Overview()
	s.logger.WithFields(logrus.Fields{"session": sessionID, "round": last.Record.Index}).Info("round dropped")
	s.publish(ctx, sessionID, models.ActionRoundDropped, map[string]interface{}{
		"round_id": last.ID,
		"overview": ov,
	})
	return ov, nil
}

// EndGame finishes a running session before its natural end.
func (s *Service) EndGame(ctx context.Context, sessionID uuid.UUID) ([]rating.PlaceResult, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	sess, state, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == models.SessionFinished {
		return nil, errs.Invalid("session %s is already finished", sessionID)
	}
	if !state.IsFinished() {
		if err := state.Finish(); err != nil {
			return nil, err
		}
	}
	return s.finish(ctx, sess, state)
}

// finish stores the results of a finished state. Callers hold the session lock.
func (s *Service) finish(ctx context.Context, sess *models.Session, state *game.SessionState) ([]rating.PlaceResult, error) {
	placed, err := rating.Finalize(state)
	if err != nil {
		return nil, err
	}
	data, err := state.MarshalJSON()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	sess.State = data
	sess.Status = models.SessionFinished
	sess.FinishedAt = &now

	if err := s.store.FinishSession(ctx, sess, toSessionResults(sess.ID, placed)); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"session": sess.ID, "winner": placed[0].PlayerID}).Info("game finished")
	s.publish(ctx, sess.ID, models.ActionGameFinished, map[string]interface{}{
		"results":  placed,
		"overview": state.Overview(),
	})
	return placed, nil
}

func toSessionResults(sessionID uuid.UUID, placed []rating.PlaceResult) []models.SessionResult {
	out := make([]models.SessionResult, len(placed))
	for i, p := range placed {
		out[i] = models.SessionResult{
			SessionID:       sessionID,
			PlayerID:        p.PlayerID,
			Score:           p.Score,
			Place:           p.Place,
			RankBonus:       p.RankBonus,
			NormalizedScore: p.NormalizedScore,
			RatingDelta:     p.RatingDelta,
		}
	}
	return out
}

// Overview summarizes a session for table clients.
func (s *Service) Overview(ctx context.Context, sessionID uuid.UUID) (game.Overview, error) {
	_, state, err := s.load(ctx, sessionID)
	if err != nil {
		return game.Overview{}, err
	}
	return state.Overview(), nil
}

// Session returns the stored session.
func (s *Service) Session(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// Rounds lists the stored rounds of a session in order of application.
func (s *Service) Rounds(ctx context.Context, sessionID uuid.UUID) ([]models.Round, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListRounds(ctx, sessionID)
}

// Results returns the final standings of a finished session.
func (s *Service) Results(ctx context.Context, sessionID uuid.UUID) ([]models.SessionResult, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionFinished {
		return nil, errs.Invalid("session %s is not finished", sessionID)
	}
	return s.store.ListResults(ctx, sessionID)
}

// TextLogResult is the answer to a text log submission.
type TextLogResult struct {
	SessionID uuid.UUID            `json:"session_id"`
	Scores    map[string]int       `json:"scores"`
	Counts    textlog.Counts       `json:"counts"`
	Results   []rating.PlaceResult `json:"results"`
}

// AddTextLog parses a whole match written as text, replays it and stores it as
// a finished session. A log whose declared scores disagree with the replay is
// rejected with an *errs.MismatchError and nothing is stored.
func (s *Service) AddTextLog(ctx context.Context, eventID uuid.UUID, text string) (*TextLogResult, error) {
	rules, err := s.Rules(ctx, eventID)
	if err != nil {
		return nil, err
	}
	players, err := s.store.ListPlayers(ctx, eventID)
	if err != nil {
		return nil, err
	}
	registered := make(map[string]uuid.UUID, len(players))
	for _, p := range players {
		registered[p.Alias] = p.ID
	}

	parsed, err := textlog.Parse(text, registered)
	if err != nil {
		return nil, err
	}
	replay, err := parsed.Replay(rules)
	if err != nil {
		var mismatch *errs.MismatchError
		if errors.As(err, &mismatch) {
			s.logger.WithFields(logrus.Fields{"event": eventID}).WithError(err).Info("text log rejected")
		}
		return nil, err
	}

	sess, err := newSession(eventID, replay.State, OriginTextLog)
	if err != nil {
		return nil, err
	}
	unlock := s.lock(sess.ID)
	defer unlock()

	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	rounds := make([]models.Round, len(replay.Records))
	for i, rec := range replay.Records {
		rounds[i] = models.Round{ID: uuid.New(), Record: rec}
	}
	if err := s.store.AppendRounds(ctx, sess, rounds...); err != nil {
		return nil, err
	}
	placed, err := s.finish(ctx, sess, replay.State)
	if err != nil {
		return nil, err
	}
	return &TextLogResult{SessionID: sess.ID, Scores: replay.Scores, Counts: replay.Counts, Results: placed}, nil
}
