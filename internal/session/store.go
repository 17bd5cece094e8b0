// internal/session/store.go
package session

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/Furiten/riichi-api/internal/models"
	"github.com/Furiten/riichi-api/internal/rating"
	"github.com/google/uuid"
)

// Store persists events, players, sessions and their rounds.
// Lookups of missing records fail with errs.ErrNotFound.
type Store interface {
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)

	AddPlayer(ctx context.Context, p *models.Player) error
	ListPlayers(ctx context.Context, eventID uuid.UUID) ([]models.Player, error)

	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)

	// AppendRounds stores rounds after the existing ones together with the
	// session state they produced.
	AppendRounds(ctx context.Context, s *models.Session, rounds ...models.Round) error
	LastRound(ctx context.Context, sessionID uuid.UUID) (*models.Round, error)
	ListRounds(ctx context.Context, sessionID uuid.UUID) ([]models.Round, error)
	// DeleteRound removes a round and stores the rolled back session state.
	DeleteRound(ctx context.Context, s *models.Session, roundID uuid.UUID) error

	// FinishSession marks the session finished, stores the results and adds
	// every rating delta to the player's rating.
	FinishSession(ctx context.Context, s *models.Session, results []models.SessionResult) error
	ListResults(ctx context.Context, sessionID uuid.UUID) ([]models.SessionResult, error)
}

// MemoryStore keeps everything in maps guarded by one mutex. It backs tests
// and servers started without a database.
type MemoryStore struct {
	mu       sync.Mutex
	events   map[uuid.UUID]models.Event
	players  map[uuid.UUID]models.Player
	sessions map[uuid.UUID]models.Session
	rounds   map[uuid.UUID][]models.Round
	results  map[uuid.UUID][]models.SessionResult
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:   make(map[uuid.UUID]models.Event),
		players:  make(map[uuid.UUID]models.Player),
		sessions: make(map[uuid.UUID]models.Session),
		rounds:   make(map[uuid.UUID][]models.Round),
		results:  make(map[uuid.UUID][]models.SessionResult),
	}
}

func (m *MemoryStore) CreateEvent(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.events[e.ID] = *e
	return nil
}

func (m *MemoryStore) GetEvent(_ context.Context, id uuid.UUID) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, errs.NotFound("event %s", id)
	}
	return &e, nil
}

func (m *MemoryStore) AddPlayer(_ context.Context, p *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[p.EventID]; !ok {
		return errs.NotFound("event %s", p.EventID)
	}
	for _, other := range m.players {
		if other.EventID == p.EventID && other.Alias == p.Alias {
			return errs.Invalid("alias %q is already registered", p.Alias)
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.players[p.ID] = *p
	return nil
}

func (m *MemoryStore) ListPlayers(_ context.Context, eventID uuid.UUID) ([]models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Player{}
	for _, p := range m.players {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out, nil
}

func (m *MemoryStore) CreateSession(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	m.sessions[s.ID] = cloneSession(*s)
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errs.NotFound("session %s", id)
	}
	s = cloneSession(s)
	return &s, nil
}

func (m *MemoryStore) AppendRounds(_ context.Context, s *models.Session, rounds ...models.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return errs.NotFound("session %s", s.ID)
	}
	existing := m.rounds[s.ID]
	for _, r := range rounds {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		r.SessionID = s.ID
		r.Seq = len(existing) + 1
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now()
		}
		existing = append(existing, r)
	}
	m.rounds[s.ID] = existing
	m.sessions[s.ID] = cloneSession(*s)
	return nil
}

func (m *MemoryStore) LastRound(_ context.Context, sessionID uuid.UUID) (*models.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rounds := m.rounds[sessionID]
	if len(rounds) == 0 {
		return nil, errs.NotFound("session %s has no rounds", sessionID)
	}
	r := rounds[len(rounds)-1]
	return &r, nil
}

func (m *MemoryStore) ListRounds(_ context.Context, sessionID uuid.UUID) ([]models.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rounds[sessionID]), nil
}

func (m *MemoryStore) DeleteRound(_ context.Context, s *models.Session, roundID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rounds := m.rounds[s.ID]
	idx := slices.IndexFunc(rounds, func(r models.Round) bool { return r.ID == roundID })
	if idx < 0 {
		return errs.NotFound("round %s", roundID)
	}
	m.rounds[s.ID] = slices.Delete(rounds, idx, idx+1)
	m.sessions[s.ID] = cloneSession(*s)
	return nil
}

func (m *MemoryStore) FinishSession(_ context.Context, s *models.Session, results []models.SessionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return errs.NotFound("session %s", s.ID)
	}
	for _, r := range results {
		if _, ok := m.players[r.PlayerID]; !ok {
			return errs.NotFound("player %s", r.PlayerID)
		}
	}
	for _, r := range results {
		p := m.players[r.PlayerID]
		p.Rating = rating.ApplyDelta(p.Rating, r.RatingDelta)
		m.players[p.ID] = p
	}
	m.sessions[s.ID] = cloneSession(*s)
	m.results[s.ID] = slices.Clone(results)
	return nil
}

func (m *MemoryStore) ListResults(_ context.Context, sessionID uuid.UUID) ([]models.SessionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.results[sessionID]
	if !ok {
		return nil, errs.NotFound("results of session %s", sessionID)
	}
	return slices.Clone(res), nil
}

func cloneSession(s models.Session) models.Session {
	s.Players = slices.Clone(s.Players)
	s.State = slices.Clone(s.State)
	return s
}
