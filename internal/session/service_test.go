// internal/session/service_test.go
package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Furiten/riichi-api/internal/auth"
	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/Furiten/riichi-api/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.RoundEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.RoundEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Action
	}
	return out
}

type fixture struct {
	svc     *Service
	store   *MemoryStore
	pub     *recordingPublisher
	eventID uuid.UUID
	players map[string]uuid.UUID
	seating []uuid.UUID
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// setupFixture creates an ema event with players A-D.
func setupFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: NewMemoryStore(), pub: &recordingPublisher{}, players: map[string]uuid.UUID{}}
	f.svc = NewService(f.store, f.pub, quietLogger())

	e, err := f.svc.CreateEvent(ctx, "club night", "ema", nil, "")
	require.NoError(t, err)
	f.eventID = e.ID

	for _, alias := range []string{"A", "B", "C", "D"} {
		p, err := f.svc.RegisterPlayer(ctx, e.ID, alias, "")
		require.NoError(t, err)
		assert.Equal(t, 1500.0, p.Rating)
		f.players[alias] = p.ID
		f.seating = append(f.seating, p.ID)
	}
	return f
}

func (f *fixture) start(t *testing.T) *models.Session {
	t.Helper()
	sess, err := f.svc.StartGame(context.Background(), f.eventID, f.seating)
	require.NoError(t, err)
	return sess
}

func scoresOf(t *testing.T, f *fixture, sessionID uuid.UUID) []int {
	t.Helper()
	ov, err := f.svc.Overview(context.Background(), sessionID)
	require.NoError(t, err)
	out := make([]int, len(ov.Players))
	for i, p := range ov.Players {
		out[i] = p.Score
	}
	return out
}

func TestStartGameAndAddRound(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	sess := f.start(t)
	assert.Equal(t, models.SessionInProgress, sess.Status)
	assert.Equal(t, OriginOnline, sess.Origin)

	res, err := f.svc.AddRound(ctx, sess.ID, models.Ron{
		Winner: f.players["B"],
		Loser:  f.players["A"],
		Win:    models.Win{Han: 3, Fu: 30},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Record.Index)
	assert.Equal(t, 2, res.Overview.Round)
	assert.Equal(t, f.players["B"], res.Overview.Dealer)
	assert.Empty(t, res.Results)

	assert.Equal(t, []int{26100, 33900, 30000, 30000}, scoresOf(t, f, sess.ID))
	rounds, err := f.svc.Rounds(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, 1, rounds[0].Seq)
	assert.Equal(t, models.KindRon, rounds[0].Record.Outcome.Kind())

	assert.Equal(t, []string{models.ActionGameStarted, models.ActionRoundAdded}, f.pub.actions())
}

func TestAddRoundDryRunStoresNothing(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	sess := f.start(t)

	res, err := f.svc.AddRound(ctx, sess.ID, models.Tsumo{Winner: f.players["A"], Win: models.Win{Han: 1, Fu: 30}}, true)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.Overview.Honba)

	assert.Equal(t, []int{30000, 30000, 30000, 30000}, scoresOf(t, f, sess.ID))
	rounds, err := f.svc.Rounds(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, rounds)
	assert.Equal(t, []string{models.ActionGameStarted}, f.pub.actions())
}

func TestAddRoundRejectsRuleViolation(t *testing.T) {
	f := setupFixture(t)
	sess := f.start(t)

	// ema plays without abortive draws
	_, err := f.svc.AddRound(context.Background(), sess.ID, models.AbortiveDraw{}, false)
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))

	_, err = f.svc.AddRound(context.Background(), uuid.New(), models.AbortiveDraw{}, false)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestDropLastRound(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	sess := f.start(t)

	_, err := f.svc.AddRound(ctx, sess.ID, models.Draw{Tempai: []uuid.UUID{f.players["C"]}, Riichi: []uuid.UUID{f.players["C"]}}, false)
	require.NoError(t, err)
	assert.Equal(t, []int{29000, 29000, 32000, 29000}, scoresOf(t, f, sess.ID))

	ov, err := f.svc.DropLastRound(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, ov.Round)
	assert.Zero(t, ov.Honba)
	assert.Zero(t, ov.RiichiBets)
	assert.Equal(t, []int{30000, 30000, 30000, 30000}, scoresOf(t, f, sess.ID))

	_, err = f.svc.DropLastRound(ctx, sess.ID)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.Contains(t, f.pub.actions(), models.ActionRoundDropped)
}

func TestEndGameStoresResultsAndRatings(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	sess := f.start(t)

	_, err := f.svc.Results(ctx, sess.ID)
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))

	placed, err := f.svc.EndGame(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, placed, 4)
	// all scores are equal, so the dealer ranks first
	assert.Equal(t, f.players["A"], placed[0].PlayerID)
	assert.Equal(t, 15.0, placed[0].RatingDelta)

	results, err := f.svc.Results(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, results, 4)

	players, err := f.svc.Players(ctx, f.eventID)
	require.NoError(t, err)
	total := 0.0
	for _, p := range players {
		total += p.Rating
		if p.Alias == "A" {
			assert.Equal(t, 1515.0, p.Rating)
		}
	}
	assert.InDelta(t, 4*1500.0, total, 1e-9)

	_, err = f.svc.EndGame(ctx, sess.ID)
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))
	_, err = f.svc.AddRound(ctx, sess.ID, models.Draw{Tempai: []uuid.UUID{}}, false)
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))
	assert.Equal(t, models.ActionGameFinished, f.pub.actions()[len(f.pub.actions())-1])
}

func TestLastRoundFinishesGame(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	sess := f.start(t)

	// noten draws pass the dealer every round
	var res *RoundResult
	var err error
	for i := 0; i < 8; i++ {
		res, err = f.svc.AddRound(ctx, sess.ID, models.Draw{Tempai: []uuid.UUID{}}, false)
		require.NoError(t, err)
	}
	assert.True(t, res.Overview.Finished)
	require.Len(t, res.Results, 4)

	stored, err := f.svc.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionFinished, stored.Status)
	assert.NotNil(t, stored.FinishedAt)
}

func TestConcurrentRoundsAreSerialized(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	sess := f.start(t)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddRound(ctx, sess.ID, models.Draw{Tempai: []uuid.UUID{}}, false)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ov, err := f.svc.Overview(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, ov.Round)
	assert.Equal(t, 6, ov.Honba)
	rounds, err := f.svc.Rounds(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, rounds, 6)
}

func TestStartGameValidation(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.svc.StartGame(ctx, f.eventID, []uuid.UUID{f.seating[0], f.seating[1], f.seating[2], uuid.New()})
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	_, err = f.svc.StartGame(ctx, f.eventID, f.seating[:3])
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))

	_, err = f.svc.StartGame(ctx, uuid.New(), f.seating)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestEventAndPlayerValidation(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateEvent(ctx, "x", "nope", nil, "")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	_, err = f.svc.CreateEvent(ctx, "x", "ema", map[string]interface{}{"withAtamahane": "yes"}, "")
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))

	_, err = f.svc.RegisterPlayer(ctx, f.eventID, "A", "")
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))
}

func TestAddTextLog(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	res, err := f.svc.AddTextLog(ctx, f.eventID,
		"A:30000 B:30000 C:30000 D:30000\n"+
			"draw tempai A B riichi A\n"+
			"tsumo C 1han 30fu riichi C\n"+
			"A:29900 B:31100 C:30900 D:28100")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 29900, "B": 31100, "C": 30900, "D": 28100}, res.Scores)
	assert.Equal(t, 1, res.Counts.Draw)
	require.Len(t, res.Results, 4)
	assert.Equal(t, f.players["B"], res.Results[0].PlayerID)

	sess, err := f.svc.Session(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, OriginTextLog, sess.Origin)
	assert.Equal(t, models.SessionFinished, sess.Status)

	rounds, err := f.svc.Rounds(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Len(t, rounds, 2)
}

func TestAddTextLogMismatch(t *testing.T) {
	f := setupFixture(t)

	_, err := f.svc.AddTextLog(context.Background(), f.eventID, "A:1000 B:1000 C:1000 D:1000\nron B from A 3han 30fu")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConsistencyMismatch))
	assert.Empty(t, f.pub.actions())
}

func TestLogin(t *testing.T) {
	require.NoError(t, auth.Init(time.Hour))
	f := setupFixture(t)
	ctx := context.Background()

	e, err := f.svc.CreateEvent(ctx, "league", "jpmlA", nil, "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, e.PasswordHash)

	token, err := f.svc.Login(ctx, e.ID, "secret")
	require.NoError(t, err)
	sub, err := auth.AuthenticateEventToken(token)
	require.NoError(t, err)
	assert.Equal(t, e.ID.String(), sub)

	_, err = f.svc.Login(ctx, e.ID, "wrong")
	assert.ErrorIs(t, err, auth.ErrBadCredentials)

	_, err = f.svc.Login(ctx, f.eventID, "secret")
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))
}
