// internal/handlers/handlers_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Furiten/riichi-api/internal/auth"
	"github.com/Furiten/riichi-api/internal/cache"
	"github.com/Furiten/riichi-api/internal/models"
	"github.com/Furiten/riichi-api/internal/session"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	t       *testing.T
	eventID uuid.UUID
	token   string
	players []uuid.UUID
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// do sends a request and decodes a JSON answer into out when out is not nil.
func (s *testServer) do(method, path, token, contentType string, body []byte, out interface{}) int {
	s.t.Helper()
	req, err := http.NewRequest(method, s.URL+path, bytes.NewReader(body))
	require.NoError(s.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) postJSON(path, token string, in, out interface{}) int {
	s.t.Helper()
	body, err := json.Marshal(in)
	require.NoError(s.t, err)
	return s.do(http.MethodPost, path, token, "application/json", body, out)
}

// newTestServer creates an ema event with password "pw" and players A-D.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	require.NoError(t, auth.Init(time.Hour))
	logger := quietLogger()
	hub := cache.NewHub(16)
	svc := session.NewService(session.NewMemoryStore(), hub, logger)
	s := &testServer{Server: httptest.NewServer(NewAPI(svc, hub, logger).Router()), t: t}
	t.Cleanup(s.Close)

	var e models.Event
	require.Equal(t, http.StatusCreated, s.postJSON("/events", "", map[string]string{"title": "cup", "ruleset": "ema", "password": "pw"}, &e))
	s.eventID = e.ID

	var login map[string]string
	require.Equal(t, http.StatusOK, s.postJSON("/events/"+e.ID.String()+"/login", "", map[string]string{"password": "pw"}, &login))
	s.token = login["token"]

	for _, alias := range []string{"A", "B", "C", "D"} {
		var p models.Player
		require.Equal(t, http.StatusCreated, s.postJSON("/events/"+e.ID.String()+"/players", s.token, map[string]string{"alias": alias}, &p))
		s.players = append(s.players, p.ID)
	}
	return s
}

func (s *testServer) startGame() uuid.UUID {
	s.t.Helper()
	var sess models.Session
	require.Equal(s.t, http.StatusCreated, s.postJSON("/events/"+s.eventID.String()+"/sessions", s.token, map[string]interface{}{"players": s.players}, &sess))
	return sess.ID
}

func ronBody(t *testing.T, winner, loser uuid.UUID, han, fu int) []byte {
	b, err := models.MarshalOutcome(models.Ron{Winner: winner, Loser: loser, Win: models.Win{Han: han, Fu: fu}})
	require.NoError(t, err)
	return b
}

func TestRulesets(t *testing.T) {
	s := newTestServer(t)
	var names map[string][]string
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/rulesets", "", "", nil, &names))
	assert.Contains(t, names["rulesets"], "jpmlA")

	var rules map[string]interface{}
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/rulesets/ema", "", "", nil, &rules))
	assert.Equal(t, "ema", rules["name"])
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/rulesets/nope", "", "", nil, nil))
}

func TestLoginAndTokenGuard(t *testing.T) {
	s := newTestServer(t)
	path := "/events/" + s.eventID.String()

	var body errorBody
	assert.Equal(t, http.StatusUnauthorized, s.postJSON(path+"/login", "", map[string]string{"password": "bad"}, &body))
	assert.Equal(t, http.StatusUnauthorized, s.postJSON(path+"/players", "", map[string]string{"alias": "E"}, nil))

	other, err := auth.CreateEventToken(uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, s.postJSON(path+"/players", other, map[string]string{"alias": "E"}, nil))
	assert.Equal(t, http.StatusConflict, s.postJSON(path+"/players", s.token, map[string]string{"alias": "A"}, nil))

	var players []models.Player
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, path+"/players", "", "", nil, &players))
	assert.Len(t, players, 4)
}

func TestRoundLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := s.startGame()
	path := "/sessions/" + id.String()

	var dry session.RoundResult
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, path+"/rounds?dry_run=true", s.token, "application/json", ronBody(t, s.players[1], s.players[0], 3, 30), &dry))
	assert.True(t, dry.DryRun)
	assert.Equal(t, 33900, dry.Overview.Players[1].Score)

	var ov map[string]interface{}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, path, "", "", nil, &ov))
	assert.Equal(t, float64(0), ov["honba"])

	var res session.RoundResult
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, path+"/rounds", s.token, "application/json", ronBody(t, s.players[1], s.players[0], 3, 30), &res))
	assert.Equal(t, 26100, res.Overview.Players[0].Score)
	assert.Equal(t, 2, res.Overview.Round)

	var rounds []models.Round
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, path+"/rounds", "", "", nil, &rounds))
	require.Len(t, rounds, 1)
	assert.Equal(t, models.KindRon, rounds[0].Record.Outcome.Kind())

	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, path+"/rounds/last", s.token, "", nil, &ov))
	assert.Equal(t, float64(1), ov["round"])

	assert.Equal(t, http.StatusConflict, s.do(http.MethodGet, path+"/results", "", "", nil, nil))
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, path+"/end", s.token, "", nil, nil))

	var results []models.SessionResult
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, path+"/results", "", "", nil, &results))
	assert.Len(t, results, 4)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, path+"/rounds", s.token, "application/json", ronBody(t, s.players[1], s.players[0], 1, 30), nil))
}

func TestRequestErrors(t *testing.T) {
	s := newTestServer(t)
	id := s.startGame()
	path := "/sessions/" + id.String()

	var body errorBody
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, path+"/rounds", s.token, "application/json", []byte(`{"outcome":"riichi"}`), &body))
	assert.NotEmpty(t, body.Error)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, path+"/rounds?dry_run=maybe", s.token, "application/json", ronBody(t, s.players[1], s.players[0], 1, 30), nil))
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, path+"/rounds", s.token, "application/json", ronBody(t, s.players[0], s.players[0], 1, 30), nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/sessions/not-a-uuid", "", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/sessions/"+uuid.NewString(), "", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, path+"/rounds/last", s.token, "", nil, nil))
}

func TestTextLogSubmission(t *testing.T) {
	s := newTestServer(t)
	path := "/events/" + s.eventID.String() + "/textlog"
	log := "A:30000 B:30000 C:30000 D:30000\n" +
		"draw tempai A B riichi A\n" +
		"tsumo C 1han 30fu riichi C\n" +
		"A:29900 B:31100 C:30900 D:28100"

	var res session.TextLogResult
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, path, s.token, "text/plain", []byte(log), &res))
	assert.Equal(t, 31100, res.Scores["B"])
	assert.Equal(t, 1, res.Counts.Tsumo)

	var body errorBody
	assert.Equal(t, http.StatusConflict, s.postJSON(path, s.token, map[string]string{"log": "A:1000 B:1000 C:1000 D:1000\nron B from A 3han 30fu"}, &body))
	assert.Equal(t, 1000, body.Declared["B"])
	assert.Equal(t, 33900, body.Computed["B"])

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, path, s.token, "text/plain", []byte("A:1000 B:1000 C:1000 D:1000\nron E from A 1han 30fu"), &body))
	assert.Equal(t, 104, body.Code)
	assert.Equal(t, 2, body.Line)
}

func TestSessionFeed(t *testing.T) {
	s := newTestServer(t)
	id := s.startGame()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/sessions/" + id.String() + "/ws"
	c, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{Subprotocols: []string{FeedSubprotocol}})
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	var ev models.RoundEvent
	require.NoError(t, wsjson.Read(ctx, c, &ev))
	assert.Equal(t, "overview", ev.Action)
	assert.Equal(t, id, ev.SessionID)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/sessions/"+id.String()+"/rounds", s.token, "application/json", ronBody(t, s.players[1], s.players[0], 3, 30), nil))
	require.NoError(t, wsjson.Read(ctx, c, &ev))
	assert.Equal(t, models.ActionRoundAdded, ev.Action)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/sessions/"+id.String()+"/end", s.token, "", nil, nil))
	require.NoError(t, wsjson.Read(ctx, c, &ev))
	assert.Equal(t, models.ActionGameFinished, ev.Action)

	_, _, err = c.Read(ctx)
	assert.Equal(t, websocket.StatusCode(SessionFinishedClosure), websocket.CloseStatus(err))
}

func TestSessionFeedRejectsUnknownSession(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/sessions/"+uuid.NewString()+"/ws", "", "", nil, nil))
}
