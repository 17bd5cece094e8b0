// internal/handlers/sessions.go
package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/Furiten/riichi-api/internal/models"
	"github.com/google/uuid"
)

// maxOutcomeSize bounds a submitted round outcome.
const maxOutcomeSize = 64 << 10

// adminSession parses the session id and checks the event token against the
// session's event.
func (a *API) adminSession(r *http.Request) (uuid.UUID, error) {
	id, err := uuidParam(r, "sessionID")
	if err != nil {
		return uuid.Nil, err
	}
	sess, err := a.svc.Session(r.Context(), id)
	if err != nil {
		return uuid.Nil, err
	}
	if err := authorize(r, sess.EventID); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (a *API) overview(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "sessionID")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	ov, err := a.svc.Overview(r.Context(), id)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (a *API) listRounds(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "sessionID")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	rounds, err := a.svc.Rounds(r.Context(), id)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (a *API) results(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "sessionID")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	res, err := a.svc.Results(r.Context(), id)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// addRound takes an {"outcome": kind, "data": {...}} body. With ?dry_run=true
// the round is computed but not stored.
func (a *API) addRound(w http.ResponseWriter, r *http.Request) {
	id, err := a.adminSession(r)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	dryRun := false
	if raw := r.URL.Query().Get("dry_run"); raw != "" {
		if dryRun, err = strconv.ParseBool(raw); err != nil {
			writeError(w, r, a.logger, errs.Malformed(0, raw, "invalid dry_run flag"))
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxOutcomeSize))
	if err != nil {
		writeError(w, r, a.logger, errs.Malformed(0, "", "failed to read outcome: %v", err))
		return
	}
	outcome, err := models.UnmarshalOutcome(body)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}

	res, err := a.svc.AddRound(r.Context(), id, outcome, dryRun)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	status := http.StatusCreated
	if dryRun {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (a *API) dropLastRound(w http.ResponseWriter, r *http.Request) {
	id, err := a.adminSession(r)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	ov, err := a.svc.DropLastRound(r.Context(), id)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (a *API) endGame(w http.ResponseWriter, r *http.Request) {
	id, err := a.adminSession(r)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	placed, err := a.svc.EndGame(r.Context(), id)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": placed})
}
