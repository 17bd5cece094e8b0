// internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Furiten/riichi-api/internal/auth"
	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/Furiten/riichi-api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// errForbidden rejects an event token used on another event's data.
var errForbidden = errors.New("event token does not grant access to this event")

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error    string         `json:"error"`
	Code     int            `json:"code,omitempty"`
	Token    string         `json:"token,omitempty"`
	Line     int            `json:"line,omitempty"`
	Round    int            `json:"round,omitempty"`
	Declared map[string]int `json:"declared,omitempty"`
	Computed map[string]int `json:"computed,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusOf maps an error kind to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidOperation), errors.Is(err, errs.ErrConsistencyMismatch):
		return http.StatusConflict
	case errors.Is(err, auth.ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err with its status. Internal errors are logged and
// hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *logrus.Logger, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).WithError(err).Error("request failed")
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}

	body := errorBody{Error: err.Error()}
	var e *errs.Error
	if errors.As(err, &e) {
		body.Code, body.Token, body.Line, body.Round = e.Code, e.Token, e.Line, e.Round
	}
	var mismatch *errs.MismatchError
	if errors.As(err, &mismatch) {
		body.Declared, body.Computed = mismatch.Declared, mismatch.Computed
	}
	writeJSON(w, status, body)
}

// uuidParam parses a chi URL parameter.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errs.Malformed(0, raw, "invalid %s", name)
	}
	return id, nil
}

// authorize checks that the request's event token belongs to eventID.
func authorize(r *http.Request, eventID uuid.UUID) error {
	id, ok := middleware.EventID(r.Context())
	if !ok || id != eventID {
		return errForbidden
	}
	return nil
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Malformed(0, "", "invalid JSON body: %v", err)
	}
	return nil
}
