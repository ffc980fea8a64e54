package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/terraguess/api/internal/content"
	"github.com/terraguess/api/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain sentinel errors onto HTTP statuses.
// Anything unexpected becomes an opaque 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrSessionFull),
		errors.Is(err, session.ErrSessionUnavailable),
		errors.Is(err, session.ErrNotPlaying),
		errors.Is(err, session.ErrAlreadyGuessed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrNotHost),
		errors.Is(err, session.ErrNotInSession):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, content.ErrContentUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
