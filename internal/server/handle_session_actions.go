package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terraguess/api/internal/geo"
	"github.com/terraguess/api/internal/session"
)

// playerRequest is the body shared by session actions that only need
// to know who is acting.
type playerRequest struct {
	UserID string `json:"userId"`
}

func readPlayerRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req playerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return "", false
	}
	return req.UserID, true
}

type ReadyRequest struct {
	UserID string `json:"userId"`
	Ready  bool   `json:"ready"`
}

func handleSessionReady(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReadyRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UserID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}

		if err := svc.Sessions.SetReady(r.Context(), chi.URLParam(r, "id"), req.UserID, req.Ready); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type DifficultyRequest struct {
	UserID     string `json:"userId"`
	Difficulty string `json:"difficulty"`
}

func handleSessionDifficulty(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DifficultyRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UserID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}
		if !session.Difficulty(req.Difficulty).Valid() {
			writeError(w, http.StatusBadRequest, "unknown difficulty")
			return
		}

		if err := svc.Sessions.SetDifficulty(r.Context(), chi.URLParam(r, "id"), req.UserID, session.Difficulty(req.Difficulty)); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSessionStart(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := readPlayerRequest(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")

		if err := svc.Sessions.StartRound(r.Context(), id, userID); err != nil {
			svc.Log.Error("round start failed", "session", id, "error", err)
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSessionEndRound(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := readPlayerRequest(w, r)
		if !ok {
			return
		}

		if err := svc.Sessions.EndRound(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type GuessRequest struct {
	UserID   string     `json:"userId"`
	Position geo.LatLng `json:"position"`
}

func handleSessionGuess(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GuessRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UserID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}

		res, err := svc.Sessions.Guess(r.Context(), chi.URLParam(r, "id"), req.UserID, req.Position)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type PositionRequest struct {
	UserID   string     `json:"userId"`
	Position geo.LatLng `json:"position"`
}

// handleSessionPosition shares a player's camera position with the
// rest of the session. Best effort: stale updates are harmless.
func handleSessionPosition(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PositionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UserID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}

		if err := svc.Sessions.UpdatePosition(r.Context(), chi.URLParam(r, "id"), req.UserID, req.Position); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSessionHeartbeat(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := readPlayerRequest(w, r)
		if !ok {
			return
		}

		if err := svc.Sessions.Heartbeat(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSessionLeave(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := readPlayerRequest(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")

		if err := svc.Sessions.Disconnect(r.Context(), id, userID); err != nil {
			svc.Log.Error("leave failed", "session", id, "user", userID, "error", err)
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
