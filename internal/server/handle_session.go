package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terraguess/api/internal/content"
	"github.com/terraguess/api/internal/session"
)

type CreateSessionRequest struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	MaxPlayers  int    `json:"maxPlayers,omitempty"`
	Difficulty  string `json:"difficulty,omitempty"`
	GameType    string `json:"gameType,omitempty"`
	IsQuickPlay bool   `json:"isQuickPlay,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
	ShareCode string `json:"shareCode,omitempty"`
}

// handleSessionCreate opens a new multiplayer session. Quick play
// first tries to slot the player into an existing waiting session.
func handleSessionCreate(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UserID == "" || req.Username == "" {
			writeError(w, http.StatusBadRequest, "userId and username are required")
			return
		}
		if req.MaxPlayers <= 0 {
			req.MaxPlayers = 2
		}
		if req.Difficulty == "" {
			req.Difficulty = string(session.DifficultyNormal)
		}
		if !session.Difficulty(req.Difficulty).Valid() {
			writeError(w, http.StatusBadRequest, "unknown difficulty")
			return
		}
		if req.GameType == "" {
			req.GameType = string(content.GameTypeClassic)
		}
		if !content.GameType(req.GameType).Valid() {
			writeError(w, http.StatusBadRequest, "unknown game type")
			return
		}

		id, code, err := svc.Sessions.Create(r.Context(), req.UserID, req.Username,
			req.MaxPlayers, session.Difficulty(req.Difficulty), content.GameType(req.GameType),
			req.IsQuickPlay)
		if err != nil {
			svc.Log.Error("session create failed", "user", req.UserID, "error", err)
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, CreateSessionResponse{SessionID: id, ShareCode: code})
	}
}

func handleSessionGet(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := svc.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

type SessionLookupResponse struct {
	SessionID string `json:"sessionId"`
}

// handleSessionByCode resolves a share code to a joinable session.
func handleSessionByCode(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := svc.Sessions.FindByShareCode(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			svc.Log.Error("share code lookup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if id == "" {
			writeError(w, http.StatusNotFound, "no session with that code")
			return
		}
		writeJSON(w, http.StatusOK, SessionLookupResponse{SessionID: id})
	}
}

type JoinSessionRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func handleSessionJoin(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinSessionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UserID == "" || req.Username == "" {
			writeError(w, http.StatusBadRequest, "userId and username are required")
			return
		}

		id := chi.URLParam(r, "id")
		if err := svc.Sessions.Join(r.Context(), id, req.UserID, req.Username); err != nil {
			writeDomainError(w, err)
			return
		}

		s, err := svc.Sessions.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}
