package server

import (
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/terraguess/api/internal/achievement"
	"github.com/terraguess/api/internal/content"
	"github.com/terraguess/api/internal/leaderboard"
	"github.com/terraguess/api/internal/session"
)

func modeParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	gameType := chi.URLParam(r, "gameType")
	difficulty := chi.URLParam(r, "difficulty")
	if !content.GameType(gameType).Valid() {
		writeError(w, http.StatusBadRequest, "unknown game type")
		return "", "", false
	}
	if !session.Difficulty(difficulty).Valid() {
		writeError(w, http.StatusBadRequest, "unknown difficulty")
		return "", "", false
	}
	return gameType, difficulty, true
}

func handleLeaderboardTop(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameType, difficulty, ok := modeParams(w, r)
		if !ok {
			return
		}

		entries, err := svc.Board.Top(r.Context(), gameType, difficulty)
		if err != nil {
			svc.Log.Error("leaderboard query failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if entries == nil {
			entries = []leaderboard.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

type HighScoreResponse struct {
	Score int `json:"score"`
}

func handleHighScore(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameType, difficulty, ok := modeParams(w, r)
		if !ok {
			return
		}

		score, err := svc.Board.HighScore(r.Context(), chi.URLParam(r, "userID"), gameType, difficulty)
		if err != nil {
			svc.Log.Error("high score lookup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, HighScoreResponse{Score: score})
	}
}

func handleUserGet(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := svc.Board.GetUser(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			svc.Log.Error("user lookup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

type UsernameRequest struct {
	Username string `json:"username"`
}

// handleUsernameUpdate renames a user everywhere their name appears,
// profile and leaderboard entries alike.
func handleUsernameUpdate(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UsernameRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" {
			writeError(w, http.StatusBadRequest, "username is required")
			return
		}

		if err := svc.Board.UpdateUsername(r.Context(), chi.URLParam(r, "userID"), req.Username); err != nil {
			svc.Log.Error("username update failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleAchievements serves the static achievement catalogue.
func handleAchievements() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, achievement.Catalogue)
	}
}

type AchievementCheckRequest struct {
	Score              int      `json:"score"`
	GamesPlayed        int      `json:"gamesPlayed"`
	Accuracy           float64  `json:"accuracy"`
	FastestTime        float64  `json:"fastestTime"` // seconds; 0 means no guess landed
	ContinentsExplored []string `json:"continentsExplored"`
	HiddenGemsFound    int      `json:"hiddenGemsFound"`
}

type AchievementCheckResponse struct {
	Achievements []string `json:"achievements"`
}

// handleAchievementCheck evaluates a stat snapshot without touching
// any stored profile.
func handleAchievementCheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AchievementCheckRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		fastest := req.FastestTime
		if fastest <= 0 {
			fastest = math.MaxFloat64
		}
		ids := achievement.EvaluateIDs(achievement.Stats{
			Score:              req.Score,
			GamesPlayed:        req.GamesPlayed,
			Accuracy:           req.Accuracy,
			FastestTime:        fastest,
			ContinentsExplored: req.ContinentsExplored,
			HiddenGemsFound:    req.HiddenGemsFound,
		})
		if ids == nil {
			ids = []string{}
		}

		writeJSON(w, http.StatusOK, AchievementCheckResponse{Achievements: ids})
	}
}
