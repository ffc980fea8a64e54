package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terraguess/api/internal/content"
	"github.com/terraguess/api/internal/geo"
	"github.com/terraguess/api/internal/leaderboard"
	"github.com/terraguess/api/internal/session"
)

// handleSoloLocation hands out the next location for a solo round,
// consuming it from the player's bank so it will not repeat.
func handleSoloLocation(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameType := content.GameType(chi.URLParam(r, "gameType"))
		if !gameType.Valid() {
			writeError(w, http.StatusBadRequest, "unknown game type")
			return
		}
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "userId query parameter required")
			return
		}

		loc, err := svc.Locations.SelectAndConsume(r.Context(), userID, gameType)
		if err != nil {
			svc.Log.Error("location selection failed",
				"user", userID, "gameType", gameType, "error", err)
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, loc)
	}
}

type CheckGuessRequest struct {
	Position geo.LatLng `json:"position"`
	Target   geo.LatLng `json:"target"`
	TimeLeft float64    `json:"timeLeft"`
}

type CheckGuessResponse struct {
	Hit      bool    `json:"hit"`
	Distance float64 `json:"distance"`
	Score    int     `json:"score"`
}

// handleCheckGuess scores a solo guess against a target. Stateless:
// the client holds the round, the server holds the rules.
func handleCheckGuess() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckGuessRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp := CheckGuessResponse{
			Distance: geo.DistanceMeters(req.Position, req.Target),
		}
		if geo.PointInPolygon(req.Position, geo.WinPolygon(req.Target)) {
			resp.Hit = true
			if req.TimeLeft < 0 {
				req.TimeLeft = 0
			}
			resp.Score = geo.Score(resp.Distance, req.TimeLeft)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

type GameResultRequest struct {
	UserID          string  `json:"userId"`
	Username        string  `json:"username"`
	GameType        string  `json:"gameType"`
	Difficulty      string  `json:"difficulty"`
	Score           int     `json:"score"`
	TimeTaken       float64 `json:"timeTaken"`
	Accuracy        float64 `json:"accuracy"`
	FastestGuess    float64 `json:"fastestGuess"`
	HiddenGemsFound int     `json:"hiddenGemsFound"`
}

type GameResultResponse struct {
	NewAchievements []string `json:"newAchievements"`
}

// handleGameResult records a finished solo game: leaderboard entry,
// aggregate stats and any achievements it unlocked.
func handleGameResult(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GameResultRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UserID == "" || req.Username == "" {
			writeError(w, http.StatusBadRequest, "userId and username are required")
			return
		}
		if !content.GameType(req.GameType).Valid() {
			writeError(w, http.StatusBadRequest, "unknown game type")
			return
		}
		if !session.Difficulty(req.Difficulty).Valid() {
			writeError(w, http.StatusBadRequest, "unknown difficulty")
			return
		}

		newly, err := svc.Board.RecordResult(r.Context(), leaderboard.GameResult{
			UserID:          req.UserID,
			Username:        req.Username,
			GameType:        req.GameType,
			Difficulty:      req.Difficulty,
			Score:           req.Score,
			TimeTaken:       req.TimeTaken,
			Accuracy:        req.Accuracy,
			FastestGuess:    req.FastestGuess,
			HiddenGemsFound: req.HiddenGemsFound,
		})
		if err != nil {
			svc.Log.Error("recording game result failed", "user", req.UserID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if newly == nil {
			newly = []string{}
		}

		writeJSON(w, http.StatusOK, GameResultResponse{NewAchievements: newly})
	}
}
