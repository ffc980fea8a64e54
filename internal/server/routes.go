package server

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, svc Services, staticDir string) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("TerraGuess API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, svc.DB))

	r.Route("/api", func(r chi.Router) {
		r.Get("/achievements", handleAchievements())
		r.Post("/achievements/check", handleAchievementCheck())

		// Solo play: locations are drawn from the per-user bank, guesses
		// are checked statelessly, finished games post their result.
		r.Route("/game", func(r chi.Router) {
			r.Get("/{gameType}", handleSoloLocation(svc))
			r.Post("/check", handleCheckGuess())
			r.Post("/result", handleGameResult(svc))
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", handleSessionCreate(svc))
			r.Get("/code/{code}", handleSessionByCode(svc))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handleSessionGet(svc))
				r.Post("/join", handleSessionJoin(svc))
				r.Post("/ready", handleSessionReady(svc))
				r.Post("/difficulty", handleSessionDifficulty(svc))
				r.Post("/start", handleSessionStart(svc))
				r.Post("/round-end", handleSessionEndRound(svc))
				r.Post("/guess", handleSessionGuess(svc))
				r.Post("/position", handleSessionPosition(svc))
				r.Post("/heartbeat", handleSessionHeartbeat(svc))
				r.Post("/leave", handleSessionLeave(svc))
				r.Get("/events", handleSessionEvents(svc))
				r.Get("/ws", handleSessionSocket(svc))
			})
		})

		r.Get("/leaderboard/{gameType}/{difficulty}", handleLeaderboardTop(svc))

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", handleUserGet(svc))
			r.Put("/username", handleUsernameUpdate(svc))
			r.Get("/highscore/{gameType}/{difficulty}", handleHighScore(svc))
		})
	})

	if staticDir != "" {
		if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
			logger.Info("serving static client", "dir", staticDir)
			r.NotFound(handleSPA(staticDir))
		}
	}
}
