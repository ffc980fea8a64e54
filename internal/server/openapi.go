package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/terraguess/api/internal/achievement"
	"github.com/terraguess/api/internal/content"
	"github.com/terraguess/api/internal/leaderboard"
	"github.com/terraguess/api/internal/session"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "TerraGuess API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the TerraGuess geography game.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /api/achievements
	getAchievements, _ := r.NewOperationContext(http.MethodGet, "/api/achievements")
	getAchievements.SetSummary("Achievement catalogue")
	getAchievements.SetDescription("Returns every achievement that can be earned.")
	getAchievements.AddRespStructure([]achievement.Achievement{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getAchievements)

	// POST /api/achievements/check
	postAchievementCheck, _ := r.NewOperationContext(http.MethodPost, "/api/achievements/check")
	postAchievementCheck.SetSummary("Evaluate achievements")
	postAchievementCheck.SetDescription("Evaluates a stat snapshot against the catalogue without touching stored profiles.")
	postAchievementCheck.AddReqStructure(AchievementCheckRequest{})
	postAchievementCheck.AddRespStructure(AchievementCheckResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postAchievementCheck.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postAchievementCheck)

	// GET /api/game/{gameType}
	getLocation, _ := r.NewOperationContext(http.MethodGet, "/api/game/{gameType}")
	getLocation.SetSummary("Next solo location")
	getLocation.SetDescription("Draws the next location from the player's bank for a solo round. Pass userId as query parameter.")
	getLocation.AddRespStructure(content.Location{}, openapi.WithHTTPStatus(http.StatusOK))
	getLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	getLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getLocation)

	// POST /api/game/check
	postCheck, _ := r.NewOperationContext(http.MethodPost, "/api/game/check")
	postCheck.SetSummary("Check a solo guess")
	postCheck.SetDescription("Scores a guess against a target location.")
	postCheck.AddReqStructure(CheckGuessRequest{})
	postCheck.AddRespStructure(CheckGuessResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postCheck.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postCheck)

	// POST /api/game/result
	postResult, _ := r.NewOperationContext(http.MethodPost, "/api/game/result")
	postResult.SetSummary("Record a solo game result")
	postResult.SetDescription("Records the finished game on the leaderboard and returns newly earned achievements.")
	postResult.AddReqStructure(GameResultRequest{})
	postResult.AddRespStructure(GameResultResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postResult.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postResult)

	// POST /api/sessions
	postSession, _ := r.NewOperationContext(http.MethodPost, "/api/sessions")
	postSession.SetSummary("Create a session")
	postSession.SetDescription("Creates a multiplayer session. Quick play joins an existing waiting session when one matches.")
	postSession.AddReqStructure(CreateSessionRequest{})
	postSession.AddRespStructure(CreateSessionResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postSession)

	// GET /api/sessions/code/{code}
	getByCode, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/code/{code}")
	getByCode.SetSummary("Look up session by share code")
	getByCode.AddRespStructure(SessionLookupResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getByCode.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getByCode)

	// GET /api/sessions/{id}
	getSession, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{id}")
	getSession.SetSummary("Get session state")
	getSession.AddRespStructure(session.Session{}, openapi.WithHTTPStatus(http.StatusOK))
	getSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getSession)

	// POST /api/sessions/{id}/join
	postJoin, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{id}/join")
	postJoin.SetSummary("Join a session")
	postJoin.SetDescription("Joins a waiting session. Returns the session state after joining.")
	postJoin.AddReqStructure(JoinSessionRequest{})
	postJoin.AddRespStructure(session.Session{}, openapi.WithHTTPStatus(http.StatusOK))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postJoin)

	// POST /api/sessions/{id}/ready
	postReady, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{id}/ready")
	postReady.SetSummary("Set ready state")
	postReady.AddReqStructure(ReadyRequest{})
	postReady.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	postReady.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(postReady)

	// POST /api/sessions/{id}/difficulty
	postDifficulty, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{id}/difficulty")
	postDifficulty.SetSummary("Set difficulty")
	postDifficulty.SetDescription("Host changes the session difficulty while waiting.")
	postDifficulty.AddReqStructure(DifficultyRequest{})
	postDifficulty.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	postDifficulty.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(postDifficulty)

	// POST /api/sessions/{id}/start
	postStart, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{id}/start")
	postStart.SetSummary("Start the next round")
	postStart.SetDescription("Host starts the game or the next round. The server drives the preview and round timers.")
	postStart.AddReqStructure(playerRequest{})
	postStart.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	postStart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postStart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(postStart)

	// POST /api/sessions/{id}/round-end
	postRoundEnd, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{id}/round-end")
	postRoundEnd.SetSummary("End the current round")
	postRoundEnd.AddReqStructure(playerRequest{})
	postRoundEnd.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	postRoundEnd.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(postRoundEnd)

	// POST /api/sessions/{id}/guess
	postGuess, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{id}/guess")
	postGuess.SetSummary("Submit a guess")
	postGuess.SetDescription("Submits a guess for the current round. A miss leaves the round open for further attempts.")
	postGuess.AddReqStructure(GuessRequest{})
	postGuess.AddRespStructure(session.GuessResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postGuess.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postGuess)

	// POST /api/sessions/{id}/position
	postPosition, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{id}/position")
	postPosition.SetSummary("Share camera position")
	postPosition.AddReqStructure(PositionRequest{})
	postPosition.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	_ = r.AddOperation(postPosition)

	// POST /api/sessions/{id}/heartbeat
	postHeartbeat, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{id}/heartbeat")
	postHeartbeat.SetSummary("Presence heartbeat")
	postHeartbeat.SetDescription("Marks the player as active. Players silent past the liveness window are treated as gone.")
	postHeartbeat.AddReqStructure(playerRequest{})
	postHeartbeat.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	postHeartbeat.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postHeartbeat)

	// POST /api/sessions/{id}/leave
	postLeave, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{id}/leave")
	postLeave.SetSummary("Leave a session")
	postLeave.SetDescription("Removes the player. Remaining players receive a score bonus; an empty session is deleted.")
	postLeave.AddReqStructure(playerRequest{})
	postLeave.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	_ = r.AddOperation(postLeave)

	// GET /api/sessions/{id}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{id}/events")
	getEvents.SetSummary("SSE session stream")
	getEvents.SetDescription("Server-Sent Events stream of session snapshots.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/sessions/{id}/ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{id}/ws")
	getWS.SetSummary("WebSocket session stream")
	getWS.SetDescription("Upgrades to a WebSocket carrying session snapshots out and heartbeats and position updates in. Pass userId as query parameter.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	// GET /api/leaderboard/{gameType}/{difficulty}
	getTop, _ := r.NewOperationContext(http.MethodGet, "/api/leaderboard/{gameType}/{difficulty}")
	getTop.SetSummary("Top scores")
	getTop.SetDescription("Returns the top entries for a game type and difficulty.")
	getTop.AddRespStructure([]leaderboard.Entry{}, openapi.WithHTTPStatus(http.StatusOK))
	getTop.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getTop)

	// GET /api/users/{userID}
	getUser, _ := r.NewOperationContext(http.MethodGet, "/api/users/{userID}")
	getUser.SetSummary("User profile")
	getUser.SetDescription("Returns the user's aggregate stats and achievements.")
	getUser.AddRespStructure(leaderboard.User{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getUser)

	// PUT /api/users/{userID}/username
	putUsername, _ := r.NewOperationContext(http.MethodPut, "/api/users/{userID}/username")
	putUsername.SetSummary("Update username")
	putUsername.SetDescription("Renames the user on their profile and all leaderboard entries.")
	putUsername.AddReqStructure(UsernameRequest{})
	putUsername.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	putUsername.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(putUsername)

	// GET /api/users/{userID}/highscore/{gameType}/{difficulty}
	getHighScore, _ := r.NewOperationContext(http.MethodGet, "/api/users/{userID}/highscore/{gameType}/{difficulty}")
	getHighScore.SetSummary("Personal high score")
	getHighScore.AddRespStructure(HighScoreResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHighScore.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getHighScore)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
