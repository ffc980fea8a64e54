// Package session implements the multiplayer game session state
// machine: matchmaking, joining, host-driven round progression,
// guessing, presence tracking and disconnect compensation. All state
// lives in the document store; clients observe it via subscriptions.
package session

import (
	"time"

	"github.com/terraguess/api/internal/content"
	"github.com/terraguess/api/internal/geo"
	"github.com/terraguess/api/internal/store"
)

const Collection = "gameSessions"

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// GameState is the fine-grained phase within a session.
type GameState string

const (
	StateSelectDifficulty GameState = "selectDifficulty"
	StateShowInstructions GameState = "showInstructions"
	StateWaiting          GameState = "waiting"
	StatePreview          GameState = "preview"
	StatePlaying          GameState = "playing"
	StateRoundEnd         GameState = "round_end"
	StateGameEnd          GameState = "game_end"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return true
	}
	return false
}

// CameraParams are the per-difficulty gameplay parameters: round length
// in seconds and the 3D camera setup.
type CameraParams struct {
	Time     int     `json:"time"`
	Altitude float64 `json:"altitude"`
	Tilt     float64 `json:"tilt"`
	Range    float64 `json:"range"`
}

// PreviewParams applies uniformly during the preview phase regardless
// of difficulty.
var PreviewParams = CameraParams{Time: 90, Altitude: 1000, Tilt: 45, Range: 2000}

// ParamsFor returns the gameplay parameters for a difficulty. Unknown
// values fall back to easy.
func ParamsFor(d Difficulty) CameraParams {
	switch d {
	case DifficultyNormal:
		return CameraParams{Time: 60, Altitude: 100, Tilt: 95, Range: 50}
	case DifficultyHard:
		return CameraParams{Time: 45, Altitude: 100, Tilt: 95, Range: 30}
	default:
		return CameraParams{Time: 90, Altitude: 1000, Tilt: 45, Range: 2000}
	}
}

// Guess is a player's accepted guess for the current round.
type Guess struct {
	Position geo.LatLng `json:"position"`
	Score    int        `json:"score"`
	Distance float64    `json:"distance"`
}

type Player struct {
	ID         string      `json:"id"`
	Username   string      `json:"username"`
	Ready      bool        `json:"ready"`
	Score      int         `json:"score"`
	LastActive string      `json:"lastActive"`
	JoinedAt   string      `json:"joinedAt"`
	Position   *geo.LatLng `json:"position,omitempty"`
	LastGuess  *Guess      `json:"lastGuess,omitempty"`

	// GuessCount and FastestGuess accumulate over the whole game and
	// feed accuracy and speed achievements at game end.
	GuessCount   int     `json:"guessCount,omitempty"`
	FastestGuess float64 `json:"fastestGuess,omitempty"`
}

// Session is the shared multiplayer game record. The host drives all
// phase transitions; other players only mutate their own entry under
// players.
type Session struct {
	ID             string                  `json:"id,omitempty"`
	Status         Status                  `json:"status"`
	GameState      GameState               `json:"gameState"`
	Players        map[string]*Player      `json:"players"`
	PlayerCount    int                     `json:"playerCount"`
	MaxPlayers     int                     `json:"maxPlayers"`
	CurrentRound   int                     `json:"currentRound"`
	TotalRounds    int                     `json:"totalRounds"`
	TargetLocation *content.TargetLocation `json:"targetLocation,omitempty"`
	Country        string                  `json:"country,omitempty"`
	CountryBounds  *geo.Bounds             `json:"countryBounds,omitempty"`
	StartPosition  *geo.LatLng             `json:"startPosition,omitempty"`
	ShareCode      string                  `json:"shareCode,omitempty"`
	Difficulty     Difficulty              `json:"difficulty,omitempty"`
	GameType       content.GameType        `json:"gameType"`
	IsQuickPlay    bool                    `json:"isQuickPlay"`
	Host           string                  `json:"host"`
	PlayerLeft     string                  `json:"playerLeft,omitempty"`
	RoundStartTime int64                   `json:"roundStartTime,omitempty"`
	CreatedAt      string                  `json:"createdAt"`
	UpdatedAt      string                  `json:"updatedAt"`
}

// ActivePlayers returns the players whose lastActive falls within the
// liveness window ending at now.
func (s *Session) ActivePlayers(now time.Time, window time.Duration) []*Player {
	var active []*Player
	for _, p := range s.Players {
		if p == nil {
			continue
		}
		last, err := store.ParseTime(p.LastActive)
		if err != nil {
			continue
		}
		if now.Sub(last) < window {
			active = append(active, p)
		}
	}
	return active
}
