// Package leaderboard keeps per-mode high scores and aggregate user
// stats, and awards achievements when a finished game pushes a stat
// over a threshold.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/terraguess/api/internal/achievement"
	"github.com/terraguess/api/internal/store"
)

const (
	collLeaderboard = "leaderboard"
	collUsers       = "users"

	topLimit = 10
)

// Entry is one leaderboard row, keyed {gameType}_{difficulty}_{userId}.
// The stored score only ever increases.
type Entry struct {
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	Score      int    `json:"score"`
	GameType   string `json:"gameType"`
	Difficulty string `json:"difficulty"`
	CreatedAt  string `json:"createdAt,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// ModeStats are a user's aggregates within one game type.
type ModeStats struct {
	Easy            int     `json:"easy,omitempty"`
	Normal          int     `json:"normal,omitempty"`
	Hard            int     `json:"hard,omitempty"`
	GamesPlayed     int     `json:"gamesPlayed,omitempty"`
	TotalTimePlayed float64 `json:"totalTimePlayed,omitempty"`
	BestTime        float64 `json:"bestTime,omitempty"`
}

// User is the persisted per-user profile document.
type User struct {
	Username           string               `json:"username,omitempty"`
	TotalScore         int                  `json:"totalScore,omitempty"`
	TotalGamesPlayed   int                  `json:"totalGamesPlayed,omitempty"`
	Stats              map[string]ModeStats `json:"stats,omitempty"`
	Achievements       []string             `json:"achievements,omitempty"`
	FastestGuess       float64              `json:"fastestGuess,omitempty"`
	HiddenGemsFound    int                  `json:"hiddenGemsFound,omitempty"`
	ContinentsExplored []string             `json:"continentsExplored,omitempty"`
	LastPlayed         string               `json:"lastPlayed,omitempty"`
}

// GameResult is one player's outcome of a finished game.
type GameResult struct {
	UserID          string
	Username        string
	GameType        string
	Difficulty      string
	Score           int
	TimeTaken       float64
	Accuracy        float64
	FastestGuess    float64 // seconds; 0 means no guess landed
	HiddenGemsFound int
}

type Service struct {
	store *store.DocStore
	log   *slog.Logger
	now   func() time.Time
}

func New(st *store.DocStore, log *slog.Logger) *Service {
	return &Service{store: st, log: log, now: time.Now}
}

func entryID(gameType, difficulty, userID string) string {
	return fmt.Sprintf("%s_%s_%s", gameType, difficulty, userID)
}

// AddScore records a score on the leaderboard, overwriting the stored
// entry only when the new score beats it, and folds the score into the
// user's profile.
func (s *Service) AddScore(ctx context.Context, userID, username, gameType, difficulty string, score int) error {
	now := store.FormatTime(s.now())
	err := s.store.Transaction(ctx, collLeaderboard, entryID(gameType, difficulty, userID), func(raw []byte) (any, error) {
		if raw == nil {
			return Entry{
				UserID:     userID,
				Username:   username,
				Score:      score,
				GameType:   gameType,
				Difficulty: difficulty,
				CreatedAt:  now,
				UpdatedAt:  now,
			}, nil
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		if score <= e.Score {
			return nil, errNoChange
		}
		e.Score = score
		e.Username = username
		e.UpdatedAt = now
		return e, nil
	})
	if err != nil && !errors.Is(err, errNoChange) {
		return err
	}

	return s.store.Merge(ctx, collUsers, userID, map[string]any{
		"username": username,
		fmt.Sprintf("stats.%s.%s", gameType, difficulty): score,
		"totalScore": store.Increment(score),
		"lastPlayed": now,
	})
}

// Top returns the best entries for a game type and difficulty, highest
// score first.
func (s *Service) Top(ctx context.Context, gameType, difficulty string) ([]Entry, error) {
	docs, err := s.store.Query(ctx, collLeaderboard, store.Query{
		Filters: []store.Filter{
			{Path: "gameType", Op: "==", Value: gameType},
			{Path: "difficulty", Op: "==", Value: difficulty},
			{Path: "score", Op: ">", Value: 0},
		},
		OrderBy: []store.Order{{Path: "score", Desc: true}},
		Limit:   topLimit,
	})
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(docs))
	for _, d := range docs {
		var e Entry
		if err := json.Unmarshal(d.Data, &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// HighScore returns the user's best score for a mode, preferring the
// profile stats and falling back to the leaderboard entry.
func (s *Service) HighScore(ctx context.Context, userID, gameType, difficulty string) (int, error) {
	var u User
	err := s.store.Get(ctx, collUsers, userID, &u)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}
	if err == nil {
		if score := modeScore(u.Stats[gameType], difficulty); score > 0 {
			return score, nil
		}
	}

	var e Entry
	err = s.store.Get(ctx, collLeaderboard, entryID(gameType, difficulty, userID), &e)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return e.Score, nil
}

// UpdateUsername rewrites the display name on the user's profile and
// every leaderboard entry they own.
func (s *Service) UpdateUsername(ctx context.Context, userID, username string) error {
	now := store.FormatTime(s.now())
	if err := s.store.Merge(ctx, collUsers, userID, map[string]any{"username": username}); err != nil {
		return err
	}

	docs, err := s.store.Query(ctx, collLeaderboard, store.Query{
		Filters: []store.Filter{{Path: "userId", Op: "==", Value: userID}},
	})
	if err != nil {
		return err
	}
	for _, d := range docs {
		err := s.store.Update(ctx, collLeaderboard, d.ID, map[string]any{
			"username":  username,
			"updatedAt": now,
		})
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	return nil
}

// GetUser loads a user profile; missing users come back zero-valued.
func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	var u User
	err := s.store.Get(ctx, collUsers, userID, &u)
	if errors.Is(err, store.ErrNotFound) {
		return User{}, nil
	}
	return u, err
}

// RecordResult folds one finished game into the leaderboard and the
// user's aggregates, then re-evaluates achievements against the new
// aggregates. Returns the ids of newly earned achievements.
func (s *Service) RecordResult(ctx context.Context, r GameResult) ([]string, error) {
	if err := s.AddScore(ctx, r.UserID, r.Username, r.GameType, r.Difficulty, r.Score); err != nil {
		return nil, err
	}

	var newly []string
	err := s.store.Transaction(ctx, collUsers, r.UserID, func(raw []byte) (any, error) {
		var u User
		if raw != nil {
			if err := json.Unmarshal(raw, &u); err != nil {
				return nil, err
			}
		}
		if u.Stats == nil {
			u.Stats = map[string]ModeStats{}
		}

		mode := u.Stats[r.GameType]
		mode.GamesPlayed++
		mode.TotalTimePlayed += r.TimeTaken
		if mode.BestTime == 0 || r.TimeTaken < mode.BestTime {
			mode.BestTime = r.TimeTaken
		}
		u.Stats[r.GameType] = mode

		u.TotalGamesPlayed++
		if r.FastestGuess > 0 && (u.FastestGuess == 0 || r.FastestGuess < u.FastestGuess) {
			u.FastestGuess = r.FastestGuess
		}
		u.HiddenGemsFound += r.HiddenGemsFound
		u.Username = r.Username
		u.LastPlayed = store.FormatTime(s.now())

		fastest := u.FastestGuess
		if fastest == 0 {
			fastest = math.MaxFloat64
		}
		earned := achievement.EvaluateIDs(achievement.Stats{
			Score:              r.Score,
			GamesPlayed:        u.TotalGamesPlayed,
			Accuracy:           r.Accuracy,
			FastestTime:        fastest,
			ContinentsExplored: u.ContinentsExplored,
			HiddenGemsFound:    u.HiddenGemsFound,
		})

		have := make(map[string]bool, len(u.Achievements))
		for _, id := range u.Achievements {
			have[id] = true
		}
		newly = newly[:0]
		for _, id := range earned {
			if !have[id] {
				newly = append(newly, id)
				u.Achievements = append(u.Achievements, id)
			}
		}
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	return newly, nil
}

func modeScore(m ModeStats, difficulty string) int {
	switch difficulty {
	case "easy":
		return m.Easy
	case "normal":
		return m.Normal
	case "hard":
		return m.Hard
	}
	return 0
}

var errNoChange = errors.New("no change")
