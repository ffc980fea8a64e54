package leaderboard

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/terraguess/api/internal/database"
	"github.com/terraguess/api/internal/migrations"
	"github.com/terraguess/api/internal/store"
)

func newService(t *testing.T) *Service {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return New(store.New(db), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAddScoreKeepsMax(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	if err := s.AddScore(ctx, "u1", "alice", "classic", "normal", 800); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddScore(ctx, "u1", "alice", "classic", "normal", 500); err != nil {
		t.Fatalf("add lower: %v", err)
	}

	entries, err := s.Top(ctx, "classic", "normal")
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(entries) != 1 || entries[0].Score != 800 {
		t.Errorf("expected single entry with 800, got %+v", entries)
	}

	if err := s.AddScore(ctx, "u1", "alice", "classic", "normal", 900); err != nil {
		t.Fatalf("add higher: %v", err)
	}
	score, err := s.HighScore(ctx, "u1", "classic", "normal")
	if err != nil || score != 900 {
		t.Errorf("HighScore = %d, %v; want 900", score, err)
	}
}

func TestTopOrderAndLimit(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		uid := string(rune('a' + i))
		if err := s.AddScore(ctx, uid, uid, "classic", "easy", 100*(i+1)); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	// Zero scores never appear.
	if err := s.AddScore(ctx, "zero", "zero", "classic", "easy", 0); err != nil {
		t.Fatalf("add zero: %v", err)
	}

	entries, err := s.Top(ctx, "classic", "easy")
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(entries))
	}
	if entries[0].Score != 1200 || entries[9].Score != 300 {
		t.Errorf("wrong ordering: first=%d last=%d", entries[0].Score, entries[9].Score)
	}
}

func TestTopScopedToMode(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	s.AddScore(ctx, "u1", "alice", "classic", "easy", 500)
	s.AddScore(ctx, "u2", "bob", "hiddenGems", "easy", 900)

	entries, err := s.Top(ctx, "classic", "easy")
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(entries) != 1 || entries[0].UserID != "u1" {
		t.Errorf("cross-mode leak: %+v", entries)
	}
}

func TestHighScoreFallsBackToLeaderboard(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	// Entry exists but the user profile lacks the stat.
	if err := s.store.Set(ctx, collLeaderboard, entryID("classic", "hard", "u9"), Entry{
		UserID: "u9", Username: "zoe", Score: 777, GameType: "classic", Difficulty: "hard",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	score, err := s.HighScore(ctx, "u9", "classic", "hard")
	if err != nil || score != 777 {
		t.Errorf("HighScore = %d, %v; want 777", score, err)
	}

	score, err = s.HighScore(ctx, "nobody", "classic", "hard")
	if err != nil || score != 0 {
		t.Errorf("HighScore for unknown user = %d, %v; want 0", score, err)
	}
}

func TestUpdateUsername(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	s.AddScore(ctx, "u1", "alice", "classic", "easy", 100)
	s.AddScore(ctx, "u1", "alice", "hiddenGems", "hard", 200)

	if err := s.UpdateUsername(ctx, "u1", "wanderer"); err != nil {
		t.Fatalf("update username: %v", err)
	}

	for _, mode := range [][2]string{{"classic", "easy"}, {"hiddenGems", "hard"}} {
		var e Entry
		if err := s.store.Get(ctx, collLeaderboard, entryID(mode[0], mode[1], "u1"), &e); err != nil {
			t.Fatalf("get entry: %v", err)
		}
		if e.Username != "wanderer" {
			t.Errorf("%s/%s username = %q", mode[0], mode[1], e.Username)
		}
	}

	u, err := s.GetUser(ctx, "u1")
	if err != nil || u.Username != "wanderer" {
		t.Errorf("profile username = %q, %v", u.Username, err)
	}
}

func TestRecordResult(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	newly, err := s.RecordResult(ctx, GameResult{
		UserID:       "u1",
		Username:     "alice",
		GameType:     "classic",
		Difficulty:   "normal",
		Score:        1200,
		TimeTaken:    240,
		Accuracy:     100,
		FastestGuess: 8,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !slices.Contains(newly, "score_1000") || !slices.Contains(newly, "accuracy_90") || !slices.Contains(newly, "speed_10") {
		t.Errorf("missing expected achievements: %v", newly)
	}
	if slices.Contains(newly, "games_10") {
		t.Errorf("games_10 earned after one game: %v", newly)
	}

	u, err := s.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.TotalGamesPlayed != 1 || u.Stats["classic"].GamesPlayed != 1 {
		t.Errorf("games played not incremented: %+v", u)
	}
	if u.Stats["classic"].BestTime != 240 || u.FastestGuess != 8 {
		t.Errorf("time aggregates wrong: %+v", u)
	}

	// The same accomplishments do not re-earn achievements.
	newly, err = s.RecordResult(ctx, GameResult{
		UserID: "u1", Username: "alice", GameType: "classic", Difficulty: "normal",
		Score: 1500, TimeTaken: 300, Accuracy: 95, FastestGuess: 12,
	})
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if len(newly) != 0 {
		t.Errorf("achievements re-earned: %v", newly)
	}

	u, _ = s.GetUser(ctx, "u1")
	if u.TotalGamesPlayed != 2 {
		t.Errorf("totalGamesPlayed = %d, want 2", u.TotalGamesPlayed)
	}
	if u.FastestGuess != 8 {
		t.Errorf("fastestGuess should keep the minimum, got %v", u.FastestGuess)
	}
}

func TestRecordResultNoGuesses(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	newly, err := s.RecordResult(ctx, GameResult{
		UserID: "u2", Username: "bob", GameType: "classic", Difficulty: "easy",
		Score: 0, TimeTaken: 90, Accuracy: 0, FastestGuess: 0,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if slices.Contains(newly, "speed_10") {
		t.Error("speed achievement earned without any guess")
	}
}
