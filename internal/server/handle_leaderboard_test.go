package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/terraguess/api/internal/achievement"
	"github.com/terraguess/api/internal/leaderboard"
)

func TestLeaderboardTop(t *testing.T) {
	r, svc := newTestRouter(t)
	ctx := context.Background()

	svc.Board.AddScore(ctx, "u1", "alice", "classic", "normal", 800)
	svc.Board.AddScore(ctx, "u2", "bob", "classic", "normal", 1200)
	svc.Board.AddScore(ctx, "u3", "carol", "hiddenGems", "normal", 500)

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard/classic/normal", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var entries []leaderboard.Entry
	json.NewDecoder(w.Body).Decode(&entries)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].UserID != "u2" || entries[1].UserID != "u1" {
		t.Errorf("wrong ordering: %+v", entries)
	}
}

func TestLeaderboardTopEmpty(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard/classic/hard", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	// Empty board is an empty array, never null.
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestLeaderboardBadMode(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, path := range []string{
		"/api/leaderboard/speedrun/normal",
		"/api/leaderboard/classic/extreme",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestHighScoreEndpoint(t *testing.T) {
	r, svc := newTestRouter(t)

	svc.Board.AddScore(context.Background(), "u1", "alice", "classic", "easy", 650)

	req := httptest.NewRequest(http.MethodGet, "/api/users/u1/highscore/classic/easy", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp HighScoreResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Score != 650 {
		t.Errorf("score = %d, want 650", resp.Score)
	}

	// Unknown users report zero rather than erroring.
	req = httptest.NewRequest(http.MethodGet, "/api/users/nobody/highscore/classic/easy", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp = HighScoreResponse{}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Score != 0 {
		t.Errorf("score = %d, want 0", resp.Score)
	}
}

func TestUserProfileAndUsername(t *testing.T) {
	r, svc := newTestRouter(t)

	svc.Board.AddScore(context.Background(), "u1", "alice", "classic", "normal", 400)

	body, _ := json.Marshal(UsernameRequest{Username: "  wanderer  "})
	req := httptest.NewRequest(http.MethodPut, "/api/users/u1/username", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("rename: expected 204, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/users/u1", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d", w.Code)
	}
	var u leaderboard.User
	json.NewDecoder(w.Body).Decode(&u)
	if u.Username != "wanderer" {
		t.Errorf("username = %q, want trimmed rename", u.Username)
	}

	body, _ = json.Marshal(UsernameRequest{Username: "   "})
	req = httptest.NewRequest(http.MethodPut, "/api/users/u1/username", bytes.NewReader(body))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank rename: expected 400, got %d", w.Code)
	}
}

func TestAchievementCheck(t *testing.T) {
	r, _ := newTestRouter(t)

	body, _ := json.Marshal(AchievementCheckRequest{
		Score:       1000,
		GamesPlayed: 1,
		Accuracy:    100,
		FastestTime: 5,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/achievements/check", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp AchievementCheckResponse
	json.NewDecoder(w.Body).Decode(&resp)

	want := map[string]bool{"score_1000": true, "accuracy_90": true, "speed_10": true}
	for id := range want {
		found := false
		for _, got := range resp.Achievements {
			if got == id {
				found = true
			}
		}
		if !found {
			t.Errorf("missing %s in %v", id, resp.Achievements)
		}
	}

	// No guess means no speed achievement.
	body, _ = json.Marshal(AchievementCheckRequest{Score: 100, GamesPlayed: 1})
	req = httptest.NewRequest(http.MethodPost, "/api/achievements/check", bytes.NewReader(body))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	resp = AchievementCheckResponse{}
	json.NewDecoder(w.Body).Decode(&resp)
	for _, got := range resp.Achievements {
		if got == "speed_10" {
			t.Error("speed achievement earned without a guess time")
		}
	}
}

func TestAchievementsCatalogue(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/achievements", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got []achievement.Achievement
	json.NewDecoder(w.Body).Decode(&got)
	if len(got) != len(achievement.Catalogue) {
		t.Errorf("catalogue length = %d, want %d", len(got), len(achievement.Catalogue))
	}
}
