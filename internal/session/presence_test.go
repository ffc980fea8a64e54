package session

import (
	"context"
	"testing"
	"time"

	"github.com/terraguess/api/internal/content"
	"github.com/terraguess/api/internal/store"
)

func TestHeartbeatRefreshesLastActive(t *testing.T) {
	m, st := newManager(t, testConfig())
	ctx := context.Background()

	id, _, _ := m.Create(ctx, "u1", "alice", 2, DifficultyNormal, content.GameTypeClassic, false)

	stale := store.FormatTime(time.Now().Add(-time.Hour))
	if err := st.Update(ctx, Collection, id, map[string]any{"players.u1.lastActive": stale}); err != nil {
		t.Fatalf("update: %v", err)
	}

	tracker := NewTracker(st, discard())
	if err := tracker.Heartbeat(ctx, id, "u1"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	s, _ := m.Get(ctx, id)
	last, err := store.ParseTime(s.Players["u1"].LastActive)
	if err != nil {
		t.Fatalf("parse lastActive: %v", err)
	}
	if time.Since(last) > time.Minute {
		t.Errorf("lastActive not refreshed: %v", last)
	}
}

func TestActivePlayersWindow(t *testing.T) {
	now := time.Now()
	s := Session{Players: map[string]*Player{
		"fresh": {ID: "fresh", LastActive: store.FormatTime(now.Add(-5 * time.Second))},
		"edge":  {ID: "edge", LastActive: store.FormatTime(now.Add(-29 * time.Second))},
		"stale": {ID: "stale", LastActive: store.FormatTime(now.Add(-31 * time.Second))},
		"bad":   {ID: "bad", LastActive: "garbage"},
	}}

	active := s.ActivePlayers(now, LivenessWindow)
	ids := map[string]bool{}
	for _, p := range active {
		ids[p.ID] = true
	}
	if !ids["fresh"] || !ids["edge"] {
		t.Errorf("live players missing from active set: %v", ids)
	}
	if ids["stale"] || ids["bad"] {
		t.Errorf("dead players in active set: %v", ids)
	}
}

func TestSelfHealRemovesStalePlayers(t *testing.T) {
	m, st := newManager(t, testConfig())
	ctx := context.Background()

	id, _, _ := m.Create(ctx, "u1", "alice", 2, DifficultyNormal, content.GameTypeClassic, false)
	if err := m.Join(ctx, id, "u2", "bob"); err != nil {
		t.Fatalf("join: %v", err)
	}

	stale := store.FormatTime(time.Now().Add(-time.Minute))
	if err := st.Update(ctx, Collection, id, map[string]any{"players.u2.lastActive": stale}); err != nil {
		t.Fatalf("update: %v", err)
	}

	tracker := NewTracker(st, discard())
	healed, err := tracker.SelfHeal(ctx, id)
	if err != nil {
		t.Fatalf("self heal: %v", err)
	}
	if !healed {
		t.Fatal("expected a correction to be written")
	}

	s, _ := m.Get(ctx, id)
	if _, in := s.Players["u2"]; in {
		t.Error("stale player still present")
	}
	if s.PlayerCount != 1 {
		t.Errorf("playerCount = %d, want 1", s.PlayerCount)
	}

	// Idempotent: a second pass sees nothing to fix.
	healed, err = tracker.SelfHeal(ctx, id)
	if err != nil {
		t.Fatalf("second self heal: %v", err)
	}
	if healed {
		t.Error("second heal should be a no-op")
	}
}
