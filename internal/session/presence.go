package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/terraguess/api/internal/store"
)

const (
	// HeartbeatInterval is how often an active client refreshes its
	// lastActive stamp.
	HeartbeatInterval = 10 * time.Second

	// LivenessWindow is how long after the last heartbeat a player
	// still counts as present.
	LivenessWindow = 30 * time.Second
)

// Tracker maintains player presence: heartbeats write lastActive, and
// every snapshot reader may heal sessions whose stored player set has
// drifted from the liveness-filtered one.
type Tracker struct {
	store *store.DocStore
	log   *slog.Logger
	now   func() time.Time
}

func NewTracker(st *store.DocStore, log *slog.Logger) *Tracker {
	return &Tracker{store: st, log: log, now: time.Now}
}

// Heartbeat refreshes the player's lastActive stamp.
func (t *Tracker) Heartbeat(ctx context.Context, sessionID, userID string) error {
	now := store.FormatTime(t.now())
	return t.store.Update(ctx, Collection, sessionID, map[string]any{
		"players." + userID + ".lastActive": now,
		"updatedAt":                         now,
	})
}

// RunHeartbeat sends heartbeats for the player until ctx is cancelled.
// A heartbeat against a deleted session stops the loop.
func (t *Tracker) RunHeartbeat(ctx context.Context, sessionID, userID string) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := t.Heartbeat(ctx, sessionID, userID)
			if errors.Is(err, store.ErrNotFound) {
				return
			}
			if err != nil {
				t.log.Warn("heartbeat failed",
					slog.String("session", sessionID),
					slog.String("user", userID),
					slog.String("error", err.Error()))
			}
		}
	}
}

// SelfHeal drops players outside the liveness window from the stored
// session and corrects playerCount. The correction is idempotent:
// concurrent writers converge on the same filtered result, so it is
// safe for any snapshot reader to perform. Returns whether a
// correction was written.
func (t *Tracker) SelfHeal(ctx context.Context, sessionID string) (bool, error) {
	healed := false
	err := t.store.Transaction(ctx, Collection, sessionID, func(raw []byte) (any, error) {
		if raw == nil {
			return nil, store.ErrNotFound
		}
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}

		active := s.ActivePlayers(t.now(), LivenessWindow)
		if len(active) == len(s.Players) && s.PlayerCount == len(active) {
			healed = false
			return nil, errNoChange
		}

		players := make(map[string]*Player, len(active))
		for _, p := range active {
			players[p.ID] = p
		}
		s.Players = players
		s.PlayerCount = len(players)
		s.UpdatedAt = store.FormatTime(t.now())
		healed = true
		return &s, nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return healed, nil
}

// errNoChange aborts a transaction whose document needs no write.
var errNoChange = errors.New("no change")
