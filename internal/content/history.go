package content

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/terraguess/api/internal/store"
)

// historyWindow is how long a played location stays excluded for a
// user and game type.
const historyWindow = 30 * 24 * time.Hour

type historyEntry struct {
	UserID      string `json:"userId"`
	GameType    string `json:"gameType"`
	LocationKey string `json:"locationKey"`
	Timestamp   string `json:"timestamp"`
}

// History records played locations and filters them out of candidate
// lists for a rolling window. Entries are never deleted; expiry happens
// lazily through the time-bounded query predicate.
type History struct {
	store *store.DocStore
	log   *slog.Logger
	now   func() time.Time
}

func NewHistory(st *store.DocStore, log *slog.Logger) *History {
	return &History{store: st, log: log, now: time.Now}
}

// Record appends a play entry for the location.
func (h *History) Record(ctx context.Context, userID string, gameType GameType, loc Location) error {
	_, err := h.store.Add(ctx, "locationHistory", historyEntry{
		UserID:      userID,
		GameType:    string(gameType),
		LocationKey: loc.Key(),
		Timestamp:   store.FormatTime(h.now()),
	})
	return err
}

// Filter drops candidates the user has played within the history
// window. A failing history query degrades to no filtering rather than
// blocking the game.
func (h *History) Filter(ctx context.Context, userID string, gameType GameType, candidates []Location) []Location {
	cutoff := store.FormatTime(h.now().Add(-historyWindow))
	docs, err := h.store.Query(ctx, "locationHistory", store.Query{
		Filters: []store.Filter{
			{Path: "userId", Op: "==", Value: userID},
			{Path: "gameType", Op: "==", Value: string(gameType)},
			{Path: "timestamp", Op: ">=", Value: cutoff},
		},
	})
	if err != nil {
		h.log.Error("querying location history", slog.String("error", err.Error()))
		return candidates
	}

	played := make(map[string]bool, len(docs))
	for _, d := range docs {
		var e historyEntry
		if err := json.Unmarshal(d.Data, &e); err != nil {
			continue
		}
		played[e.LocationKey] = true
	}

	out := candidates[:0:0]
	for _, loc := range candidates {
		if !played[loc.Key()] {
			out = append(out, loc)
		}
	}
	return out
}
