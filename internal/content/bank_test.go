package content

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/terraguess/api/internal/database"
	"github.com/terraguess/api/internal/migrations"
	"github.com/terraguess/api/internal/store"
)

type fakeProvider struct {
	response string
	err      error
	calls    int
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.response, f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.DocStore {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return store.New(db)
}

// batchResponse builds a provider response with n valid landmarks at
// distinct coordinates.
func batchResponse(n int) string {
	var items []string
	for i := 0; i < n; i++ {
		items = append(items, landmark(
			fmt.Sprintf("Landmark Number %d", i),
			48.100000+float64(i)*0.01,
			2.200000+float64(i)*0.01,
		))
	}
	return "[" + strings.Join(items, ",") + "]"
}

func TestGenerateBatchDropsInvalid(t *testing.T) {
	st := newTestStore(t)
	bad := landmark("Atlantis Palace", 48.123456, 2.123456)
	bad = strings.Replace(bad, `"France"`, `"Atlantis"`, 1)
	provider := &fakeProvider{response: "[" + landmark("Eiffel Tower", 48.858370, 2.294481) + "," + bad + "]"}
	bank := NewBank(st, provider, NewHistory(st, discard()), discard())

	locations, err := bank.GenerateBatch(context.Background(), GameTypeClassic)
	if err != nil {
		t.Fatalf("GenerateBatch: %v", err)
	}
	if len(locations) != 1 || locations[0].TargetLocation.Name != "Eiffel Tower" {
		t.Errorf("expected only the valid landmark, got %+v", locations)
	}
}

func TestGenerateBatchSkipsKnownLocations(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	provider := &fakeProvider{response: "[" + landmark("Eiffel Tower", 48.858370, 2.294481) + "]"}
	bank := NewBank(st, provider, NewHistory(st, discard()), discard())

	first, err := bank.GenerateBatch(ctx, GameTypeClassic)
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := bank.saveGlobal(ctx, GameTypeClassic, first); err != nil {
		t.Fatalf("save global: %v", err)
	}

	second, err := bank.GenerateBatch(ctx, GameTypeClassic)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("duplicate of banked location accepted: %+v", second)
	}
}

func TestGetBankReplenishes(t *testing.T) {
	st := newTestStore(t)
	provider := &fakeProvider{response: batchResponse(11)}
	bank := NewBank(st, provider, NewHistory(st, discard()), discard())

	locations, err := bank.GetBank(context.Background(), "u1", GameTypeClassic)
	if err != nil {
		t.Fatalf("GetBank: %v", err)
	}
	if len(locations) < minThreshold {
		t.Errorf("bank not replenished: %d locations", len(locations))
	}
	if provider.calls == 0 {
		t.Error("provider never called for an empty bank")
	}

	var global bankDoc
	if err := st.Get(context.Background(), collGlobalBank, string(GameTypeClassic), &global); err != nil {
		t.Fatalf("global bank not persisted: %v", err)
	}
	seen := map[string]bool{}
	for _, loc := range global.Locations {
		if seen[loc.Key()] {
			t.Errorf("duplicate key in global bank: %s", loc.Key())
		}
		seen[loc.Key()] = true
	}
}

func TestSelectAndConsume(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	provider := &fakeProvider{response: batchResponse(11)}
	bank := NewBank(st, provider, NewHistory(st, discard()), discard())

	loc, err := bank.SelectAndConsume(ctx, "u1", GameTypeClassic)
	if err != nil {
		t.Fatalf("SelectAndConsume: %v", err)
	}
	if loc.TargetLocation.Name == "" {
		t.Fatal("empty location returned")
	}

	var user bankDoc
	if err := st.Get(ctx, collUserBanks, "u1_classic", &user); err != nil {
		t.Fatalf("user bank not persisted: %v", err)
	}
	for _, l := range user.Locations {
		if l.Key() == loc.Key() {
			t.Error("consumed location still in user bank")
		}
	}

	docs, err := st.Query(ctx, "locationHistory", store.Query{
		Filters: []store.Filter{{Path: "userId", Op: "==", Value: "u1"}},
	})
	if err != nil {
		t.Fatalf("history query: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(docs))
	}
}

func TestSelectAndConsumeUnavailable(t *testing.T) {
	st := newTestStore(t)
	provider := &fakeProvider{response: "[]"}
	bank := NewBank(st, provider, NewHistory(st, discard()), discard())

	_, err := bank.SelectAndConsume(context.Background(), "u1", GameTypeClassic)
	if err != ErrContentUnavailable {
		t.Errorf("expected ErrContentUnavailable, got %v", err)
	}
}

func TestHistoryWindow(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	h := NewHistory(st, discard())

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return base }

	loc := Location{TargetLocation: TargetLocation{Name: "Eiffel Tower", Lat: 48.858370, Lng: 2.294481}}
	if err := h.Record(ctx, "u1", GameTypeClassic, loc); err != nil {
		t.Fatalf("record: %v", err)
	}

	candidates := []Location{loc}
	tests := []struct {
		name     string
		at       time.Time
		excluded bool
	}{
		{"one second later", base.Add(time.Second), true},
		{"just inside the window", base.Add(30*24*time.Hour - time.Minute), true},
		{"just past the window", base.Add(30*24*time.Hour + time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.now = func() time.Time { return tt.at }
			got := h.Filter(ctx, "u1", GameTypeClassic, candidates)
			if excluded := len(got) == 0; excluded != tt.excluded {
				t.Errorf("at %v: excluded = %v, want %v", tt.at, excluded, tt.excluded)
			}
		})
	}
}

func TestHistoryScopedToUserAndGameType(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	h := NewHistory(st, discard())

	loc := Location{TargetLocation: TargetLocation{Name: "Eiffel Tower", Lat: 48.858370, Lng: 2.294481}}
	if err := h.Record(ctx, "u1", GameTypeClassic, loc); err != nil {
		t.Fatalf("record: %v", err)
	}

	if got := h.Filter(ctx, "u2", GameTypeClassic, []Location{loc}); len(got) != 1 {
		t.Error("another user's history leaked into filtering")
	}
	if got := h.Filter(ctx, "u1", GameTypeHiddenGems, []Location{loc}); len(got) != 1 {
		t.Error("another game type's history leaked into filtering")
	}
}
