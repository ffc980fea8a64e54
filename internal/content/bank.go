package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/terraguess/api/internal/geo"
	"github.com/terraguess/api/internal/store"
)

// ErrContentUnavailable means no playable location could be produced
// even after replenishment. Callers retry the high-level operation.
var ErrContentUnavailable = errors.New("no locations available")

const (
	collGlobalBank = "globalLocationBank"
	collUserBanks  = "locationBanks"
)

type bankDoc struct {
	Locations   []Location `json:"locations"`
	LastUpdated string     `json:"lastUpdated"`
}

// Bank manages the global and per-user location pools: replenishment
// from the provider, identity-key deduplication, history exclusion and
// random consumption.
type Bank struct {
	store    *store.DocStore
	provider Provider
	history  *History
	log      *slog.Logger
	rng      *rand.Rand
	now      func() time.Time
}

func NewBank(st *store.DocStore, provider Provider, history *History, log *slog.Logger) *Bank {
	return &Bank{
		store:    st,
		provider: provider,
		history:  history,
		log:      log,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// GenerateBatch asks the provider for a batch of candidates and
// returns the ones that validate and are not already in the global
// bank. Invalid candidates are dropped individually; an unparseable
// response rejects the whole batch.
func (b *Bank) GenerateBatch(ctx context.Context, gameType GameType) ([]Location, error) {
	raw, err := b.provider.Generate(ctx, PromptFor(gameType))
	if err != nil {
		return nil, fmt.Errorf("generating locations: %w", err)
	}
	candidates, err := parseBatch(raw)
	if err != nil {
		return nil, err
	}

	existing := map[string]bool{}
	var global bankDoc
	err = b.store.Get(ctx, collGlobalBank, string(gameType), &global)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	for _, loc := range global.Locations {
		existing[loc.Key()] = true
	}

	var out []Location
	for _, c := range candidates {
		if !validate(c) {
			b.log.Debug("dropping invalid candidate", slog.String("name", c.Name))
			continue
		}
		key, err := c.key()
		if err != nil || existing[key] {
			continue
		}
		existing[key] = true
		out = append(out, b.toLocation(c))
	}
	b.log.Info("generated location batch",
		slog.String("gameType", string(gameType)),
		slog.Int("candidates", len(candidates)),
		slog.Int("accepted", len(out)))
	return out, nil
}

// toLocation finalizes a validated candidate with derived start and
// view positions.
func (b *Bank) toLocation(c candidate) Location {
	point, bounds, _ := c.coords()
	return Location{
		TargetLocation: TargetLocation{
			Lat:         point.Lat,
			Lng:         point.Lng,
			Name:        c.Name,
			Description: c.Description,
		},
		StartLocation: geo.StartPosition(b.rng, point, bounds),
		Country:       c.Country,
		CountryBounds: bounds,
		ViewPosition:  geo.ViewPosition(b.rng, point, bounds),
		LocationInfo: LocationInfo{
			Facts:                  c.Facts,
			HistoricalSignificance: c.HistoricalSignificance,
			CulturalSignificance:   c.CulturalSignificance,
			LocationType:           c.LocationType,
			Address:                c.Address,
		},
	}
}

// GetBank returns the user's current playable pool: the deduplicated
// global bank minus recently played locations, topped up from the
// provider whenever it runs below the minimum threshold. The refreshed
// pool is persisted as the user's bank.
func (b *Bank) GetBank(ctx context.Context, userID string, gameType GameType) ([]Location, error) {
	var global bankDoc
	err := b.store.Get(ctx, collGlobalBank, string(gameType), &global)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	globalLocations := dedupe(global.Locations)

	if len(globalLocations) < minThreshold {
		fresh, err := b.GenerateBatch(ctx, gameType)
		if err != nil {
			return nil, err
		}
		globalLocations = dedupe(append(globalLocations, fresh...))
		if err := b.saveGlobal(ctx, gameType, globalLocations); err != nil {
			return nil, err
		}
	}

	available := b.history.Filter(ctx, userID, gameType, globalLocations)

	if len(available) < minThreshold {
		fresh, err := b.GenerateBatch(ctx, gameType)
		if err != nil {
			return nil, err
		}
		available = append(available, b.history.Filter(ctx, userID, gameType, fresh)...)
		globalLocations = dedupe(append(globalLocations, fresh...))
		if err := b.saveGlobal(ctx, gameType, globalLocations); err != nil {
			return nil, err
		}
	}

	if err := b.saveUser(ctx, userID, gameType, available); err != nil {
		return nil, err
	}
	return available, nil
}

// SelectAndConsume picks one location uniformly at random from the
// user's pool, removes it, records the play in history and returns it.
func (b *Bank) SelectAndConsume(ctx context.Context, userID string, gameType GameType) (Location, error) {
	locations, err := b.GetBank(ctx, userID, gameType)
	if err != nil {
		return Location{}, err
	}
	if len(locations) == 0 {
		return Location{}, ErrContentUnavailable
	}

	i := b.rng.Intn(len(locations))
	selected := locations[i]
	locations = append(locations[:i], locations[i+1:]...)

	if err := b.saveUser(ctx, userID, gameType, locations); err != nil {
		return Location{}, err
	}
	if err := b.history.Record(ctx, userID, gameType, selected); err != nil {
		b.log.Error("recording location history", slog.String("error", err.Error()))
	}
	return selected, nil
}

func (b *Bank) saveGlobal(ctx context.Context, gameType GameType, locations []Location) error {
	return b.store.Set(ctx, collGlobalBank, string(gameType), bankDoc{
		Locations:   locations,
		LastUpdated: store.FormatTime(b.now()),
	})
}

func (b *Bank) saveUser(ctx context.Context, userID string, gameType GameType, locations []Location) error {
	id := fmt.Sprintf("%s_%s", userID, gameType)
	return b.store.Set(ctx, collUserBanks, id, bankDoc{
		Locations:   locations,
		LastUpdated: store.FormatTime(b.now()),
	})
}

// dedupe keeps the first location per identity key.
func dedupe(locations []Location) []Location {
	seen := make(map[string]bool, len(locations))
	out := locations[:0:0]
	for _, loc := range locations {
		key := loc.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, loc)
	}
	return out
}
