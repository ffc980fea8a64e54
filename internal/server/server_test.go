package server

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terraguess/api/internal/content"
	"github.com/terraguess/api/internal/database"
	"github.com/terraguess/api/internal/geo"
	"github.com/terraguess/api/internal/leaderboard"
	"github.com/terraguess/api/internal/migrations"
	"github.com/terraguess/api/internal/session"
	"github.com/terraguess/api/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubLocations struct {
	loc content.Location
	err error
}

func (s stubLocations) SelectAndConsume(_ context.Context, _ string, _ content.GameType) (content.Location, error) {
	if s.err != nil {
		return content.Location{}, s.err
	}
	return s.loc, nil
}

func testLocation() content.Location {
	return content.Location{
		TargetLocation: content.TargetLocation{
			Lat:         48.858370,
			Lng:         2.294481,
			Name:        "Eiffel Tower",
			Description: "Iron lattice tower on the Champ de Mars in Paris.",
		},
		StartLocation: geo.LatLng{Lat: 48.83, Lng: 2.27},
		Country:       "France",
		CountryBounds: geo.Bounds{North: 51.1, South: 41.3, East: 9.6, West: -5.1},
		ViewPosition:  geo.LatLng{Lat: 48.8590, Lng: 2.2950},
	}
}

func newTestRouter(t *testing.T) (*chi.Mux, Services) {
	t.Helper()

	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	logger := discardLogger()
	docs := store.New(db)
	board := leaderboard.New(docs, logger)
	presence := session.NewTracker(docs, logger)
	sessions := session.NewManager(docs, stubLocations{loc: testLocation()}, presence, board, session.Config{
		TotalRounds:     2,
		PreviewDuration: 10 * time.Millisecond,
		RoundEndPause:   10 * time.Millisecond,
		CleanupDelay:    time.Hour,
	}, logger)

	svc := Services{
		Log:       logger,
		DB:        db,
		Store:     docs,
		Locations: stubLocations{loc: testLocation()},
		Sessions:  sessions,
		Presence:  presence,
		Board:     board,
	}

	r := chi.NewRouter()
	addRoutes(r, logger, svc, "")
	return r, svc
}
