package server

import (
	"database/sql"
	"log/slog"

	"github.com/terraguess/api/internal/leaderboard"
	"github.com/terraguess/api/internal/session"
	"github.com/terraguess/api/internal/store"
)

// Services bundles the domain dependencies the handlers draw on.
type Services struct {
	Log       *slog.Logger
	DB        *sql.DB
	Store     *store.DocStore
	Locations session.LocationSource
	Sessions  *session.Manager
	Presence  *session.Tracker
	Board     *leaderboard.Service
}
