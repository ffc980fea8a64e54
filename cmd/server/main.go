package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/terraguess/api/internal/config"
	"github.com/terraguess/api/internal/content"
	"github.com/terraguess/api/internal/database"
	"github.com/terraguess/api/internal/leaderboard"
	"github.com/terraguess/api/internal/migrations"
	"github.com/terraguess/api/internal/server"
	"github.com/terraguess/api/internal/session"
	"github.com/terraguess/api/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	docs := store.New(db)

	// --- Content ---
	provider := content.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	history := content.NewHistory(docs, logger)
	bank := content.NewBank(docs, provider, history, logger)

	// --- Game services ---
	board := leaderboard.New(docs, logger)
	presence := session.NewTracker(docs, logger)
	sessions := session.NewManager(docs, bank, presence, board, session.Config{
		TotalRounds:     cfg.TotalRounds,
		PreviewDuration: cfg.PreviewDuration,
		RoundEndPause:   cfg.RoundEndPause,
		CleanupDelay:    cfg.CleanupDelay,
	}, logger)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Services{
		Log:       logger,
		DB:        db,
		Store:     docs,
		Locations: bank,
		Sessions:  sessions,
		Presence:  presence,
		Board:     board,
	}, cfg.StaticDir)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}
