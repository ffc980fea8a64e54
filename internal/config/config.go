package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/terraguess.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// Optional directory with the built web client.
	StaticDir string `env:"STATIC_DIR"`

	// Generative provider for location content.
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-pro"`

	// Gameplay. TotalRounds is configurable because source variants
	// disagree on the value.
	TotalRounds     int           `env:"TOTAL_ROUNDS" envDefault:"5"`
	PreviewDuration time.Duration `env:"PREVIEW_DURATION" envDefault:"30s"`
	RoundEndPause   time.Duration `env:"ROUND_END_PAUSE" envDefault:"5s"`
	CleanupDelay    time.Duration `env:"SESSION_CLEANUP_DELAY" envDefault:"5m"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
