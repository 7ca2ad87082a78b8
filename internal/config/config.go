package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir   string     `env:"SPA_DIR"`

	LeaderboardBackend string `env:"LEADERBOARD_BACKEND" envDefault:"sqlite"`
	DBPath             string `env:"DB_PATH" envDefault:"data/leaderboard.db"`
	DatabaseURL        string `env:"DATABASE_URL"`

	CitiesPath string `env:"CITIES_PATH" envDefault:"data/cities.json"`
	CitiesURL  string `env:"CITIES_URL"`

	JWTSecret string `env:"JWT_SECRET"`

	TickInterval   time.Duration `env:"TICK_INTERVAL" envDefault:"100ms"`
	RoundRetention time.Duration `env:"ROUND_RETENTION" envDefault:"30m"`

	WikiBaseURL  string `env:"WIKI_BASE_URL" envDefault:"https://en.wikipedia.org"`
	WikiDisabled bool   `env:"WIKI_DISABLED"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	RateLimit   float64  `env:"RATE_LIMIT" envDefault:"20"`
	RateBurst   int      `env:"RATE_BURST" envDefault:"40"`
}

// Load reads a .env file from the working directory when one exists, then
// parses the environment. Variables already set win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	switch c.LeaderboardBackend {
	case BackendSQLite:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres leaderboard backend")
		}
	default:
		return fmt.Errorf("unknown LEADERBOARD_BACKEND %q", c.LeaderboardBackend)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive, got %s", c.TickInterval)
	}
	if c.CitiesPath == "" && c.CitiesURL == "" {
		return errors.New("one of CITIES_PATH or CITIES_URL is required")
	}
	return nil
}
