package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/cityfinder/internal/auth"
	"github.com/playperu/cityfinder/internal/catalog"
	"github.com/playperu/cityfinder/internal/config"
	"github.com/playperu/cityfinder/internal/database"
	"github.com/playperu/cityfinder/internal/handler/health"
	"github.com/playperu/cityfinder/internal/leaderboard"
	"github.com/playperu/cityfinder/internal/metrics"
	"github.com/playperu/cityfinder/internal/migrations"
	"github.com/playperu/cityfinder/internal/server"
	"github.com/playperu/cityfinder/internal/wiki"
)

const (
	janitorInterval = time.Minute
	fetchTimeout    = 30 * time.Second
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

	// --- Cities ---
	cat, err := loadCatalog(ctx, cfg)
	if err != nil {
		return fmt.Errorf("loading cities: %w", err)
	}
	logger.Info("loaded city catalog", "cities", cat.Len())

	checks := map[string]health.Checker{
		"catalog": health.CheckerFunc(func(context.Context) error {
			if cat.Len() == 0 {
				return fmt.Errorf("catalog is empty")
			}
			return nil
		}),
	}

	// --- Leaderboard ---
	var store leaderboard.Store
	switch cfg.LeaderboardBackend {
	case config.BackendPostgres:
		pool, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		pg := leaderboard.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("creating leaderboard schema: %w", err)
		}
		store = pg
		checks["postgres"] = health.CheckerFunc(pool.Ping)
		logger.Info("connected to postgres")
	default:
		db, err := database.Open(ctx, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("connecting to sqlite: %w", err)
		}
		defer db.Close()

		if err := migrations.Run(ctx, db, logger); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		store = leaderboard.NewSQLiteStore(db)
		checks["sqlite"] = health.CheckerFunc(db.PingContext)
		logger.Info("connected to sqlite", "path", cfg.DBPath)
	}

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps := server.Deps{
		Logger:      logger,
		Catalog:     cat,
		Store:       store,
		Metrics:     metrics.New(reg),
		Gatherer:    reg,
		Checks:      checks,
		Tick:        cfg.TickInterval,
		Retention:   cfg.RoundRetention,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
	}
	if cfg.JWTSecret != "" {
		deps.Verifier = auth.NewVerifier(cfg.JWTSecret)
	} else {
		logger.Warn("JWT_SECRET not set, leaderboard submissions are disabled")
	}
	if !cfg.WikiDisabled {
		deps.Wiki = wiki.New(cfg.WikiBaseURL, wiki.WithLogger(logger))
	}
	if cfg.SPADir != "" {
		if info, err := os.Stat(cfg.SPADir); err == nil && info.IsDir() {
			deps.SPA = os.DirFS(cfg.SPADir)
		}
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, deps)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return srv.RunJanitor(gctx, janitorInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

// loadCatalog prefers the hosted dataset when CITIES_URL is set.
func loadCatalog(ctx context.Context, cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CitiesURL == "" {
		return catalog.LoadFile(cfg.CitiesPath)
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	return catalog.LoadURL(ctx, &http.Client{Timeout: fetchTimeout}, cfg.CitiesURL)
}
