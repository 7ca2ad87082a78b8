package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"github.com/playperu/cityfinder/internal/auth"
	"github.com/playperu/cityfinder/internal/cityfinder"
	"github.com/playperu/cityfinder/internal/handler/health"
	"github.com/playperu/cityfinder/internal/leaderboard"
	"github.com/playperu/cityfinder/internal/metrics"
	"github.com/playperu/cityfinder/internal/round"
)

// Catalog is the city source rounds draw from.
type Catalog interface {
	round.Picker
	Countries() []string
	Count(f cityfinder.DifficultyFilter) int
}

// Deps are the collaborators the HTTP surface is built from. Verifier, Wiki,
// Gatherer and SPA are optional.
type Deps struct {
	Logger   *slog.Logger
	Catalog  Catalog
	Store    leaderboard.Store
	Verifier *auth.Verifier
	Wiki     InfoLookup
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Checks   map[string]health.Checker
	SPA      fs.FS

	Tick        time.Duration
	Retention   time.Duration
	CORSOrigins []string
	RateLimit   float64
	RateBurst   int
}

type Server struct {
	srv      *http.Server
	logger   *slog.Logger
	registry *Registry
}

func New(addr string, d Deps) *Server {
	broker := NewBroker()
	reg := NewRegistry(d.Catalog, d.Store, broker, d.Metrics, d.Logger, d.Tick, d.Retention)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(d.Logger, d.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	addRoutes(r, d, reg, broker)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger:   d.Logger,
		registry: reg,
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// RunJanitor sweeps idle and finished rounds until ctx is done.
func (s *Server) RunJanitor(ctx context.Context, interval time.Duration) error {
	return s.registry.RunJanitor(ctx, interval)
}

func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and abandons every active round.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	s.registry.Close()
	return err
}
