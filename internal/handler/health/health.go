// Package health serves dependency checks for load balancers and operators.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const checkTimeout = 3 * time.Second

// Checker verifies that an infrastructure dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

type Result struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type Response struct {
	Status string            `json:"status"`
	Checks map[string]Result `json:"checks"`
}

type Handler struct {
	checks map[string]Checker
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger, checks map[string]Checker) *Handler {
	return &Handler{checks: checks, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.check)
	return r
}

// Run executes every check concurrently and reports whether all passed.
func (h *Handler) Run(ctx context.Context) (Response, bool) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		healthy = true
		resp    = Response{Status: "ok", Checks: make(map[string]Result, len(h.checks))}
	)

	var g errgroup.Group
	for name, c := range h.checks {
		g.Go(func() error {
			res := Result{Status: "ok"}
			if err := c.Check(ctx); err != nil {
				h.logger.Error("health check failed", "name", name, "error", err)
				res = Result{Status: "error", Error: err.Error()}
			}
			mu.Lock()
			resp.Checks[name] = res
			if res.Status != "ok" {
				healthy = false
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	if !healthy {
		resp.Status = "error"
	}
	return resp, healthy
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.Run(r.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
