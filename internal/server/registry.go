package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/cityfinder/internal/cityfinder"
	"github.com/playperu/cityfinder/internal/leaderboard"
	"github.com/playperu/cityfinder/internal/metrics"
	"github.com/playperu/cityfinder/internal/round"
)

// session is an active round held by the registry.
type session struct {
	id      string
	round   *round.Round
	handles *leaderboard.Handles

	mu       sync.Mutex
	lastSeen time.Time
	finished time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) markFinished(now time.Time) {
	s.mu.Lock()
	if s.finished.IsZero() {
		s.finished = now
	}
	s.mu.Unlock()
}

// Registry holds the in-process rounds keyed by id. Finished rounds are
// evicted after the retention window and idle rounds are abandoned.
type Registry struct {
	picker    round.Picker
	store     leaderboard.Store
	broker    *Broker
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tick      time.Duration
	retention time.Duration
	now       func() time.Time

	mu     sync.RWMutex
	rounds map[string]*session
}

func NewRegistry(picker round.Picker, store leaderboard.Store, broker *Broker, m *metrics.Metrics, logger *slog.Logger, tick, retention time.Duration) *Registry {
	return &Registry{
		picker:    picker,
		store:     store,
		broker:    broker,
		metrics:   m,
		logger:    logger,
		tick:      tick,
		retention: retention,
		now:       time.Now,
		rounds:    make(map[string]*session),
	}
}

// Create starts a round under f and begins its clock.
func (r *Registry) Create(ctx context.Context, f cityfinder.DifficultyFilter) (*session, error) {
	s := &session{
		id:       uuid.NewString(),
		handles:  leaderboard.NewHandles(r.store),
		lastSeen: r.now(),
	}

	rd, err := round.New(r.picker, f,
		round.WithTick(r.tick),
		round.WithLogger(r.logger.With("round_id", s.id)),
		round.WithObserver(func(ev round.Event) {
			r.broker.Publish(s.id, ev)
			r.metrics.ObserveRound(ev)
			if isTerminal(ev.Type) {
				s.markFinished(r.now())
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	s.round = rd

	if err := rd.Start(ctx); err != nil {
		return nil, err
	}
	// The clock outlives the creating request; it stops on completion or abandon.
	rd.RunClock(context.Background())

	r.mu.Lock()
	r.rounds[s.id] = s
	n := len(r.rounds)
	r.mu.Unlock()

	r.metrics.RoundStarted()
	r.metrics.SetActiveRounds(n)
	r.logger.Info("round created", "round_id", s.id, "cities", f.Cities, "min_pop", f.MinPopulation)
	return s, nil
}

func (r *Registry) Get(id string) (*session, bool) {
	r.mu.RLock()
	s, ok := r.rounds[id]
	r.mu.RUnlock()
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

// Remove abandons the round and drops it from the registry.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.rounds[id]
	delete(r.rounds, id)
	n := len(r.rounds)
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.round.Abandon()
	r.metrics.SetActiveRounds(n)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rounds)
}

// Sweep abandons rounds idle for longer than the retention window and evicts
// rounds that finished more than one window ago.
func (r *Registry) Sweep() {
	now := r.now()
	var idle []*session

	r.mu.Lock()
	for id, s := range r.rounds {
		s.mu.Lock()
		finished, lastSeen := s.finished, s.lastSeen
		s.mu.Unlock()

		switch {
		case !finished.IsZero() && now.Sub(finished) > r.retention:
			delete(r.rounds, id)
		case finished.IsZero() && now.Sub(lastSeen) > r.retention:
			idle = append(idle, s)
		}
	}
	n := len(r.rounds)
	r.mu.Unlock()

	for _, s := range idle {
		r.logger.Info("abandoning idle round", "round_id", s.id)
		s.round.Abandon()
	}
	r.metrics.SetActiveRounds(n)
}

// RunJanitor sweeps every interval until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			r.Sweep()
		}
	}
}

// Close abandons every round.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.rounds {
		s.round.Abandon()
		delete(r.rounds, id)
	}
}
