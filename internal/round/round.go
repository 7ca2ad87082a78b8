// Package round implements the state machine of a single game round: the
// sequence of target cities, the round clock with penalty additions, and
// completion detection.
package round

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playperu/cityfinder/internal/cityfinder"
	"github.com/playperu/cityfinder/internal/scoring"
)

// DefaultTick is the clock quantum used when none is configured.
const DefaultTick = 100 * time.Millisecond

var ErrNotComplete = errors.New("round is not complete")

type State int

const (
	AwaitingFirstCity State = iota
	InProgress
	Complete
	Abandoned
)

func (s State) String() string {
	switch s {
	case AwaitingFirstCity:
		return "awaiting_first_city"
	case InProgress:
		return "in_progress"
	case Complete:
		return "complete"
	case Abandoned:
		return "abandoned"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool { return s == Complete || s == Abandoned }

// Picker supplies target cities.
type Picker interface {
	Pick(ctx context.Context, f cityfinder.DifficultyFilter, exclude *cityfinder.City) (cityfinder.City, error)
}

// Entry is one presented city. Wall is the ticked time while the entry was
// active; Penalties is the time added by misses, hints and skips.
type Entry struct {
	City      cityfinder.City
	StartTime time.Duration
	Wall      time.Duration
	Penalties time.Duration
}

// Spent is the time the player spent on the city, equal to the gap between
// its start time and the next entry's start time.
func (e Entry) Spent() time.Duration { return e.Wall + e.Penalties }

type Round struct {
	picker   Picker
	filter   cityfinder.DifficultyFilter
	tick     time.Duration
	logger   *slog.Logger
	observer func(Event)

	mu           sync.Mutex
	state        State
	clock        time.Duration
	entries      []Entry
	active       int
	found        int
	awaitingCity bool
	drawing      bool
	revealed     map[scoring.Hint]bool
	submitted    bool
	outbox       []Event

	clockCancel context.CancelFunc
	clockDone   chan struct{}
	stopOnce    sync.Once
}

type Option func(*Round)

// WithTick sets the clock quantum. Scoring is independent of the quantum.
func WithTick(d time.Duration) Option {
	return func(r *Round) {
		if d > 0 {
			r.tick = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Round) { r.logger = l }
}

// WithObserver registers a callback for round events. It is invoked outside
// the round lock, in event order per operation.
func WithObserver(fn func(Event)) Option {
	return func(r *Round) { r.observer = fn }
}

func New(picker Picker, filter cityfinder.DifficultyFilter, opts ...Option) (*Round, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	r := &Round{
		picker:   picker,
		filter:   filter,
		tick:     DefaultTick,
		logger:   slog.Default(),
		revealed: make(map[scoring.Hint]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Round) Filter() cityfinder.DifficultyFilter { return r.filter }

// Start draws the first city and begins the round.
func (r *Round) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != AwaitingFirstCity || r.drawing {
		r.mu.Unlock()
		return fmt.Errorf("starting round: round is %s", r.state)
	}
	r.drawing = true
	r.mu.Unlock()

	city, err := r.picker.Pick(ctx, r.filter, nil)

	r.mu.Lock()
	r.drawing = false
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("drawing first city: %w", err)
	}
	if r.state != AwaitingFirstCity {
		r.mu.Unlock()
		return cityfinder.ErrRoundComplete
	}
	r.state = InProgress
	r.entries = append(r.entries, Entry{City: city, StartTime: r.clock})
	r.active = 0
	r.publishLocked(r.eventLocked(EventCity))
	r.unlock()

	r.logger.Debug("round started", "city", city.Name, "target", r.filter.Cities)
	return nil
}

// Tick advances the clock by one quantum while the round is in progress.
// Time spent waiting for the next city is credited to the previous one.
func (r *Round) Tick() {
	r.mu.Lock()
	if r.state != InProgress {
		r.mu.Unlock()
		return
	}
	r.clock += r.tick
	r.entries[r.active].Wall += r.tick
	r.publishLocked(r.eventLocked(EventTick))
	r.unlock()
}

// ApplyPenalty adds seconds to the clock and to the active city's penalties.
func (r *Round) ApplyPenalty(seconds float64) error {
	if seconds < 0 {
		return fmt.Errorf("negative penalty %v", seconds)
	}
	r.mu.Lock()
	if err := r.guardLocked(); err != nil {
		r.mu.Unlock()
		return err
	}
	r.applyPenaltyLocked(seconds)
	ev := r.eventLocked(EventPenalty)
	ev.PenaltySeconds = seconds
	r.publishLocked(ev)
	r.unlock()
	return nil
}

// Reveal discloses a hint about the active city. Each hint is charged once
// per city; repeated reveals return charged == false.
func (r *Round) Reveal(h scoring.Hint) (city cityfinder.City, charged bool, err error) {
	r.mu.Lock()
	if err := r.guardLocked(); err != nil {
		r.mu.Unlock()
		return cityfinder.City{}, false, err
	}
	city = r.entries[r.active].City
	if r.revealed[h] {
		r.mu.Unlock()
		return city, false, nil
	}
	r.revealed[h] = true
	r.applyPenaltyLocked(h.Penalty())
	ev := r.eventLocked(EventHint)
	ev.Hint = h
	ev.PenaltySeconds = h.Penalty()
	r.publishLocked(ev)
	r.unlock()
	return city, true, nil
}

// Guess judges a clicked position against the active city. A miss charges the
// distance penalty; a hit records the find and advances the round.
func (r *Round) Guess(ctx context.Context, lat, lon float64) (scoring.Verdict, error) {
	r.mu.Lock()
	if err := r.guardLocked(); err != nil {
		r.mu.Unlock()
		return scoring.Verdict{}, err
	}
	v := scoring.Judge(lat, lon, r.entries[r.active].City)
	if !v.Hit {
		r.applyPenaltyLocked(v.PenaltySeconds)
	}
	ev := r.eventLocked(EventVerdict)
	ev.Verdict = &v
	ev.PenaltySeconds = v.PenaltySeconds
	r.publishLocked(ev)
	if !v.Hit {
		r.unlock()
		return v, nil
	}
	return v, r.findLocked(ctx)
}

// Skip charges SkipPenalty and moves past the active city, which still
// counts towards the target.
func (r *Round) Skip(ctx context.Context) error {
	r.mu.Lock()
	if err := r.guardLocked(); err != nil {
		r.mu.Unlock()
		return err
	}
	r.applyPenaltyLocked(scoring.SkipPenalty)
	ev := r.eventLocked(EventSkip)
	ev.PenaltySeconds = scoring.SkipPenalty
	r.publishLocked(ev)
	return r.findLocked(ctx)
}

// RecordFind counts the active city as found and either completes the round
// or advances to the next city.
func (r *Round) RecordFind(ctx context.Context) error {
	r.mu.Lock()
	if err := r.guardLocked(); err != nil {
		r.mu.Unlock()
		return err
	}
	return r.findLocked(ctx)
}

// AdvanceToNextCity draws the next city, or completes the round when the
// target count has been reached. It also retries a draw that failed earlier.
func (r *Round) AdvanceToNextCity(ctx context.Context) error {
	r.mu.Lock()
	switch {
	case r.state == AwaitingFirstCity:
		r.mu.Unlock()
		return cityfinder.ErrRoundNotStarted
	case r.state.Terminal():
		r.mu.Unlock()
		return cityfinder.ErrRoundComplete
	}
	if r.found >= r.filter.Cities {
		r.completeLocked()
		return nil
	}
	return r.advanceLocked(ctx)
}

// RetryDraw repeats a next-city draw that failed after a find or skip. It
// returns ErrNoActiveCity while a city is active or a draw is in flight.
func (r *Round) RetryDraw(ctx context.Context) error {
	r.mu.Lock()
	switch {
	case r.state == AwaitingFirstCity:
		r.mu.Unlock()
		return cityfinder.ErrRoundNotStarted
	case r.state.Terminal():
		r.mu.Unlock()
		return cityfinder.ErrRoundComplete
	case !r.awaitingCity || r.drawing:
		r.mu.Unlock()
		return cityfinder.ErrNoActiveCity
	}
	return r.advanceLocked(ctx)
}

// Abandon stops the round without completing it.
func (r *Round) Abandon() {
	r.mu.Lock()
	if r.state.Terminal() {
		r.mu.Unlock()
		return
	}
	r.state = Abandoned
	r.stopClockLocked()
	ev := r.eventLocked(EventAbandoned)
	r.publishLocked(ev)
	r.unlock()

	r.logger.Debug("round abandoned", "clock", ev.Clock)
}

// MarkSubmitted reports true exactly once per round.
func (r *Round) MarkSubmitted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.submitted {
		return false
	}
	r.submitted = true
	return true
}

// findLocked is called with r.mu held and releases it.
func (r *Round) findLocked(ctx context.Context) error {
	r.found++
	if r.found >= r.filter.Cities {
		r.completeLocked()
		return nil
	}
	return r.advanceLocked(ctx)
}

// advanceLocked is called with r.mu held and releases it. The lock is not
// held while the picker runs; guesses are rejected until the city arrives.
func (r *Round) advanceLocked(ctx context.Context) error {
	if r.drawing {
		r.unlock()
		return cityfinder.ErrNoActiveCity
	}
	exclude := r.entries[r.active].City
	r.awaitingCity = true
	r.drawing = true
	r.unlock()

	city, err := r.picker.Pick(ctx, r.filter, &exclude)

	r.mu.Lock()
	r.drawing = false
	if err != nil {
		r.mu.Unlock()
		r.logger.Warn("drawing next city failed", "error", err)
		return fmt.Errorf("drawing next city: %w", err)
	}
	if r.state != InProgress {
		r.mu.Unlock()
		return cityfinder.ErrRoundComplete
	}
	r.entries = append(r.entries, Entry{City: city, StartTime: r.clock})
	r.active = len(r.entries) - 1
	r.awaitingCity = false
	clear(r.revealed)
	r.publishLocked(r.eventLocked(EventCity))
	r.unlock()
	return nil
}

// completeLocked is called with r.mu held and releases it.
func (r *Round) completeLocked() {
	r.state = Complete
	r.awaitingCity = false
	r.stopClockLocked()
	ev := r.eventLocked(EventComplete)
	r.publishLocked(ev)
	r.unlock()

	r.logger.Info("round complete",
		"cities", ev.Found,
		"time", cityfinder.FormatTime(ev.Clock),
	)
}

func (r *Round) guardLocked() error {
	switch {
	case r.state == AwaitingFirstCity:
		return cityfinder.ErrRoundNotStarted
	case r.state.Terminal():
		return cityfinder.ErrRoundComplete
	case r.awaitingCity:
		return cityfinder.ErrNoActiveCity
	}
	return nil
}

func (r *Round) applyPenaltyLocked(seconds float64) {
	d := time.Duration(seconds * float64(time.Second))
	r.clock += d
	r.entries[r.active].Penalties += d
}
