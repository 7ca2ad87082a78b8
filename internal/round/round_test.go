package round

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/playperu/cityfinder/internal/cityfinder"
	"github.com/playperu/cityfinder/internal/geo"
	"github.com/playperu/cityfinder/internal/scoring"
)

var (
	tokyo  = cityfinder.City{Name: "Tokyo", CountryName: "Japan", Population: 37_400_068, Coordinates: cityfinder.Coordinates{Lat: 35.6895, Lon: 139.69171}}
	lima   = cityfinder.City{Name: "Lima", CountryName: "Peru", Population: 7_737_002, Coordinates: cityfinder.Coordinates{Lat: -12.04318, Lon: -77.02824}}
	paris  = cityfinder.City{Name: "Paris", CountryName: "France", Population: 2_138_551, Coordinates: cityfinder.Coordinates{Lat: 48.85341, Lon: 2.3488}}
	cities = []cityfinder.City{tokyo, lima, paris}
)

type seqPicker struct {
	mu     sync.Mutex
	cities []cityfinder.City
	next   int
	calls  int
	err    error
	gate   chan struct{}
}

func (p *seqPicker) Pick(ctx context.Context, _ cityfinder.DifficultyFilter, _ *cityfinder.City) (cityfinder.City, error) {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return cityfinder.City{}, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return cityfinder.City{}, p.err
	}
	c := p.cities[p.next%len(p.cities)]
	p.next++
	return c, nil
}

func (p *seqPicker) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *seqPicker) setGate(gate chan struct{}) {
	p.mu.Lock()
	p.gate = gate
	p.mu.Unlock()
}

func filterFor(n int) cityfinder.DifficultyFilter {
	return cityfinder.DifficultyFilter{MinPopulation: 1_000_000, MaxPopulation: 100_000_000, Cities: n}
}

// north returns a point the given number of miles due north of c.
func north(c cityfinder.City, miles float64) (float64, float64) {
	return c.Coordinates.Lat + miles/geo.EarthRadiusMiles*180/math.Pi, c.Coordinates.Lon
}

func startedRound(t *testing.T, n int, opts ...Option) (*Round, *seqPicker) {
	t.Helper()
	p := &seqPicker{cities: cities}
	r, err := New(p, filterFor(n), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return r, p
}

func ticks(r *Round, n int) {
	for range n {
		r.Tick()
	}
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestStartCatalogExhausted(t *testing.T) {
	p := &seqPicker{cities: cities, err: cityfinder.ErrCatalogExhausted}
	r, err := New(p, filterFor(3))
	if err != nil {
		t.Fatal(err)
	}

	err = r.Start(context.Background())
	if !errors.Is(err, cityfinder.ErrCatalogExhausted) {
		t.Fatalf("Start err = %v, want ErrCatalogExhausted", err)
	}
	if s := r.Snapshot(); s.State != AwaitingFirstCity {
		t.Errorf("state = %s, want %s", s.State, AwaitingFirstCity)
	}
	if _, err := r.Guess(context.Background(), 0, 0); !errors.Is(err, cityfinder.ErrRoundNotStarted) {
		t.Errorf("Guess err = %v, want ErrRoundNotStarted", err)
	}

	if err := r.Start(context.Background()); err == nil {
		// The picker still fails; a second Start must not succeed silently.
		t.Error("second Start succeeded with an exhausted catalog")
	}
}

func TestNewRejectsInvalidFilter(t *testing.T) {
	_, err := New(&seqPicker{cities: cities}, cityfinder.DifficultyFilter{Cities: 0})
	if !errors.Is(err, cityfinder.ErrInvalidFilter) {
		t.Errorf("err = %v, want ErrInvalidFilter", err)
	}
}

func TestThreeCorrectGuesses(t *testing.T) {
	r, _ := startedRound(t, 3)
	ctx := context.Background()

	distances := []float64{10, 5, 1}
	for i, d := range distances {
		ticks(r, 25)
		active := r.Snapshot().ActiveCity
		if active == nil {
			t.Fatalf("city %d: no active city", i)
		}
		lat, lon := north(*active, d)
		v, err := r.Guess(ctx, lat, lon)
		if err != nil {
			t.Fatalf("city %d: Guess: %v", i, err)
		}
		if !v.Hit || v.PenaltySeconds != 0 {
			t.Fatalf("city %d: verdict %+v, want hit with no penalty", i, v)
		}
		if math.Abs(v.DistanceMiles-d) > 1e-6 {
			t.Errorf("city %d: distance %v, want %v", i, v.DistanceMiles, d)
		}
	}

	s := r.Snapshot()
	if s.State != Complete {
		t.Fatalf("state = %s, want complete", s.State)
	}
	if s.Found != 3 {
		t.Errorf("found = %d, want 3", s.Found)
	}

	sum, err := r.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	wantTotal := (75 * DefaultTick).Seconds()
	if !almostEqual(sum.TotalSeconds, wantTotal) {
		t.Errorf("total = %v, want %v", sum.TotalSeconds, wantTotal)
	}
	for i, c := range sum.Cities {
		if c.PenaltySeconds != 0 {
			t.Errorf("city %d: penalty %v, want 0", i, c.PenaltySeconds)
		}
	}
}

func TestPenaltyAccounting(t *testing.T) {
	r, _ := startedRound(t, 3)
	ctx := context.Background()

	// City 1 (Tokyo): 10 ticks, a 3000 mile miss (30s), country reveal (30s), then a hit.
	ticks(r, 10)
	lat, lon := north(tokyo, 3000)
	if v, err := r.Guess(ctx, lat, lon); err != nil || v.Hit || v.PenaltySeconds != 30 {
		t.Fatalf("miss: verdict %+v err %v", v, err)
	}
	if _, charged, err := r.Reveal(scoring.HintCountry); err != nil || !charged {
		t.Fatalf("reveal: charged %v err %v", charged, err)
	}
	lat, lon = north(tokyo, 2)
	if _, err := r.Guess(ctx, lat, lon); err != nil {
		t.Fatal(err)
	}

	// City 2 (Lima): 40 ticks, population reveal (2s), then skip (60s).
	ticks(r, 40)
	if _, _, err := r.Reveal(scoring.HintPopulation); err != nil {
		t.Fatal(err)
	}
	if err := r.Skip(ctx); err != nil {
		t.Fatal(err)
	}

	// City 3 (Paris): 5 ticks, a 100 mile miss (1s), then a hit.
	ticks(r, 5)
	lat, lon = north(paris, 100)
	if v, _ := r.Guess(ctx, lat, lon); v.PenaltySeconds != 1 {
		t.Fatalf("100 mile miss penalty = %v, want 1", v.PenaltySeconds)
	}
	lat, lon = north(paris, 0)
	if _, err := r.Guess(ctx, lat, lon); err != nil {
		t.Fatal(err)
	}

	sum, err := r.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	wantPenalties := []float64{60, 62, 1}
	wantWall := []float64{1.0, 4.0, 0.5}
	var penalties, wall, spent float64
	for i, c := range sum.Cities {
		if !almostEqual(c.PenaltySeconds, wantPenalties[i]) {
			t.Errorf("city %d: penalty %v, want %v", i, c.PenaltySeconds, wantPenalties[i])
		}
		if !almostEqual(c.SecondsSpent, wantPenalties[i]+wantWall[i]) {
			t.Errorf("city %d: spent %v, want %v", i, c.SecondsSpent, wantPenalties[i]+wantWall[i])
		}
		penalties += c.PenaltySeconds
		spent += c.SecondsSpent
		wall += wantWall[i]
	}
	if !almostEqual(penalties+wall, sum.TotalSeconds) {
		t.Errorf("penalties %v + wall %v != total %v", penalties, wall, sum.TotalSeconds)
	}
	if !almostEqual(spent, sum.TotalSeconds) {
		t.Errorf("sum of spent %v != total %v", spent, sum.TotalSeconds)
	}

	// Each entry's time equals the gap to the next entry's start.
	progress := r.Progress()
	for i := 0; i+1 < len(progress); i++ {
		if got := progress[i+1].StartTime - progress[i].StartTime; got != progress[i].Spent() {
			t.Errorf("entry %d: start delta %v, spent %v", i, got, progress[i].Spent())
		}
	}
}

func TestCompleteIsFinal(t *testing.T) {
	r, _ := startedRound(t, 1)
	ctx := context.Background()

	ticks(r, 3)
	lat, lon := north(tokyo, 0)
	if _, err := r.Guess(ctx, lat, lon); err != nil {
		t.Fatal(err)
	}
	frozen := r.Snapshot().Clock

	ticks(r, 100)
	if err := r.ApplyPenalty(10); !errors.Is(err, cityfinder.ErrRoundComplete) {
		t.Errorf("ApplyPenalty err = %v, want ErrRoundComplete", err)
	}
	if err := r.RecordFind(ctx); !errors.Is(err, cityfinder.ErrRoundComplete) {
		t.Errorf("RecordFind err = %v, want ErrRoundComplete", err)
	}
	if _, err := r.Guess(ctx, 0, 0); !errors.Is(err, cityfinder.ErrRoundComplete) {
		t.Errorf("Guess err = %v, want ErrRoundComplete", err)
	}
	if err := r.Skip(ctx); !errors.Is(err, cityfinder.ErrRoundComplete) {
		t.Errorf("Skip err = %v, want ErrRoundComplete", err)
	}
	if _, _, err := r.Reveal(scoring.HintCountry); !errors.Is(err, cityfinder.ErrRoundComplete) {
		t.Errorf("Reveal err = %v, want ErrRoundComplete", err)
	}
	r.Abandon()

	s := r.Snapshot()
	if s.Clock != frozen {
		t.Errorf("clock moved after completion: %v -> %v", frozen, s.Clock)
	}
	if s.State != Complete {
		t.Errorf("state = %s, want complete", s.State)
	}
}

func TestRevealIsChargedOncePerCity(t *testing.T) {
	r, _ := startedRound(t, 2)

	for i := range 3 {
		city, charged, err := r.Reveal(scoring.HintCountry)
		if err != nil {
			t.Fatal(err)
		}
		if charged != (i == 0) {
			t.Errorf("reveal %d: charged = %v", i, charged)
		}
		if city.CountryName != "Japan" {
			t.Errorf("reveal %d: country %q", i, city.CountryName)
		}
	}
	if got := r.Snapshot().Clock; got != scoring.CountryRevealPenalty {
		t.Errorf("clock = %v, want %v", got, scoring.CountryRevealPenalty)
	}
	if got := r.Snapshot().Revealed; len(got) != 1 || got[0] != scoring.HintCountry {
		t.Errorf("revealed = %v", got)
	}

	if err := r.RecordFind(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := r.Snapshot().Revealed; len(got) != 0 {
		t.Errorf("hints not reset on advance: %v", got)
	}
	if _, charged, _ := r.Reveal(scoring.HintCountry); !charged {
		t.Error("reveal on the next city was not charged")
	}
}

func TestGuessRejectedWhileDrawing(t *testing.T) {
	r, p := startedRound(t, 3)
	ctx := context.Background()

	gate := make(chan struct{})
	p.setGate(gate)

	done := make(chan error, 1)
	go func() {
		lat, lon := north(tokyo, 0)
		_, err := r.Guess(ctx, lat, lon)
		done <- err
	}()

	deadline := time.After(2 * time.Second)
	for !r.Snapshot().AwaitingCity {
		select {
		case <-deadline:
			t.Fatal("round never entered the drawing window")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := r.Guess(ctx, 0, 0); !errors.Is(err, cityfinder.ErrNoActiveCity) {
		t.Errorf("Guess during draw err = %v, want ErrNoActiveCity", err)
	}
	if err := r.ApplyPenalty(1); !errors.Is(err, cityfinder.ErrNoActiveCity) {
		t.Errorf("ApplyPenalty during draw err = %v, want ErrNoActiveCity", err)
	}
	if r.Snapshot().ActiveCity != nil {
		t.Error("snapshot exposes an active city during the draw")
	}

	r.Tick()
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Guess: %v", err)
	}

	progress := r.Progress()
	if len(progress) != 2 {
		t.Fatalf("entries = %d, want 2", len(progress))
	}
	if progress[0].Wall != DefaultTick {
		t.Errorf("tick during draw credited %v to the previous city, want %v", progress[0].Wall, DefaultTick)
	}
	if progress[1].StartTime != DefaultTick {
		t.Errorf("second city start = %v, want %v", progress[1].StartTime, DefaultTick)
	}
}

func TestFailedDrawCanBeRetried(t *testing.T) {
	r, p := startedRound(t, 3)
	ctx := context.Background()

	p.setErr(cityfinder.ErrCatalogExhausted)
	err := r.RecordFind(ctx)
	if !errors.Is(err, cityfinder.ErrCatalogExhausted) {
		t.Fatalf("RecordFind err = %v, want ErrCatalogExhausted", err)
	}
	s := r.Snapshot()
	if s.State != InProgress || !s.AwaitingCity || s.Found != 1 {
		t.Fatalf("unexpected snapshot after failed draw: %+v", s)
	}
	if _, err := r.Guess(ctx, 0, 0); !errors.Is(err, cityfinder.ErrNoActiveCity) {
		t.Errorf("Guess err = %v, want ErrNoActiveCity", err)
	}

	p.setErr(nil)
	if err := r.RetryDraw(ctx); err != nil {
		t.Fatalf("RetryDraw: %v", err)
	}
	s = r.Snapshot()
	if s.AwaitingCity || s.ActiveCity == nil || s.Found != 1 || s.CityIndex != 1 {
		t.Errorf("unexpected snapshot after retry: %+v", s)
	}
}

func TestRetryDrawKeepsActiveCity(t *testing.T) {
	r, _ := startedRound(t, 3)
	ctx := context.Background()
	ticks(r, 5)
	before := r.Snapshot()

	if err := r.RetryDraw(ctx); !errors.Is(err, cityfinder.ErrNoActiveCity) {
		t.Fatalf("RetryDraw err = %v, want ErrNoActiveCity", err)
	}
	after := r.Snapshot()
	if after.CityIndex != before.CityIndex || after.Found != 0 || !almostEqual(after.Clock, before.Clock) {
		t.Errorf("snapshot changed: before %+v, after %+v", before, after)
	}
	if after.ActiveCity == nil || after.ActiveCity.Name != before.ActiveCity.Name {
		t.Errorf("active city = %v, want %s", after.ActiveCity, before.ActiveCity.Name)
	}
	if n := len(r.Progress()); n != 1 {
		t.Errorf("entries = %d, want 1", n)
	}

	r.Abandon()
	if err := r.RetryDraw(ctx); !errors.Is(err, cityfinder.ErrRoundComplete) {
		t.Errorf("RetryDraw after abandon err = %v, want ErrRoundComplete", err)
	}
}

func TestRunClockStopsOnComplete(t *testing.T) {
	r, _ := startedRound(t, 1, WithTick(time.Millisecond))
	r.RunClock(context.Background())
	r.RunClock(context.Background())

	deadline := time.After(2 * time.Second)
	for r.Snapshot().Clock == 0 {
		select {
		case <-deadline:
			t.Fatal("clock never ticked")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := r.RecordFind(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case <-r.ClockDone():
	case <-time.After(2 * time.Second):
		t.Fatal("clock task still running after completion")
	}

	frozen := r.Snapshot().Clock
	time.Sleep(10 * time.Millisecond)
	if got := r.Snapshot().Clock; got != frozen {
		t.Errorf("clock moved after completion: %v -> %v", frozen, got)
	}
}

func TestAbandonStopsClock(t *testing.T) {
	r, _ := startedRound(t, 3, WithTick(time.Millisecond))
	r.RunClock(context.Background())
	r.Abandon()

	select {
	case <-r.ClockDone():
	case <-time.After(2 * time.Second):
		t.Fatal("clock task still running after abandon")
	}
	if s := r.Snapshot(); s.State != Abandoned {
		t.Errorf("state = %s, want abandoned", s.State)
	}
	if _, err := r.Summary(); !errors.Is(err, ErrNotComplete) {
		t.Errorf("Summary err = %v, want ErrNotComplete", err)
	}
	// A clock started after the round ended never runs.
	r.RunClock(context.Background())
}

func TestConcurrentPenaltiesAndTicks(t *testing.T) {
	r, _ := startedRound(t, 3)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 20 {
				if err := r.ApplyPenalty(1); err != nil {
					t.Error(err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			ticks(r, 20)
		}()
	}
	wg.Wait()

	want := 1000 + (1000 * DefaultTick).Seconds()
	if got := r.Snapshot().Clock; !almostEqual(got, want) {
		t.Errorf("clock = %v, want %v", got, want)
	}
	e := r.Progress()[0]
	if e.Penalties != 1000*time.Second || e.Wall != 1000*DefaultTick {
		t.Errorf("entry penalties %v wall %v", e.Penalties, e.Wall)
	}
}

func TestMarkSubmittedOnce(t *testing.T) {
	r, _ := startedRound(t, 1)
	if !r.MarkSubmitted() {
		t.Fatal("first MarkSubmitted returned false")
	}
	for range 3 {
		if r.MarkSubmitted() {
			t.Fatal("MarkSubmitted returned true twice")
		}
	}
}

func TestObserverEvents(t *testing.T) {
	var mu sync.Mutex
	var got []EventType
	var r *Round
	observer := func(ev Event) {
		// Reading a snapshot from the observer must not deadlock.
		_ = r.Snapshot()
		mu.Lock()
		got = append(got, ev.Type)
		mu.Unlock()
	}

	p := &seqPicker{cities: cities}
	r, _ = New(p, filterFor(2), WithObserver(observer))
	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	r.Tick()
	lat, lon := north(tokyo, 500)
	r.Guess(ctx, lat, lon)
	r.Reveal(scoring.HintPopulation)
	lat, lon = north(tokyo, 0)
	r.Guess(ctx, lat, lon)
	r.Skip(ctx)

	want := []EventType{
		EventCity, EventTick, EventVerdict, EventHint,
		EventVerdict, EventCity, EventSkip, EventComplete,
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}
