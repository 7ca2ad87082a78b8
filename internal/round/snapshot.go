package round

import (
	"slices"

	"github.com/playperu/cityfinder/internal/cityfinder"
	"github.com/playperu/cityfinder/internal/scoring"
)

// Snapshot is a read-only projection of a round.
type Snapshot struct {
	State        State
	Clock        float64
	Found        int
	Target       int
	CityIndex    int
	ActiveCity   *cityfinder.City
	AwaitingCity bool
	Revealed     []scoring.Hint
	Submitted    bool
}

func (r *Round) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		State:        r.state,
		Clock:        r.clock.Seconds(),
		Found:        r.found,
		Target:       r.filter.Cities,
		CityIndex:    r.active,
		AwaitingCity: r.awaitingCity,
		Submitted:    r.submitted,
	}
	if r.state == InProgress && !r.awaitingCity {
		city := r.entries[r.active].City
		s.ActiveCity = &city
	}
	for _, h := range []scoring.Hint{scoring.HintCountry, scoring.HintPopulation} {
		if r.revealed[h] {
			s.Revealed = append(s.Revealed, h)
		}
	}
	return s
}

// Progress returns a copy of the round history.
func (r *Round) Progress() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}

type CityResult struct {
	City           cityfinder.City
	SecondsSpent   float64
	PenaltySeconds float64
}

// Summary is the final result of a completed round.
type Summary struct {
	TotalSeconds float64
	CitiesFound  int
	Cities       []CityResult
	Filter       cityfinder.DifficultyFilter
}

func (r *Round) Summary() (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Complete {
		return Summary{}, ErrNotComplete
	}
	s := Summary{
		TotalSeconds: r.clock.Seconds(),
		CitiesFound:  r.found,
		Cities:       make([]CityResult, len(r.entries)),
		Filter:       r.filter,
	}
	for i, e := range r.entries {
		s.Cities[i] = CityResult{
			City:           e.City,
			SecondsSpent:   e.Spent().Seconds(),
			PenaltySeconds: e.Penalties.Seconds(),
		}
	}
	return s, nil
}
