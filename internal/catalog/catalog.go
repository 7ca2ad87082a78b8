// Package catalog holds the in-memory city dataset and selects round targets.
package catalog

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/playperu/cityfinder/internal/cityfinder"
)

// MaxPickAttempts bounds the anti-repeat retries of PickRandom.
const MaxPickAttempts = 5

type Catalog struct {
	cities []cityfinder.City

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Catalog)

// WithRand replaces the random source used for selection.
func WithRand(r *rand.Rand) Option {
	return func(c *Catalog) { c.rng = r }
}

// New returns a catalog over a private copy of cities.
func New(cities []cityfinder.City, opts ...Option) *Catalog {
	c := &Catalog{
		cities: slices.Clone(cities),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Catalog) Len() int { return len(c.cities) }

// Filter returns the cities matching f, in dataset order.
func (c *Catalog) Filter(f cityfinder.DifficultyFilter) []cityfinder.City {
	var out []cityfinder.City
	for _, city := range c.cities {
		if f.Matches(city) {
			out = append(out, city)
		}
	}
	return out
}

func (c *Catalog) Count(f cityfinder.DifficultyFilter) int {
	n := 0
	for _, city := range c.cities {
		if f.Matches(city) {
			n++
		}
	}
	return n
}

// Countries returns the sorted distinct country names in the dataset.
func (c *Catalog) Countries() []string {
	seen := make(map[string]struct{})
	for _, city := range c.cities {
		seen[city.CountryName] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// PickRandom draws a uniformly random city matching f. When exclude is set it
// redraws up to MaxPickAttempts times to avoid repeating it, then gives up and
// returns the last draw.
func (c *Catalog) PickRandom(f cityfinder.DifficultyFilter, exclude *cityfinder.City) (cityfinder.City, error) {
	matches := c.Filter(f)
	if len(matches) == 0 {
		return cityfinder.City{}, cityfinder.ErrCatalogExhausted
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var city cityfinder.City
	for range MaxPickAttempts {
		city = matches[c.rng.IntN(len(matches))]
		if exclude == nil || !city.SameAs(*exclude) {
			break
		}
	}
	return city, nil
}

// Pick is the context-aware form of PickRandom used by rounds.
func (c *Catalog) Pick(ctx context.Context, f cityfinder.DifficultyFilter, exclude *cityfinder.City) (cityfinder.City, error) {
	if err := ctx.Err(); err != nil {
		return cityfinder.City{}, fmt.Errorf("picking city: %w", err)
	}
	return c.PickRandom(f, exclude)
}
