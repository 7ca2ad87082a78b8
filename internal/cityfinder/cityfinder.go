// Package cityfinder defines the core domain types shared by the catalog,
// round engine and leaderboard. It has zero external dependencies.
package cityfinder

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrCatalogExhausted means no city satisfies the active filter.
	ErrCatalogExhausted = errors.New("no playable city under these settings")
	// ErrTransientFetch wraps dataset and descriptive-info fetch failures.
	ErrTransientFetch = errors.New("fetch failed")
	// ErrAuthorizationRequired is returned when submitting without a signed-in identity.
	ErrAuthorizationRequired = errors.New("sign in to save your score")
	// ErrStoreRejected is returned when the leaderboard store refuses a write.
	ErrStoreRejected = errors.New("leaderboard store rejected the write")

	ErrRoundComplete    = errors.New("round is complete")
	ErrRoundNotStarted  = errors.New("round has not started")
	ErrNoActiveCity     = errors.New("no active city")
	ErrAlreadySubmitted = errors.New("round already submitted")
	ErrInvalidFilter    = errors.New("invalid difficulty filter")
)

// DefaultMaxPopulation stands in for an unbounded upper population bound when
// a filter is persisted or shown on the leaderboard.
const DefaultMaxPopulation int64 = 100_000_000

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type City struct {
	Name        string      `json:"name"`
	CountryName string      `json:"countryName"`
	StateCode   *string     `json:"stateCode"`
	Population  int64       `json:"population"`
	Coordinates Coordinates `json:"coordinates"`
}

// SameAs reports whether c and other identify the same catalog city.
func (c City) SameAs(other City) bool {
	return c.Name == other.Name &&
		c.CountryName == other.CountryName &&
		c.Coordinates == other.Coordinates
}

// State returns the subdivision code or "" when the city has none.
func (c City) State() string {
	if c.StateCode == nil {
		return ""
	}
	return *c.StateCode
}

// DifficultyFilter selects the playable cities of a round. MaxPopulation of
// zero means unbounded.
type DifficultyFilter struct {
	MinPopulation     int64    `json:"minPop"`
	MaxPopulation     int64    `json:"maxPop,omitempty"`
	Cities            int      `json:"cities"`
	NoLabels          bool     `json:"noLabels"`
	AllowedCountries  []string `json:"allowedCountries,omitempty"`
	ExcludedCountries []string `json:"excludedCountries,omitempty"`
}

func (f DifficultyFilter) Validate() error {
	switch {
	case f.Cities < 1:
		return fmt.Errorf("%w: cities must be at least 1", ErrInvalidFilter)
	case f.MinPopulation < 0 || f.MaxPopulation < 0:
		return fmt.Errorf("%w: population bounds must not be negative", ErrInvalidFilter)
	case f.MaxPopulation != 0 && f.MaxPopulation < f.MinPopulation:
		return fmt.Errorf("%w: maxPop %d is below minPop %d", ErrInvalidFilter, f.MaxPopulation, f.MinPopulation)
	}
	return nil
}

// Matches applies the population bounds and the country allow/deny lists.
func (f DifficultyFilter) Matches(c City) bool {
	if c.Population < f.MinPopulation {
		return false
	}
	if f.MaxPopulation != 0 && c.Population > f.MaxPopulation {
		return false
	}
	if len(f.AllowedCountries) > 0 && !slices.Contains(f.AllowedCountries, c.CountryName) {
		return false
	}
	if len(f.ExcludedCountries) > 0 && slices.Contains(f.ExcludedCountries, c.CountryName) {
		return false
	}
	return true
}

// EffectiveMaxPopulation returns the upper bound recorded on leaderboard entries.
func (f DifficultyFilter) EffectiveMaxPopulation() int64 {
	if f.MaxPopulation == 0 {
		return DefaultMaxPopulation
	}
	return f.MaxPopulation
}

// Identity is the signed-in player as reported by the identity provider.
type Identity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	// Token is the raw credential the identity was derived from.
	Token string `json:"-"`
}

func (i *Identity) SignedIn() bool {
	return i != nil && i.UserID != ""
}

// FormatTime renders seconds as m:ss.d.
func FormatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	tenths := int64(seconds*10 + 1e-9)
	minutes := tenths / 600
	secs := (tenths / 10) % 60
	return fmt.Sprintf("%d:%02d.%d", minutes, secs, tenths%10)
}
