// Package leaderboard stores completed rounds and serves them back as ranked,
// filter-scoped pages.
//
// Entries are ordered by time_seconds, then created_at, then entry_id. A query
// filter matches an entry when every set scalar field is equal and every
// non-empty country list is contained in the entry's stored list.
package leaderboard

import (
	"context"
	"errors"
	"time"

	"github.com/playperu/cityfinder/internal/cityfinder"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var (
	ErrLoadInProgress = errors.New("a page is already loading")
	ErrHandleClosed   = errors.New("leaderboard handle was replaced")
)

type FoundCity struct {
	Name                  string  `json:"name"`
	CountryName           string  `json:"country_name"`
	StateCode             *string `json:"state_code"`
	SecondsSpentSearching float64 `json:"seconds_spent_searching"`
}

type Entry struct {
	EntryID           string      `json:"entry_id"`
	UserID            string      `json:"user_id"`
	Username          string      `json:"username"`
	ProfilePictureURL string      `json:"profile_picture_url"`
	TimeSeconds       float64     `json:"time_seconds"`
	CitiesFound       int         `json:"cities_found"`
	FoundCities       []FoundCity `json:"found_cities"`
	MinPopulation     int64       `json:"min_population"`
	MaxPopulation     int64       `json:"max_population"`
	AllowedCountries  []string    `json:"allowed_countries"`
	ExcludedCountries []string    `json:"excluded_countries"`
	LabelsDisabled    bool        `json:"labels_disabled"`
	CreatedAt         time.Time   `json:"created_at"`
}

// Filter scopes a query to a leaderboard partition. Zero numeric fields and a
// nil LabelsDisabled do not constrain the result.
type Filter struct {
	MinPopulation     int64
	MaxPopulation     int64
	CitiesCount       int
	LabelsDisabled    *bool
	AllowedCountries  []string
	ExcludedCountries []string
}

// FilterFor returns the partition a round played under f is ranked in.
func FilterFor(f cityfinder.DifficultyFilter) Filter {
	labels := f.NoLabels
	return Filter{
		MinPopulation:     f.MinPopulation,
		MaxPopulation:     f.EffectiveMaxPopulation(),
		LabelsDisabled:    &labels,
		AllowedCountries:  f.AllowedCountries,
		ExcludedCountries: f.ExcludedCountries,
	}
}

type Page struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
}

// HasMore reports whether pages beyond the given one exist.
func (p Page) HasMore(page, pageSize int) bool {
	page, pageSize = normalizePage(page, pageSize)
	return p.Total > page*pageSize
}

type Querier interface {
	Query(ctx context.Context, f Filter, page, pageSize int) (Page, error)
}

// Store is the backing store. Insert binds the entry to id and fails with
// cityfinder.ErrAuthorizationRequired when id is not signed in.
type Store interface {
	Querier
	Insert(ctx context.Context, sub Submission, id *cityfinder.Identity) (Entry, error)
}

// normalizePage clamps 1-based page numbers and page sizes to valid values.
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func offset(page, pageSize int) int {
	return (page - 1) * pageSize
}
