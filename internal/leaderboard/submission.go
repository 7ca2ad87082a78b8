package leaderboard

import (
	"time"

	"github.com/google/uuid"

	"github.com/playperu/cityfinder/internal/cityfinder"
	"github.com/playperu/cityfinder/internal/round"
)

// Submission is the client-supplied part of an entry. Ownership, the entry id
// and the creation time are always assigned by the store.
type Submission struct {
	TimeSeconds       float64     `json:"time_seconds"`
	CitiesFound       int         `json:"cities_found"`
	FoundCities       []FoundCity `json:"found_cities"`
	MinPopulation     int64       `json:"min_population"`
	MaxPopulation     int64       `json:"max_population"`
	AllowedCountries  []string    `json:"allowed_countries"`
	ExcludedCountries []string    `json:"excluded_countries"`
	LabelsDisabled    bool        `json:"labels_disabled"`
}

// NewSubmission builds a submission from a completed round.
func NewSubmission(s round.Summary) Submission {
	found := make([]FoundCity, len(s.Cities))
	for i, c := range s.Cities {
		found[i] = FoundCity{
			Name:                  c.City.Name,
			CountryName:           c.City.CountryName,
			StateCode:             c.City.StateCode,
			SecondsSpentSearching: c.SecondsSpent,
		}
	}
	return Submission{
		TimeSeconds:       s.TotalSeconds,
		CitiesFound:       len(found),
		FoundCities:       found,
		MinPopulation:     s.Filter.MinPopulation,
		MaxPopulation:     s.Filter.EffectiveMaxPopulation(),
		AllowedCountries:  s.Filter.AllowedCountries,
		ExcludedCountries: s.Filter.ExcludedCountries,
		LabelsDisabled:    s.Filter.NoLabels,
	}
}

// newEntry assigns the server-owned fields of an entry.
func newEntry(sub Submission, id *cityfinder.Identity, now time.Time) Entry {
	return Entry{
		EntryID:           uuid.NewString(),
		UserID:            id.UserID,
		Username:          id.DisplayName,
		ProfilePictureURL: id.AvatarURL,
		TimeSeconds:       sub.TimeSeconds,
		CitiesFound:       sub.CitiesFound,
		FoundCities:       orEmpty(sub.FoundCities),
		MinPopulation:     sub.MinPopulation,
		MaxPopulation:     sub.MaxPopulation,
		AllowedCountries:  orEmpty(sub.AllowedCountries),
		ExcludedCountries: orEmpty(sub.ExcludedCountries),
		LabelsDisabled:    sub.LabelsDisabled,
		CreatedAt:         now.UTC(),
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
