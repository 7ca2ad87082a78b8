// Package scoring judges a guess against the active city and defines the
// fixed penalty schedule.
package scoring

import (
	"fmt"
	"math"

	"github.com/playperu/cityfinder/internal/cityfinder"
	"github.com/playperu/cityfinder/internal/geo"
)

const (
	// HitRadiusMiles is the maximum distance counted as finding the city.
	HitRadiusMiles = 50.0

	MinMissPenalty = 1.0
	MaxMissPenalty = 60.0

	SkipPenalty             = 60.0
	CountryRevealPenalty    = 30.0
	PopulationRevealPenalty = 2.0
)

type Verdict struct {
	Hit            bool    `json:"hit"`
	DistanceMiles  float64 `json:"distanceMiles"`
	PenaltySeconds float64 `json:"penaltySeconds"`
}

// Judge scores a guess against target. A miss costs one second per hundred
// miles, rounded and clamped to [MinMissPenalty, MaxMissPenalty].
func Judge(guessLat, guessLon float64, target cityfinder.City) Verdict {
	d := geo.DistanceMiles(guessLat, guessLon, target.Coordinates.Lat, target.Coordinates.Lon)
	return JudgeDistance(d)
}

// JudgeDistance applies the hit threshold and miss penalty to a known distance.
func JudgeDistance(distanceMiles float64) Verdict {
	if distanceMiles <= HitRadiusMiles {
		return Verdict{Hit: true, DistanceMiles: distanceMiles}
	}
	return Verdict{
		DistanceMiles:  distanceMiles,
		PenaltySeconds: MissPenalty(distanceMiles),
	}
}

func MissPenalty(distanceMiles float64) float64 {
	return math.Round(min(max(distanceMiles/100, MinMissPenalty), MaxMissPenalty))
}

// Hint is a one-time disclosure about the active city.
type Hint string

const (
	HintCountry    Hint = "country"
	HintPopulation Hint = "population"
)

func ParseHint(s string) (Hint, error) {
	switch h := Hint(s); h {
	case HintCountry, HintPopulation:
		return h, nil
	}
	return "", fmt.Errorf("unknown hint %q", s)
}

func (h Hint) Penalty() float64 {
	switch h {
	case HintCountry:
		return CountryRevealPenalty
	case HintPopulation:
		return PopulationRevealPenalty
	}
	return 0
}
