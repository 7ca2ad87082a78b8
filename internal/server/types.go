package server

import (
	"github.com/playperu/cityfinder/internal/cityfinder"
	"github.com/playperu/cityfinder/internal/leaderboard"
	"github.com/playperu/cityfinder/internal/round"
	"github.com/playperu/cityfinder/internal/scoring"
	"github.com/playperu/cityfinder/internal/wiki"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

type DifficultyResponse struct {
	cityfinder.Difficulty
	Query    string `json:"query"`
	Playable int    `json:"playableCities"`
}

type CountriesResponse struct {
	Countries []string `json:"countries"`
}

// TargetCity is what the player is told about the active city. Country and
// population stay hidden until the matching hint is revealed; coordinates
// are never sent.
type TargetCity struct {
	Name        string  `json:"name"`
	StateCode   *string `json:"stateCode,omitempty"`
	CountryName string  `json:"countryName,omitempty"`
	Population  int64   `json:"population,omitempty"`
}

type RoundResponse struct {
	ID           string                      `json:"id"`
	State        string                      `json:"state"`
	Clock        float64                     `json:"clock"`
	ClockText    string                      `json:"clockText"`
	Found        int                         `json:"found"`
	Target       int                         `json:"target"`
	CityIndex    int                         `json:"cityIndex"`
	ActiveCity   *TargetCity                 `json:"activeCity,omitempty"`
	AwaitingCity bool                        `json:"awaitingCity"`
	Revealed     []scoring.Hint              `json:"revealed"`
	Submitted    bool                        `json:"submitted"`
	Filter       cityfinder.DifficultyFilter `json:"filter"`
	Query        string                      `json:"query"`
}

type CreateRoundRequest struct {
	Difficulty string                       `json:"difficulty,omitempty"`
	Filter     *cityfinder.DifficultyFilter `json:"filter,omitempty"`
}

type GuessRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type GuessResponse struct {
	Verdict scoring.Verdict `json:"verdict"`
	Round   RoundResponse   `json:"round"`
}

type HintRequest struct {
	Hint string `json:"hint"`
}

type HintResponse struct {
	Hint           scoring.Hint  `json:"hint"`
	CountryName    string        `json:"countryName,omitempty"`
	Population     int64         `json:"population,omitempty"`
	Charged        bool          `json:"charged"`
	PenaltySeconds float64       `json:"penaltySeconds"`
	Round          RoundResponse `json:"round"`
}

type SummaryCity struct {
	Name           string     `json:"name"`
	CountryName    string     `json:"countryName"`
	StateCode      *string    `json:"stateCode,omitempty"`
	SecondsSpent   float64    `json:"secondsSpent"`
	PenaltySeconds float64    `json:"penaltySeconds"`
	Info           *wiki.Info `json:"info,omitempty"`
}

type SummaryResponse struct {
	RoundID          string                      `json:"roundId"`
	TotalSeconds     float64                     `json:"totalSeconds"`
	TimeText         string                      `json:"timeText"`
	CitiesFound      int                         `json:"citiesFound"`
	Cities           []SummaryCity               `json:"cities"`
	Filter           cityfinder.DifficultyFilter `json:"filter"`
	ShareText        string                      `json:"shareText"`
	LeaderboardQuery string                      `json:"leaderboardQuery"`
	Submitted        bool                        `json:"submitted"`
}

type LeaderboardResponse struct {
	Entries  []leaderboard.Entry `json:"entries"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"pageSize"`
	HasMore  bool                `json:"hasMore"`
}

type SubmitResponse struct {
	Entry leaderboard.Entry `json:"entry"`
	// Rank is the entry's 1-based place in its leaderboard, omitted when
	// it falls outside the ranked window.
	Rank int `json:"rank,omitempty"`
}

func roundResponse(id string, rd *round.Round) RoundResponse {
	s := rd.Snapshot()
	f := rd.Filter()
	resp := RoundResponse{
		ID:           id,
		State:        s.State.String(),
		Clock:        s.Clock,
		ClockText:    cityfinder.FormatTime(s.Clock),
		Found:        s.Found,
		Target:       s.Target,
		CityIndex:    s.CityIndex,
		AwaitingCity: s.AwaitingCity,
		Revealed:     s.Revealed,
		Submitted:    s.Submitted,
		Filter:       f,
		Query:        f.Query().Encode(),
	}
	if resp.Revealed == nil {
		resp.Revealed = []scoring.Hint{}
	}
	if c := s.ActiveCity; c != nil {
		t := &TargetCity{Name: c.Name, StateCode: c.StateCode}
		for _, h := range s.Revealed {
			switch h {
			case scoring.HintCountry:
				t.CountryName = c.CountryName
			case scoring.HintPopulation:
				t.Population = c.Population
			}
		}
		resp.ActiveCity = t
	}
	return resp
}
