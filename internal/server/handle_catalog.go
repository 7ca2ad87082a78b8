package server

import (
	"net/http"

	"github.com/playperu/cityfinder/internal/cityfinder"
)

func handleDifficulties(cat Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		presets := cityfinder.Presets()
		resp := make([]DifficultyResponse, len(presets))
		for i, d := range presets {
			resp[i] = DifficultyResponse{
				Difficulty: d,
				Query:      d.Filter.Query().Encode(),
				Playable:   cat.Count(d.Filter),
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleCountries(cat Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, CountriesResponse{Countries: cat.Countries()})
	}
}
