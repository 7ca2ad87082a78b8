package server

import (
	"log/slog"
	"net/http"

	"github.com/playperu/cityfinder/internal/scoring"
)

func handleGuess(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GuessRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		s := sessionFrom(r)
		v, err := s.round.Guess(r.Context(), req.Lat, req.Lon)
		if err != nil && !v.Hit {
			writeErr(w, err)
			return
		}
		if err != nil {
			// The find counted but the next city could not be drawn; the
			// round reports awaitingCity until an advance succeeds.
			logger.Warn("advancing after hit failed", "round_id", s.id, "error", err)
		}
		writeJSON(w, http.StatusOK, GuessResponse{Verdict: v, Round: roundResponse(s.id, s.round)})
	}
}

func handleHint() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HintRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		h, err := scoring.ParseHint(req.Hint)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		s := sessionFrom(r)
		city, charged, err := s.round.Reveal(h)
		if err != nil {
			writeErr(w, err)
			return
		}

		resp := HintResponse{Hint: h, Charged: charged, Round: roundResponse(s.id, s.round)}
		if charged {
			resp.PenaltySeconds = h.Penalty()
		}
		switch h {
		case scoring.HintCountry:
			resp.CountryName = city.CountryName
		case scoring.HintPopulation:
			resp.Population = city.Population
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSkip() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		if err := s.round.Skip(r.Context()); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, roundResponse(s.id, s.round))
	}
}

// handleAdvance retries a city draw that failed after a find or skip.
func handleAdvance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		if err := s.round.RetryDraw(r.Context()); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, roundResponse(s.id, s.round))
	}
}
