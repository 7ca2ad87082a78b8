package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/playperu/cityfinder/internal/cityfinder"
)

// handleCreateRound starts a round. The filter comes from a preset name or an
// explicit filter in the JSON body, or from the URL transport parameters when
// the body is empty.
func handleCreateRound(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoundRequest
		if err := readJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		f, err := requestedFilter(req, r)
		if err != nil {
			writeErr(w, err)
			return
		}

		s, err := reg.Create(r.Context(), f)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, roundResponse(s.id, s.round))
	}
}

func requestedFilter(req CreateRoundRequest, r *http.Request) (cityfinder.DifficultyFilter, error) {
	switch {
	case req.Filter != nil:
		return *req.Filter, req.Filter.Validate()
	case req.Difficulty != "":
		d, ok := cityfinder.Preset(req.Difficulty)
		if !ok {
			return cityfinder.DifficultyFilter{}, fmt.Errorf("%w: unknown difficulty %q", cityfinder.ErrInvalidFilter, req.Difficulty)
		}
		return d.Filter, nil
	}
	return cityfinder.FilterFromQuery(r.URL.Query())
}

func handleGetRound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		writeJSON(w, http.StatusOK, roundResponse(s.id, s.round))
	}
}

// handleAbandonRound stops the round clock and drops the round.
func handleAbandonRound(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg.Remove(sessionFrom(r).id)
		w.WriteHeader(http.StatusNoContent)
	}
}
