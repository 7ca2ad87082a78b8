package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/playperu/cityfinder/internal/cityfinder"
	"github.com/playperu/cityfinder/internal/leaderboard"
	"github.com/playperu/cityfinder/internal/round"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeErr maps domain errors to HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, msg)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, cityfinder.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, cityfinder.ErrAuthorizationRequired):
		return http.StatusUnauthorized
	case errors.Is(err, cityfinder.ErrCatalogExhausted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cityfinder.ErrRoundComplete),
		errors.Is(err, cityfinder.ErrRoundNotStarted),
		errors.Is(err, cityfinder.ErrNoActiveCity),
		errors.Is(err, cityfinder.ErrAlreadySubmitted),
		errors.Is(err, round.ErrNotComplete),
		errors.Is(err, leaderboard.ErrHandleClosed):
		return http.StatusConflict
	case errors.Is(err, cityfinder.ErrStoreRejected):
		return http.StatusBadGateway
	case errors.Is(err, cityfinder.ErrTransientFetch):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
