package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/playperu/cityfinder/internal/cityfinder"
	"github.com/playperu/cityfinder/internal/leaderboard"
	"github.com/playperu/cityfinder/internal/metrics"
	"github.com/playperu/cityfinder/internal/wiki"
)

const (
	infoTimeout = 4 * time.Second
	// Submissions placed below this get no rank.
	rankScanLimit = 1000
)

// InfoLookup fetches descriptive info for cities. Results are best effort and
// keep the order of the input.
type InfoLookup interface {
	LookupAll(ctx context.Context, cities []cityfinder.City) []wiki.Info
}

func shareText(found int, seconds float64) string {
	return fmt.Sprintf("I found %d cities in %s! Can you beat my time?", found, cityfinder.FormatTime(seconds))
}

// handleSummary returns the final result of a completed round. City info is
// attached when infos is non-nil and never fails the request.
func handleSummary(infos InfoLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		sum, err := s.round.Summary()
		if err != nil {
			writeErr(w, err)
			return
		}

		resp := SummaryResponse{
			RoundID:          s.id,
			TotalSeconds:     sum.TotalSeconds,
			TimeText:         cityfinder.FormatTime(sum.TotalSeconds),
			CitiesFound:      sum.CitiesFound,
			Cities:           make([]SummaryCity, len(sum.Cities)),
			Filter:           sum.Filter,
			ShareText:        shareText(sum.CitiesFound, sum.TotalSeconds),
			LeaderboardQuery: sum.Filter.Query().Encode(),
			Submitted:        s.round.Snapshot().Submitted,
		}

		var info []wiki.Info
		if infos != nil {
			cities := make([]cityfinder.City, len(sum.Cities))
			for i, c := range sum.Cities {
				cities[i] = c.City
			}
			ctx, cancel := context.WithTimeout(r.Context(), infoTimeout)
			info = infos.LookupAll(ctx, cities)
			cancel()
		}

		for i, c := range sum.Cities {
			resp.Cities[i] = SummaryCity{
				Name:           c.City.Name,
				CountryName:    c.City.CountryName,
				StateCode:      c.City.StateCode,
				SecondsSpent:   c.SecondsSpent,
				PenaltySeconds: c.PenaltySeconds,
			}
			if i < len(info) {
				resp.Cities[i].Info = &info[i]
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleSubmit records a completed round on the leaderboard for the signed-in
// caller. A round is submitted at most once, whatever the store answers.
func handleSubmit(logger *slog.Logger, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		id := identityFrom(r)
		if !id.SignedIn() {
			m.Submission("unauthorized")
			writeErr(w, cityfinder.ErrAuthorizationRequired)
			return
		}

		sum, err := s.round.Summary()
		if err != nil {
			writeErr(w, err)
			return
		}
		if !s.round.MarkSubmitted() {
			m.Submission("duplicate")
			writeErr(w, cityfinder.ErrAlreadySubmitted)
			return
		}

		h := s.handles.For(id)
		entry, err := h.SubmitRound(r.Context(), sum)
		if err != nil {
			m.Submission("rejected")
			if !errors.Is(err, cityfinder.ErrAuthorizationRequired) {
				logger.Error("submitting round", "round_id", s.id, "user_id", id.UserID, "error", err)
			}
			writeErr(w, err)
			return
		}

		m.Submission("saved")
		logger.Info("round submitted", "round_id", s.id, "entry_id", entry.EntryID, "time_seconds", entry.TimeSeconds)
		resp := SubmitResponse{Entry: entry}
		partition := leaderboard.FilterFor(sum.Filter)
		partition.CitiesCount = entry.CitiesFound
		rank, ok, err := leaderboard.Rank(r.Context(), h, partition, entry.EntryID, rankScanLimit)
		switch {
		case err != nil:
			logger.Warn("ranking submitted entry", "entry_id", entry.EntryID, "error", err)
		case ok:
			resp.Rank = rank
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}
