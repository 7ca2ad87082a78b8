package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/playperu/cityfinder/internal/cityfinder"
	"github.com/playperu/cityfinder/internal/leaderboard"
)

var filterParams = []string{
	cityfinder.ParamMinPop,
	cityfinder.ParamMaxPop,
	cityfinder.ParamCities,
	cityfinder.ParamNoLabels,
	cityfinder.ParamAllowedCountries,
	cityfinder.ParamExcludedCountries,
}

// leaderboardFilter scopes the view to the partition named by the URL
// transport parameters. Without any of them every entry is listed.
func leaderboardFilter(v url.Values) (leaderboard.Filter, error) {
	present := false
	for _, p := range filterParams {
		if v.Has(p) {
			present = true
			break
		}
	}
	if !present {
		return leaderboard.Filter{}, nil
	}

	df, err := cityfinder.FilterFromQuery(v)
	if err != nil {
		return leaderboard.Filter{}, err
	}
	f := leaderboard.FilterFor(df)
	if v.Has(cityfinder.ParamCities) {
		f.CitiesCount = df.Cities
	}
	return f, nil
}

func parsePositive(v url.Values, key string, def int) (int, bool) {
	s := v.Get(key)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func handleLeaderboard(logger *slog.Logger, q leaderboard.Querier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := r.URL.Query()
		f, err := leaderboardFilter(v)
		if err != nil {
			writeErr(w, err)
			return
		}

		page, ok := parsePositive(v, "page", 1)
		if !ok {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		size, ok := parsePositive(v, "pageSize", leaderboard.DefaultPageSize)
		if !ok {
			writeError(w, http.StatusBadRequest, "pageSize must be a positive integer")
			return
		}
		size = min(size, leaderboard.MaxPageSize)

		p, err := q.Query(r.Context(), f, page, size)
		if err != nil {
			logger.Error("querying leaderboard", "error", err)
			writeErr(w, err)
			return
		}

		entries := p.Entries
		if entries == nil {
			entries = []leaderboard.Entry{}
		}
		writeJSON(w, http.StatusOK, LeaderboardResponse{
			Entries:  entries,
			Total:    p.Total,
			Page:     page,
			PageSize: size,
			HasMore:  p.HasMore(page, size),
		})
	}
}
