package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/cityfinder/internal/handler/health"
)

// RoundPath is the path parameter of every round operation.
type RoundPath struct {
	RoundID string `path:"roundID"`
}

type leaderboardQuery struct {
	MinPop            int64  `query:"minPop"`
	MaxPop            int64  `query:"maxPop"`
	Cities            int    `query:"cities"`
	NoLabels          bool   `query:"noLabels"`
	AllowedCountries  string `query:"allowedCountries" description:"JSON array of country names"`
	ExcludedCountries string `query:"excludedCountries" description:"JSON array of country names"`
	Page              int    `query:"page" minimum:"1"`
	PageSize          int    `query:"pageSize" minimum:"1" maximum:"100"`
}

type guessOp struct {
	RoundPath
	GuessRequest
}

type hintOp struct {
	RoundPath
	HintRequest
}

type createRoundOp struct {
	CreateRoundRequest
	MinPop int64 `query:"minPop"`
	Cities int   `query:"cities"`
}

type operation struct {
	method, path, summary, description string
	req                                any
	resp                               []response
}

type response struct {
	body   any
	status int
	ctype  string
}

func respOK(body any) response      { return response{body: body, status: http.StatusOK} }
func respCreated(body any) response { return response{body: body, status: http.StatusCreated} }
func respError(status int) response { return response{body: ErrorResponse{}, status: status} }

var operations = []operation{
	{
		method: http.MethodGet, path: "/healthz",
		summary:     "Health check",
		description: "Returns the health status of backend dependencies.",
		resp:        []response{respOK(health.Response{}), {body: health.Response{}, status: http.StatusServiceUnavailable}},
	},
	{
		method: http.MethodGet, path: "/api/difficulties",
		summary:     "List difficulties",
		description: "Preset difficulty filters with the query string that launches each and the number of playable cities.",
		resp:        []response{respOK([]DifficultyResponse{})},
	},
	{
		method: http.MethodGet, path: "/api/countries",
		summary: "List countries",
		resp:    []response{respOK(CountriesResponse{})},
	},
	{
		method: http.MethodPost, path: "/api/rounds",
		summary:     "Start a round",
		description: "Starts a round under a preset, an explicit filter, or the URL transport parameters.",
		req:         createRoundOp{},
		resp: []response{
			respCreated(RoundResponse{}),
			respError(http.StatusBadRequest),
			respError(http.StatusUnprocessableEntity),
			respError(http.StatusTooManyRequests),
		},
	},
	{
		method: http.MethodGet, path: "/api/rounds/{roundID}",
		summary: "Get round",
		req:     RoundPath{},
		resp:    []response{respOK(RoundResponse{}), respError(http.StatusNotFound)},
	},
	{
		method: http.MethodDelete, path: "/api/rounds/{roundID}",
		summary:     "Abandon round",
		description: "Stops the round clock and discards the round.",
		req:         RoundPath{},
		resp:        []response{{status: http.StatusNoContent}, respError(http.StatusNotFound)},
	},
	{
		method: http.MethodPost, path: "/api/rounds/{roundID}/guess",
		summary:     "Guess",
		description: "Judges a map click against the active city.",
		req:         guessOp{},
		resp:        []response{respOK(GuessResponse{}), respError(http.StatusConflict), respError(http.StatusNotFound)},
	},
	{
		method: http.MethodPost, path: "/api/rounds/{roundID}/hints",
		summary:     "Reveal hint",
		description: "Reveals the country or population of the active city. Each hint is charged once per city.",
		req:         hintOp{},
		resp:        []response{respOK(HintResponse{}), respError(http.StatusBadRequest), respError(http.StatusConflict)},
	},
	{
		method: http.MethodPost, path: "/api/rounds/{roundID}/skip",
		summary: "Skip city",
		req:     RoundPath{},
		resp:    []response{respOK(RoundResponse{}), respError(http.StatusConflict)},
	},
	{
		method: http.MethodPost, path: "/api/rounds/{roundID}/advance",
		summary:     "Draw next city",
		description: "Retries a city draw that failed after a find or skip.",
		req:         RoundPath{},
		resp:        []response{respOK(RoundResponse{}), respError(http.StatusConflict), respError(http.StatusUnprocessableEntity)},
	},
	{
		method: http.MethodGet, path: "/api/rounds/{roundID}/summary",
		summary:     "Round summary",
		description: "Final result of a completed round with best-effort city info and share text.",
		req:         RoundPath{},
		resp:        []response{respOK(SummaryResponse{}), respError(http.StatusConflict)},
	},
	{
		method: http.MethodPost, path: "/api/rounds/{roundID}/submit",
		summary:     "Submit to leaderboard",
		description: "Records the completed round for the Bearer token's user. A round is submitted at most once.",
		req:         RoundPath{},
		resp: []response{
			respCreated(SubmitResponse{}),
			respError(http.StatusUnauthorized),
			respError(http.StatusConflict),
			respError(http.StatusBadGateway),
		},
	},
	{
		method: http.MethodGet, path: "/api/rounds/{roundID}/events",
		summary:     "SSE event stream",
		description: "Server-Sent Events stream of round events. Ends after the round completes or is abandoned.",
		req:         RoundPath{},
		resp:        []response{{status: http.StatusOK, ctype: "text/event-stream"}},
	},
	{
		method: http.MethodGet, path: "/api/rounds/{roundID}/ws",
		summary:     "Round websocket",
		description: "Upgrades to a WebSocket taking click, hint, skip and advance messages and sending results and round events.",
		req:         RoundPath{},
		resp:        []response{{status: http.StatusSwitchingProtocols, ctype: "text/plain"}},
	},
	{
		method: http.MethodGet, path: "/api/leaderboard",
		summary:     "Leaderboard",
		description: "Entries ordered by time within the partition named by the filter parameters.",
		req:         leaderboardQuery{},
		resp:        []response{respOK(LeaderboardResponse{}), respError(http.StatusBadRequest)},
	},
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "City Finder API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Rounds, scoring and leaderboard for the City Finder game.")

	for _, op := range operations {
		oc, err := r.NewOperationContext(op.method, op.path)
		if err != nil {
			continue
		}
		oc.SetSummary(op.summary)
		if op.description != "" {
			oc.SetDescription(op.description)
		}
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		for _, resp := range op.resp {
			opts := []openapi.ContentOption{openapi.WithHTTPStatus(resp.status)}
			if resp.ctype != "" {
				opts = append(opts, openapi.WithContentType(resp.ctype))
			}
			oc.AddRespStructure(resp.body, opts...)
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
