package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggest/swgui/v5emb"
	"golang.org/x/time/rate"

	"github.com/playperu/cityfinder/internal/handler/health"
)

func addRoutes(r chi.Router, d Deps, reg *Registry, broker *Broker) {
	limit := func(next http.Handler) http.Handler { return next }
	if d.RateLimit > 0 {
		limit = rateLimitMiddleware(newIPRateLimiter(rate.Limit(d.RateLimit), d.RateBurst))
	}

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("City Finder API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(d.Logger, d.Checks).Routes())
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/difficulties", handleDifficulties(d.Catalog))
		r.Get("/countries", handleCountries(d.Catalog))
		r.Get("/leaderboard", handleLeaderboard(d.Logger, d.Store))

		r.With(limit).Post("/rounds", handleCreateRound(reg))

		// Round routes: {roundID} resolved by roundMiddleware.
		r.Route("/rounds/{roundID}", func(r chi.Router) {
			r.Use(roundMiddleware(reg))
			r.Get("/", handleGetRound())
			r.Delete("/", handleAbandonRound(reg))
			r.Get("/summary", handleSummary(d.Wiki))
			r.Get("/events", handleEvents(broker))
			r.Get("/ws", handleRoundWS(d.Logger, broker, d.CORSOrigins))

			r.Group(func(r chi.Router) {
				r.Use(limit)
				r.Post("/guess", handleGuess(d.Logger))
				r.Post("/hints", handleHint())
				r.Post("/skip", handleSkip())
				r.Post("/advance", handleAdvance())
				r.With(identityMiddleware(d.Verifier)).Post("/submit", handleSubmit(d.Logger, d.Metrics))
			})
		})
	})

	if d.SPA != nil {
		d.Logger.Info("serving SPA")
		r.NotFound(handleSPA(d.SPA))
	}
}
