// Package metrics exposes Prometheus collectors for rounds, the leaderboard
// and the HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/playperu/cityfinder/internal/round"
)

const namespace = "cityfinder"

type Metrics struct {
	roundsStarted  prometheus.Counter
	roundsFinished *prometheus.CounterVec
	activeRounds   prometheus.Gauge
	roundSeconds   prometheus.Histogram
	guesses        *prometheus.CounterVec
	penalties      *prometheus.CounterVec
	submissions    *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		roundsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_started_total",
			Help:      "Rounds that drew their first city.",
		}),
		roundsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_finished_total",
			Help:      "Rounds that reached a terminal state, by state.",
		}, []string{"state"}),
		activeRounds: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rounds",
			Help:      "Rounds held in the registry.",
		}),
		roundSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_clock_seconds",
			Help:      "Final clock of completed rounds, penalties included.",
			Buckets:   []float64{15, 30, 60, 120, 300, 600, 1200, 3600},
		}),
		guesses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guesses_total",
			Help:      "Judged guesses, by result.",
		}, []string{"result"}),
		penalties: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "penalty_seconds_total",
			Help:      "Seconds added to round clocks, by cause.",
		}, []string{"cause"}),
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaderboard_submissions_total",
			Help:      "Leaderboard submissions, by outcome.",
		}, []string{"outcome"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveRound records a round event.
func (m *Metrics) ObserveRound(ev round.Event) {
	switch ev.Type {
	case round.EventVerdict:
		if ev.Verdict != nil && ev.Verdict.Hit {
			m.guesses.WithLabelValues("hit").Inc()
		} else {
			m.guesses.WithLabelValues("miss").Inc()
			m.penalties.WithLabelValues("miss").Add(ev.PenaltySeconds)
		}
	case round.EventHint:
		m.penalties.WithLabelValues("hint_" + string(ev.Hint)).Add(ev.PenaltySeconds)
	case round.EventSkip:
		m.penalties.WithLabelValues("skip").Add(ev.PenaltySeconds)
	case round.EventPenalty:
		m.penalties.WithLabelValues("manual").Add(ev.PenaltySeconds)
	case round.EventComplete:
		m.roundsFinished.WithLabelValues("complete").Inc()
		m.roundSeconds.Observe(ev.Clock)
	case round.EventAbandoned:
		m.roundsFinished.WithLabelValues("abandoned").Inc()
	}
}

func (m *Metrics) RoundStarted() { m.roundsStarted.Inc() }

func (m *Metrics) SetActiveRounds(n int) { m.activeRounds.Set(float64(n)) }

// Submission records a leaderboard submission outcome: "saved",
// "unauthorized", "duplicate" or "rejected".
func (m *Metrics) Submission(outcome string) {
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
