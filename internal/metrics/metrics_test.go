package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/playperu/cityfinder/internal/round"
	"github.com/playperu/cityfinder/internal/scoring"
)

func TestObserveRound(t *testing.T) {
	m := New(prometheus.NewRegistry())

	hit := scoring.Verdict{Hit: true}
	miss := scoring.Verdict{DistanceMiles: 1200, PenaltySeconds: 12}
	events := []round.Event{
		{Type: round.EventVerdict, Verdict: &miss, PenaltySeconds: 12},
		{Type: round.EventHint, Hint: scoring.HintCountry, PenaltySeconds: 30},
		{Type: round.EventVerdict, Verdict: &hit},
		{Type: round.EventSkip, PenaltySeconds: 60},
		{Type: round.EventTick},
		{Type: round.EventComplete, Clock: 123.4},
	}
	for _, ev := range events {
		m.ObserveRound(ev)
	}

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"hits", m.guesses.WithLabelValues("hit"), 1},
		{"misses", m.guesses.WithLabelValues("miss"), 1},
		{"miss penalty", m.penalties.WithLabelValues("miss"), 12},
		{"hint penalty", m.penalties.WithLabelValues("hint_country"), 30},
		{"skip penalty", m.penalties.WithLabelValues("skip"), 60},
		{"completed", m.roundsFinished.WithLabelValues("complete"), 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
	if got := testutil.CollectAndCount(m.roundSeconds); got != 1 {
		t.Errorf("round clock histogram series = %d, want 1", got)
	}
}

func TestObserveHTTP(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveHTTP(http.MethodPost, "/api/rounds/{roundID}/guess", http.StatusOK, 3*time.Millisecond)
	m.ObserveHTTP(http.MethodPost, "/api/rounds/{roundID}/guess", http.StatusConflict, time.Millisecond)

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/api/rounds/{roundID}/guess", "409")); got != 1 {
		t.Errorf("409 requests = %v, want 1", got)
	}
	m.Submission("saved")
	if got := testutil.ToFloat64(m.submissions.WithLabelValues("saved")); got != 1 {
		t.Errorf("saved submissions = %v, want 1", got)
	}
}
