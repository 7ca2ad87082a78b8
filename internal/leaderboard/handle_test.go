package leaderboard

import (
	"context"
	"errors"
	"testing"

	"github.com/playperu/cityfinder/internal/cityfinder"
	"github.com/playperu/cityfinder/internal/round"
)

type countingStore struct {
	Store
	inserts int
}

func (c *countingStore) Insert(ctx context.Context, sub Submission, id *cityfinder.Identity) (Entry, error) {
	c.inserts++
	return c.Store.Insert(ctx, sub, id)
}

func TestHandleRejectsAnonymousLocally(t *testing.T) {
	store := &countingStore{Store: newTestStore(t)}

	for _, id := range []*cityfinder.Identity{nil, {}} {
		h := NewHandle(store, id)
		if _, err := h.Submit(context.Background(), submission(10)); !errors.Is(err, cityfinder.ErrAuthorizationRequired) {
			t.Errorf("Submit err = %v, want ErrAuthorizationRequired", err)
		}
		// Reads stay available without an identity.
		if _, err := h.Query(context.Background(), Filter{}, 1, 10); err != nil {
			t.Errorf("Query: %v", err)
		}
	}
	if store.inserts != 0 {
		t.Errorf("store contacted %d times for anonymous submissions", store.inserts)
	}
}

func TestHandleSubmitRound(t *testing.T) {
	store := newTestStore(t)
	h := NewHandle(store, alice)

	ny := "NY"
	sum := round.Summary{
		TotalSeconds: 12.3,
		CitiesFound:  2,
		Cities: []round.CityResult{
			{City: cityfinder.City{Name: "New York City", CountryName: "United States", StateCode: &ny}, SecondsSpent: 4.3},
			{City: cityfinder.City{Name: "Lima", CountryName: "Peru"}, SecondsSpent: 8, PenaltySeconds: 2},
		},
		Filter: cityfinder.DifficultyFilter{MinPopulation: 1_000_000, Cities: 2, NoLabels: true},
	}

	e, err := h.SubmitRound(context.Background(), sum)
	if err != nil {
		t.Fatal(err)
	}
	if e.UserID != alice.UserID || e.CitiesFound != 2 || e.TimeSeconds != 12.3 {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.MaxPopulation != cityfinder.DefaultMaxPopulation {
		t.Errorf("max population = %d, want %d", e.MaxPopulation, cityfinder.DefaultMaxPopulation)
	}
	if !e.LabelsDisabled || e.FoundCities[0].StateCode == nil || *e.FoundCities[0].StateCode != "NY" {
		t.Errorf("round details not carried: %+v", e)
	}

	page, err := h.Query(context.Background(), FilterFor(sum.Filter), 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 {
		t.Errorf("partition total = %d, want 1", page.Total)
	}
}

func TestHandlesRecreateOnTokenChange(t *testing.T) {
	hs := NewHandles(newTestStore(t))

	first := hs.For(alice)
	if again := hs.For(&cityfinder.Identity{UserID: alice.UserID, Token: alice.Token}); again != first {
		t.Error("same credential produced a new handle")
	}

	refreshed := &cityfinder.Identity{UserID: alice.UserID, DisplayName: "alice", Token: "t1-refreshed"}
	second := hs.For(refreshed)
	if second == first {
		t.Fatal("token change reused the old handle")
	}
	if _, err := first.Submit(context.Background(), submission(10)); !errors.Is(err, ErrHandleClosed) {
		t.Errorf("old handle Submit err = %v, want ErrHandleClosed", err)
	}
	if _, err := second.Submit(context.Background(), submission(10)); err != nil {
		t.Errorf("new handle Submit: %v", err)
	}

	if anon := hs.For(nil); anon == second || anon.Identity() != nil {
		t.Error("signing out did not replace the handle")
	}
}
