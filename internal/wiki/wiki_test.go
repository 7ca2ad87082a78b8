package wiki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/playperu/cityfinder/internal/cityfinder"
)

func summaryJSON(title string) map[string]any {
	return map[string]any{
		"type":      "standard",
		"title":     title,
		"extract":   title + " is a city.",
		"thumbnail": map[string]any{"source": "https://upload.example/" + title + ".jpg"},
		"content_urls": map[string]any{
			"desktop": map[string]any{"page": "https://en.wikipedia.org/wiki/" + title},
		},
	}
}

// fakeWikipedia serves summaries for the titles in pages and search hits from
// search, keyed by the srsearch query.
func fakeWikipedia(t *testing.T, pages map[string]bool, search map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/rest_v1/page/summary/", func(w http.ResponseWriter, r *http.Request) {
		title := strings.TrimPrefix(r.URL.Path, "/api/rest_v1/page/summary/")
		w.Header().Set("Content-Type", "application/json")
		if title == "Soft Missing" {
			json.NewEncoder(w).Encode(map[string]any{"type": notFoundType})
			return
		}
		if !pages[title] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(summaryJSON(title))
	})
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		var res searchResult
		if title, ok := search[r.URL.Query().Get("srsearch")]; ok {
			res.Query.Search = append(res.Query.Search, struct {
				Title string `json:"title"`
			}{title})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchQuery(t *testing.T) {
	ny := "NY"
	tests := []struct {
		city cityfinder.City
		want string
	}{
		{cityfinder.City{Name: "New York City", CountryName: "United States", StateCode: &ny}, "New York City, NY"},
		{cityfinder.City{Name: "Lima", CountryName: "Peru"}, "Lima, Peru"},
		{cityfinder.City{Name: "Atlantis"}, "Atlantis"},
	}
	for _, tt := range tests {
		if got := SearchQuery(tt.city); got != tt.want {
			t.Errorf("SearchQuery(%s) = %q, want %q", tt.city.Name, got, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	srv := fakeWikipedia(t,
		map[string]bool{"Lima, Peru": true, "Paris": true, "Warwick, Rhode Island": true},
		map[string]string{"Paris, France": "Paris", "Soft Missing": "Warwick, Rhode Island"},
	)
	c := New(srv.URL, WithHTTPClient(srv.Client()))

	tests := []struct {
		name string
		city cityfinder.City
		want Info
	}{
		{
			name: "direct",
			city: cityfinder.City{Name: "Lima", CountryName: "Peru"},
			want: Info{
				Name:        "Lima",
				Image:       "https://upload.example/Lima, Peru.jpg",
				Description: "Lima, Peru is a city.",
				Link:        "https://en.wikipedia.org/wiki/Lima, Peru",
			},
		},
		{
			name: "search fallback",
			city: cityfinder.City{Name: "Paris", CountryName: "France"},
			want: Info{
				Name:        "Paris",
				Image:       "https://upload.example/Paris.jpg",
				Description: "Paris is a city.",
				Link:        "https://en.wikipedia.org/wiki/Paris",
			},
		},
		{
			name: "not found summary type",
			city: cityfinder.City{Name: "Soft Missing"},
			want: Info{
				Name:        "Soft Missing",
				Image:       "https://upload.example/Warwick, Rhode Island.jpg",
				Description: "Warwick, Rhode Island is a city.",
				Link:        "https://en.wikipedia.org/wiki/Warwick, Rhode Island",
			},
		},
		{
			name: "no match",
			city: cityfinder.City{Name: "Atlantis", CountryName: "Ocean"},
			want: Info{Name: "Atlantis"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Lookup(context.Background(), tt.city)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Lookup mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLookupUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := New(srv.URL)
	got := c.Lookup(context.Background(), cityfinder.City{Name: "Tokyo", CountryName: "Japan"})
	if diff := cmp.Diff(Info{Name: "Tokyo"}, got); diff != "" {
		t.Errorf("Lookup mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupAllKeepsOrder(t *testing.T) {
	pages := map[string]bool{}
	var cities []cityfinder.City
	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		pages[name+", X"] = true
		cities = append(cities, cityfinder.City{Name: name, CountryName: "X"})
	}
	srv := fakeWikipedia(t, pages, nil)
	c := New(srv.URL, WithHTTPClient(srv.Client()))

	infos := c.LookupAll(context.Background(), cities)
	if len(infos) != len(cities) {
		t.Fatalf("got %d infos, want %d", len(infos), len(cities))
	}
	for i, info := range infos {
		if info.Name != cities[i].Name || info.Description == "" {
			t.Errorf("info %d = %+v, want details for %s", i, info, cities[i].Name)
		}
	}
}
