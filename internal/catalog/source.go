package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/playperu/cityfinder/internal/cityfinder"
)

// Decode reads a JSON array of city records.
func Decode(r io.Reader) ([]cityfinder.City, error) {
	var cities []cityfinder.City
	if err := json.NewDecoder(r).Decode(&cities); err != nil {
		return nil, fmt.Errorf("decoding cities: %w", err)
	}
	return cities, nil
}

// LoadFile reads the city dataset from a local JSON file.
func LoadFile(path string, opts ...Option) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", cityfinder.ErrTransientFetch, path, err)
	}
	defer f.Close()

	cities, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cityfinder.ErrTransientFetch, err)
	}
	return New(cities, opts...), nil
}

// LoadURL fetches the externally hosted city dataset once.
func LoadURL(ctx context.Context, client *http.Client, url string, opts ...Option) (*Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building dataset request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", cityfinder.ErrTransientFetch, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetching %s: status %d", cityfinder.ErrTransientFetch, url, resp.StatusCode)
	}

	cities, err := Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cityfinder.ErrTransientFetch, err)
	}
	return New(cities, opts...), nil
}
