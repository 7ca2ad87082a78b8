// Package wiki looks up descriptive summaries of cities on Wikipedia.
// Lookups are best effort: any failure degrades to a name-only Info.
package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/cityfinder/internal/cityfinder"
)

const (
	DefaultBaseURL = "https://en.wikipedia.org"

	notFoundType = "https://mediawiki.org/wiki/HyperSwitch/errors/not_found"
	batchLimit   = 4
)

var errNotFound = errors.New("page not found")

type Info struct {
	Name        string `json:"name"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
	Link        string `json:"wikiLink,omitempty"`
}

type summary struct {
	Type      string `json:"type"`
	Extract   string `json:"extract"`
	Thumbnail *struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

type searchResult struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchQuery is "name, state" for cities with a state code and
// "name, country" otherwise.
func SearchQuery(c cityfinder.City) string {
	switch {
	case c.State() != "":
		return c.Name + ", " + c.State()
	case c.CountryName != "":
		return c.Name + ", " + c.CountryName
	}
	return c.Name
}

// Lookup fetches the page summary for c, trying the direct title first and
// the best search hit second.
func (c *Client) Lookup(ctx context.Context, city cityfinder.City) Info {
	info := Info{Name: city.Name}
	q := SearchQuery(city)

	s, err := c.summary(ctx, q)
	if err != nil {
		c.logger.Debug("direct wikipedia lookup failed", "query", q, "error", err)

		title, serr := c.search(ctx, q)
		if serr != nil {
			c.logger.Debug("wikipedia search failed", "query", q, "error", serr)
			return info
		}
		if s, err = c.summary(ctx, title); err != nil {
			c.logger.Debug("wikipedia summary failed", "title", title, "error", err)
			return info
		}
	}

	info.Description = s.Extract
	info.Link = s.ContentURLs.Desktop.Page
	if s.Thumbnail != nil {
		info.Image = s.Thumbnail.Source
	}
	return info
}

// LookupAll looks up every city with bounded concurrency. The result is in
// input order.
func (c *Client) LookupAll(ctx context.Context, cities []cityfinder.City) []Info {
	out := make([]Info, len(cities))
	var g errgroup.Group
	g.SetLimit(batchLimit)
	for i, city := range cities {
		g.Go(func() error {
			out[i] = c.Lookup(ctx, city)
			return nil
		})
	}
	g.Wait()
	return out
}

func (c *Client) summary(ctx context.Context, title string) (summary, error) {
	var s summary
	if err := c.getJSON(ctx, c.baseURL+"/api/rest_v1/page/summary/"+url.PathEscape(title), &s); err != nil {
		return s, err
	}
	if s.Type == notFoundType {
		return s, errNotFound
	}
	return s, nil
}

func (c *Client) search(ctx context.Context, q string) (string, error) {
	v := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {q},
		"format":   {"json"},
	}
	var res searchResult
	if err := c.getJSON(ctx, c.baseURL+"/w/api.php?"+v.Encode(), &res); err != nil {
		return "", err
	}
	if len(res.Query.Search) == 0 {
		return "", errNotFound
	}
	return res.Query.Search[0].Title, nil
}

func (c *Client) getJSON(ctx context.Context, u string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", cityfinder.ErrTransientFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %s", cityfinder.ErrTransientFetch, req.URL.Path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decoding %s: %w", cityfinder.ErrTransientFetch, req.URL.Path, err)
	}
	return nil
}
