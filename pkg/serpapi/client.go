// Package serpapi provides a minimal SerpAPI client covering the organic,
// shopping, and image search endpoints used by the resolution pipeline.
package serpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://serpapi.com"

// Client performs SerpAPI search operations.
type Client interface {
	Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error)
	SearchShopping(ctx context.Context, query string, opts SearchOptions) ([]ShoppingResult, error)
	SearchImage(ctx context.Context, query string) (string, error)
}

// SearchOptions tunes a single search call.
type SearchOptions struct {
	// Num caps the number of results requested (0 = API default).
	Num int
	// NoCache asks SerpAPI to bypass its result cache.
	NoCache bool
}

// SearchResponse holds both organic and shopping results from one query.
type SearchResponse struct {
	Organic  []OrganicResult  `json:"organic_results"`
	Shopping []ShoppingResult `json:"shopping_results"`
}

// OrganicResult is a single ranked web result.
type OrganicResult struct {
	Title   string `json:"title"`
	URL     string `json:"link"`
	Snippet string `json:"snippet"`
}

// ShoppingResult is a single product listing.
type ShoppingResult struct {
	Title     string `json:"title"`
	URL       string `json:"link"`
	Price     string `json:"price"`
	Source    string `json:"source"`
	Thumbnail string `json:"thumbnail"`
}

// imageResult is a single image search hit.
type imageResult struct {
	Original  string `json:"original"`
	Thumbnail string `json:"thumbnail"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a SerpAPI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "serpapi: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "serpapi: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "serpapi: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("serpapi: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "serpapi: unmarshal response")
	}

	return nil
}

func baseParams(query string, opts SearchOptions) url.Values {
	params := url.Values{}
	params.Set("q", query)
	params.Set("engine", "google")
	if opts.Num > 0 {
		params.Set("num", strconv.Itoa(opts.Num))
	}
	if opts.NoCache {
		params.Set("no_cache", "true")
	}
	return params
}

// Search runs an organic web search. The response also carries any inline
// shopping results Google returned for the query.
func (c *httpClient) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	var result SearchResponse
	if err := c.get(ctx, baseParams(query, opts), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchShopping runs a Google Shopping search.
func (c *httpClient) SearchShopping(ctx context.Context, query string, opts SearchOptions) ([]ShoppingResult, error) {
	params := baseParams(query, opts)
	params.Set("engine", "google_shopping")

	var result struct {
		Shopping []ShoppingResult `json:"shopping_results"`
	}
	if err := c.get(ctx, params, &result); err != nil {
		return nil, err
	}
	return result.Shopping, nil
}

// SearchImage returns the URL of the top image result, or "" when the search
// came back empty.
func (c *httpClient) SearchImage(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("engine", "google_images")

	var result struct {
		Images []imageResult `json:"images_results"`
	}
	if err := c.get(ctx, params, &result); err != nil {
		return "", err
	}

	for _, img := range result.Images {
		if img.Original != "" {
			return img.Original, nil
		}
		if img.Thumbnail != "" {
			return img.Thumbnail, nil
		}
	}
	return "", nil
}
