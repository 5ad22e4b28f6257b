// Package search implements the web-search capability on top of SerpAPI's
// Google engine. Each query is attempted exactly once; zero organic results
// is a valid outcome, not an error.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"relaybot/internal/domain"
)

const (
	serpAPIBase    = "https://serpapi.com"
	searchTimeout  = 15 * time.Second
	userAgent      = "relaybot/0.1"
	maxResponseLen = 1 << 20 // 1MB cap on the response body
)

// Client implements domain.Searcher against SerpAPI.
type Client struct {
	apiKey  string
	apiBase string
	client  *http.Client
	logger  *slog.Logger
}

type ClientConfig struct {
	APIKey  string
	APIBase string // override for tests
	Logger  *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = serpAPIBase
	}
	return &Client{
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		client:  &http.Client{Timeout: searchTimeout},
		logger:  cfg.Logger,
	}
}

// NewClientWithHTTP is like NewClient but uses the given http.Client.
func NewClientWithHTTP(cfg ClientConfig, client *http.Client) *Client {
	c := NewClient(cfg)
	if client != nil {
		c.client = client
	}
	return c
}

// serpResponse matches the subset of SerpAPI's JSON payload we consume.
type serpResponse struct {
	OrganicResults []serpOrganic `json:"organic_results"`
	Error          string        `json:"error,omitempty"`
}

type serpOrganic struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	q := url.Values{}
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("api_key", c.apiKey)

	endpoint := c.apiBase + "/search.json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseLen))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var sr serpResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if sr.Error != "" {
		return nil, fmt.Errorf("serpapi error: %s", sr.Error)
	}

	results := make([]domain.SearchResult, 0, len(sr.OrganicResults))
	for _, r := range sr.OrganicResults {
		results = append(results, domain.SearchResult{Title: r.Title, Link: r.Link})
	}

	c.logger.Debug("search completed", "query", query, "results", len(results))
	return results, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
