package domain

import "context"

// SearchResult is one organic entry from the search capability.
type SearchResult struct {
	Title string
	Link  string
}

// Searcher is the web-search capability. Zero results is not an error.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}
