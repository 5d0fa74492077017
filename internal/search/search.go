// Package search provides best-effort web search for triage enrichment.
package search

import "context"

// Result is a single search hit: a page title and a short snippet.
type Result struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Source is the interface for any text search provider.
type Source interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}
