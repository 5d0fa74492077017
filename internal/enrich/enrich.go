// Package enrich builds per-identifier intelligence briefs for the
// classifier by combining KEV registry membership with best-effort web
// search context.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/warden/internal/kev"
	"github.com/linnemanlabs/warden/internal/search"
)

// Markers rendered into the brief. The classifier's decision policy keys
// off KEVHitMarker, so its text must stay in sync with the policy prompt.
const (
	KEVHitMarker  = "YES (Must be P0, Critical)"
	KEVMissMarker = "No"

	SearchDisabled = "Search Disabled"
	NoSearchHits   = "No relevant search results found."
)

// noIdentifiers is appended when extraction found nothing; classification
// proceeds from the raw text alone.
const noIdentifiers = "(No CVE identifiers detected. Classify from the raw text description alone.)"

// queryKeywords are appended to each identifier to surface exploit, PoC
// and scoring information.
const queryKeywords = "vulnerability exploit poc cvss score github"

// DefaultThrottle is the pause between successive search lookups. It is
// deliberate serialization to avoid tripping anti-scraping defenses.
const DefaultThrottle = 500 * time.Millisecond

// OnIdentifier is called before each identifier lookup so the caller can
// surface progress.
type OnIdentifier func(idx, total int, id string)

// Builder assembles enrichment briefs. Search failure never aborts the
// brief; it degrades to an explicit placeholder.
type Builder struct {
	search     search.Source
	maxResults int
	throttle   time.Duration
	logger     log.Logger

	// OnLookup, when set, is called after each search lookup for
	// instrumentation.
	OnLookup func(ok bool)

	sleep func(time.Duration)
}

// New creates a brief builder over the given search source.
func New(src search.Source, maxResults int, throttle time.Duration, logger log.Logger) *Builder {
	if maxResults <= 0 {
		maxResults = 3
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Builder{
		search:     src,
		maxResults: maxResults,
		throttle:   throttle,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// Brief combines the raw report with per-identifier external intelligence
// into a single classifier input.
func (b *Builder) Brief(ctx context.Context, rawText string, ids []string, reg kev.Registry, enableSearch bool, onID OnIdentifier) string {
	var sb strings.Builder
	sb.WriteString("[Original report]\n")
	sb.WriteString(rawText)
	sb.WriteString("\n\n[External intelligence]\n")

	if len(ids) == 0 {
		sb.WriteString(noIdentifiers)
		return sb.String()
	}

	for idx, id := range ids {
		if onID != nil {
			onID(idx, len(ids), id)
		}

		kevStr := KEVMissMarker
		if reg.Contains(id) {
			kevStr = KEVHitMarker
		}

		searchContext := SearchDisabled
		if enableSearch {
			searchContext = b.searchContext(ctx, id)
			b.sleep(b.throttle)
		}

		fmt.Fprintf(&sb, "--- Vulnerability: %s ---\n", id)
		fmt.Fprintf(&sb, "[CISA KEV Database Hit]: %s\n", kevStr)
		fmt.Fprintf(&sb, "[Internet Search Context]:\n%s\n\n", searchContext)
	}

	return sb.String()
}

// searchContext looks up one identifier and formats the hits. Provider
// failure and zero hits both yield literal placeholders.
func (b *Builder) searchContext(ctx context.Context, id string) string {
	query := id + " " + queryKeywords

	results, err := b.search.Search(ctx, query, b.maxResults)
	if b.OnLookup != nil {
		b.OnLookup(err == nil)
	}
	if err != nil {
		b.logger.Warn(ctx, "search lookup failed", "cve", id, "error", err)
		return fmt.Sprintf("search skipped due to error: %v", err)
	}
	if len(results) == 0 {
		return NoSearchHits
	}

	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "- Title: %s\n  Snippet: %s\n", r.Title, r.Body)
	}
	return sb.String()
}
