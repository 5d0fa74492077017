// Package kev provides access to the CISA Known Exploited Vulnerabilities
// catalog: a feed source, a set-based registry, and a TTL cache.
package kev

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// DefaultFeedURL is the public CISA KEV catalog location.
const DefaultFeedURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"

// DefaultTTL is how long a fetched registry stays fresh.
const DefaultTTL = time.Hour

const fetchTimeout = 5 * time.Second

// Registry is the set of CVE identifiers known to be actively exploited.
// Identifiers are stored uppercased; membership checks are exact-match.
type Registry map[string]struct{}

// Contains reports whether id is in the registry. The check is
// case-insensitive: the id is folded to uppercase before lookup.
func (r Registry) Contains(id string) bool {
	_, ok := r[strings.ToUpper(id)]
	return ok
}

// Source fetches a fresh registry from a threat feed.
type Source interface {
	Fetch(ctx context.Context) (Registry, error)
}

// catalog is the shape of the CISA KEV JSON document. Only cveID is consumed.
type catalog struct {
	Vulnerabilities []struct {
		CVEID string `json:"cveID"`
	} `json:"vulnerabilities"`
}

// HTTPSource fetches the KEV catalog over HTTP with a bounded timeout.
type HTTPSource struct {
	url        string
	httpClient *http.Client
}

// NewHTTPSource creates a feed source for the given catalog URL.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		url:        url,
		httpClient: &http.Client{Timeout: fetchTimeout},
	}
}

// Fetch downloads and parses the catalog into a Registry.
func (s *HTTPSource) Fetch(ctx context.Context) (Registry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req) //nolint:gosec // G704: url is from trusted config, not user input
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20)) // 20 MB
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	var cat catalog
	if err := json.Unmarshal(body, &cat); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	reg := make(Registry, len(cat.Vulnerabilities))
	for _, v := range cat.Vulnerabilities {
		if v.CVEID == "" {
			continue
		}
		reg[strings.ToUpper(v.CVEID)] = struct{}{}
	}
	return reg, nil
}

// Cache memoizes the feed fetch for a fixed window. Within the window
// repeated calls return the cached registry without re-fetching; after
// expiry the next caller refreshes synchronously. A failed fetch is
// logged, yields the empty registry, and is memoized like any other
// result so a flapping feed is not hammered.
type Cache struct {
	src    Source
	ttl    time.Duration
	logger log.Logger
	now    func() time.Time

	mu        sync.Mutex
	reg       Registry
	fetchedAt time.Time
}

// NewCache creates a registry cache over src with the given TTL.
func NewCache(src Source, ttl time.Duration, logger log.Logger) *Cache {
	if logger == nil {
		logger = log.Nop()
	}
	return &Cache{
		src:    src,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Registry returns the current KEV registry, refreshing if stale.
// It never returns an error: feed failures degrade to the empty set.
func (c *Cache) Registry(ctx context.Context) Registry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reg != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.reg
	}

	reg, err := c.src.Fetch(ctx)
	if err != nil {
		c.logger.Warn(ctx, "kev feed fetch failed, using empty registry", "error", err)
		reg = Registry{}
	} else {
		c.logger.Info(ctx, "kev registry refreshed", "entries", len(reg))
	}

	c.reg = reg
	c.fetchedAt = c.now()
	return c.reg
}
