package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	defaultEndpoint = "https://html.duckduckgo.com/html/"
	httpTimeout     = 10 * time.Second

	// DuckDuckGo blocks requests without a browser-like user agent.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:140.0) Gecko/20100101 Firefox/140.0"
)

// DuckDuckGo queries the DuckDuckGo HTML endpoint. No authentication
// is required; results are scraped from the returned document.
type DuckDuckGo struct {
	endpoint   string
	httpClient *http.Client
}

// NewDuckDuckGo creates a DuckDuckGo search source. An empty endpoint
// selects the public HTML endpoint.
func NewDuckDuckGo(endpoint string) *DuckDuckGo {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &DuckDuckGo{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

// Search runs query and returns up to maxResults title/snippet pairs.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 3
	}

	u, err := url.Parse(d.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.httpClient.Do(req) //nolint:gosec // G704: endpoint is from trusted config; query is url-encoded
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20)) // 2 MB
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return parseResults(body, maxResults), nil
}

// parseResults walks the result page and pairs result__a anchors (titles)
// with their following result__snippet anchors.
func parseResults(page []byte, maxResults int) []Result {
	doc, err := html.Parse(strings.NewReader(string(page)))
	if err != nil {
		return nil
	}

	var results []Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) > maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			switch {
			case hasClass(n, "result__a"):
				results = append(results, Result{Title: nodeText(n)})
			case hasClass(n, "result__snippet") && len(results) > 0:
				results[len(results)-1].Body = nodeText(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for f := range strings.FieldsSeq(a.Val) {
			if f == class {
				return true
			}
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
