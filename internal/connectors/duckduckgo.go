// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connectors

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-assist/internal/model"
)

// =============================================================================
// PERFORMANCE: Pre-compiled regex (compiled once at startup)
// =============================================================================

var (
	// DuckDuckGo HTML parsing patterns
	ddgTitleRegex   = regexp.MustCompile(`(?s)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.+?)</a>`)
	ddgSnippetRegex = regexp.MustCompile(`(?s)<a[^>]+class="result__snippet"[^>]*>(.+?)</a>`)

	ddgTagRegex        = regexp.MustCompile(`<[^>]*>`)
	ddgWhitespaceRegex = regexp.MustCompile(`\s+`)
)

// Search limits.
const (
	DefaultSearchResults = 5
	MaxSearchResults     = 10
	maxSearchBody        = 5 * 1024 * 1024
)

// =============================================================================
// DUCKDUCKGO SEARCHER
// =============================================================================

// DuckDuckGo is a key-less Searcher over the DuckDuckGo HTML endpoint.
type DuckDuckGo struct {
	// BaseURL is the DuckDuckGo HTML search endpoint
	BaseURL string

	// Timeout is the maximum time for the request (default: 15s)
	Timeout time.Duration

	// UserAgent is the User-Agent header to send
	UserAgent string

	// Offline blocks all outbound searches.
	Offline bool

	// Scrub is applied to the query before it leaves the machine.
	Scrub func(string) string

	// Client overrides the HTTP client.
	Client *http.Client
}

// NewDuckDuckGo creates a searcher with default settings.
func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{
		BaseURL:   "https://html.duckduckgo.com/html/",
		Timeout:   15 * time.Second,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	}
}

// Search runs query and returns up to limit results.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) (*SearchResults, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, Missing("search_web", "query", "What would you like me to search for?")
	}
	if d.Offline {
		return nil, Failure("search", "web search is disabled in offline mode", nil)
	}
	if d.Scrub != nil {
		query = d.Scrub(query)
	}
	if limit < 1 {
		limit = DefaultSearchResults
	}
	if limit > MaxSearchResults {
		limit = MaxSearchResults
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := d.search(ctx, query)
	if err != nil {
		return nil, Failure("search", "search failed", err)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []SearchResult{}
	}
	return &SearchResults{Query: query, Source: "duckduckgo", Results: results}, nil
}

// search performs the actual DuckDuckGo search.
func (d *DuckDuckGo) search(ctx context.Context, query string) ([]SearchResult, error) {
	base := d.BaseURL
	if base == "" {
		base = "https://html.duckduckgo.com/html/"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}

	// Go's client negotiates and decodes gzip itself; setting Accept-Encoding
	// by hand would disable that.
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("DNT", "1")

	client := d.Client
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("too many redirects")
				}
				return nil
			},
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBody))
	if err != nil {
		return nil, err
	}
	return parseResults(string(body)), nil
}

// parseResults extracts search results from DuckDuckGo HTML.
//
//	<div class="result results_links results_links_deep web-result ">
//	  <h2 class="result__title">
//	    <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=URL">Title</a>
//	  </h2>
//	  <a class="result__snippet" href="...">Snippet text</a>
//	</div>
func parseResults(page string) []SearchResult {
	titleMatches := ddgTitleRegex.FindAllStringSubmatch(page, 30)
	snippetMatches := ddgSnippetRegex.FindAllStringSubmatch(page, 30)

	var results []SearchResult
	for i, match := range titleMatches {
		if len(match) < 3 {
			continue
		}

		// DuckDuckGo uses &amp; for & in HTML.
		actualURL := extractActualURL(strings.ReplaceAll(match[1], "&amp;", "&"))
		title := cleanHTML(match[2])
		if actualURL == "" || title == "" {
			continue
		}

		snippet := ""
		if i < len(snippetMatches) && len(snippetMatches[i]) >= 2 {
			snippet = model.Preview(cleanHTML(snippetMatches[i][1]), 300)
		}

		results = append(results, SearchResult{Title: title, URL: actualURL, Snippet: snippet})
		if len(results) >= 20 {
			break
		}
	}
	return results
}

// extractActualURL extracts the real URL from DuckDuckGo's redirect wrapper.
func extractActualURL(ddgURL string) string {
	// Format: //duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com
	if strings.Contains(ddgURL, "uddg=") {
		if strings.HasPrefix(ddgURL, "//") {
			ddgURL = "https:" + ddgURL
		}
		parsed, err := url.Parse(ddgURL)
		if err != nil {
			return ""
		}
		if target := parsed.Query().Get("uddg"); target != "" {
			return target
		}
	}

	if strings.HasPrefix(ddgURL, "http://") || strings.HasPrefix(ddgURL, "https://") {
		return ddgURL
	}
	return ""
}

// cleanHTML removes tags, decodes entities and collapses whitespace.
func cleanHTML(fragment string) string {
	text := ddgTagRegex.ReplaceAllString(fragment, "")
	text = html.UnescapeString(text)
	text = ddgWhitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
