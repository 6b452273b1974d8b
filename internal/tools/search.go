package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const defaultSearchEndpoint = "https://html.duckduckgo.com/html/"

// SearchClient queries DuckDuckGo's HTML endpoint and extracts result
// titles, URLs, and snippets.
type SearchClient struct {
	endpoint   string
	maxResults int
	client     *http.Client
	logger     *zap.Logger
}

// NewSearchClient creates a client against the public DuckDuckGo endpoint.
func NewSearchClient(logger *zap.Logger) *SearchClient {
	return &SearchClient{
		endpoint:   defaultSearchEndpoint,
		maxResults: 3,
		client:     &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

type searchResult struct {
	Title   string
	URL     string
	Snippet string
}

// Search runs a web search and returns a plain-text summary. Failures are
// returned as text, never as an error: the reasoning loop feeds whatever
// comes back to the model as an observation.
func (s *SearchClient) Search(ctx context.Context, query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "Search error: empty query."
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return fmt.Sprintf("Search error: %v", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; openclaw/1.0)")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("search failed", zap.Error(err))
		return fmt.Sprintf("Search error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Search error: status %d", resp.StatusCode)
	}

	results, err := parseResults(resp.Body, s.maxResults)
	if err != nil {
		return fmt.Sprintf("Search error: %v", err)
	}
	if len(results) == 0 {
		return "No results found."
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Title: %s\nURL: %s\n%s\n", r.Title, r.URL, r.Snippet)
	}
	return strings.TrimSpace(b.String())
}

// parseResults walks the DuckDuckGo HTML page. Result links carry the
// "result__a" class; snippets carry "result__snippet".
func parseResults(body io.Reader, max int) ([]searchResult, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var results []searchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) > max {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			switch {
			case hasClass(n, "result__a"):
				results = append(results, searchResult{
					Title: textContent(n),
					URL:   resolveRedirect(attr(n, "href")),
				})
			case hasClass(n, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = textContent(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(results) > max {
		results = results[:max]
	}
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg=<url> redirect links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
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

// NewSearchTool wraps the client as a registrable tool definition.
func NewSearchTool(client *SearchClient) Definition {
	return Definition{
		Name:          "search_internet",
		Description:   "Search the web. Returns titles, URLs, and snippets.",
		ParameterHint: "search query string",
		Execute: func(ctx context.Context, input string) (string, error) {
			return client.Search(ctx, input), nil
		},
	}
}
