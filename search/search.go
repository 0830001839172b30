// Package search queries a SearxNG instance and exposes it as the
// web_search tool used by the Search agent.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hupe1980/legalmesh/blackboard"
	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/tool"
)

// ToolName is the name of the web search tool.
const ToolName = "web_search"

// Source is one cited web page.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Sources holds every source found during the turn, deduplicated by URL.
var Sources = blackboard.NewKey[[]Source]("search_sources")

// Result is a single search hit.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
}

type response struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Options configure a Client.
type Options struct {
	BaseURL    string
	Categories string
	Language   string
	MaxResults int
	HTTPClient *http.Client
}

// Client talks to the SearxNG JSON API.
type Client struct {
	opts Options
}

// NewClient creates a client.
func NewClient(optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL:    "http://localhost:8888",
		Categories: "general",
		MaxResults: 5,
		HTTPClient: http.DefaultClient,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Client{opts: opts}
}

// Search runs query and returns at most MaxResults hits.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	values := url.Values{}
	values.Set("q", query)
	values.Set("format", "json")
	values.Set("safesearch", "0")

	if c.opts.Categories != "" {
		values.Set("categories", c.opts.Categories)
	}

	if c.opts.Language != "" {
		values.Set("language", c.opts.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/search?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search engine returned status %d", resp.StatusCode)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if c.opts.MaxResults > 0 && len(out.Results) > c.opts.MaxResults {
		out.Results = out.Results[:c.opts.MaxResults]
	}

	return out.Results, nil
}

// Searcher is the backend of the web_search tool.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

type toolArgs struct {
	Query string `json:"query" description:"Search query, e.g. 'California paid sick leave statute'."`
}

// NewTool exposes s as the web_search tool. Hits are returned as a numbered
// text list and appended to the search_sources slot. Backend failures are
// reported in-band.
func NewTool(s Searcher) tool.Tool {
	return tool.NewFunctionToolFromStruct(
		ToolName,
		"Search the web for authoritative legal sources (statutes, regulations, agency guidance, case law).",
		toolArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			query, _ := args["query"].(string)

			hits, err := s.Search(toolCtx.Context(), query)
			if err != nil {
				toolCtx.LogWarn("search.query.failed", "query", query, "error", err.Error())
				return core.StructuredResult(map[string]any{"status": "error", "error_message": err.Error()}), nil
			}

			AddSources(toolCtx, hits...)

			return core.TextResult(Format(hits)), nil
		},
	)
}

// AddSources appends the hits to the search_sources slot, skipping URLs
// already present.
func AddSources(state blackboard.State, hits ...Result) {
	sources := Sources.Value(state)

	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		seen[s.URL] = struct{}{}
	}

	merged := append([]Source{}, sources...)
	for _, h := range hits {
		if h.URL == "" {
			continue
		}
		if _, ok := seen[h.URL]; ok {
			continue
		}
		seen[h.URL] = struct{}{}
		merged = append(merged, Source{Title: h.Title, URL: h.URL})
	}

	Sources.Set(state, merged)
}

// Format renders hits as a numbered list with snippets.
func Format(hits []Result) string {
	if len(hits) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, h.Title, h.URL)
		if c := strings.TrimSpace(h.Content); c != "" {
			fmt.Fprintf(&sb, "   %s\n", c)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}
