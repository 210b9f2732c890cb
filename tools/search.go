package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/lexcodex/delver/framework"
)

// SearchToolName is the name the reasoning engine uses for web search.
const SearchToolName = "web_search"

// DefaultMaxResults caps the number of hits a single search returns when the
// model does not ask for a specific count.
const DefaultMaxResults = 6

// searchResult is the normalized shape fed back into the model context.
type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// providerCache lazily constructs and caches the search provider so each
// process probes the credential once. Reset swaps the cached provider out
// without touching calls that already hold a reference.
type providerCache struct {
	mu       sync.Mutex
	provider SearchProvider
	build    func() (SearchProvider, error)
}

func (c *providerCache) get() (SearchProvider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.provider != nil {
		return c.provider, nil
	}
	provider, err := c.build()
	if err != nil {
		return nil, err
	}
	c.provider = provider
	return c.provider, nil
}

func (c *providerCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.provider = nil
}

// WebSearch implements framework.Tool. Provider failures never surface as
// errors: the tool embeds them in a JSON payload so the reasoning loop always
// receives a syntactically valid result and can recover on its own.
type WebSearch struct {
	cache *providerCache
	Debug bool
}

// NewWebSearch wires the default Tavily-backed tool. The provider is built on
// first use so the credential check happens at call time, not construction.
func NewWebSearch() *WebSearch {
	return &WebSearch{
		cache: &providerCache{build: func() (SearchProvider, error) {
			apiKey := os.Getenv("TAVILY_API_KEY")
			if apiKey == "" {
				return nil, fmt.Errorf("TAVILY_API_KEY environment variable is not set; it is required for the %s tool", SearchToolName)
			}
			return NewTavilyClient("", apiKey), nil
		}},
	}
}

// NewWebSearchWithProvider substitutes the provider builder, for tests.
func NewWebSearchWithProvider(build func() (SearchProvider, error)) *WebSearch {
	return &WebSearch{cache: &providerCache{build: build}}
}

// ResetClient drops the cached provider so the next call rebuilds it. Used in
// tests to keep fakes from leaking between cases.
func (w *WebSearch) ResetClient() {
	w.cache.reset()
}

// Name implements framework.Tool.
func (w *WebSearch) Name() string { return SearchToolName }

// Description implements framework.Tool. The LLM reads this to decide when
// and how to use the tool.
func (w *WebSearch) Description() string {
	return "Search the web and return top results with titles, URLs, and snippets."
}

// Parameters implements framework.Tool.
func (w *WebSearch) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "query", Type: "string", Description: "The search query.", Required: true},
		{Name: "max_results", Type: "integer", Description: "Maximum number of results to return.", Default: DefaultMaxResults},
	}
}

// Execute implements framework.Tool. A missing credential is the only error
// path; everything after the provider exists is folded into the JSON payload.
func (w *WebSearch) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	provider, err := w.cache.get()
	if err != nil {
		return "", err
	}

	query, _ := args["query"].(string)
	maxResults := DefaultMaxResults
	// JSON numbers decode as float64.
	if raw, ok := args["max_results"].(float64); ok && int(raw) > 0 {
		maxResults = int(raw)
	}

	hits, err := provider.Search(ctx, query, maxResults)
	if err != nil {
		if w.Debug {
			log.Printf("[web_search] provider error: %v", err)
		}
		payload, _ := json.Marshal(map[string]string{"error": fmt.Sprintf("Search failed: %v", err)})
		return string(payload), nil
	}

	results := make([]searchResult, 0, len(hits))
	for _, hit := range hits {
		entry, ok := hit.(map[string]interface{})
		if !ok {
			if w.Debug {
				log.Printf("[web_search] skipping malformed result: %T", hit)
			}
			continue
		}
		results = append(results, searchResult{
			Title:   stringField(entry, "title", "Untitled"),
			URL:     stringField(entry, "url", ""),
			Snippet: stringField(entry, "content", ""),
		})
	}
	return encodeResults(results)
}

func stringField(entry map[string]interface{}, key, fallback string) string {
	if value, ok := entry[key].(string); ok {
		return value
	}
	return fallback
}

// encodeResults marshals without HTML escaping so non-ASCII text survives
// verbatim on its way back into the model context.
func encodeResults(results []searchResult) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(results); err != nil {
		payload, _ := json.Marshal(map[string]string{"error": fmt.Sprintf("Search failed: %v", err)})
		return string(payload), nil
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
