package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lexcodex/delver/framework"
)

const tavilyEndpoint = "https://api.tavily.com"

// SearchProvider executes a web search. The results are decoded loosely so
// malformed entries survive transport and can be skipped by the caller.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]interface{}, error)
}

// TavilyClient calls the Tavily search API.
type TavilyClient struct {
	apiKey string
	http   *resty.Client
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []interface{} `json:"results"`
}

// NewTavilyClient constructs a Tavily search provider.
func NewTavilyClient(endpoint, apiKey string) *TavilyClient {
	if endpoint == "" {
		endpoint = tavilyEndpoint
	}
	http := resty.New().
		SetBaseURL(strings.TrimSuffix(endpoint, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)
	// The key travels in the request body, per the Tavily API.
	return &TavilyClient{apiKey: apiKey, http: http}
}

// Search posts a query to Tavily. "basic" depth keeps latency low; the agent
// compensates by refining its query and searching again when needed.
func (t *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]interface{}, error) {
	var out tavilyResponse
	resp, err := t.http.R().
		SetContext(ctx).
		SetBody(tavilyRequest{
			APIKey:      t.apiKey,
			Query:       query,
			SearchDepth: "basic",
			MaxResults:  maxResults,
		}).
		SetResult(&out).
		Post("/search")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &framework.APIError{
			Provider:   "tavily",
			StatusCode: resp.StatusCode(),
			Message:    fmt.Sprintf("search request failed: %s", strings.TrimSpace(string(resp.Body()))),
		}
	}
	return out.Results, nil
}
