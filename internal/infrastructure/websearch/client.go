package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"medwatch/internal/config"
	"medwatch/internal/ports"
)

const (
	maxSitesPerCall   = 5
	maxResultsPerCall = 50
)

// Client talks to the fused web-search API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ ports.SearchClient = (*Client)(nil)

// NewClient builds a search client from configuration.
func NewClient(cfg config.SearchConfig) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

type searchRequest struct {
	Query       string       `json:"Query"`
	SearchType  string       `json:"SearchType"`
	Count       int          `json:"Count"`
	Filter      searchFilter `json:"Filter"`
	NeedSummary bool         `json:"NeedSummary"`
}

type searchFilter struct {
	NeedContent bool   `json:"NeedContent"`
	Sites       string `json:"Sites,omitempty"`
}

type searchResponse struct {
	ResponseMetadata struct {
		Error *struct {
			Code    string `json:"Code"`
			Message string `json:"Message"`
		} `json:"Error"`
	} `json:"ResponseMetadata"`
	Result struct {
		WebResults []struct {
			Title       string `json:"Title"`
			URL         string `json:"Url"`
			Snippet     string `json:"Snippet"`
			Summary     string `json:"Summary"`
			Content     string `json:"Content"`
			PublishTime string `json:"PublishTime"`
		} `json:"WebResults"`
	} `json:"Result"`
}

// Search issues one query scoped to at most five site domains.
func (c *Client) Search(ctx context.Context, req ports.SearchRequest) ([]ports.SearchItem, error) {
	if c.apiKey == "" || c.baseURL == "" {
		return nil, fmt.Errorf("search client misconfigured")
	}
	if len(req.Sites) > maxSitesPerCall {
		return nil, fmt.Errorf("at most %d site domains per call, got %d", maxSitesPerCall, len(req.Sites))
	}

	count := req.Count
	if count <= 0 {
		count = 10
	}
	if count > maxResultsPerCall {
		count = maxResultsPerCall
	}

	body, err := json.Marshal(searchRequest{
		Query:      req.Query,
		SearchType: "web",
		Count:      count,
		Filter: searchFilter{
			NeedContent: req.NeedContent,
			Sites:       strings.Join(req.Sites, "|"),
		},
		NeedSummary: req.NeedSummary,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/search_api/web_search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", req.Query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("search %q: %s: %s", req.Query, resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if apiErr := parsed.ResponseMetadata.Error; apiErr != nil {
		return nil, fmt.Errorf("search %q: api error %s: %s", req.Query, apiErr.Code, apiErr.Message)
	}

	items := make([]ports.SearchItem, 0, len(parsed.Result.WebResults))
	for _, r := range parsed.Result.WebResults {
		snippet := r.Snippet
		if r.Summary != "" {
			snippet = r.Summary
		}
		items = append(items, ports.SearchItem{
			Title:       r.Title,
			URL:         r.URL,
			Snippet:     snippet,
			Content:     r.Content,
			PublishTime: r.PublishTime,
		})
	}

	return items, nil
}
