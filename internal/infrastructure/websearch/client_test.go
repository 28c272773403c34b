package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"medwatch/internal/config"
	"medwatch/internal/ports"
)

func TestSearchRequestShape(t *testing.T) {
	t.Parallel()

	var got searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search_api/web_search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"Result":{"WebResults":[
			{"Title":"A","Url":"https://a.example/1","Snippet":"s","Summary":"sum","Content":"body","PublishTime":"2026-08-29T10:00:00+08:00"},
			{"Title":"B","Url":"https://b.example/2","Snippet":"only snippet"}
		]}}`))
	}))
	defer server.Close()

	client := NewClient(config.SearchConfig{BaseURL: server.URL, APIKey: "test-key"})
	client.httpClient = server.Client()

	items, err := client.Search(context.Background(), ports.SearchRequest{
		Query:       "医疗器械",
		Count:       10,
		NeedSummary: true,
		NeedContent: true,
		Sites:       []string{"toutiao.com", "sohu.com"},
	})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}

	if got.SearchType != "web" {
		t.Fatalf("unexpected SearchType %q", got.SearchType)
	}
	if got.Filter.Sites != "toutiao.com|sohu.com" {
		t.Fatalf("unexpected Sites field %q", got.Filter.Sites)
	}
	if !got.NeedSummary || !got.Filter.NeedContent {
		t.Fatal("expected NeedSummary and NeedContent to be forwarded")
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Snippet != "sum" {
		t.Fatalf("expected Summary to win over Snippet, got %q", items[0].Snippet)
	}
	if items[1].Snippet != "only snippet" {
		t.Fatalf("expected plain snippet fallback, got %q", items[1].Snippet)
	}
	if items[0].PublishTime != "2026-08-29T10:00:00+08:00" {
		t.Fatalf("unexpected publish time %q", items[0].PublishTime)
	}
}

func TestSearchRejectsTooManySites(t *testing.T) {
	t.Parallel()

	client := NewClient(config.SearchConfig{BaseURL: "https://example.com", APIKey: "k"})
	_, err := client.Search(context.Background(), ports.SearchRequest{
		Query: "q",
		Sites: []string{"a.com", "b.com", "c.com", "d.com", "e.com", "f.com"},
	})
	if err == nil {
		t.Fatal("expected error for more than 5 sites")
	}
}

func TestSearchClampsCount(t *testing.T) {
	t.Parallel()

	var got searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"Result":{}}`))
	}))
	defer server.Close()

	client := NewClient(config.SearchConfig{BaseURL: server.URL, APIKey: "k"})
	client.httpClient = server.Client()

	if _, err := client.Search(context.Background(), ports.SearchRequest{Query: "q", Count: 200}); err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if got.Count != 50 {
		t.Fatalf("expected count clamped to 50, got %d", got.Count)
	}

	if _, err := client.Search(context.Background(), ports.SearchRequest{Query: "q"}); err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if got.Count != 10 {
		t.Fatalf("expected default count 10, got %d", got.Count)
	}
}

func TestSearchSurfacesAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ResponseMetadata":{"Error":{"Code":"RateLimited","Message":"slow down"}}}`))
	}))
	defer server.Close()

	client := NewClient(config.SearchConfig{BaseURL: server.URL, APIKey: "k"})
	client.httpClient = server.Client()

	_, err := client.Search(context.Background(), ports.SearchRequest{Query: "q"})
	if err == nil {
		t.Fatal("expected api error to surface")
	}
}
