package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"medwatch/internal/config"
	"medwatch/internal/domain"
)

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, content)
	}))
}

func testEnricher(server *httptest.Server) *Enricher {
	e := NewEnricher(config.ModelConfig{BaseURL: server.URL, APIKey: "k", Model: "test-model"})
	e.httpClient = server.Client()
	return e
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	server := completionServer(t, `{"summary":"两句话摘要","source":"新浪财经","region":"华东"}`)
	defer server.Close()

	got, err := testEnricher(server).Summarize(context.Background(), domain.Article{
		Title:   "某器械获批",
		Summary: "snippet",
		URL:     "https://example.com/1",
	})
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if got.Summary != "两句话摘要" || got.Source != "新浪财经" || got.Region != "华东" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestExtractKeywordsViaEmbeddedJSON(t *testing.T) {
	t.Parallel()

	server := completionServer(t, `好的，结果如下：{"keywords":["器械","融资"]}`)
	defer server.Close()

	got, err := testEnricher(server).ExtractKeywords(context.Background(), domain.Article{Title: "t"})
	if err != nil {
		t.Fatalf("ExtractKeywords error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"器械", "融资"}) {
		t.Fatalf("unexpected keywords: %v", got)
	}
}

func TestEnricherSurfacesHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	if _, err := testEnricher(server).Summarize(context.Background(), domain.Article{}); err == nil {
		t.Fatal("expected error from non-2xx response")
	}
}

func TestEnricherMisconfigured(t *testing.T) {
	t.Parallel()

	e := NewEnricher(config.ModelConfig{})
	if _, err := e.Summarize(context.Background(), domain.Article{}); err == nil {
		t.Fatal("expected misconfiguration error")
	}
}
