package llm

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
	"medwatch/internal/domain"
	"medwatch/internal/ports"
)

const summarySystemPrompt = `你是医疗器械和医美行业的新闻编辑。根据新闻标题和内容生成一段不超过100字的中文摘要，` +
	`并判断新闻来源和地区。只返回JSON对象，包含 summary、source、region 三个字段。`

const keywordsSystemPrompt = `你是医疗器械和医美行业的新闻编辑。为新闻提取最多5个中文关键词。` +
	`只返回JSON对象，包含 keywords 字段（字符串数组）。`

// Enricher implements ports.Enricher backed by an OpenAI-compatible
// chat-completions API.
type Enricher struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.Enricher = (*Enricher)(nil)

// NewEnricher builds a client from configuration.
func NewEnricher(cfg config.ModelConfig) *Enricher {
	return &Enricher{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Summarize asks the model for a summary plus source/region classification.
// The response text goes through the tiered parser; an article whose fields
// come back empty keeps its originals at the merge step.
func (e *Enricher) Summarize(ctx context.Context, article domain.Article) (ports.SummaryResult, error) {
	text, err := e.complete(ctx, summarySystemPrompt, summaryUserPrompt(article))
	if err != nil {
		return ports.SummaryResult{}, err
	}

	fields := ParseFields(text)
	return ports.SummaryResult{
		Summary: fields.Summary,
		Source:  fields.Source,
		Region:  fields.Region,
	}, nil
}

// ExtractKeywords asks the model for up to five keywords.
func (e *Enricher) ExtractKeywords(ctx context.Context, article domain.Article) ([]string, error) {
	text, err := e.complete(ctx, keywordsSystemPrompt, keywordsUserPrompt(article))
	if err != nil {
		return nil, err
	}

	return ParseFields(text).Keywords, nil
}

func summaryUserPrompt(article domain.Article) string {
	body := article.Content
	if body == "" {
		body = article.Summary
	}
	return fmt.Sprintf("标题：%s\n内容：%s\n链接：%s", article.Title, body, article.URL)
}

func keywordsUserPrompt(article domain.Article) string {
	return fmt.Sprintf("标题：%s\n摘要：%s", article.Title, article.Summary)
}

func (e *Enricher) complete(ctx context.Context, system, user string) (string, error) {
	if e.apiKey == "" || e.baseURL == "" || e.model == "" {
		return "", fmt.Errorf("enricher misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": e.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"temperature": 0.3,
		"max_tokens":  500,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("model error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
