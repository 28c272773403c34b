package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"medwatch/internal/domain"
	"medwatch/internal/ports"
)

// BatchFetcher produces one cycle's worth of deduplicated articles by running
// every configured query against its site partition. A single failing query
// is absorbed; only infrastructure-level problems abort the batch.
type BatchFetcher struct {
	search          ports.SearchClient
	extractor       ports.ContentExtractor
	batches         []domain.QueryBatch
	resultsPerQuery int
	now             func() time.Time
	logger          *slog.Logger
}

// BatchFetcherDeps wires the fetcher's collaborators.
type BatchFetcherDeps struct {
	Search          ports.SearchClient
	Extractor       ports.ContentExtractor // optional content fallback
	Batches         []domain.QueryBatch
	ResultsPerQuery int
	Logger          *slog.Logger
}

// NewBatchFetcher constructs the fetcher.
func NewBatchFetcher(deps BatchFetcherDeps) *BatchFetcher {
	resultsPerQuery := deps.ResultsPerQuery
	if resultsPerQuery <= 0 {
		resultsPerQuery = 10
	}
	return &BatchFetcher{
		search:          deps.Search,
		extractor:       deps.Extractor,
		batches:         deps.Batches,
		resultsPerQuery: resultsPerQuery,
		now:             time.Now,
		logger:          deps.Logger,
	}
}

// FetchBatch runs every (query, site partition) pair, normalizes the results
// and deduplicates within the batch by URL and normalized title.
func (f *BatchFetcher) FetchBatch(ctx context.Context) ([]domain.Article, error) {
	if f.search == nil {
		return nil, fmt.Errorf("search client is not configured")
	}
	if len(f.batches) == 0 {
		return nil, fmt.Errorf("no query batches configured")
	}

	var collected []domain.Article
	succeeded := 0
	for bi, batch := range f.batches {
		for _, query := range batch.Queries {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("fetch batch: %w", err)
			}

			items, err := f.search.Search(ctx, ports.SearchRequest{
				Query:       query,
				Count:       f.resultsPerQuery,
				NeedSummary: true,
				NeedContent: true,
				Sites:       batch.Sites,
			})
			if err != nil {
				f.warn("search query failed", "batch", bi+1, "query", query, "error", err)
				continue
			}

			succeeded++
			collected = append(collected, f.normalize(items)...)
		}
	}

	articles := DedupeBatch(collected)
	f.fillMissingContent(ctx, articles)

	f.debug("batch fetched",
		"queries_succeeded", succeeded,
		"raw", len(collected),
		"unique", len(articles))
	return articles, nil
}

// normalize converts raw search items into articles, dropping URL-less items
// and deriving the publish date from the ISO timestamp when present.
func (f *BatchFetcher) normalize(items []ports.SearchItem) []domain.Article {
	articles := make([]domain.Article, 0, len(items))
	for _, item := range items {
		if item.URL == "" {
			continue
		}
		articles = append(articles, domain.Article{
			Title:       item.Title,
			PublishDate: f.publishDate(item.PublishTime),
			URL:         item.URL,
			Summary:     item.Snippet,
			Content:     item.Content,
		})
	}
	return articles
}

func (f *BatchFetcher) publishDate(publishTime string) string {
	if publishTime != "" {
		datePart, _, _ := strings.Cut(publishTime, "T")
		if _, err := time.Parse("2006-01-02", datePart); err == nil {
			return datePart
		}
	}
	return f.now().Format("2006-01-02")
}

func (f *BatchFetcher) fillMissingContent(ctx context.Context, articles []domain.Article) {
	if f.extractor == nil {
		return
	}
	for i := range articles {
		if articles[i].Content != "" {
			continue
		}
		content, err := f.extractor.Extract(ctx, articles[i].URL)
		if err != nil {
			f.debug("content extraction failed", "url", articles[i].URL, "error", err)
			continue
		}
		articles[i].Content = content
	}
}

func (f *BatchFetcher) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}

func (f *BatchFetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
