package ports

import (
	"context"
	"time"

	"medwatch/internal/domain"
)

// SearchRequest mirrors one call to the web-search API.
type SearchRequest struct {
	Query       string
	Count       int
	NeedSummary bool
	NeedContent bool
	Sites       []string // at most 5 domains
}

// SearchItem is one raw result item before normalization.
type SearchItem struct {
	Title       string
	URL         string
	Snippet     string
	Content     string
	PublishTime string // ISO-8601, may be empty
}

// SearchClient issues site-scoped queries against the web-search API.
type SearchClient interface {
	Search(ctx context.Context, req SearchRequest) ([]SearchItem, error)
}

// ContentExtractor fetches an article page and extracts its body text,
// used when a search result carries no content.
type ContentExtractor interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

// HistoryRepository is the durable deduplication ledger of delivered articles.
type HistoryRepository interface {
	// RecordMany inserts one row per article inside a single transaction;
	// a failure rolls the whole batch back.
	RecordMany(ctx context.Context, articles []domain.Article) error
	AllURLs(ctx context.Context) (map[string]struct{}, error)
	AllTitles(ctx context.Context) (map[string]struct{}, error)
	// PruneOlderThan deletes rows whose sent_at is strictly older than the
	// cutoff and returns the number deleted.
	PruneOlderThan(ctx context.Context, days int) (int64, error)
	Count(ctx context.Context) (int64, error)
	Clear(ctx context.Context) (int64, error)
}

// SummaryResult carries the fields the summary branch of enrichment produces.
type SummaryResult struct {
	Summary string
	Source  string
	Region  string
}

// Enricher wraps the language-model service: two independently running
// branches whose results are merged per article by URL.
type Enricher interface {
	Summarize(ctx context.Context, article domain.Article) (SummaryResult, error)
	ExtractKeywords(ctx context.Context, article domain.Article) ([]string, error)
}

// ReportRenderer produces the spreadsheet report and returns its path.
type ReportRenderer interface {
	Render(articles []domain.Article, day time.Time) (string, error)
}

// Mailer delivers the report. SendReport returns how many recipients were
// reached along with an aggregate of per-recipient failures.
type Mailer interface {
	SendReport(articles []domain.Article, day time.Time, attachmentPath string) (int, error)
	SendNoNews(day time.Time) error
}

// TableSyncer pushes articles into a remote table and reports the synced count.
type TableSyncer interface {
	Sync(ctx context.Context, articles []domain.Article) (int, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
