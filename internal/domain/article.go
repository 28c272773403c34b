package domain

import (
	"strings"
	"time"
)

// Article is the canonical news item flowing through the pipeline.
type Article struct {
	Title       string
	PublishDate string // YYYY-MM-DD
	URL         string
	Summary     string
	Content     string
	Source      string
	Region      string
	Keywords    []string
}

// HistoryRecord is a delivered article persisted for cross-run deduplication.
type HistoryRecord struct {
	ID        int64
	Title     string
	URL       string
	Date      string
	Source    string
	SentAt    time.Time
	CreatedAt time.Time
}

// QueryBatch pairs a set of search queries with the site partition they are
// scoped to. The search API accepts at most five domains per call, so site
// lists are partitioned statically in configuration.
type QueryBatch struct {
	Sites   []string
	Queries []string
}

// Suffix noise appended by aggregator sites; stripped before title comparison.
var titleNoiseSuffixes = []string{"| toutiao", "- 今日头条", "_头条", "_新闻", "_资讯"}

// NormalizeTitle lowercases and trims a title and strips known site-suffix
// noise tokens, so "X_头条" and "x" compare equal.
func NormalizeTitle(title string) string {
	normalized := strings.ToLower(strings.TrimSpace(title))
	for _, suffix := range titleNoiseSuffixes {
		normalized = strings.ReplaceAll(normalized, strings.ToLower(suffix), "")
	}
	return strings.TrimSpace(normalized)
}
