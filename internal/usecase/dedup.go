package usecase

import (
	"context"
	"log/slog"

	"medwatch/internal/domain"
	"medwatch/internal/ports"
)

// DedupeBatch removes duplicates within a single batch: exact URL first,
// then normalized title. The first occurrence wins, input order is kept.
func DedupeBatch(articles []domain.Article) []domain.Article {
	seenURLs := make(map[string]struct{}, len(articles))
	byURL := make([]domain.Article, 0, len(articles))
	for _, article := range articles {
		if _, ok := seenURLs[article.URL]; ok {
			continue
		}
		seenURLs[article.URL] = struct{}{}
		byURL = append(byURL, article)
	}

	seenTitles := make(map[string]struct{}, len(byURL))
	unique := make([]domain.Article, 0, len(byURL))
	for _, article := range byURL {
		normalized := domain.NormalizeTitle(article.Title)
		if _, ok := seenTitles[normalized]; ok {
			continue
		}
		seenTitles[normalized] = struct{}{}
		unique = append(unique, article)
	}

	return unique
}

// KnownKeys collects the exact URL and exact title sets of a collection,
// the comparison keys used for cross-run and intra-run filtering.
func KnownKeys(articles []domain.Article) (urls, titles map[string]struct{}) {
	urls = make(map[string]struct{}, len(articles))
	titles = make(map[string]struct{}, len(articles))
	for _, article := range articles {
		urls[article.URL] = struct{}{}
		titles[article.Title] = struct{}{}
	}
	return urls, titles
}

// FilterKnown returns the candidates matching neither key set, in order.
// Either key matching excludes a candidate.
func FilterKnown(candidates []domain.Article, urls, titles map[string]struct{}) []domain.Article {
	fresh := make([]domain.Article, 0, len(candidates))
	for _, candidate := range candidates {
		if _, ok := urls[candidate.URL]; ok {
			continue
		}
		if _, ok := titles[candidate.Title]; ok {
			continue
		}
		fresh = append(fresh, candidate)
	}
	return fresh
}

// HistoryFilter drops candidates already present in the persistent history
// store. An unreachable store degrades to pass-through: losing one run's
// dedup is preferable to losing the run's articles.
type HistoryFilter struct {
	repo   ports.HistoryRepository
	logger *slog.Logger
}

// NewHistoryFilter wires the persistent store.
func NewHistoryFilter(repo ports.HistoryRepository, logger *slog.Logger) *HistoryFilter {
	return &HistoryFilter{repo: repo, logger: logger}
}

// Filter removes candidates whose URL or exact title is already recorded.
func (h *HistoryFilter) Filter(ctx context.Context, candidates []domain.Article) []domain.Article {
	if h == nil || h.repo == nil || len(candidates) == 0 {
		return candidates
	}

	urls, err := h.repo.AllURLs(ctx)
	if err != nil {
		h.warn("history urls unavailable, skipping history dedup", "error", err)
		return candidates
	}
	titles, err := h.repo.AllTitles(ctx)
	if err != nil {
		h.warn("history titles unavailable, skipping history dedup", "error", err)
		return candidates
	}

	fresh := FilterKnown(candidates, urls, titles)
	if h.logger != nil && len(fresh) < len(candidates) {
		h.logger.Info("history dedup", "dropped", len(candidates)-len(fresh), "kept", len(fresh))
	}
	return fresh
}

func (h *HistoryFilter) warn(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Warn(msg, args...)
	}
}
