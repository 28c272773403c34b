package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"medwatch/internal/domain"
	"medwatch/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source        BatchSource
	History       ports.HistoryRepository
	Enricher      ports.Enricher
	Renderer      ports.ReportRenderer
	Mailer        ports.Mailer
	Table         ports.TableSyncer
	Logger        *slog.Logger
	Loop          AccumulatorConfig
	MinUsable     int
	RetentionDays int
}

// Pipeline implements the daily news workflow: accumulate, dedup against
// history, gate, enrich, render, deliver, record.
type Pipeline struct {
	accumulator   *Accumulator
	history       ports.HistoryRepository
	historyFilter *HistoryFilter
	enricher      ports.Enricher
	renderer      ports.ReportRenderer
	mailer        ports.Mailer
	table         ports.TableSyncer
	logger        *slog.Logger
	minUsable     int
	retentionDays int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	minUsable := deps.MinUsable
	if minUsable <= 0 {
		minUsable = 5
	}
	return &Pipeline{
		accumulator:   NewAccumulator(deps.Source, deps.Loop, deps.Logger),
		history:       deps.History,
		historyFilter: NewHistoryFilter(deps.History, deps.Logger),
		enricher:      deps.Enricher,
		renderer:      deps.Renderer,
		mailer:        deps.Mailer,
		table:         deps.Table,
		logger:        deps.Logger,
		minUsable:     minUsable,
		retentionDays: deps.RetentionDays,
	}
}

// Run executes one full pipeline pass for the given day. The history store
// is written only after delivery succeeded, so a failed run never poisons
// the dedup ledger with articles nobody received.
func (p *Pipeline) Run(ctx context.Context, day time.Time) error {
	if p.mailer == nil || p.renderer == nil {
		return fmt.Errorf("pipeline misconfigured: mailer and renderer are required")
	}

	log := p.logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("run", uuid.NewString()[:8])

	p.pruneHistory(ctx, log)

	result, err := p.accumulator.Run(ctx)
	if err != nil {
		return fmt.Errorf("accumulate news: %w", err)
	}

	articles := p.historyFilter.Filter(ctx, result.Articles)
	log.Info("accumulation finished",
		"collected", len(result.Articles),
		"after_history_dedup", len(articles),
		"searches", result.Searches,
		"decision", string(result.Decision))

	if len(articles) < p.minUsable {
		log.Info("below usable threshold, sending no-news notification",
			"articles", len(articles), "min_usable", p.minUsable)
		if err := p.mailer.SendNoNews(day); err != nil {
			return fmt.Errorf("send no-news notification: %w", err)
		}
		return nil
	}

	articles = p.enrich(ctx, articles, log)

	reportPath, err := p.renderer.Render(articles, day)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	sent, mailErr := p.mailer.SendReport(articles, day, reportPath)
	if sent == 0 && mailErr != nil {
		return fmt.Errorf("deliver report: %w", mailErr)
	}
	if mailErr != nil {
		log.Warn("partial delivery", "sent", sent, "error", mailErr)
	}

	if p.table != nil {
		synced, err := p.table.Sync(ctx, articles)
		if err != nil {
			// Mail already went out; aborting here would skip the history
			// write and resend everything tomorrow.
			log.Warn("table sync failed", "error", err)
		} else {
			log.Info("table synced", "records", synced)
		}
	}

	if p.history != nil {
		if err := p.history.RecordMany(ctx, articles); err != nil {
			return fmt.Errorf("record history: %w", err)
		}
	}

	log.Info("run complete", "articles", len(articles), "recipients", sent)
	return nil
}

// enrich runs the summary and keyword branches over all articles and joins
// their outputs per article by URL. A branch failure leaves that article's
// fields at their original values; it never drops the article.
func (p *Pipeline) enrich(ctx context.Context, articles []domain.Article, log *slog.Logger) []domain.Article {
	if p.enricher == nil {
		return articles
	}

	summaries := make(map[string]ports.SummaryResult, len(articles))
	for _, article := range articles {
		result, err := p.enricher.Summarize(ctx, article)
		if err != nil {
			log.Warn("summarize failed", "url", article.URL, "error", err)
			continue
		}
		summaries[article.URL] = result
	}

	keywords := make(map[string][]string, len(articles))
	for _, article := range articles {
		kws, err := p.enricher.ExtractKeywords(ctx, article)
		if err != nil {
			log.Warn("keyword extraction failed", "url", article.URL, "error", err)
			continue
		}
		keywords[article.URL] = kws
	}

	enriched := make([]domain.Article, len(articles))
	for i, article := range articles {
		if result, ok := summaries[article.URL]; ok {
			if result.Summary != "" {
				article.Summary = result.Summary
			}
			if result.Source != "" {
				article.Source = result.Source
			}
			if result.Region != "" {
				article.Region = result.Region
			}
		}
		if kws, ok := keywords[article.URL]; ok && len(kws) > 0 {
			article.Keywords = kws
		}
		enriched[i] = article
	}
	return enriched
}

func (p *Pipeline) pruneHistory(ctx context.Context, log *slog.Logger) {
	if p.history == nil || p.retentionDays <= 0 {
		return
	}
	deleted, err := p.history.PruneOlderThan(ctx, p.retentionDays)
	if err != nil {
		log.Warn("history prune failed", "error", err)
		return
	}
	if deleted > 0 {
		log.Info("pruned history", "deleted", deleted, "older_than_days", p.retentionDays)
	}
}
