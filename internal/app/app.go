package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"medwatch/internal/config"
	"medwatch/internal/infrastructure/excel"
	"medwatch/internal/infrastructure/feishu"
	"medwatch/internal/infrastructure/llm"
	"medwatch/internal/infrastructure/mail"
	"medwatch/internal/infrastructure/scheduler"
	"medwatch/internal/infrastructure/storage"
	"medwatch/internal/infrastructure/websearch"
	"medwatch/internal/infrastructure/webpage"
	"medwatch/internal/logging"
	"medwatch/internal/ports"
	"medwatch/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	db       *sql.DB
}

// New builds a runnable application instance from validated configuration.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	searchClient := websearch.NewClient(cfg.Search)
	extractor := webpage.NewExtractor(&http.Client{Timeout: 20 * time.Second})

	source := usecase.NewBatchFetcher(usecase.BatchFetcherDeps{
		Search:          searchClient,
		Extractor:       extractor,
		Batches:         cfg.QueryBatches(),
		ResultsPerQuery: cfg.Search.ResultsPerQuery,
		Logger:          baseLogger.With("component", "fetcher"),
	})

	var db *sql.DB
	var history ports.HistoryRepository
	if cfg.Database.DSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		repo := storage.NewPostgresRepository(db)
		if err := repo.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		history = repo
	}

	mailer, err := mail.NewMailer(cfg.Mail, baseLogger.With("component", "mailer"))
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("configure mailer: %w", err)
	}

	var table ports.TableSyncer
	if cfg.Feishu.Enabled {
		table = feishu.NewClient(cfg.Feishu)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:   source,
		History:  history,
		Enricher: llm.NewEnricher(cfg.Model),
		Renderer: excel.NewRenderer(cfg.Workspace.Path),
		Mailer:   mailer,
		Table:    table,
		Logger:   baseLogger.With("component", "pipeline"),
		Loop: usecase.AccumulatorConfig{
			TargetCount: cfg.Loop.TargetCount,
			MaxSearches: cfg.Loop.MaxSearches,
			Cooldown:    cfg.Loop.Cooldown(),
		},
		MinUsable:     cfg.Loop.MinUsable,
		RetentionDays: cfg.Retention.Days,
	})

	return &Application{cfg: cfg, logger: baseLogger, pipeline: pipeline, db: db}, nil
}

// Run executes the pipeline once when no cron expression is configured, or
// keeps it on schedule until the process receives SIGINT/SIGTERM.
func (a *Application) Run(ctx context.Context) error {
	defer a.Close()

	loc := a.cfg.Scheduler.Location()
	if a.cfg.Scheduler.CronExpression == "" {
		return a.pipeline.Run(ctx, time.Now().In(loc))
	}

	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, loc)
	sched := usecase.NewScheduler(driver, a.pipeline, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression, "timezone", loc.String())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-stop:
		a.logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Close releases long-lived resources.
func (a *Application) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
