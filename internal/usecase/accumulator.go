package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"medwatch/internal/domain"
)

// Decision is the accumulator's verdict after one cycle.
type Decision string

const (
	// DecisionContinue loops back into another fetch cycle.
	DecisionContinue Decision = "continue"
	// DecisionTargetReached is the success exit: enough articles collected.
	DecisionTargetReached Decision = "target_reached"
	// DecisionBudgetExhausted is the budget exit: the search ceiling was hit
	// before the target; whatever accumulated is handed downstream.
	DecisionBudgetExhausted Decision = "budget_exhausted"
)

// BatchSource yields one cycle's worth of normalized, batch-deduplicated
// articles.
type BatchSource interface {
	FetchBatch(ctx context.Context) ([]domain.Article, error)
}

// AccumulatorConfig parameterizes one accumulation run.
type AccumulatorConfig struct {
	TargetCount int
	MaxSearches int
	// Cooldown is the pause between CONTINUE cycles, skipped on the cycle
	// that produces a terminal decision.
	Cooldown time.Duration
}

// AccumulationResult is the loop's hand-off to enrichment.
type AccumulationResult struct {
	Articles []domain.Article
	Searches int
	Decision Decision
}

// Accumulator runs the bounded fetch→dedup→accumulate→decide loop. The
// accumulated collection grows monotonically in cycle order; existing
// entries are never mutated or re-sorted.
type Accumulator struct {
	source BatchSource
	cfg    AccumulatorConfig
	logger *slog.Logger
}

// NewAccumulator wires the loop with its batch source.
func NewAccumulator(source BatchSource, cfg AccumulatorConfig, logger *slog.Logger) *Accumulator {
	return &Accumulator{source: source, cfg: cfg, logger: logger}
}

// Run executes cycles until a terminal decision. A batch-source error is an
// infrastructure failure and aborts the run; emptiness is not an error.
func (a *Accumulator) Run(ctx context.Context) (AccumulationResult, error) {
	if a.source == nil {
		return AccumulationResult{}, fmt.Errorf("batch source is not configured")
	}
	if a.cfg.TargetCount <= 0 || a.cfg.MaxSearches <= 0 {
		return AccumulationResult{}, fmt.Errorf("accumulator misconfigured: target=%d max=%d", a.cfg.TargetCount, a.cfg.MaxSearches)
	}

	var accumulated []domain.Article
	searches := 0

	for {
		batch, err := a.source.FetchBatch(ctx)
		if err != nil {
			return AccumulationResult{}, fmt.Errorf("cycle %d: %w", searches+1, err)
		}

		urls, titles := KnownKeys(accumulated)
		fresh := FilterKnown(batch, urls, titles)

		accumulated = append(accumulated, fresh...)
		searches++

		decision := decide(len(accumulated), searches, a.cfg.TargetCount, a.cfg.MaxSearches)
		a.log("cycle complete",
			"cycle", searches,
			"batch", len(batch),
			"fresh", len(fresh),
			"accumulated", len(accumulated),
			"decision", string(decision))

		if decision != DecisionContinue {
			return AccumulationResult{Articles: accumulated, Searches: searches, Decision: decision}, nil
		}

		if err := a.coolDown(ctx); err != nil {
			return AccumulationResult{Articles: accumulated, Searches: searches, Decision: decision}, err
		}
	}
}

// decide evaluates the transition after accumulation. Target satisfaction is
// checked before budget exhaustion.
func decide(accumulated, searches, target, maxSearches int) Decision {
	switch {
	case accumulated >= target:
		return DecisionTargetReached
	case searches >= maxSearches:
		return DecisionBudgetExhausted
	default:
		return DecisionContinue
	}
}

// coolDown pauses between cycles without blocking cancellation.
func (a *Accumulator) coolDown(ctx context.Context) error {
	if a.cfg.Cooldown <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(a.cfg.Cooldown)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Accumulator) log(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Info(msg, args...)
	}
}
