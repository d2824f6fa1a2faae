package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/amankumarsingh77/directory_pipeline/config"
	"github.com/amankumarsingh77/directory_pipeline/internal/checkpoint"
	"github.com/amankumarsingh77/directory_pipeline/internal/metrics"
	"github.com/amankumarsingh77/directory_pipeline/models"
	"github.com/amankumarsingh77/directory_pipeline/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const kindCompletion = "completion"

type Enricher struct {
	cfg       *config.EnrichConfig
	completer Completer
	vocab     *Vocabulary
	validator *validator
	repo      checkpoint.Repository
	metrics   *metrics.Metrics
	logger    logger.Logger

	fastCalls  atomic.Int64
	smartCalls atomic.Int64
}

func NewEnricher(cfg *config.EnrichConfig, completer Completer, vocab *Vocabulary, repo checkpoint.Repository, m *metrics.Metrics, l logger.Logger) *Enricher {
	return &Enricher{
		cfg:       cfg,
		completer: completer,
		vocab:     vocab,
		validator: newValidator(vocab),
		repo:      repo,
		metrics:   m,
		logger:    l.With(logger.String("stage", "enrich")),
	}
}

// Calls returns how many completions went to each tier so far.
func (e *Enricher) Calls() map[Tier]int64 {
	return map[Tier]int64{
		TierFast:  e.fastCalls.Load(),
		TierSmart: e.smartCalls.Load(),
	}
}

// EnrichLatestData enriches the newest raw snapshot and writes the enriched
// and failed-enriched snapshots.
func (e *Enricher) EnrichLatestData(ctx context.Context) error {
	var raw []models.RawDataItem
	version, err := e.repo.Latest(ctx, checkpoint.StageRaw, &raw)
	if err != nil {
		return fmt.Errorf("failed to load raw data: %w", err)
	}
	e.logger.Info("enriching raw snapshot", logger.String("version", version), logger.Int("items", len(raw)))
	return e.run(ctx, raw)
}

// EnrichFailed gives the items of the newest failed-enriched snapshot another
// full round.
func (e *Enricher) EnrichFailed(ctx context.Context) error {
	var failed []models.FailedItem[models.RawDataItem]
	version, err := e.repo.Latest(ctx, checkpoint.StageFailedEnriched, &failed)
	if err != nil {
		return fmt.Errorf("failed to load failed items: %w", err)
	}
	items := make([]models.RawDataItem, len(failed))
	for i, f := range failed {
		items[i] = f.Item
	}
	e.logger.Info("retrying failed items", logger.String("version", version), logger.Int("items", len(items)))
	return e.run(ctx, items)
}

func (e *Enricher) run(ctx context.Context, items []models.RawDataItem) error {
	enriched, failed, err := e.EnrichItems(ctx, items)
	if err != nil {
		return err
	}
	version, err := e.repo.Write(ctx, checkpoint.StageEnriched, enriched)
	if err != nil {
		return fmt.Errorf("failed to write enriched checkpoint: %w", err)
	}
	if _, err = e.repo.Write(ctx, checkpoint.StageFailedEnriched, failed); err != nil {
		return fmt.Errorf("failed to write failed-enriched checkpoint: %w", err)
	}
	calls := e.Calls()
	e.logger.Info("enrichment finished",
		logger.Int("enriched", len(enriched)),
		logger.Int("failed", len(failed)),
		logger.Int64("fast_calls", calls[TierFast]),
		logger.Int64("smart_calls", calls[TierSmart]),
		logger.String("version", version),
	)
	return nil
}

// EnrichItems processes items with bounded parallelism. One item failing never
// stops the others; only a cancelled context fails the batch.
func (e *Enricher) EnrichItems(ctx context.Context, items []models.RawDataItem) ([]models.EnrichedDataItem, []models.FailedItem[models.RawDataItem], error) {
	concurrency := e.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	results := make([]*models.EnrichedDataItem, len(items))
	var (
		mu     sync.Mutex
		failed []models.FailedItem[models.RawDataItem]
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, item := range items {
		g.Go(func() error {
			out, attempts, err := e.enrichItem(gCtx, item)
			if err == nil {
				results[i] = &out
				e.metrics.Items.WithLabelValues("enrich", "ok").Inc()
				return nil
			}
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			e.metrics.Items.WithLabelValues("enrich", "failed").Inc()
			e.logger.Warn("item failed",
				logger.String("codename", item.Codename),
				logger.Int("attempts", attempts),
				logger.Error(err),
			)
			f := models.FailedItem[models.RawDataItem]{Item: item, Error: err.Error(), Kind: kindCompletion, Attempts: attempts}
			var inv Invalid
			if errors.As(err, &inv) {
				f.Kind = string(inv.Kind)
			}
			mu.Lock()
			failed = append(failed, f)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("enrichment interrupted: %w", err)
	}

	enriched := make([]models.EnrichedDataItem, 0, len(items))
	for _, r := range results {
		if r != nil {
			enriched = append(enriched, *r)
		}
	}
	if failed == nil {
		failed = []models.FailedItem[models.RawDataItem]{}
	}
	return enriched, failed, nil
}

// enrichItem runs the first pass and up to MaxRepairs repair rounds. If the
// last reply is wrong only about the vocabulary it is kept anyway.
func (e *Enricher) enrichItem(ctx context.Context, item models.RawDataItem) (models.EnrichedDataItem, int, error) {
	prompt := BuildPrompt(e.vocab, item)
	var last Invalid
	attempts := 0
	for {
		attempts++
		raw, err := e.complete(ctx, prompt)
		if err != nil {
			return models.EnrichedDataItem{}, attempts, err
		}
		switch out := e.validator.validate(raw, item).(type) {
		case Valid:
			return out.Item, attempts, nil
		case Invalid:
			last = out
		}
		if attempts > e.cfg.MaxRepairs {
			break
		}
		e.metrics.Repairs.WithLabelValues(string(last.Kind)).Inc()
		e.logger.Debug("repairing reply",
			logger.String("codename", item.Codename),
			logger.String("kind", string(last.Kind)),
			logger.Int("attempt", attempts),
		)
		prompt = RepairPrompt(e.vocab, last, item)
	}

	if last.OnlyClassification() {
		e.logger.Warn("accepting item outside the vocabulary",
			logger.String("codename", item.Codename),
			logger.String("problems", last.Error()),
		)
		return last.Item, attempts, nil
	}
	return models.EnrichedDataItem{}, attempts, last
}

func (e *Enricher) complete(ctx context.Context, p Prompt) (string, error) {
	model := e.cfg.FastModel
	if p.Tier == TierSmart {
		model = e.cfg.SmartModel
		e.smartCalls.Add(1)
	} else {
		e.fastCalls.Add(1)
	}
	e.metrics.AICalls.WithLabelValues(string(p.Tier)).Inc()
	maxTokens := e.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return e.completer.Complete(ctx, CompletionRequest{
		Model:     model,
		System:    p.System,
		Prompt:    p.User,
		MaxTokens: maxTokens,
	})
}
