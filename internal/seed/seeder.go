package seed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/amankumarsingh77/directory_pipeline/config"
	"github.com/amankumarsingh77/directory_pipeline/internal/checkpoint"
	"github.com/amankumarsingh77/directory_pipeline/internal/metrics"
	"github.com/amankumarsingh77/directory_pipeline/internal/storage"
	"github.com/amankumarsingh77/directory_pipeline/internal/store"
	"github.com/amankumarsingh77/directory_pipeline/models"
	"github.com/amankumarsingh77/directory_pipeline/pkg/logger"
	"golang.org/x/sync/errgroup"
)

var errNoCodename = errors.New("item has no codename")

type Seeder struct {
	cfg       *config.SeedConfig
	store     store.Store
	images    *imageUploader
	processor *BatchProcessor
	repo      checkpoint.Repository
	metrics   *metrics.Metrics
	logger    logger.Logger
}

func NewSeeder(cfg *config.SeedConfig, st store.Store, objects storage.ObjectStore, fetcher imageFetcher, repo checkpoint.Repository, m *metrics.Metrics, l logger.Logger) *Seeder {
	l = l.With(logger.String("stage", "seed"))
	maxBytes := cfg.ImageMaxBytes
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &Seeder{
		cfg:   cfg,
		store: st,
		images: &imageUploader{
			fetcher:  fetcher,
			objects:  objects,
			retries:  cfg.ImageRetries,
			backoff:  cfg.ImageBackoff,
			maxBytes: maxBytes,
			logger:   l,
		},
		processor: NewBatchProcessor(st, cfg.BatchSize),
		repo:      repo,
		metrics:   m,
		logger:    l,
	}
}

// SeedDatabase writes the newest enriched snapshot to the store.
func (s *Seeder) SeedDatabase(ctx context.Context) error {
	var items []models.EnrichedDataItem
	version, err := s.repo.Latest(ctx, checkpoint.StageEnriched, &items)
	if err != nil {
		return fmt.Errorf("failed to load enriched data: %w", err)
	}
	s.logger.Info("seeding enriched snapshot", logger.String("version", version), logger.Int("items", len(items)))
	return s.run(ctx, items)
}

// SeedFailed retries the items recorded by the previous seed run.
func (s *Seeder) SeedFailed(ctx context.Context) error {
	var failed []models.FailedItem[models.EnrichedDataItem]
	if _, err := s.repo.Latest(ctx, checkpoint.StageFailedSeed, &failed); err != nil {
		return fmt.Errorf("failed to load failed seed items: %w", err)
	}
	items := make([]models.EnrichedDataItem, len(failed))
	for i, f := range failed {
		items[i] = f.Item
	}
	s.logger.Info("retrying failed seed items", logger.Int("items", len(items)))
	return s.run(ctx, items)
}

func (s *Seeder) run(ctx context.Context, items []models.EnrichedDataItem) error {
	seeded, failed, err := s.SeedItems(ctx, items)
	if err != nil {
		return err
	}
	if _, err = s.repo.Write(ctx, checkpoint.StageFailedSeed, failed); err != nil {
		return fmt.Errorf("failed to write failed-seed checkpoint: %w", err)
	}
	s.logger.Info("seeding finished", logger.Int("seeded", seeded), logger.Int("failed", len(failed)))
	return nil
}

// SeedItems resolves logos and lookup entities per item, then upserts the
// products in batches. It returns how many rows were written.
func (s *Seeder) SeedItems(ctx context.Context, items []models.EnrichedDataItem) (int, []models.FailedItem[models.EnrichedDataItem], error) {
	items = dedupeByCodename(items)
	products := make([]*models.Product, len(items))
	var (
		mu     sync.Mutex
		failed = []models.FailedItem[models.EnrichedDataItem]{}
	)
	fail := func(item models.EnrichedDataItem, err error) {
		s.metrics.Items.WithLabelValues("seed", "failed").Inc()
		s.logger.Warn("item failed", logger.String("codename", item.Codename), logger.Error(err))
		mu.Lock()
		failed = append(failed, models.FailedItem[models.EnrichedDataItem]{Item: item, Error: err.Error()})
		mu.Unlock()
	}

	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, item := range items {
		g.Go(func() error {
			p, err := s.prepare(gCtx, item)
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				fail(item, err)
				return nil
			}
			products[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, nil, fmt.Errorf("seeding interrupted: %w", err)
	}

	ready := make([]models.Product, 0, len(products))
	byCodename := make(map[string]models.EnrichedDataItem, len(items))
	for i, p := range products {
		if p != nil {
			ready = append(ready, *p)
			byCodename[p.Codename] = items[i]
		}
	}

	seeded := 0
	for _, batch := range s.processor.CreateBatches(ready) {
		if err := s.processor.ProcessBatch(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return seeded, nil, fmt.Errorf("seeding interrupted: %w", ctx.Err())
			}
			for _, p := range batch {
				fail(byCodename[p.Codename], err)
			}
			continue
		}
		seeded += len(batch)
		s.metrics.Items.WithLabelValues("seed", "ok").Add(float64(len(batch)))
	}
	return seeded, failed, nil
}

func (s *Seeder) prepare(ctx context.Context, item models.EnrichedDataItem) (*models.Product, error) {
	codename := item.Codename
	if codename == "" {
		return nil, errNoCodename
	}

	category := SanitizeEntityName(item.Categories)
	if category != "" {
		if _, err := s.store.GetOrCreateEntity(ctx, models.EntityCategory, category); err != nil {
			return nil, fmt.Errorf("category %q: %w", category, err)
		}
	}
	labels, err := s.resolve(ctx, models.EntityLabel, item.Labels)
	if err != nil {
		return nil, err
	}
	tags, err := s.resolve(ctx, models.EntityTag, item.Tags)
	if err != nil {
		return nil, err
	}

	logo, fellBack, err := s.images.upload(ctx, codename, item.LogoSrc)
	if err != nil {
		return nil, fmt.Errorf("logo: %w", err)
	}
	if fellBack {
		s.metrics.ImageFallbacks.Inc()
	}

	return &models.Product{
		Codename:       codename,
		FullName:       item.FullName,
		ProductWebsite: item.ProductWebsite,
		Punchline:      item.Punchline,
		Description:    item.Description,
		LogoSrc:        logo,
		Categories:     category,
		Tags:           tags,
		Labels:         labels,
		Approved:       true,
		Featured:       false,
		UserID:         nil,
	}, nil
}

func (s *Seeder) resolve(ctx context.Context, kind models.EntityKind, names []string) ([]string, error) {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, raw := range names {
		name := SanitizeEntityName(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if _, err := s.store.GetOrCreateEntity(ctx, kind, name); err != nil {
			return nil, fmt.Errorf("%s %q: %w", kind, name, err)
		}
		out = append(out, name)
	}
	return out, nil
}
