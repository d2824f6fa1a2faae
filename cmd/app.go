package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/amankumarsingh77/directory_pipeline/config"
	"github.com/amankumarsingh77/directory_pipeline/internal/checkpoint"
	"github.com/amankumarsingh77/directory_pipeline/internal/common/httpclient"
	"github.com/amankumarsingh77/directory_pipeline/internal/crawler"
	"github.com/amankumarsingh77/directory_pipeline/internal/discovery"
	"github.com/amankumarsingh77/directory_pipeline/internal/enrich"
	"github.com/amankumarsingh77/directory_pipeline/internal/metrics"
	"github.com/amankumarsingh77/directory_pipeline/internal/pipeline"
	"github.com/amankumarsingh77/directory_pipeline/internal/seed"
	"github.com/amankumarsingh77/directory_pipeline/internal/storage"
	"github.com/amankumarsingh77/directory_pipeline/internal/store"
	"github.com/amankumarsingh77/directory_pipeline/pkg/logger"
	"github.com/google/uuid"
)

const entityCacheSize = 1024

// app owns the clients shared by the commands and closes them on exit.
type app struct {
	cfg     *config.PipelineConfig
	dryRun  bool
	runID   string
	logger  logger.Logger
	metrics *metrics.Metrics
	repo    checkpoint.Repository
	http    *httpclient.HttpClient
	closers []func() error
}

func newApp(ctx context.Context, configFile string, dryRun bool) (*app, error) {
	cfg, err := config.LoadPipelineConfig(configFile)
	if err != nil {
		return nil, err
	}
	l, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	a := &app{
		cfg:     cfg,
		dryRun:  dryRun,
		runID:   runID,
		logger:  l.With(logger.String("run_id", runID)),
		metrics: metrics.New(),
	}

	switch cfg.Checkpoint.Backend {
	case "mongo":
		repo, err := checkpoint.NewMongoRepository(ctx, &cfg.Checkpoint.Mongo, runID)
		if err != nil {
			return nil, err
		}
		a.repo = repo
	case "", "disk":
		repo, err := checkpoint.NewDiskRepository(cfg.Checkpoint.Dir)
		if err != nil {
			return nil, err
		}
		a.repo = repo
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Checkpoint.Backend)
	}
	a.closers = append(a.closers, func() error { return a.repo.Close(context.Background()) })

	if a.http, err = httpclient.NewHttpClient(&cfg.HTTP); err != nil {
		a.close()
		return nil, err
	}
	if dryRun {
		a.logger.Info("dry run: products stay in memory and logos go to " + cfg.Seed.Storage.LocalDir)
	}
	return a, nil
}

// close runs the closers in reverse order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", logger.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *app) validate(stages ...pipeline.Stage) error {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = string(s)
	}
	return a.cfg.Validate(names, a.dryRun)
}

func (a *app) discoverer(ctx context.Context) (*discovery.Discoverer, error) {
	dc := a.cfg.Discovery
	var sources []discovery.Source
	if dc.ProductHuntFeed != "" {
		sources = append(sources, discovery.NewProductHuntSource(a.http, dc.ProductHuntFeed, dc.PerSourceLimit))
	}
	if dc.HackerNewsURL != "" {
		sources = append(sources, discovery.NewHackerNewsSource(a.http, dc.HackerNewsURL, dc.Queries, dc.PerSourceLimit))
	}
	if dc.GitHubURL != "" {
		sources = append(sources, discovery.NewGitHubSource(a.http, dc.GitHubURL, dc.GitHubToken, dc.Topics, dc.Queries, dc.PerSourceLimit))
	}
	if dc.SeedFile != "" {
		sources = append(sources, discovery.NewManualSource(dc.SeedFile))
	}

	var log discovery.Log
	switch dc.LogBackend {
	case "redis":
		client, err := discovery.NewRedisClient(ctx, &dc.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		var bloom *discovery.BloomFilter
		if dc.Redis.Bloom {
			if bloom, err = discovery.NewRedisBloomFilter(&dc.Redis); err != nil {
				return nil, err
			}
		}
		if log, err = discovery.NewRedisLog(ctx, client, dc.Redis.LogKey, bloom); err != nil {
			return nil, err
		}
	case "", "file":
		fileLog, err := discovery.NewFileLog(dc.LogFile)
		if err != nil {
			return nil, err
		}
		log = fileLog
	default:
		return nil, fmt.Errorf("unknown discovery log backend %q", dc.LogBackend)
	}
	return discovery.NewDiscoverer(sources, log, a.repo, a.logger), nil
}

func (a *app) spider(ctx context.Context) (*crawler.Spider, error) {
	fetcher, err := crawler.NewFetcher(ctx, &a.cfg.Crawl, &a.cfg.HTTP)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, fetcher.Close)
	return crawler.NewSpider(&a.cfg.Crawl, fetcher, a.repo, a.logger), nil
}

func (a *app) enricher() *enrich.Enricher {
	completer := enrich.NewAnthropicCompleter(&a.cfg.Enrich, a.logger)
	return enrich.NewEnricher(&a.cfg.Enrich, completer, enrich.DefaultVocabulary(), a.repo, a.metrics, a.logger)
}

func (a *app) seeder(ctx context.Context) (*seed.Seeder, error) {
	sc := a.cfg.Seed
	var (
		st      store.Store
		objects storage.ObjectStore
	)
	if a.dryRun {
		st = store.NewMemoryStore()
		local, err := storage.NewLocalStore(sc.Storage.LocalDir, "")
		if err != nil {
			return nil, err
		}
		objects = local
	} else {
		pg, err := store.NewPostgresStore(ctx, &sc.DB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		st = pg
		if objects, err = storage.NewMinioStore(ctx, &sc.Storage, a.logger); err != nil {
			return nil, err
		}
	}
	st = store.WithEntityCache(st, entityCacheSize, sc.EntityCacheTTL)
	return seed.NewSeeder(&sc, st, objects, a.http, a.repo, a.metrics, a.logger), nil
}

// stages builds the runners for every stage from from onwards.
func (a *app) stages(ctx context.Context, from pipeline.Stage) (pipeline.Stages, error) {
	var (
		stages pipeline.Stages
		err    error
	)
	for _, stage := range pipeline.StagesFrom(from) {
		switch stage {
		case pipeline.StageDiscover:
			stages.Discoverer, err = a.discoverer(ctx)
		case pipeline.StageCrawl:
			stages.Crawler, err = a.spider(ctx)
		case pipeline.StageEnrich:
			stages.Enricher = a.enricher()
		case pipeline.StageSeed:
			stages.Seeder, err = a.seeder(ctx)
		}
		if err != nil {
			return pipeline.Stages{}, err
		}
	}
	return stages, nil
}

func (a *app) pushMetrics() {
	if err := a.metrics.Push(context.Background(), a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job, a.runID); err != nil {
		a.logger.Warn("metrics push failed", logger.Error(err))
	}
}

// remediation explains the setup problems an operator can fix.
func remediation(err error) string {
	switch {
	case errors.Is(err, config.ErrMissingCredential):
		return "set the missing variables in the environment or in .env, or pass --dry-run to keep the seed stage local"
	case errors.Is(err, crawler.ErrBrowserUnavailable):
		return "install Chrome or Chromium, point crawl.chrome_path at it, or set crawl.fetcher to \"http\""
	case errors.Is(err, checkpoint.ErrNoCheckpoint):
		return "run the previous stage first, or start the pipeline earlier with run --from"
	case errors.Is(err, pipeline.ErrLocked):
		return "wait for the other run to finish; remove the lock file if that run is gone"
	}
	return ""
}
