// Package pipeline runs the stages in order and owns the per-run concerns:
// the run lock, the run ID and the metrics push.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/amankumarsingh77/directory_pipeline/config"
	"github.com/amankumarsingh77/directory_pipeline/internal/checkpoint"
	"github.com/amankumarsingh77/directory_pipeline/internal/crawler"
	"github.com/amankumarsingh77/directory_pipeline/internal/metrics"
	"github.com/amankumarsingh77/directory_pipeline/pkg/logger"
	"github.com/google/uuid"
)

type Stage string

const (
	StageDiscover Stage = "discover"
	StageCrawl    Stage = "crawl"
	StageEnrich   Stage = "enrich"
	StageSeed     Stage = "seed"
)

var stageOrder = []Stage{StageDiscover, StageCrawl, StageEnrich, StageSeed}

var ErrUnknownStage = errors.New("unknown stage")

func ParseStage(s string) (Stage, error) {
	stage := Stage(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(stageOrder, stage) {
		return "", fmt.Errorf("%w %q, want one of %v", ErrUnknownStage, s, stageOrder)
	}
	return stage, nil
}

// StagesFrom lists from and every stage after it.
func StagesFrom(from Stage) []Stage {
	i := slices.Index(stageOrder, from)
	if i < 0 {
		return nil
	}
	return stageOrder[i:]
}

type Discoverer interface {
	DiscoverNewAgents(ctx context.Context) ([]string, error)
}

type Crawler interface {
	CrawlAndSave(ctx context.Context, urls []string) error
}

type Enricher interface {
	EnrichLatestData(ctx context.Context) error
}

type Seeder interface {
	SeedDatabase(ctx context.Context) error
}

// Stages holds the stage runners. Runners before the starting stage may be nil.
type Stages struct {
	Discoverer Discoverer
	Crawler    Crawler
	Enricher   Enricher
	Seeder     Seeder
}

type Pipeline struct {
	stages  Stages
	repo    checkpoint.Repository
	lockDir string
	metrics *metrics.Metrics
	mcfg    config.MetricsConfig
	runID   string
	logger  logger.Logger
}

func New(stages Stages, repo checkpoint.Repository, lockDir string, m *metrics.Metrics, mcfg config.MetricsConfig, runID string, l logger.Logger) *Pipeline {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Pipeline{
		stages:  stages,
		repo:    repo,
		lockDir: lockDir,
		metrics: m,
		mcfg:    mcfg,
		runID:   runID,
		logger:  l.With(logger.String("run_id", runID)),
	}
}

func (p *Pipeline) RunID() string {
	return p.runID
}

// Run executes the stages starting at from. A discovery that finds nothing
// new ends the run early without error.
func (p *Pipeline) Run(ctx context.Context, from Stage) (err error) {
	stages := StagesFrom(from)
	if len(stages) == 0 {
		return fmt.Errorf("%w %q", ErrUnknownStage, from)
	}
	if err = p.check(stages); err != nil {
		return err
	}

	release, err := acquireLock(p.lockDir, p.runID)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			p.logger.Warn("failed to remove lock file", logger.Error(rerr))
		}
		p.push()
	}()

	p.logger.Info("pipeline started", logger.String("from", string(from)))
	start := time.Now()

	var urls []string
	for _, stage := range stages {
		stageStart := time.Now()
		switch stage {
		case StageDiscover:
			urls, err = p.stages.Discoverer.DiscoverNewAgents(ctx)
		case StageCrawl:
			if urls == nil {
				if urls, err = crawler.LatestDiscoveredURLs(ctx, p.repo); err != nil {
					break
				}
			}
			err = p.stages.Crawler.CrawlAndSave(ctx, urls)
		case StageEnrich:
			err = p.stages.Enricher.EnrichLatestData(ctx)
		case StageSeed:
			err = p.stages.Seeder.SeedDatabase(ctx)
		}
		p.metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(stageStart).Seconds())
		if err != nil {
			return fmt.Errorf("%s stage failed: %w", stage, err)
		}
		p.logger.Info("stage finished", logger.String("stage", string(stage)), logger.Duration("took", time.Since(stageStart)))

		if stage == StageDiscover && len(urls) == 0 {
			p.logger.Info("no new agents discovered, nothing to crawl")
			return nil
		}
	}

	p.logger.Info("pipeline finished", logger.Duration("took", time.Since(start)))
	return nil
}

func (p *Pipeline) check(stages []Stage) error {
	for _, stage := range stages {
		var missing bool
		switch stage {
		case StageDiscover:
			missing = p.stages.Discoverer == nil
		case StageCrawl:
			missing = p.stages.Crawler == nil
		case StageEnrich:
			missing = p.stages.Enricher == nil
		case StageSeed:
			missing = p.stages.Seeder == nil
		}
		if missing {
			return fmt.Errorf("no runner configured for the %s stage", stage)
		}
	}
	return nil
}

func (p *Pipeline) push() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.metrics.Push(ctx, p.mcfg.PushgatewayURL, p.mcfg.Job, p.runID); err != nil {
		p.logger.Warn("metrics push failed", logger.Error(err))
	}
}
