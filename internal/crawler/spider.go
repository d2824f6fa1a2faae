package crawler

import (
	"context"
	"fmt"
	"sync"

	"github.com/amankumarsingh77/directory_pipeline/config"
	"github.com/amankumarsingh77/directory_pipeline/internal/checkpoint"
	"github.com/amankumarsingh77/directory_pipeline/models"
	"github.com/amankumarsingh77/directory_pipeline/pkg/logger"
)

type Spider struct {
	cfg     *config.CrawlConfig
	crawler WebCrawler
	repo    checkpoint.Repository
	logger  logger.Logger
}

func NewSpider(cfg *config.CrawlConfig, fetcher Fetcher, repo checkpoint.Repository, l logger.Logger) *Spider {
	return &Spider{
		cfg:     cfg,
		crawler: NewPageCrawler(fetcher, cfg.PlaceholderLogo),
		repo:    repo,
		logger:  l.With(logger.String("stage", "crawl")),
	}
}

// CrawlAndSave crawls urls with a fixed pool of workers and writes the pages
// it could extract as a new raw snapshot. URLs that keep failing are dropped.
func (s *Spider) CrawlAndSave(ctx context.Context, urls []string) error {
	items, dropped := s.crawl(ctx, urls)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("crawl interrupted: %w", err)
	}

	version, err := s.repo.Write(ctx, checkpoint.StageRaw, items)
	if err != nil {
		return fmt.Errorf("failed to write raw checkpoint: %w", err)
	}
	s.logger.Info("crawl finished",
		logger.Int("requested", len(urls)),
		logger.Int("crawled", len(items)),
		logger.Strings("dropped", dropped),
		logger.String("version", version),
	)
	return nil
}

func (s *Spider) crawl(ctx context.Context, urls []string) ([]models.RawDataItem, []string) {
	frontier := NewURLFrontier(urls, s.cfg.MaxRetries)
	pageChan := make(chan models.RawDataItem, len(urls))
	droppedChan := make(chan string, len(urls))

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		worker := NewWorker(fmt.Sprintf("worker-%d", i), frontier, s.crawler, pageChan, droppedChan, s.cfg.Delay, s.logger)
		go worker.Start(ctx, &wg)
	}
	s.logger.Info("crawling", logger.Int("urls", len(urls)), logger.Int("workers", workers))
	wg.Wait()
	close(pageChan)
	close(droppedChan)

	items := make([]models.RawDataItem, 0, len(urls))
	for item := range pageChan {
		items = append(items, item)
	}
	var dropped []string
	for u := range droppedChan {
		dropped = append(dropped, u)
	}
	return items, dropped
}

// LatestDiscoveredURLs reads the URLs of the newest discovered snapshot, for
// running the crawl stage on its own.
func LatestDiscoveredURLs(ctx context.Context, repo checkpoint.Repository) ([]string, error) {
	var agents []models.DiscoveredAgent
	if _, err := repo.Latest(ctx, checkpoint.StageDiscovered, &agents); err != nil {
		return nil, err
	}
	urls := make([]string, len(agents))
	for i, a := range agents {
		urls[i] = a.URL
	}
	return urls, nil
}
