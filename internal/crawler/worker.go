package crawler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/amankumarsingh77/directory_pipeline/models"
	"github.com/amankumarsingh77/directory_pipeline/pkg/logger"
)

type Worker struct {
	ID       string
	frontier URLFrontier
	crawler  WebCrawler
	outChan  chan<- models.RawDataItem
	dropped  chan<- string
	delay    time.Duration
	logger   logger.Logger
}

func NewWorker(id string, frontier URLFrontier, webCrawler WebCrawler, outChan chan<- models.RawDataItem, dropped chan<- string, delay time.Duration, l logger.Logger) *Worker {
	return &Worker{
		ID:       id,
		frontier: frontier,
		crawler:  webCrawler,
		outChan:  outChan,
		dropped:  dropped,
		delay:    delay,
		logger:   l.With(logger.String("worker", id)),
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		item, ok := w.frontier.Next(ctx)
		if !ok {
			return
		}
		w.process(ctx, item)
		if !w.pause(ctx) {
			return
		}
	}
}

func (w *Worker) process(ctx context.Context, item *crawlItem) {
	w.logger.Debug("processing url", logger.String("url", item.Url), logger.Int("attempt", item.Attempt))
	raw, err := w.crawler.CrawlPage(ctx, item.Url)
	if err == nil {
		w.frontier.Done(item)
		w.outChan <- *raw
		return
	}
	if ctx.Err() != nil {
		w.frontier.Done(item)
		return
	}
	if w.frontier.Fail(item) {
		w.logger.Warn("fetch failed, requeued",
			logger.String("url", item.Url),
			logger.Int("attempt", item.Attempt),
			logger.Error(err),
		)
		return
	}
	w.logger.Error("giving up on url", logger.String("url", item.Url), logger.Error(err))
	w.dropped <- item.Url
}

func (w *Worker) pause(ctx context.Context) bool {
	if w.delay <= 0 {
		return ctx.Err() == nil
	}
	d := w.delay + time.Duration(rand.Int63n(int64(w.delay)))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
