package crawler

import (
	"context"
	"sync"
)

type crawlItem struct {
	Url     string
	Attempt int
}

// URLFrontier hands URLs to workers. A failed URL goes back into the same
// queue until it has used up its retries.
type URLFrontier interface {
	Next(ctx context.Context) (*crawlItem, bool)
	Done(item *crawlItem)
	// Fail reports whether the item was queued again.
	Fail(item *crawlItem) bool
}

type memoryFrontier struct {
	queue      chan *crawlItem
	pending    sync.WaitGroup
	maxRetries int
}

// NewURLFrontier seeds a frontier with urls, skipping exact duplicates. The
// queue is closed once every URL is either done or out of retries.
func NewURLFrontier(urls []string, maxRetries int) URLFrontier {
	seen := make(map[string]bool, len(urls))
	f := &memoryFrontier{
		// Every item is either queued or in flight, never both, so a
		// requeue can never block on a full channel.
		queue:      make(chan *crawlItem, len(urls)),
		maxRetries: maxRetries,
	}
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		f.pending.Add(1)
		f.queue <- &crawlItem{Url: u}
	}
	go func() {
		f.pending.Wait()
		close(f.queue)
	}()
	return f
}

func (f *memoryFrontier) Next(ctx context.Context) (*crawlItem, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case item, ok := <-f.queue:
		return item, ok
	}
}

func (f *memoryFrontier) Done(*crawlItem) {
	f.pending.Done()
}

func (f *memoryFrontier) Fail(item *crawlItem) bool {
	if item.Attempt >= f.maxRetries {
		f.pending.Done()
		return false
	}
	item.Attempt++
	f.queue <- item
	return true
}
