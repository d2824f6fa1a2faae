package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/amankumarsingh77/directory_pipeline/internal/checkpoint"
	"github.com/amankumarsingh77/directory_pipeline/models"
	"github.com/amankumarsingh77/directory_pipeline/pkg/logger"
)

type Discoverer struct {
	sources []Source
	log     Log
	repo    checkpoint.Repository
	logger  logger.Logger
	now     func() time.Time
}

func NewDiscoverer(sources []Source, log Log, repo checkpoint.Repository, l logger.Logger) *Discoverer {
	return &Discoverer{
		sources: sources,
		log:     log,
		repo:    repo,
		logger:  l,
		now:     time.Now,
	}
}

type candidate struct {
	key   string
	agent models.DiscoveredAgent
}

// DiscoverNewAgents queries every source, keeps only URLs never seen before
// and returns them best first. A failing source only shrinks the result.
func (d *Discoverer) DiscoverNewAgents(ctx context.Context) ([]string, error) {
	found := d.collect(ctx)

	ranked := rank(mergeAgents(found, d.logger), d.now())
	keys := make([]string, len(ranked))
	for i, c := range ranked {
		keys[i] = c.key
	}

	known, err := d.log.Known(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to read discovery log: %w", err)
	}

	fresh := make([]models.DiscoveredAgent, 0, len(ranked))
	urls := make([]string, 0, len(ranked))
	for _, c := range ranked {
		if known[c.key] {
			continue
		}
		fresh = append(fresh, c.agent)
		urls = append(urls, c.agent.URL)
	}

	if err = d.log.Append(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to append discovery log: %w", err)
	}
	version, err := d.repo.Write(ctx, checkpoint.StageDiscovered, fresh)
	if err != nil {
		return nil, fmt.Errorf("failed to write discovered checkpoint: %w", err)
	}

	d.logger.Info("discovery finished",
		logger.Int("candidates", len(found)),
		logger.Int("unique", len(ranked)),
		logger.Int("new", len(fresh)),
		logger.String("version", version),
	)
	return urls, nil
}

func (d *Discoverer) collect(ctx context.Context) []models.DiscoveredAgent {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		found []models.DiscoveredAgent
	)
	for _, src := range d.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			items, err := src.Fetch(ctx)
			if err != nil {
				d.logger.Warn("source failed", logger.String("source", src.Name()), logger.Error(err))
				return
			}
			d.logger.Debug("source returned", logger.String("source", src.Name()), logger.Int("count", len(items)))
			mu.Lock()
			found = append(found, items...)
			mu.Unlock()
		}(src)
	}
	wg.Wait()
	return found
}

// mergeAgents collapses candidates sharing a normalized URL. The more popular
// one wins and a missing popularity counts as zero.
func mergeAgents(items []models.DiscoveredAgent, l logger.Logger) []candidate {
	index := make(map[string]int, len(items))
	merged := make([]candidate, 0, len(items))
	for _, item := range items {
		canonical, err := CanonicalURL(item.URL)
		if err != nil {
			l.Debug("dropping candidate", logger.String("url", item.URL), logger.Error(err))
			continue
		}
		key, err := NormalizeURL(canonical)
		if err != nil {
			continue
		}
		item.URL = canonical
		if i, ok := index[key]; ok {
			if item.PopularityOrZero() > merged[i].agent.PopularityOrZero() {
				merged[i].agent = item
			}
			continue
		}
		index[key] = len(merged)
		merged = append(merged, candidate{key: key, agent: item})
	}
	return merged
}

func score(a models.DiscoveredAgent, now time.Time) float64 {
	ref := a.DiscoveredAt
	if a.PublishedAt != nil && !a.PublishedAt.IsZero() {
		ref = *a.PublishedAt
	}
	ageDays := now.Sub(ref).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return a.PopularityOrZero()*10 + 10/(1+ageDays)
}

func rank(cands []candidate, now time.Time) []candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		return score(cands[i].agent, now) > score(cands[j].agent, now)
	})
	return cands
}
