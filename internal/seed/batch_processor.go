package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/amankumarsingh77/directory_pipeline/internal/store"
	"github.com/amankumarsingh77/directory_pipeline/models"
)

type BatchProcessor struct {
	adapter   store.Store
	batchSize int
}

func NewBatchProcessor(adapter store.Store, batchSize int) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &BatchProcessor{adapter: adapter, batchSize: batchSize}
}

// CreateBatches splits products into consecutive chunks of batchSize.
func (p *BatchProcessor) CreateBatches(products []models.Product) [][]models.Product {
	var batches [][]models.Product
	for i := 0; i < len(products); i += p.batchSize {
		end := min(i+p.batchSize, len(products))
		batches = append(batches, products[i:end])
	}
	return batches
}

func (p *BatchProcessor) ProcessBatch(ctx context.Context, batch []models.Product) error {
	if err := p.adapter.UpsertProducts(ctx, batch); err != nil {
		return fmt.Errorf("failed to upsert batch of %d: %w", len(batch), err)
	}
	return nil
}

// dedupeByCodename keeps the last item for every codename, at the position
// where that codename first appeared. Codenames are trimmed first so the
// survivors carry the exact key the upsert conflicts on.
func dedupeByCodename(items []models.EnrichedDataItem) []models.EnrichedDataItem {
	index := make(map[string]int, len(items))
	out := make([]models.EnrichedDataItem, 0, len(items))
	for _, item := range items {
		item.Codename = strings.TrimSpace(item.Codename)
		if i, ok := index[item.Codename]; ok {
			out[i] = item
			continue
		}
		index[item.Codename] = len(out)
		out = append(out, item)
	}
	return out
}
