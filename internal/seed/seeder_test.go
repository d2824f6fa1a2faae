package seed

import (
	"context"
	"testing"

	"github.com/amankumarsingh77/directory_pipeline/config"
	"github.com/amankumarsingh77/directory_pipeline/internal/checkpoint"
	"github.com/amankumarsingh77/directory_pipeline/internal/metrics"
	"github.com/amankumarsingh77/directory_pipeline/internal/storage"
	"github.com/amankumarsingh77/directory_pipeline/internal/store"
	"github.com/amankumarsingh77/directory_pipeline/models"
	"github.com/amankumarsingh77/directory_pipeline/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seedFixture struct {
	seeder  *Seeder
	store   *store.MemoryStore
	repo    *checkpoint.DiskRepository
	images  *fakeImages
	metrics *metrics.Metrics
}

func newSeedFixture(t *testing.T) *seedFixture {
	t.Helper()
	repo, err := checkpoint.NewDiskRepository(t.TempDir())
	require.NoError(t, err)
	objects, err := storage.NewLocalStore(t.TempDir(), "https://cdn.example.com")
	require.NoError(t, err)

	f := &seedFixture{
		store:   store.NewMemoryStore(),
		repo:    repo,
		images:  newFakeImages(),
		metrics: metrics.New(),
	}
	cfg := &config.SeedConfig{Concurrency: 2, BatchSize: 2, ImageRetries: 3}
	f.seeder = NewSeeder(cfg, f.store, objects, f.images, repo, f.metrics, logger.NewNop())
	return f
}

func enriched(codename, site, logo string) models.EnrichedDataItem {
	return models.EnrichedDataItem{
		RawDataItem: models.RawDataItem{
			FullName:       codename,
			ProductWebsite: site,
			Codename:       codename,
			LogoSrc:        logo,
			Punchline:      "punchline for " + codename,
			Description:    "description for " + codename,
		},
		Categories: "dev",
		Labels:     []string{"package_managers"},
		Tags:       []string{"javascript", "Developer Tools"},
	}
}

func TestSeedDatabase_EndToEnd(t *testing.T) {
	f := newSeedFixture(t)
	ctx := context.Background()
	f.images.data["https://static.npmjs.com/logo.png"] = pngHeader

	_, err := f.repo.Write(ctx, checkpoint.StageEnriched, []models.EnrichedDataItem{
		enriched("npm", "https://npmjs.com", "https://static.npmjs.com/logo.png"),
	})
	require.NoError(t, err)

	require.NoError(t, f.seeder.SeedDatabase(ctx))

	p, err := f.store.GetProduct(ctx, "npm")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/logos/npm.png", p.LogoSrc)
	assert.Equal(t, "dev", p.Categories)
	assert.Equal(t, []string{"package_managers"}, p.Labels)
	assert.Equal(t, []string{"javascript", "developer_tools"}, p.Tags)
	assert.True(t, p.Approved)
	assert.False(t, p.Featured)
	assert.Nil(t, p.UserID)

	assert.Equal(t, []string{"dev"}, f.store.Entities(models.EntityCategory))
	assert.ElementsMatch(t, []string{"javascript", "developer_tools"}, f.store.Entities(models.EntityTag))

	var failed []models.FailedItem[models.EnrichedDataItem]
	_, err = f.repo.Latest(ctx, checkpoint.StageFailedSeed, &failed)
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Items.WithLabelValues("seed", "ok")))
}

func TestSeedItems_IsIdempotent(t *testing.T) {
	f := newSeedFixture(t)
	ctx := context.Background()
	items := []models.EnrichedDataItem{
		enriched("npm", "https://npmjs.com", ""),
		enriched("yarn", "https://yarnpkg.com", ""),
		enriched("pnpm", "https://pnpm.io", ""),
	}

	seeded, failed, err := f.seeder.SeedItems(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, 3, seeded)
	assert.Empty(t, failed)

	_, _, err = f.seeder.SeedItems(ctx, items)
	require.NoError(t, err)
	assert.Len(t, f.store.Products(), 3)
	assert.Len(t, f.store.Entities(models.EntityCategory), 1)
	assert.Len(t, f.store.Entities(models.EntityTag), 2)
}

func TestSeedItems_LastDuplicateWins(t *testing.T) {
	f := newSeedFixture(t)
	ctx := context.Background()
	first := enriched("npm", "https://npmjs.com", "")
	second := enriched("npm", "https://www.npmjs.com", "")
	second.Punchline = "newer"

	seeded, _, err := f.seeder.SeedItems(ctx, []models.EnrichedDataItem{first, second})
	require.NoError(t, err)
	assert.Equal(t, 1, seeded)

	p, err := f.store.GetProduct(ctx, "npm")
	require.NoError(t, err)
	assert.Equal(t, "newer", p.Punchline)
	assert.Equal(t, "https://www.npmjs.com", p.ProductWebsite)
}

func TestSeedItems_PaddedCodenameIsSameProduct(t *testing.T) {
	f := newSeedFixture(t)
	ctx := context.Background()
	second := enriched(" npm ", "https://www.npmjs.com", "")
	second.Punchline = "newer"

	seeded, failed, err := f.seeder.SeedItems(ctx, []models.EnrichedDataItem{
		enriched("npm", "https://npmjs.com", ""),
		second,
	})
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, 1, seeded)
	require.Len(t, f.store.Products(), 1)

	p, err := f.store.GetProduct(ctx, "npm")
	require.NoError(t, err)
	assert.Equal(t, "newer", p.Punchline)
}

func TestDedupeByCodename_TrimsBeforeComparing(t *testing.T) {
	out := dedupeByCodename([]models.EnrichedDataItem{
		{RawDataItem: models.RawDataItem{Codename: "npm", FullName: "first"}},
		{RawDataItem: models.RawDataItem{Codename: "npm ", FullName: "second"}},
		{RawDataItem: models.RawDataItem{Codename: "yarn"}},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "npm", out[0].Codename)
	assert.Equal(t, "second", out[0].FullName)
	assert.Equal(t, "yarn", out[1].Codename)
}

func TestSeedItems_LogoFallbackCounted(t *testing.T) {
	f := newSeedFixture(t)
	ctx := context.Background()

	_, failed, err := f.seeder.SeedItems(ctx, []models.EnrichedDataItem{
		enriched("ghost", "https://ghost.example", "https://ghost.example/logo.png"),
	})
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, 4, f.images.count("https://ghost.example/logo.png"))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ImageFallbacks))

	p, err := f.store.GetProduct(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/logos/ghost.png", p.LogoSrc)
}

func TestSeedItems_MissingCodenameFails(t *testing.T) {
	f := newSeedFixture(t)
	ctx := context.Background()

	seeded, failed, err := f.seeder.SeedItems(ctx, []models.EnrichedDataItem{
		enriched("npm", "https://npmjs.com", ""),
		enriched("  ", "https://nameless.example", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, seeded)
	require.Len(t, failed, 1)
	assert.Equal(t, "https://nameless.example", failed[0].Item.ProductWebsite)
	assert.Contains(t, failed[0].Error, "codename")
}

func TestSeedFailed_RetriesRecordedItems(t *testing.T) {
	f := newSeedFixture(t)
	ctx := context.Background()
	_, err := f.repo.Write(ctx, checkpoint.StageFailedSeed, []models.FailedItem[models.EnrichedDataItem]{
		{Item: enriched("yarn", "https://yarnpkg.com", ""), Error: "connection refused"},
	})
	require.NoError(t, err)

	require.NoError(t, f.seeder.SeedFailed(ctx))

	_, err = f.store.GetProduct(ctx, "yarn")
	require.NoError(t, err)

	var failed []models.FailedItem[models.EnrichedDataItem]
	_, err = f.repo.Latest(ctx, checkpoint.StageFailedSeed, &failed)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestSeedDatabase_NoSnapshot(t *testing.T) {
	f := newSeedFixture(t)
	err := f.seeder.SeedDatabase(context.Background())
	assert.ErrorIs(t, err, checkpoint.ErrNoCheckpoint)
}

func TestCreateBatches(t *testing.T) {
	p := NewBatchProcessor(store.NewMemoryStore(), 2)
	batches := p.CreateBatches([]models.Product{{Codename: "a"}, {Codename: "b"}, {Codename: "c"}})
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1)
}
