package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amankumarsingh77/directory_pipeline/config"
	"github.com/amankumarsingh77/directory_pipeline/internal/checkpoint"
	"github.com/amankumarsingh77/directory_pipeline/internal/crawler"
	"github.com/amankumarsingh77/directory_pipeline/internal/discovery"
	"github.com/amankumarsingh77/directory_pipeline/internal/enrich"
	"github.com/amankumarsingh77/directory_pipeline/internal/metrics"
	"github.com/amankumarsingh77/directory_pipeline/internal/seed"
	"github.com/amankumarsingh77/directory_pipeline/internal/storage"
	"github.com/amankumarsingh77/directory_pipeline/internal/store"
	"github.com/amankumarsingh77/directory_pipeline/models"
	"github.com/amankumarsingh77/directory_pipeline/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []Stage
	urls  []string
	found []string
	fail  Stage
}

func (r *recorder) record(s Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
	if r.fail == s {
		return errors.New("boom")
	}
	return nil
}

func (r *recorder) DiscoverNewAgents(context.Context) ([]string, error) {
	return r.found, r.record(StageDiscover)
}

func (r *recorder) CrawlAndSave(_ context.Context, urls []string) error {
	r.urls = urls
	return r.record(StageCrawl)
}

func (r *recorder) EnrichLatestData(context.Context) error { return r.record(StageEnrich) }
func (r *recorder) SeedDatabase(context.Context) error     { return r.record(StageSeed) }

func (r *recorder) stages() Stages {
	return Stages{Discoverer: r, Crawler: r, Enricher: r, Seeder: r}
}

func newTestPipeline(t *testing.T, stages Stages) (*Pipeline, *checkpoint.DiskRepository, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := checkpoint.NewDiskRepository(dir)
	require.NoError(t, err)
	return New(stages, repo, dir, metrics.New(), config.MetricsConfig{}, "", logger.NewNop()), repo, dir
}

func TestRun_AllStagesInOrder(t *testing.T) {
	r := &recorder{found: []string{"https://npmjs.com/"}}
	p, _, dir := newTestPipeline(t, r.stages())

	require.NoError(t, p.Run(context.Background(), StageDiscover))
	assert.Equal(t, []Stage{StageDiscover, StageCrawl, StageEnrich, StageSeed}, r.calls)
	assert.Equal(t, []string{"https://npmjs.com/"}, r.urls)
	assert.NoFileExists(t, filepath.Join(dir, lockFile))
	assert.NotEmpty(t, p.RunID())
}

func TestRun_NothingDiscoveredEndsRun(t *testing.T) {
	r := &recorder{}
	p, _, _ := newTestPipeline(t, r.stages())

	require.NoError(t, p.Run(context.Background(), StageDiscover))
	assert.Equal(t, []Stage{StageDiscover}, r.calls)
}

func TestRun_FromCrawlReadsDiscoveredSnapshot(t *testing.T) {
	r := &recorder{}
	p, repo, _ := newTestPipeline(t, Stages{Crawler: r, Enricher: r, Seeder: r})
	_, err := repo.Write(context.Background(), checkpoint.StageDiscovered, []models.DiscoveredAgent{
		{URL: "https://yarnpkg.com/", Source: models.SourceManual},
	})
	require.NoError(t, err)

	require.NoError(t, p.Run(context.Background(), StageCrawl))
	assert.Equal(t, []Stage{StageCrawl, StageEnrich, StageSeed}, r.calls)
	assert.Equal(t, []string{"https://yarnpkg.com/"}, r.urls)
}

func TestRun_FromEnrichSkipsEarlierStages(t *testing.T) {
	r := &recorder{}
	p, _, _ := newTestPipeline(t, Stages{Enricher: r, Seeder: r})

	require.NoError(t, p.Run(context.Background(), StageEnrich))
	assert.Equal(t, []Stage{StageEnrich, StageSeed}, r.calls)
}

func TestRun_StageErrorStopsRun(t *testing.T) {
	r := &recorder{found: []string{"https://npmjs.com/"}, fail: StageEnrich}
	p, _, dir := newTestPipeline(t, r.stages())

	err := p.Run(context.Background(), StageDiscover)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enrich stage failed")
	assert.Equal(t, []Stage{StageDiscover, StageCrawl, StageEnrich}, r.calls)
	assert.NoFileExists(t, filepath.Join(dir, lockFile))
}

func TestRun_MissingRunner(t *testing.T) {
	r := &recorder{}
	p, _, _ := newTestPipeline(t, Stages{Enricher: r})

	err := p.Run(context.Background(), StageEnrich)
	require.Error(t, err)
	assert.Empty(t, r.calls)
}

func TestRun_SecondRunnerIsLockedOut(t *testing.T) {
	r := &recorder{found: []string{"https://npmjs.com/"}}
	p, _, dir := newTestPipeline(t, r.stages())
	require.NoError(t, os.WriteFile(filepath.Join(dir, lockFile), []byte("run=other"), 0o644))

	err := p.Run(context.Background(), StageDiscover)
	assert.ErrorIs(t, err, ErrLocked)
	assert.Empty(t, r.calls)
}

func TestParseStage(t *testing.T) {
	s, err := ParseStage(" Enrich ")
	require.NoError(t, err)
	assert.Equal(t, StageEnrich, s)

	_, err = ParseStage("index")
	assert.ErrorIs(t, err, ErrUnknownStage)
}

// End to end with the real stages and fake edges.

type staticSource []models.DiscoveredAgent

func (s staticSource) Name() string { return "static" }

func (s staticSource) Fetch(context.Context) ([]models.DiscoveredAgent, error) { return s, nil }

type pageFetcher map[string]string

func (f pageFetcher) Fetch(_ context.Context, url string) (*crawler.Page, error) {
	html, ok := f[url]
	if !ok {
		return nil, errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	return &crawler.Page{URL: url, HTML: []byte(html)}, nil
}

func (f pageFetcher) Close() error { return nil }

type npmCompleter struct{}

func (npmCompleter) Complete(context.Context, enrich.CompletionRequest) (string, error) {
	return `{"codename":"npm","punchline":"The package manager for JavaScript","description":"npm installs and publishes Node packages.","categories":"dev","labels":["package_managers"],"tags":["javascript","node","cli"]}`, nil
}

type logoFetcher struct{}

func (logoFetcher) GetBytes(_ context.Context, url string, _ int64) ([]byte, string, error) {
	if url != "https://static.npmjs.com/logo.png" {
		return nil, "", errors.New("not found")
	}
	return []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), "image/png", nil
}

const npmPage = `<html><head>
<title>npm | Build amazing things</title>
<meta name="description" content="Relied upon by more than 17 million developers worldwide.">
<meta property="og:image" content="https://static.npmjs.com/logo.png">
</head><body><h1>Build amazing things</h1></body></html>`

func TestRun_EndToEndNpm(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	l := logger.NewNop()
	m := metrics.New()

	repo, err := checkpoint.NewDiskRepository(filepath.Join(dir, "checkpoints"))
	require.NoError(t, err)
	discoveryLog, err := discovery.NewFileLog(filepath.Join(dir, "discovery-log.json"))
	require.NoError(t, err)
	objects, err := storage.NewLocalStore(filepath.Join(dir, "objects"), "https://cdn.example.com")
	require.NoError(t, err)
	db := store.NewMemoryStore()

	source := staticSource{{URL: "https://npmjs.com", Title: "npm", Source: models.SourceManual, DiscoveredAt: time.Now()}}
	stages := Stages{
		Discoverer: discovery.NewDiscoverer([]discovery.Source{source}, discoveryLog, repo, l),
		Crawler: crawler.NewSpider(&config.CrawlConfig{Workers: 1, MaxRetries: 1, PlaceholderLogo: "/placeholder.png"},
			pageFetcher{"https://npmjs.com/": npmPage}, repo, l),
		Enricher: enrich.NewEnricher(&config.EnrichConfig{FastModel: "fast", SmartModel: "smart", Concurrency: 2, MaxRepairs: 2},
			npmCompleter{}, enrich.DefaultVocabulary(), repo, m, l),
		Seeder: seed.NewSeeder(&config.SeedConfig{Concurrency: 2, BatchSize: 50, ImageRetries: 3},
			db, objects, logoFetcher{}, repo, m, l),
	}
	p := New(stages, repo, dir, m, config.MetricsConfig{}, "", l)

	require.NoError(t, p.Run(ctx, StageDiscover))

	product, err := db.GetProduct(ctx, "npm")
	require.NoError(t, err)
	assert.Equal(t, "dev", product.Categories)
	assert.Equal(t, "https://cdn.example.com/logos/npm.png", product.LogoSrc)
	assert.Equal(t, "https://npmjs.com/", product.ProductWebsite)
	assert.Contains(t, product.Labels, "package_managers")
	assert.True(t, product.Approved)

	// Nothing new the second time round, so the run stops after discovery.
	require.NoError(t, p.Run(ctx, StageDiscover))
	assert.Len(t, db.Products(), 1)
}
