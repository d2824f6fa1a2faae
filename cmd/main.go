package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amankumarsingh77/directory_pipeline/internal/crawler"
	"github.com/amankumarsingh77/directory_pipeline/internal/pipeline"
	"github.com/amankumarsingh77/directory_pipeline/pkg"
	"github.com/amankumarsingh77/directory_pipeline/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	configFile string
	dryRun     bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if hint := remediation(err); hint != "" {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "directory-pipeline",
		Short:         "Discover, crawl, enrich and seed AI tools into the directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "pipeline.yaml", "Path to configuration file")
	root.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Seed into memory and a local directory instead of the database and bucket")

	root.AddCommand(runCmd(), discoverCmd(), crawlCmd(), enrichCmd(), seedCmd())
	return root
}

// withApp builds the shared clients around fn and closes them afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, configFile, dryRun)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func runCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline from a stage to the end",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := pipeline.ParseStage(from)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.validate(pipeline.StagesFrom(start)...); err != nil {
					return err
				}
				stages, err := a.stages(ctx, start)
				if err != nil {
					return err
				}
				p := pipeline.New(stages, a.repo, a.cfg.Checkpoint.Dir, a.metrics, a.cfg.Metrics, a.runID, a.logger)
				return p.Run(ctx, start)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", string(pipeline.StageDiscover), "Stage to start from: discover, crawl, enrich or seed")
	return cmd
}

func discoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Find new agent URLs and write a discovered snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				d, err := a.discoverer(ctx)
				if err != nil {
					return err
				}
				urls, err := d.DiscoverNewAgents(ctx)
				if err != nil {
					return err
				}
				a.logger.Info("discovery finished", logger.Int("new", len(urls)))
				return nil
			})
		},
	}
}

func crawlCmd() *cobra.Command {
	var urlsFile string
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the latest discovered URLs, or the URLs in a CSV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var (
					urls []string
					err  error
				)
				if urlsFile != "" {
					urls, err = pkg.LoadSeedURLs(urlsFile)
				} else {
					urls, err = crawler.LatestDiscoveredURLs(ctx, a.repo)
				}
				if err != nil {
					return err
				}
				s, err := a.spider(ctx)
				if err != nil {
					return err
				}
				defer a.pushMetrics()
				return s.CrawlAndSave(ctx, urls)
			})
		},
	}
	cmd.Flags().StringVar(&urlsFile, "urls", "", "CSV file with a url or Domain column")
	return cmd
}

func enrichCmd() *cobra.Command {
	var retryFailed bool
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Classify the latest raw snapshot with the model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.validate(pipeline.StageEnrich); err != nil {
					return err
				}
				e := a.enricher()
				defer a.pushMetrics()
				if retryFailed {
					return e.EnrichFailed(ctx)
				}
				return e.EnrichLatestData(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Re-run the items of the latest failed-enriched snapshot")
	return cmd
}

func seedCmd() *cobra.Command {
	var retryFailed bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upload logos and upsert the latest enriched snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.validate(pipeline.StageSeed); err != nil {
					return err
				}
				s, err := a.seeder(ctx)
				if err != nil {
					return err
				}
				defer a.pushMetrics()
				if retryFailed {
					return s.SeedFailed(ctx)
				}
				return s.SeedDatabase(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Re-run the items of the failed-seed snapshot")
	return cmd
}
