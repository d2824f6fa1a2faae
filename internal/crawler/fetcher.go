package crawler

import (
	"context"
	"errors"
	"fmt"

	"github.com/amankumarsingh77/directory_pipeline/config"
)

// ErrBrowserUnavailable means no Chrome binary could be found. It is a setup
// problem, not a page failure, so the crawl stops instead of retrying.
var ErrBrowserUnavailable = errors.New("headless browser not available")

// Page is a fetched document. URL is the address after redirects.
type Page struct {
	URL  string
	HTML []byte
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
	Close() error
}

// NewFetcher builds the fetcher named in the config: "browser" or "http".
func NewFetcher(ctx context.Context, cfg *config.CrawlConfig, httpCfg *config.HTTPConfig) (Fetcher, error) {
	switch cfg.Fetcher {
	case "", "browser":
		return NewBrowserFetcher(ctx, cfg)
	case "http":
		return NewCollyFetcher(cfg, httpCfg)
	default:
		return nil, fmt.Errorf("unknown fetcher %q", cfg.Fetcher)
	}
}
