package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/amankumarsingh77/directory_pipeline/config"
	"github.com/gocolly/colly"
	"github.com/gocolly/colly/extensions"
)

// CollyFetcher is the plain HTTP fallback for sites that render server side
// or for hosts where no browser is installed.
type CollyFetcher struct {
	base *colly.Collector
}

func NewCollyFetcher(cfg *config.CrawlConfig, httpCfg *config.HTTPConfig) (*CollyFetcher, error) {
	c := colly.NewCollector(
		colly.IgnoreRobotsTxt(),
		colly.MaxDepth(1),
		colly.AllowURLRevisit(),
	)
	timeout := cfg.PageTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c.SetRequestTimeout(timeout)
	if httpCfg != nil && httpCfg.ProxyEnabled {
		if err := c.SetProxy(httpCfg.ProxyUrl); err != nil {
			return nil, fmt.Errorf("failed to load the proxy %s: %w", httpCfg.ProxyUrl, err)
		}
	}
	return &CollyFetcher{base: c}, nil
}

func (f *CollyFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Callbacks are per fetch, so every call works on its own clone.
	c := f.base.Clone()
	extensions.RandomUserAgent(c)
	extensions.Referer(c)

	var page *Page
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
	})
	c.OnResponse(func(r *colly.Response) {
		if r.StatusCode == http.StatusOK {
			page = &Page{URL: r.Request.URL.String(), HTML: r.Body}
		}
	})

	if err := c.Visit(url); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	c.Wait()
	if page == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.New("no page returned for " + url)
	}
	return page, nil
}

func (f *CollyFetcher) Close() error {
	return nil
}
