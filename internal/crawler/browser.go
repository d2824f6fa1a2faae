package crawler

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"time"

	"github.com/amankumarsingh77/directory_pipeline/config"
	"github.com/amankumarsingh77/directory_pipeline/internal/common/httpclient"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

var chromeBinaries = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
}

// Hides the automation flag most bot checks look at first.
const stealthScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
window.chrome = window.chrome || {runtime: {}};
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});`

type viewport struct{ w, h int64 }

var viewports = []viewport{
	{1920, 1080}, {1536, 864}, {1440, 900}, {1366, 768}, {1280, 800},
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.8",
	"en-US,en;q=0.8,de;q=0.5",
}

// BrowserFetcher drives one headless Chrome and opens a fresh tab per fetch.
type BrowserFetcher struct {
	browserCtx  context.Context
	cancel      func()
	pageTimeout time.Duration
}

func findChrome(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrBrowserUnavailable, path, err)
		}
		return path, nil
	}
	for _, name := range chromeBinaries {
		if found, err := exec.LookPath(name); err == nil {
			return found, nil
		}
	}
	return "", ErrBrowserUnavailable
}

func NewBrowserFetcher(ctx context.Context, cfg *config.CrawlConfig) (*BrowserFetcher, error) {
	execPath, err := findChrome(cfg.ChromePath)
	if err != nil {
		return nil, err
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	// An empty Run starts the browser so a broken install fails here, once.
	if err = chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}
	timeout := cfg.PageTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserFetcher{
		browserCtx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
		pageTimeout: timeout,
	}, nil
}

func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.pageTimeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	vp := viewports[rand.Intn(len(viewports))]
	var finalURL, html string
	err := chromedp.Run(tabCtx,
		emulation.SetUserAgentOverride(httpclient.RandomUserAgent()).
			WithAcceptLanguage(acceptLanguages[rand.Intn(len(acceptLanguages))]),
		chromedp.EmulateViewport(vp.w, vp.h),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to render %s: %w", url, err)
	}
	if finalURL == "" {
		finalURL = url
	}
	return &Page{URL: finalURL, HTML: []byte(html)}, nil
}

func (b *BrowserFetcher) Close() error {
	b.cancel()
	return nil
}
