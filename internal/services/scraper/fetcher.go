package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"golang.org/x/time/rate"
)

// ChromeFetcher renders review listing pages with a single headless Chrome
// context. One browser, one tab, strictly sequential fetches; a rate
// limiter enforces the configured politeness floor between navigations.
type ChromeFetcher struct {
	config          common.ScraperConfig
	logger          arbor.ILogger
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	limiter         *rate.Limiter
}

// NewChromeFetcher starts a headless browser and verifies it responds.
// A failure here is fatal: without a browser there is nothing to crawl.
func NewChromeFetcher(config common.ScraperConfig, logger arbor.ILogger) (*ChromeFetcher, error) {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(config.UserAgent),
		chromedp.WindowSize(1280, 720),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// Startup test so a missing Chrome binary fails fast
	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	minDelay := config.MinDelay
	limiter := rate.NewLimiter(rate.Inf, 1)
	if minDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(minDelay), 1)
	}

	logger.Info().
		Bool("headless", config.Headless).
		Str("page_timeout", config.PageTimeout.String()).
		Msg("Chrome fetcher initialized")

	return &ChromeFetcher{
		config:          config,
		logger:          logger,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		limiter:         limiter,
	}, nil
}

// PageURL returns the listing URL for a page number. Page 1 is the bare
// company URL; later pages carry a page query parameter.
func (f *ChromeFetcher) PageURL(pageNum int) string {
	base := fmt.Sprintf("%s/%s", f.config.BaseURL, f.config.CompanyDomain)
	if pageNum <= 1 {
		return base
	}
	return fmt.Sprintf("%s?page=%d", base, pageNum)
}

// Fetch navigates to the listing page, waits for at least one review card
// to materialize within the page timeout, and returns the rendered DOM as
// a queryable page. Timeouts and navigation failures are page-level
// errors the caller may skip.
func (f *ChromeFetcher) Fetch(ctx context.Context, pageNum int) (interfaces.RenderedPage, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("politeness wait interrupted: %w", err)
	}

	url := f.PageURL(pageNum)
	f.logger.Info().Int("page", pageNum).Str("url", url).Msg("Fetching page")

	pageCtx, cancel := context.WithTimeout(f.browserCtx, f.config.PageTimeout)
	defer cancel()

	var html string
	err := chromedp.Run(pageCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(cardSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("page %d failed to render: %w", pageNum, err)
	}

	return NewPageFromHTML(html)
}

// Close shuts down the browser
func (f *ChromeFetcher) Close() error {
	if f.browserCancel != nil {
		f.browserCancel()
	}
	if f.allocatorCancel != nil {
		f.allocatorCancel()
	}
	f.logger.Debug().Msg("Chrome fetcher closed")
	return nil
}
