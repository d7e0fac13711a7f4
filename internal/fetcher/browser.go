package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// BrowserFetcher implements Fetcher using a headless Chromium via Rod.
// Requests are serialized; one stealth page is opened per fetch.
type BrowserFetcher struct {
	browser *rod.Browser
	cfg     *config.ScraperConfig
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewBrowserFetcher launches a browser and connects to it.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:    &cfg.Scraper,
		logger: logger.With("component", "browser_fetcher"),
	}

	launchURL, err := bf.launchBrowser(&cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	bf.browser = browser

	bf.logger.Info("browser fetcher ready", "headless", cfg.Scraper.Headless)
	return bf, nil
}

// launchBrowser starts a Chromium instance with appropriate flags.
func (bf *BrowserFetcher) launchBrowser(proxy *config.ProxyConfig) (string, error) {
	l := launcher.New().
		Headless(bf.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	// Chromium takes a single proxy at launch.
	if proxy.Enabled && len(proxy.URLs) > 0 {
		l = l.Proxy(proxy.URLs[0])
	}

	return l.Launch()
}

// Fetch navigates to url and returns the rendered page content.
func (bf *BrowserFetcher) Fetch(ctx context.Context, url string, header http.Header) (*types.Response, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	start := time.Now()

	page, err := stealth.Page(bf.browser)
	if err != nil {
		return nil, &types.FetchError{URL: url, Err: fmt.Errorf("stealth page: %w", err), Retryable: true}
	}
	defer func() { _ = page.Close() }()
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()
	page = page.Context(pctx)

	if ua := header.Get("User-Agent"); ua != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      ua,
			AcceptLanguage: header.Get("Accept-Language"),
		})
		if err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	extra := make([]string, 0, len(header)*2)
	for k, vals := range header {
		// Chromium manages these itself.
		if k == "User-Agent" || k == "Accept-Encoding" || k == "Connection" {
			continue
		}
		for _, v := range vals {
			extra = append(extra, k, v)
		}
	}
	if len(extra) > 0 {
		if _, err := page.SetExtraHeaders(extra); err != nil {
			bf.logger.Warn("failed to set headers", "error", err)
		}
	}

	// Capture the document status from the network events.
	var docStatus atomic.Int64
	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument {
			docStatus.Store(int64(e.Response.Status))
			return true
		}
		return false
	})
	go wait()

	timeout := bf.cfg.RequestTimeout
	if err := page.Timeout(timeout).Navigate(url); err != nil {
		return nil, &types.FetchError{URL: url, Err: err, Retryable: true}
	}
	if err := page.Timeout(timeout).WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", url, "error", err)
	}
	statusCode := int(docStatus.Load())
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, &types.FetchError{
			URL:        url,
			StatusCode: statusCode,
			Err:        fmt.Errorf("HTTP %d", statusCode),
			Retryable:  retryableStatus(bf.cfg, statusCode),
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: url, Err: err, Retryable: true}
	}

	finalURL := url
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	duration := time.Since(start)
	bf.logger.Debug("browser fetch complete",
		"url", url,
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)

	return types.NewBrowserResponse(url, statusCode, []byte(html), finalURL, duration), nil
}

// Close shuts down the browser.
func (bf *BrowserFetcher) Close() error {
	if bf.browser != nil {
		return bf.browser.Close()
	}
	return nil
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}
