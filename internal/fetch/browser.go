// Package fetch - browser.go renders pages for the primary web strategy.
package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// MinRenderedText is the least extracted text a plain GET must yield before
// BrowserRenderer trusts it instead of starting a browser.
const MinRenderedText = 500

// settleDelay lets client-side rendering finish after the body is ready.
const settleDelay = 3 * time.Second

// Renderer produces the HTML of a page.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// HTTPRenderer renders with a plain GET.
type HTTPRenderer struct {
	Options *Options
}

// Render implements Renderer.
func (r HTTPRenderer) Render(ctx context.Context, url string) (string, error) {
	page, err := Get(ctx, url, r.Options)
	if err != nil {
		return "", err
	}
	return page.HTML, nil
}

// BrowserRenderer renders script-built pages in headless Chrome.
// It tries a plain GET first and only launches the browser for thin pages.
type BrowserRenderer struct {
	Options *Options
	Timeout time.Duration
	Logger  *zap.Logger
}

// Render implements Renderer.
func (r BrowserRenderer) Render(ctx context.Context, url string) (string, error) {
	if html, err := (HTTPRenderer{Options: r.Options}).Render(ctx, url); err == nil && !thin(html) {
		return html, nil
	}

	if r.Logger != nil {
		r.Logger.Debug("rendering page in headless browser", zap.String("url", url))
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return renderInBrowser(ctx, url, timeout)
}

// thin reports whether html carries too little text to be a finished page.
func thin(html string) bool {
	text, err := ExtractText(html, ProfileFor(SiteGeneric))
	return err != nil || len(strings.TrimSpace(text)) < MinRenderedText
}

func renderInBrowser(ctx context.Context, url string, timeout time.Duration) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(settleDelay),
		chromedp.OuterHTML("html", &html),
	); err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}
	return html, nil
}
