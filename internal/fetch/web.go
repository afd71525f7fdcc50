// Package fetch - web.go reads a web page as text with a primary and a fallback strategy.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"go.uber.org/zap"
)

// ErrEmptyPage is returned when a strategy produced no text.
var ErrEmptyPage = errors.New("page produced no text")

// FetchError is returned when both the primary and the fallback strategies failed.
type FetchError struct {
	URL      string
	Primary  error
	Fallback error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s: primary: %v; fallback: %v", e.URL, e.Primary, e.Fallback)
}

// Unwrap exposes both strategy errors to errors.Is and errors.As.
func (e *FetchError) Unwrap() []error {
	return []error{e.Primary, e.Fallback}
}

// Transformer converts rendered HTML into markdown-like text.
type Transformer func(html, pageURL string) (string, error)

// MarkdownTransform converts HTML to markdown, dropping page chrome and scripts.
func MarkdownTransform(html, pageURL string) (string, error) {
	domain := ""
	if parsed, err := url.Parse(pageURL); err == nil {
		domain = parsed.Host
	}

	converter := md.NewConverter(domain, true, nil)
	converter.Remove("script", "style", "noscript", "nav", "footer", "header", "form", "iframe")

	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("markdown transform failed: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

// WebFetcher reads web pages as plain text.
type WebFetcher struct {
	primary   Renderer
	transform Transformer
	options   *Options
	logger    *zap.Logger
}

// WebOption customises a WebFetcher.
type WebOption func(*WebFetcher)

// WithRenderer replaces the primary strategy's renderer.
func WithRenderer(r Renderer) WebOption {
	return func(f *WebFetcher) { f.primary = r }
}

// WithTransformer replaces the primary strategy's HTML transform.
func WithTransformer(t Transformer) WebOption {
	return func(f *WebFetcher) { f.transform = t }
}

// WithLogger sets the logger used to report strategy failures.
func WithLogger(l *zap.Logger) WebOption {
	return func(f *WebFetcher) { f.logger = l }
}

// NewWebFetcher builds a fetcher whose primary strategy renders over HTTP
// and transforms to markdown. opts configures both strategies' HTTP requests.
func NewWebFetcher(opts *Options, options ...WebOption) *WebFetcher {
	if opts == nil {
		opts = DefaultOptions()
	}
	f := &WebFetcher{
		primary:   HTTPRenderer{Options: opts},
		transform: MarkdownTransform,
		options:   opts,
		logger:    zap.NewNop(),
	}
	for _, o := range options {
		o(f)
	}
	return f
}

// FetchText returns the page text. The fallback strategy runs only after the primary failed;
// a *FetchError carrying both causes is returned when neither produced text.
func (f *WebFetcher) FetchText(ctx context.Context, pageURL string) (string, error) {
	text, primaryErr := f.primaryText(ctx, pageURL)
	if primaryErr == nil {
		return text, nil
	}
	f.logger.Warn("primary web strategy failed, falling back to raw GET",
		zap.String("url", pageURL), zap.Error(primaryErr))

	text, fallbackErr := f.fallbackText(ctx, pageURL)
	if fallbackErr == nil {
		return text, nil
	}

	return "", &FetchError{URL: pageURL, Primary: primaryErr, Fallback: fallbackErr}
}

func (f *WebFetcher) primaryText(ctx context.Context, pageURL string) (string, error) {
	html, err := f.primary.Render(ctx, pageURL)
	if err != nil {
		return "", err
	}
	text, err := f.transform(html, pageURL)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyPage
	}
	return text, nil
}

func (f *WebFetcher) fallbackText(ctx context.Context, pageURL string) (string, error) {
	page, err := Get(ctx, pageURL, f.options)
	if err != nil {
		return "", err
	}

	text, err := ExtractText(page.HTML, ProfileFor(DetectSite(pageURL)))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyPage
	}
	return text, nil
}
