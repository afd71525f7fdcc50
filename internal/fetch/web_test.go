package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRenderer struct {
	err   error
	calls atomic.Int32
}

func (r *failingRenderer) Render(_ context.Context, _ string) (string, error) {
	r.calls.Add(1)
	return "", r.err
}

const jobPage = `<html><body>
<nav>Site navigation</nav>
<main>
<h1>Associate Data Scientist</h1>
<p>Build models with Python and SQL.</p>
</main>
<footer>Copyright</footer>
</body></html>`

func TestWebFetcher_PrimaryMarkdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(jobPage))
	}))
	defer server.Close()

	text, err := NewWebFetcher(nil).FetchText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, text, "# Associate Data Scientist")
	assert.Contains(t, text, "Build models with Python and SQL.")
	assert.NotContains(t, text, "Site navigation")
}

func TestWebFetcher_FallbackAfterPrimaryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(jobPage))
	}))
	defer server.Close()

	renderer := &failingRenderer{err: errors.New("render crashed")}
	text, err := NewWebFetcher(nil, WithRenderer(renderer)).FetchText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(1), renderer.calls.Load())
	assert.Contains(t, text, "Associate Data Scientist")
	assert.NotContains(t, text, "Copyright")
}

func TestWebFetcher_FallbackAfterTransformFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(jobPage))
	}))
	defer server.Close()

	transform := func(string, string) (string, error) { return "", errors.New("bad markup") }
	text, err := NewWebFetcher(nil, WithTransformer(transform)).FetchText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, text, "Build models with Python and SQL.")
}

func TestWebFetcher_PrimaryHTTPErrorThenFallback(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(jobPage))
	}))
	defer server.Close()

	text, err := NewWebFetcher(nil).FetchText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	assert.Contains(t, text, "Associate Data Scientist")
}

func TestWebFetcher_BothStrategiesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	primaryErr := errors.New("render crashed")
	_, err := NewWebFetcher(nil, WithRenderer(&failingRenderer{err: primaryErr})).FetchText(context.Background(), server.URL)
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, server.URL, fetchErr.URL)
	assert.ErrorIs(t, err, primaryErr)

	var httpErr *Error
	assert.ErrorAs(t, fetchErr.Fallback, &httpErr)
	assert.Contains(t, err.Error(), "500")
}

func TestWebFetcher_EmptyPageCountsAsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><script>render()</script></body></html>"))
	}))
	defer server.Close()

	_, err := NewWebFetcher(nil).FetchText(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyPage)
}

func TestMarkdownTransform(t *testing.T) {
	text, err := MarkdownTransform(`<h2>Skills</h2><ul><li>Go</li><li>Rust</li></ul>`, "https://example.com/about")
	require.NoError(t, err)
	assert.Contains(t, text, "## Skills")
	assert.Contains(t, text, "Go")
	assert.Contains(t, text, "Rust")
}

func TestThin(t *testing.T) {
	assert.True(t, thin("<html><body><p>   short   </p></body></html>"))
	assert.True(t, thin("<html><body><nav>"+strings.Repeat("menu ", 200)+"</nav></body></html>"))
	assert.False(t, thin("<html><body><main>"+strings.Repeat("a", MinRenderedText+1)+"</main></body></html>"))
}

func TestBrowserRenderer_SkipsBrowserForFullPages(t *testing.T) {
	body := "<html><body><article>" + strings.Repeat("Shipped a streaming ingestion service. ", 20) + "</article></body></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	html, err := BrowserRenderer{}.Render(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, body, html)
}
