package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/polite-crawler/internal/crawler"
	"github.com/JakeFAU/polite-crawler/internal/dataprovider"
	collyfetcher "github.com/JakeFAU/polite-crawler/internal/fetcher/colly"
)

type countingFetcher struct {
	calls atomic.Int32
}

func (f *countingFetcher) Fetch(_ context.Context, rawURL string) (crawler.FetchResponse, error) {
	f.calls.Add(1)
	return crawler.FetchResponse{}, &crawler.StatusError{URL: rawURL, StatusCode: http.StatusNotFound}
}

// stubFactories silences logging and counts fetcher construction.
func stubFactories(t *testing.T, fetcher crawler.Fetcher) *atomic.Int32 {
	t.Helper()
	origLogger, origFetcher := newLogger, newFetcher
	t.Cleanup(func() {
		newLogger, newFetcher = origLogger, origFetcher
	})

	var built atomic.Int32
	newLogger = func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }
	if fetcher != nil {
		newFetcher = func(collyfetcher.Config, *zap.Logger) crawler.Fetcher {
			built.Add(1)
			return fetcher
		}
	}
	return &built
}

func writeConfig(t *testing.T, dataDir, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := fmt.Sprintf("data:\n  dir: %s\n%s", dataDir, extra)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(args ...string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestUnsupportedProviderFailsBeforeNetwork(t *testing.T) {
	fetcher := &countingFetcher{}
	built := stubFactories(t, fetcher)

	cfg := writeConfig(t, t.TempDir(), "")
	err := execute("--config", cfg, "--url", "https://example.com", "--data-provider", "mysql")
	require.ErrorIs(t, err, dataprovider.ErrUnsupported)
	assert.Contains(t, err.Error(), "unsupported data provider")
	assert.Zero(t, built.Load(), "no fetcher is built")
	assert.Zero(t, fetcher.calls.Load())
}

func TestBlankSeedPerformsNoWork(t *testing.T) {
	fetcher := &countingFetcher{}
	stubFactories(t, fetcher)

	cfg := writeConfig(t, t.TempDir(), "")
	require.NoError(t, execute("--config", cfg))
	assert.Zero(t, fetcher.calls.Load())
}

func TestProviderInitFailureIsReturned(t *testing.T) {
	fetcher := &countingFetcher{}
	stubFactories(t, fetcher)

	notADir := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0o600))

	cfg := writeConfig(t, notADir, "")
	err := execute("--config", cfg, "--url", "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init data provider")
	assert.Zero(t, fetcher.calls.Load())
}

func TestInvalidConfigIsReturned(t *testing.T) {
	stubFactories(t, &countingFetcher{})

	cfg := writeConfig(t, t.TempDir(), "crawler:\n  href_policy: everything\n")
	err := execute("--config", cfg, "--url", "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestExtensionFilterRejectsSeed(t *testing.T) {
	fetcher := &countingFetcher{}
	stubFactories(t, fetcher)

	cfg := writeConfig(t, t.TempDir(), "")
	require.NoError(t, execute("--config", cfg, "--url", "https://example.com", "--only-domain-extensions", "org,net"))
	assert.Zero(t, fetcher.calls.Load())
}

func TestCrawlRecordsPagesAndSitemaps(t *testing.T) {
	stubFactories(t, nil)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nDisallow: /private\nSitemap: %s/sitemap.xml\n", srv.URL)
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<urlset><url><loc>%s/a</loc></url></urlset>`, srv.URL)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><title>Home</title><a href="/a">a</a><a href="/private/x">p</a></html>`)
		case "/a":
			fmt.Fprint(w, `<html><title>A</title></html>`)
		default:
			http.NotFound(w, r)
		}
	})

	dataDir := t.TempDir()
	textfile := filepath.Join(t.TempDir(), "crawler.prom")
	cfg := writeConfig(t, dataDir, fmt.Sprintf(
		"crawler:\n  href_policy: unvisited\nhttp:\n  timeout_seconds: 5\nmetrics:\n  textfile: %s\n", textfile))

	require.NoError(t, execute("--config", cfg, "--url", srv.URL+"/"))

	pages, err := os.ReadDir(filepath.Join(dataDir, "pages"))
	require.NoError(t, err)
	assert.Len(t, pages, 2, "home and /a; /private is disallowed")

	sitemaps, err := os.ReadDir(filepath.Join(dataDir, "sitemaps"))
	require.NoError(t, err)
	assert.Len(t, sitemaps, 1)

	_, err = os.Stat(textfile)
	assert.NoError(t, err, "metrics textfile is written")
}
