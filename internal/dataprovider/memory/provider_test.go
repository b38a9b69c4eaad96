package memory_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/polite-crawler/internal/crawler"
	"github.com/JakeFAU/polite-crawler/internal/dataprovider/memory"
)

type staticFetcher map[string]string

func (f staticFetcher) Fetch(_ context.Context, rawURL string) (crawler.FetchResponse, error) {
	body, ok := f[rawURL]
	if !ok {
		return crawler.FetchResponse{}, &crawler.StatusError{URL: rawURL, StatusCode: http.StatusNotFound}
	}
	return crawler.FetchResponse{
		URL:        rawURL,
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": {"text/html"}},
		Body:       []byte(body),
	}, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type failingHasher struct{}

func (failingHasher) Hash([]byte) (string, error) { return "", errors.New("hash failed") }

func retrievedPage(t *testing.T, fetcher crawler.Fetcher, rawURL string) *crawler.Page {
	t.Helper()
	page, err := crawler.NewPage(rawURL, crawler.NewStaticRobots("", 0), fetcher, crawler.DefaultUserAgent)
	require.NoError(t, err)
	require.NoError(t, page.Retrieve(context.Background()))
	return page
}

func TestProviderAddAndRetrievePage(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fetcher := staticFetcher{"https://example.com/": `<html><title>Home</title><a href="/a">a</a></html>`}
	p := memory.New(memory.Config{RunID: "run-1", Clock: fixedClock{now: now}})
	require.NoError(t, p.Init(context.Background()))

	missing, err := p.RetrievePage(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, p.AddPage(context.Background(), retrievedPage(t, fetcher, "https://example.com/")))

	for _, lookup := range []string{"https://example.com/", "https://EXAMPLE.com", "https://example.com/#frag"} {
		record, err := p.RetrievePage(context.Background(), lookup)
		require.NoError(t, err)
		require.NotNil(t, record, lookup)
		assert.Equal(t, "https://example.com/", record.URL)
		assert.Equal(t, "run-1", record.RunID)
		assert.Equal(t, "Home", record.Title)
		assert.Equal(t, now, record.RecordedAt)
		assert.Len(t, record.ContentHash, 64)
		assert.Equal(t, []string{"https://example.com/a"}, record.InternalLinks)
	}

	bad, err := p.RetrievePage(context.Background(), "::not a url")
	require.NoError(t, err)
	assert.Nil(t, bad)
}

func TestProviderRejectsUnretrievedPage(t *testing.T) {
	t.Parallel()

	page, err := crawler.NewPage("https://example.com/", nil, staticFetcher{}, crawler.DefaultUserAgent)
	require.NoError(t, err)

	p := memory.New(memory.Config{})
	err = p.AddPage(context.Background(), page)
	require.ErrorIs(t, err, crawler.ErrNotRetrieved)
	assert.Empty(t, p.Pages())

	require.Error(t, p.AddPage(context.Background(), nil))
}

func TestProviderHashFailure(t *testing.T) {
	t.Parallel()

	fetcher := staticFetcher{"https://example.com/": "<html></html>"}
	p := memory.New(memory.Config{Hasher: failingHasher{}})
	err := p.AddPage(context.Background(), retrievedPage(t, fetcher, "https://example.com/"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash page body")
}

func TestProviderAddSitemap(t *testing.T) {
	t.Parallel()

	fetcher := staticFetcher{"https://example.com/sitemap.xml": `<urlset><url><loc>/a</loc></url></urlset>`}
	sitemap, err := crawler.NewSitemap("https://example.com/sitemap.xml", fetcher)
	require.NoError(t, err)
	require.NoError(t, sitemap.Retrieve(context.Background()))

	p := memory.New(memory.Config{RunID: "run-2"})
	require.NoError(t, p.AddSitemap(context.Background(), sitemap))

	sitemaps := p.Sitemaps()
	require.Len(t, sitemaps, 1)
	assert.Equal(t, "run-2", sitemaps[0].RunID)
	assert.Equal(t, []string{"https://example.com/a"}, sitemaps[0].PageURLs)
}

func TestProviderPutPageReplaces(t *testing.T) {
	t.Parallel()

	p := memory.New(memory.Config{})
	p.PutPage(crawler.PageRecord{URL: "https://example.com/b", Title: "old"})
	p.PutPage(crawler.PageRecord{URL: "https://example.com/a"})
	p.PutPage(crawler.PageRecord{URL: "https://example.com/b", Title: "new"})
	p.PutPage(crawler.PageRecord{URL: ""})

	pages := p.Pages()
	require.Len(t, pages, 2)
	assert.Equal(t, "https://example.com/a", pages[0].URL)
	assert.Equal(t, "new", pages[1].Title)
}
