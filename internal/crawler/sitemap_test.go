package crawler

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSitemapIndex = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/sitemap-posts.xml</loc></sitemap>
  <sitemap><loc> /sitemap-pages.xml.gz </loc></sitemap>
</sitemapindex>`

const sampleURLSet = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/</loc><priority>1.0</priority></url>
  <url><loc>https://example.com/about</loc></url>
  <url><loc></loc></url>
</urlset>`

func TestSitemapRetrieveIndex(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.add("https://example.com/sitemap.xml", http.StatusOK, "application/xml", sampleSitemapIndex)

	sitemap, err := NewSitemap("https://example.com/sitemap.xml", fetcher)
	require.NoError(t, err)
	require.NoError(t, sitemap.Retrieve(context.Background()))

	assert.Equal(t, []string{"https://example.com/sitemap-posts.xml", "/sitemap-pages.xml.gz"}, hrefStrings(sitemap.SitemapHrefs()))
	assert.Empty(t, sitemap.PageHrefs())

	record, err := sitemap.Record()
	require.NoError(t, err)
	assert.Equal(t, "example.com", record.Domain)
	assert.Equal(t, []string{
		"https://example.com/sitemap-posts.xml",
		"https://example.com/sitemap-pages.xml.gz",
	}, record.SitemapURLs)
	assert.Empty(t, record.PageURLs)
}

func TestSitemapRetrieveURLSet(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.add("https://example.com/sitemap-pages.xml", http.StatusOK, "application/xml", sampleURLSet)

	sitemap, err := NewSitemap("https://example.com/sitemap-pages.xml", fetcher)
	require.NoError(t, err)
	require.NoError(t, sitemap.Retrieve(context.Background()))

	assert.Empty(t, sitemap.SitemapHrefs())
	assert.Equal(t, []string{"https://example.com/", "https://example.com/about"}, hrefStrings(sitemap.PageHrefs()))
}

func TestSitemapRetrieveGzip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(sampleURLSet))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	fetcher := newFakeFetcher()
	fetcher.add("https://example.com/sitemap.xml.gz", http.StatusOK, "application/gzip", buf.String())

	sitemap, err := NewSitemap("https://example.com/sitemap.xml.gz", fetcher)
	require.NoError(t, err)
	require.NoError(t, sitemap.Retrieve(context.Background()))
	assert.Len(t, sitemap.PageHrefs(), 2)
}

func TestSitemapRetrieveErrors(t *testing.T) {
	t.Parallel()

	missing, err := NewSitemap("https://example.com/none.xml", newFakeFetcher())
	require.NoError(t, err)
	err = missing.Retrieve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch sitemap")

	fetcher := newFakeFetcher()
	fetcher.add("https://example.com/bad.xml.gz", http.StatusOK, "application/gzip", "\x1f\x8bnot really gzip")
	corrupt, err := NewSitemap("https://example.com/bad.xml.gz", fetcher)
	require.NoError(t, err)
	assert.Error(t, corrupt.Retrieve(context.Background()))

	_, err = corrupt.Record()
	assert.True(t, errors.Is(err, ErrNotRetrieved))
}
