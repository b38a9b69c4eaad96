package crawler

import (
	"context"
	"time"
)

// DataProvider persists pages and sitemaps and answers whether a URL is
// already known. It is the visited-URL ledger of a crawl.
type DataProvider interface {
	Init(ctx context.Context) error
	// RetrievePage returns the stored record for rawURL, or nil when the
	// URL is unknown.
	RetrievePage(ctx context.Context, rawURL string) (*PageRecord, error)
	AddPage(ctx context.Context, page *Page) error
	AddSitemap(ctx context.Context, sitemap *Sitemap) error
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResponse, error)
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
