// Package memory implements an in-memory crawler.DataProvider. It also serves
// as the lookup index behind the file-backed providers.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/polite-crawler/internal/clock/system"
	"github.com/JakeFAU/polite-crawler/internal/crawler"
	"github.com/JakeFAU/polite-crawler/internal/hash/sha256"
)

// Config captures the collaborators used to stamp records.
type Config struct {
	RunID  string
	Hasher crawler.Hasher
	Clock  crawler.Clock
}

// Provider keeps page and sitemap records keyed by normalized URL.
type Provider struct {
	runID  string
	hasher crawler.Hasher
	clock  crawler.Clock

	mu       sync.RWMutex
	pages    map[string]crawler.PageRecord
	sitemaps map[string]crawler.SitemapRecord
}

// New constructs a Provider. Nil collaborators fall back to SHA-256 and the
// system clock.
func New(cfg Config) *Provider {
	p := &Provider{
		runID:    cfg.RunID,
		hasher:   cfg.Hasher,
		clock:    cfg.Clock,
		pages:    make(map[string]crawler.PageRecord),
		sitemaps: make(map[string]crawler.SitemapRecord),
	}
	if p.hasher == nil {
		p.hasher = sha256.New()
	}
	if p.clock == nil {
		p.clock = system.New()
	}
	return p
}

// Init is a no-op; the in-memory store is always ready.
func (p *Provider) Init(_ context.Context) error {
	return nil
}

// RetrievePage returns a copy of the stored record, or nil when rawURL is
// unknown or cannot be resolved.
func (p *Provider) RetrievePage(_ context.Context, rawURL string) (*crawler.PageRecord, error) {
	key, ok := Key(rawURL)
	if !ok {
		return nil, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	record, found := p.pages[key]
	if !found {
		return nil, nil
	}
	return &record, nil
}

// AddPage stamps and stores the page record.
func (p *Provider) AddPage(_ context.Context, page *crawler.Page) error {
	record, err := p.BuildPageRecord(page)
	if err != nil {
		return err
	}
	p.PutPage(record)
	return nil
}

// AddSitemap stamps and stores the sitemap record.
func (p *Provider) AddSitemap(_ context.Context, sitemap *crawler.Sitemap) error {
	record, err := p.BuildSitemapRecord(sitemap)
	if err != nil {
		return err
	}
	p.PutSitemap(record)
	return nil
}

// BuildPageRecord converts a retrieved page into a record carrying the run
// ID, content hash and recording time.
func (p *Provider) BuildPageRecord(page *crawler.Page) (crawler.PageRecord, error) {
	if page == nil {
		return crawler.PageRecord{}, fmt.Errorf("page is nil")
	}
	record, err := page.Record()
	if err != nil {
		return crawler.PageRecord{}, err
	}
	digest, err := p.hasher.Hash(page.Body())
	if err != nil {
		return crawler.PageRecord{}, fmt.Errorf("hash page body: %w", err)
	}
	record.RunID = p.runID
	record.ContentHash = digest
	record.RecordedAt = p.clock.Now()
	return record, nil
}

// BuildSitemapRecord converts a retrieved sitemap into a stamped record.
func (p *Provider) BuildSitemapRecord(sitemap *crawler.Sitemap) (crawler.SitemapRecord, error) {
	if sitemap == nil {
		return crawler.SitemapRecord{}, fmt.Errorf("sitemap is nil")
	}
	record, err := sitemap.Record()
	if err != nil {
		return crawler.SitemapRecord{}, err
	}
	record.RunID = p.runID
	record.RecordedAt = p.clock.Now()
	return record, nil
}

// PutPage stores record, replacing any earlier record for the same URL.
func (p *Provider) PutPage(record crawler.PageRecord) {
	key, ok := Key(record.URL)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages[key] = record
}

// PutSitemap stores record, replacing any earlier record for the same URL.
func (p *Provider) PutSitemap(record crawler.SitemapRecord) {
	key, ok := Key(record.URL)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sitemaps[key] = record
}

// Pages returns all page records ordered by URL.
func (p *Provider) Pages() []crawler.PageRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]crawler.PageRecord, 0, len(p.pages))
	for _, record := range p.pages {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// Sitemaps returns all sitemap records ordered by URL.
func (p *Provider) Sitemaps() []crawler.SitemapRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]crawler.SitemapRecord, 0, len(p.sitemaps))
	for _, record := range p.sitemaps {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// Key returns the normalized form under which rawURL is stored.
func Key(rawURL string) (string, bool) {
	request, err := crawler.NewRequest(rawURL)
	if err != nil {
		return "", false
	}
	return request.URL(), true
}
