package crawler

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
)

// maxSitemapBytes caps the inflated size of a gzip sitemap (protocol limit is 50MB).
const maxSitemapBytes = 50 << 20

// Sitemap is a fetched sitemap or sitemap index document.
type Sitemap struct {
	request *Request
	fetcher Fetcher

	fetchedAt    time.Time
	retrieved    bool
	sitemapHrefs []Href
	pageHrefs    []Href
}

// NewSitemap builds a Sitemap for rawURL.
func NewSitemap(rawURL string, fetcher Fetcher) (*Sitemap, error) {
	request, err := NewRequest(rawURL)
	if err != nil {
		return nil, err
	}
	return &Sitemap{request: request, fetcher: fetcher}, nil
}

// Request returns the resolved request of the sitemap.
func (s *Sitemap) Request() *Request {
	return s.request
}

// Retrieve fetches and parses the sitemap.
func (s *Sitemap) Retrieve(ctx context.Context) error {
	resp, err := s.fetcher.Fetch(ctx, s.request.URL())
	if err != nil {
		return fmt.Errorf("fetch sitemap: %w", err)
	}
	body, err := inflate(resp.Body)
	if err != nil {
		return fmt.Errorf("inflate sitemap: %w", err)
	}
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse sitemap: %w", err)
	}
	s.sitemapHrefs = hrefsFromStrings(locs(doc, "//sitemap/loc"))
	s.pageHrefs = hrefsFromStrings(locs(doc, "//url/loc"))
	s.fetchedAt = time.Now().UTC()
	s.retrieved = true
	return nil
}

func locs(doc *xmlquery.Node, expr string) []string {
	nodes := xmlquery.Find(doc, expr)
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if loc := strings.TrimSpace(n.InnerText()); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}

func inflate(body []byte) ([]byte, error) {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer zr.Close() //nolint:errcheck // reader over an in-memory buffer
	return io.ReadAll(io.LimitReader(zr, maxSitemapBytes))
}

// SitemapHrefs returns nested sitemap declarations.
func (s *Sitemap) SitemapHrefs() []Href {
	out := make([]Href, len(s.sitemapHrefs))
	copy(out, s.sitemapHrefs)
	return out
}

// PageHrefs returns the page locations listed by the sitemap.
func (s *Sitemap) PageHrefs() []Href {
	out := make([]Href, len(s.pageHrefs))
	copy(out, s.pageHrefs)
	return out
}

// Record converts a retrieved sitemap into its persistent form.
func (s *Sitemap) Record() (SitemapRecord, error) {
	if !s.retrieved {
		return SitemapRecord{}, fmt.Errorf("%s: %w", s.request.URL(), ErrNotRetrieved)
	}
	return SitemapRecord{
		URL:         s.request.URL(),
		Domain:      s.request.Domain(),
		SitemapURLs: resolveAll(s.request, s.sitemapHrefs),
		PageURLs:    resolveAll(s.request, s.pageHrefs),
		FetchedAt:   s.fetchedAt,
	}, nil
}

func resolveAll(base *Request, hrefs []Href) []string {
	out := make([]string, 0, len(hrefs))
	for _, h := range hrefs {
		if u, err := h.URL(base); err == nil {
			out = append(out, u)
		}
	}
	return out
}
