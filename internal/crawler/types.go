package crawler

import (
	"net/http"
	"time"
)

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentType returns the response Content-Type header, if any.
func (r FetchResponse) ContentType() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Content-Type")
}

// PageRecord is persisted for each fetched page.
type PageRecord struct {
	RunID         string    `json:"run_id,omitempty"`
	URL           string    `json:"url"`
	FinalURL      string    `json:"final_url,omitempty"`
	Domain        string    `json:"domain"`
	Extension     string    `json:"extension"`
	StatusCode    int       `json:"status_code"`
	Title         string    `json:"title,omitempty"`
	ContentHash   string    `json:"content_hash,omitempty"`
	InternalLinks []string  `json:"internal_links"`
	ExternalLinks []string  `json:"external_links"`
	FetchedAt     time.Time `json:"fetched_at"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// SitemapRecord is persisted for each fetched sitemap.
type SitemapRecord struct {
	RunID       string    `json:"run_id,omitempty"`
	URL         string    `json:"url"`
	Domain      string    `json:"domain"`
	SitemapURLs []string  `json:"sitemap_urls"`
	PageURLs    []string  `json:"page_urls"`
	FetchedAt   time.Time `json:"fetched_at"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// HrefPolicy selects how internal page links are admitted for expansion.
type HrefPolicy string

// Supported href policies.
const (
	// HrefPolicyKnown admits a link only when the data provider already
	// holds a record for it.
	HrefPolicyKnown HrefPolicy = "known"
	// HrefPolicyUnvisited admits a link only when the data provider has no
	// record for it.
	HrefPolicyUnvisited HrefPolicy = "unvisited"
)

type hrefKind int

const (
	hrefKindPage hrefKind = iota
	hrefKindSitemap
)
