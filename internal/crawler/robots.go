package crawler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"

	"github.com/temoto/robotstxt"
)

// RobotsPath is where a site publishes its robots.txt.
const RobotsPath = "/robots.txt"

// Robots is the parsed robots.txt of one site. It is fetched once per crawl
// tree and shared by every page and sitemap below the seed.
type Robots struct {
	sourceURL    string
	userAgent    string
	data         *robotstxt.RobotsData
	disallowAll  bool
	crawlDelay   int
	sitemapHrefs []Href
}

// FetchRobots downloads and parses robots.txt for the site of request.
// A 4xx answer yields an allow-all policy and a 5xx answer a disallow-all
// policy; transport failures are returned as errors.
func FetchRobots(ctx context.Context, fetcher Fetcher, request *Request, userAgent string) (*Robots, error) {
	robotsURL := url.URL{
		Scheme: request.parsed().Scheme,
		Host:   request.parsed().Host,
		Path:   RobotsPath,
	}
	source := robotsURL.String()

	resp, err := fetcher.Fetch(ctx, source)
	status := resp.StatusCode
	if err != nil {
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			return nil, fmt.Errorf("fetch robots: %w", err)
		}
		status = statusErr.StatusCode
	}
	robots, err := ParseRobots(source, status, resp.Body, userAgent)
	if err != nil {
		return nil, err
	}
	return robots, nil
}

// ParseRobots builds a Robots from a raw robots.txt response.
func ParseRobots(sourceURL string, statusCode int, body []byte, userAgent string) (*Robots, error) {
	data, err := robotstxt.FromStatusAndBytes(statusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	r := &Robots{
		sourceURL:    sourceURL,
		userAgent:    userAgent,
		data:         data,
		disallowAll:  statusCode >= 500 && statusCode < 600,
		sitemapHrefs: hrefsFromStrings(data.Sitemaps),
	}
	if group := data.FindGroup(userAgent); group != nil && group.CrawlDelay > 0 {
		r.crawlDelay = int(math.Ceil(group.CrawlDelay.Seconds()))
	}
	return r, nil
}

// NewStaticRobots returns a Robots that allows everything, with the given
// crawl-delay and sitemap hrefs.
func NewStaticRobots(sourceURL string, crawlDelay int, sitemaps ...string) *Robots {
	if crawlDelay < 0 {
		crawlDelay = 0
	}
	return &Robots{
		sourceURL:    sourceURL,
		crawlDelay:   crawlDelay,
		sitemapHrefs: hrefsFromStrings(sitemaps),
	}
}

// SourceURL returns the robots.txt URL this policy came from.
func (r *Robots) SourceURL() string {
	return r.sourceURL
}

// CrawlDelay returns the crawl-delay in whole seconds; 0 means no throttling.
func (r *Robots) CrawlDelay() int {
	if r == nil {
		return 0
	}
	return r.crawlDelay
}

// SitemapHrefs returns the Sitemap: declarations in file order.
func (r *Robots) SitemapHrefs() []Href {
	if r == nil {
		return nil
	}
	out := make([]Href, len(r.sitemapHrefs))
	copy(out, r.sitemapHrefs)
	return out
}

// Allowed reports whether the configured user agent may fetch urlPath.
func (r *Robots) Allowed(urlPath string) bool {
	if r == nil || r.data == nil {
		return true
	}
	group := r.data.FindGroup(r.userAgent)
	if group == nil {
		return !r.disallowAll
	}
	return group.Test(urlPath)
}
