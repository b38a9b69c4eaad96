// Package crawler implements the polite single-seed crawl engine: URL
// resolution (Request, Href), robots.txt and sitemap handling, page link
// extraction, and the orchestrator that walks pages to a bounded depth and
// sitemap trees to completion while honoring crawl-delay.
package crawler
