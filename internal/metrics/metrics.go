// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values.
const (
	StatusSuccess  = "success"
	StatusFailure  = "failure"
	StatusFiltered = "filtered"
)

var (
	crawlerPagesTotal                     *prometheus.CounterVec
	crawlerBytesTotal                     *prometheus.CounterVec
	crawlerSitemapsTotal                  *prometheus.CounterVec
	crawlerCrawlDelaySeconds              *prometheus.HistogramVec
	crawlerRobotsTLSHandshakeTimeoutTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of pages processed, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of page bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerSitemapsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_sitemaps_total",
				Help: "Total number of sitemaps processed, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		crawlerCrawlDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_crawl_delay_seconds",
				Help:    "Histogram of robots.txt crawl-delay waits.",
				Buckets: []float64{1, 2, 5, 10, 30, 60},
			},
			[]string{"site"},
		)

		crawlerRobotsTLSHandshakeTimeoutTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_robots_tls_handshake_timeout_total",
				Help: "Total TLS handshake timeouts encountered while fetching robots.txt.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObservePage increments the page counters.
func ObservePage(site string, status string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	crawlerPagesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveSitemap increments the sitemap counter.
func ObserveSitemap(site string, status string) {
	Init()
	crawlerSitemapsTotal.WithLabelValues(SanitizeSite(site), status).Inc()
}

// ObserveCrawlDelay records a crawl-delay wait.
func ObserveCrawlDelay(site string, delay time.Duration) {
	Init()
	crawlerCrawlDelaySeconds.WithLabelValues(SanitizeSite(site)).Observe(delay.Seconds())
}

// ObserveRobotsTLSHandshakeTimeout increments the robots handshake timeout counter.
func ObserveRobotsTLSHandshakeTimeout() {
	Init()
	crawlerRobotsTLSHandshakeTimeoutTotal.Inc()
}

// WriteTextfile writes every registered metric to path in the Prometheus
// text format, for pickup by a node_exporter textfile collector.
func WriteTextfile(path string) error {
	Init()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
