package crawler

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/polite-crawler/internal/metrics"
)

// Crawler drives a single-seed crawl: the seed page, its internal links to a
// bounded depth, and the sitemap tree declared by the seed's robots.txt.
// Every fetch and crawl-delay wait happens on the calling goroutine.
type Crawler struct {
	cfg      Config
	provider DataProvider
	fetcher  Fetcher
	pauser   Pauser
	logger   *zap.Logger
}

// Option customizes a Crawler.
type Option func(*Crawler)

// WithPauser replaces the crawl-delay wait; tests use it to observe waits.
func WithPauser(p Pauser) Option {
	return func(c *Crawler) {
		if p != nil {
			c.pauser = p
		}
	}
}

// New builds a Crawler. A nil logger discards output.
func New(cfg Config, provider DataProvider, fetcher Fetcher, logger *zap.Logger, opts ...Option) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Crawler{
		cfg:      cfg.withDefaults(),
		provider: provider,
		fetcher:  fetcher,
		pauser:   &timerPauseController{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// session carries the state shared by every recursive call below one entry
// point: the governing robots policy, the provider handle and the set of
// sitemaps already processed.
type session struct {
	robots   *Robots
	provider DataProvider
	sitemaps visitTracker
}

func (c *Crawler) newSession(robots *Robots) *session {
	return &session{
		robots:   robots,
		provider: c.provider,
		sitemaps: newSetVisitTracker(),
	}
}

// Init prepares the data provider. On failure the provider is discarded and
// every later page or sitemap fails with ErrNoDataProvider.
func (c *Crawler) Init(ctx context.Context) error {
	if c.provider == nil {
		return ErrNoDataProvider
	}
	if err := c.provider.Init(ctx); err != nil {
		c.provider = nil
		return fmt.Errorf("init data provider: %w", err)
	}
	return nil
}

// Start crawls from seed: one deep page traversal, then every sitemap the
// seed's robots.txt declares. A blank seed does nothing.
func (c *Crawler) Start(ctx context.Context, seed string) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return
	}

	sess := c.newSession(nil)
	page, err := c.progressPage(ctx, sess, seed, c.cfg.MaxPageDepth)
	if err != nil {
		c.logger.Error("Failed to process seed page", zap.String("url", seed), zap.Error(err))
		return
	}

	robots := page.Robots()
	sess.robots = robots
	for _, sitemapURL := range c.checkHrefs(ctx, sess, hrefKindSitemap, page.Request(), robots.SitemapHrefs()) {
		if err := c.progressSitemap(ctx, sess, sitemapURL, 0); err != nil {
			c.logger.Warn("Failed to process sitemap", zap.String("url", sitemapURL), zap.Error(err))
		}
	}
}

// ProgressPage fetches, registers and optionally expands one page. With deep
// set, internal links are followed breadth-first up to the configured page
// depth. A nil robots makes the page fetch its own robots.txt.
func (c *Crawler) ProgressPage(ctx context.Context, rawURL string, deep bool, robots *Robots) (*Page, error) {
	depth := 0
	if deep {
		depth = c.cfg.MaxPageDepth
	}
	return c.progressPage(ctx, c.newSession(robots), rawURL, depth)
}

// ProgressSitemap fetches and registers a sitemap, then recurses into every
// nested sitemap it declares, sharing robots for the whole tree.
func (c *Crawler) ProgressSitemap(ctx context.Context, rawURL string, robots *Robots) error {
	return c.progressSitemap(ctx, c.newSession(robots), rawURL, 0)
}

func (c *Crawler) progressPage(ctx context.Context, sess *session, rawURL string, depth int) (*Page, error) {
	page, err := c.fetchPage(ctx, sess, rawURL)
	if err != nil {
		return nil, err
	}
	if depth > 0 {
		c.expand(ctx, sess, page, depth)
	}
	return page, nil
}

// expand walks internal links breadth-first. Pages of hop n are fetched
// without their own expansion; their links feed hop n+1 until maxHops.
func (c *Crawler) expand(ctx context.Context, sess *session, root *Page, maxHops int) {
	frontier := []*Page{root}
	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		var next []*Page
		for _, parent := range frontier {
			urls := c.checkHrefs(ctx, sess, hrefKindPage, parent.Request(), parent.InternalHrefs())
			for _, u := range urls {
				if ctx.Err() != nil {
					return
				}
				child, err := c.fetchPage(ctx, sess, u)
				if err != nil {
					c.logger.Warn("Failed to process page",
						zap.String("url", u),
						zap.Int("hop", hop),
						zap.Error(err),
					)
					continue
				}
				if hop < maxHops {
					next = append(next, child)
				}
			}
		}
		frontier = next
	}
}

// fetchPage runs the per-page pipeline: provider check, extension filter,
// robots, crawl-delay, retrieval and registration.
func (c *Crawler) fetchPage(ctx context.Context, sess *session, rawURL string) (*Page, error) {
	c.logger.Info("Processing page", zap.String("url", rawURL))

	if sess.provider == nil {
		return nil, ErrNoDataProvider
	}

	page, err := NewPage(rawURL, sess.robots, c.fetcher, c.cfg.UserAgent)
	if err != nil {
		return nil, err
	}
	request := page.Request()

	if len(c.cfg.DomainExtensions) > 0 && !slices.Contains(c.cfg.DomainExtensions, request.Extension()) {
		metrics.ObservePage(request.URL(), metrics.StatusFiltered, 0)
		return nil, fmt.Errorf("%s (%q): %w", request.URL(), request.Extension(), ErrExtensionFiltered)
	}

	if err := page.Init(ctx); err != nil {
		metrics.ObservePage(request.URL(), metrics.StatusFailure, 0)
		return nil, fmt.Errorf("failed to init page: %w", err)
	}
	robots := page.Robots()
	if sess.robots == nil {
		sess.robots = robots
	}

	if c.cfg.RespectRobots && !robots.Allowed(request.RequestURI()) {
		metrics.ObservePage(request.URL(), metrics.StatusFiltered, 0)
		return nil, fmt.Errorf("%s: %w", request.URL(), ErrRobotsDisallowed)
	}

	c.politeWait(ctx, robots, request)

	if err := page.Retrieve(ctx); err != nil {
		metrics.ObservePage(request.URL(), metrics.StatusFailure, 0)
		return nil, fmt.Errorf("failed to retrieve page: %w", err)
	}
	metrics.ObservePage(request.URL(), metrics.StatusSuccess, len(page.Body()))

	if err := sess.provider.AddPage(ctx, page); err != nil {
		c.logger.Error("Failed to record page", zap.String("url", request.URL()), zap.Error(err))
	}
	return page, nil
}

func (c *Crawler) progressSitemap(ctx context.Context, sess *session, rawURL string, depth int) error {
	c.logger.Info("Processing sitemap", zap.String("url", rawURL), zap.Int("depth", depth))

	if sess.provider == nil {
		return ErrNoDataProvider
	}
	if depth > c.cfg.MaxSitemapDepth {
		return fmt.Errorf("%s at depth %d: %w", rawURL, depth, ErrSitemapTooDeep)
	}

	sitemap, err := NewSitemap(rawURL, c.fetcher)
	if err != nil {
		return err
	}
	request := sitemap.Request()
	if !sess.sitemaps.MarkIfNew(request.URL()) {
		return fmt.Errorf("%s: %w", request.URL(), ErrSitemapRevisited)
	}

	c.politeWait(ctx, sess.robots, request)

	if err := sitemap.Retrieve(ctx); err != nil {
		metrics.ObserveSitemap(request.URL(), metrics.StatusFailure)
		return fmt.Errorf("failed to retrieve sitemap: %w", err)
	}
	metrics.ObserveSitemap(request.URL(), metrics.StatusSuccess)

	if err := sess.provider.AddSitemap(ctx, sitemap); err != nil {
		c.logger.Error("Failed to record sitemap", zap.String("url", request.URL()), zap.Error(err))
	}

	for _, nested := range c.checkHrefs(ctx, sess, hrefKindSitemap, request, sitemap.SitemapHrefs()) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.progressSitemap(ctx, sess, nested, depth+1); err != nil {
			c.logger.Warn("Failed to process sitemap", zap.String("url", nested), zap.Error(err))
		}
	}
	return nil
}

// politeWait blocks for the crawl-delay of robots before a fetch.
func (c *Crawler) politeWait(ctx context.Context, robots *Robots, request *Request) {
	seconds := robots.CrawlDelay()
	if seconds <= 0 {
		return
	}
	delay := time.Duration(seconds) * time.Second
	c.logger.Info("Crawl-delay found. Sleeping",
		zap.String("url", request.URL()),
		zap.Int("seconds", seconds),
	)
	c.pauser.Pause(ctx, delay)
	metrics.ObserveCrawlDelay(request.URL(), delay)
}

// checkHrefs resolves hrefs against base and filters them. Sitemap hrefs are
// all kept; page hrefs are kept according to the configured HrefPolicy.
func (c *Crawler) checkHrefs(ctx context.Context, sess *session, kind hrefKind, base *Request, hrefs []Href) []string {
	urls := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		u, err := href.URL(base)
		if err != nil {
			c.logger.Debug("Skipping unresolvable href", zap.String("href", href.Raw()), zap.Error(err))
			continue
		}
		switch kind {
		case hrefKindSitemap:
			urls = append(urls, u)
		case hrefKindPage:
			if c.eligible(ctx, sess, u) {
				urls = append(urls, u)
			}
		}
	}
	return urls
}

func (c *Crawler) eligible(ctx context.Context, sess *session, u string) bool {
	if sess.provider == nil {
		return false
	}
	record, err := sess.provider.RetrievePage(ctx, u)
	if err != nil {
		c.logger.Warn("Failed to look up page", zap.String("url", u), zap.Error(err))
		return false
	}
	known := record != nil
	if c.cfg.HrefPolicy == HrefPolicyUnvisited {
		return !known
	}
	return known
}
