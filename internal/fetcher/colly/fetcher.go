// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/polite-crawler/internal/crawler"
)

// Config controls collector behavior.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxBodySize int
	MaxAttempts int
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	retry         *ExponentialRetryPolicy
	sleep         func(ctx context.Context, delay time.Duration) error
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. robots.txt handling is left to the caller, so the
// collector ignores it and allows revisits.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if cfg.MaxBodySize > 0 {
		c.MaxBodySize = cfg.MaxBodySize
	}
	c.SetRequestTimeout(cfg.Timeout)

	// Robots.txt requests get a TLS handshake retry on top of the pooled transport.
	c.WithTransport(newRobotsTransport(newHTTPTransport(), logger))

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		retry:         NewExponentialRetryPolicy(cfg.MaxAttempts),
		sleep:         sleepWithContext,
		logger:        logger,
	}
}

// Fetch executes a single HTTP GET using Colly, retrying transient failures.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := f.fetchOnce(ctx, rawURL)
		if err == nil || !f.retry.ShouldRetry(err, attempt+1) {
			return resp, err
		}
		delay := f.retry.Backoff(attempt)
		f.logger.Debug("Retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if serr := f.sleep(ctx, delay); serr != nil {
			return resp, err
		}
	}
}

// visitOutcome is written by the collector callbacks on the visiting
// goroutine and only handed over once Visit has returned.
type visitOutcome struct {
	resp crawler.FetchResponse
	err  error
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (crawler.FetchResponse, error) {
	start := time.Now()
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	out := &visitOutcome{}
	f.configureCollectorHooks(collector, rawURL, start, out)
	return f.runCollector(ctx, collector, rawURL, out)
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, rawURL string, start time.Time, out *visitOutcome) {
	hooks.OnResponse(func(r *colly.Response) {
		out.resp = toFetchResponse(r, rawURL, start)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			out.resp = toFetchResponse(r, rawURL, start)
			out.err = &crawler.StatusError{URL: rawURL, StatusCode: r.StatusCode, Err: err}
			return
		}
		out.err = err
	})
}

func toFetchResponse(r *colly.Response, rawURL string, start time.Time) crawler.FetchResponse {
	finalURL := rawURL
	if r.Request != nil && r.Request.URL != nil {
		finalURL = r.Request.URL.String()
	}
	var headers http.Header
	if r.Headers != nil {
		headers = r.Headers.Clone()
	}
	return crawler.FetchResponse{
		URL:        finalURL,
		StatusCode: r.StatusCode,
		Headers:    headers,
		Body:       append([]byte(nil), r.Body...),
		Duration:   time.Since(start),
	}
}

func (f *Fetcher) runCollector(
	ctx context.Context,
	collector *colly.Collector,
	url string,
	out *visitOutcome,
) (crawler.FetchResponse, error) {
	done := make(chan visitOutcome, 1)
	go func() {
		visitErr := collector.Visit(url)
		result := *out
		switch {
		case result.err != nil:
			result.err = fmt.Errorf("colly response failed: %w", result.err)
		case visitErr != nil:
			result.err = fmt.Errorf("colly visit failed: %w", visitErr)
		}
		done <- result
	}()

	select {
	case <-ctx.Done():
		return crawler.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case result := <-done:
		return result.resp, result.err
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff sleep: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
