package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/polite-crawler/internal/crawler"
	"github.com/JakeFAU/polite-crawler/internal/metrics"
)

var defaultRobotsBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// robotsTransport gives robots.txt requests extra attempts when the TLS
// handshake times out. When those run out it answers 404 for the file, which
// crawler.ParseRobots reads as "no rules", so the site stays crawlable.
// Every other request goes straight to base.
type robotsTransport struct {
	base    http.RoundTripper
	backoff []time.Duration
	sleep   func(ctx context.Context, delay time.Duration) error
	logger  *zap.Logger
}

func newRobotsTransport(base http.RoundTripper, logger *zap.Logger) *robotsTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &robotsTransport{
		base:    base,
		backoff: defaultRobotsBackoff,
		sleep:   sleepWithContext,
		logger:  logger,
	}
}

func (t *robotsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, errors.New("robots transport: request without url")
	}
	if !strings.EqualFold(req.URL.Path, crawler.RobotsPath) {
		return t.base.RoundTrip(req)
	}

	var lastErr error
	for attempt := 0; attempt <= len(t.backoff); attempt++ {
		if attempt > 0 {
			if err := t.sleep(req.Context(), t.backoff[attempt-1]); err != nil {
				return nil, fmt.Errorf("robots.txt backoff: %w", err)
			}
		}
		resp, err := t.base.RoundTrip(req.Clone(req.Context()))
		if err == nil {
			return resp, nil
		}
		if !handshakeTimedOut(err) {
			return nil, fmt.Errorf("fetch robots.txt: %w", err)
		}
		lastErr = err
	}

	metrics.ObserveRobotsTLSHandshakeTimeout()
	t.logger.Warn("robots.txt unreachable, crawling without rules",
		zap.String("host", req.URL.Host),
		zap.Int("attempts", len(t.backoff)+1),
		zap.Error(lastErr),
	)
	return robotsNotFound(req), nil
}

func robotsNotFound(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    http.StatusNotFound,
		Status:        "404 Not Found",
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Body:          io.NopCloser(strings.NewReader("")),
		ContentLength: 0,
		Header:        http.Header{"Content-Type": {"text/plain"}},
		Request:       req,
	}
}

func handshakeTimedOut(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
