package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors reported by the orchestrator. Each one abandons a single
// branch of the traversal; none of them stop the crawl.
var (
	ErrNoDataProvider    = errors.New("data provider is not valid")
	ErrExtensionFiltered = errors.New("extension is different than the required extensions")
	ErrRobotsDisallowed  = errors.New("disallowed by robots.txt")
	ErrSitemapRevisited  = errors.New("sitemap already processed")
	ErrSitemapTooDeep    = errors.New("sitemap nesting exceeds maximum depth")
	ErrNotRetrieved      = errors.New("resource has not been retrieved")
)

// StatusError reports a response the fetcher refused to treat as success.
type StatusError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	text := http.StatusText(e.StatusCode)
	if text == "" {
		text = "unexpected status"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %d %s: %v", e.URL, e.StatusCode, text, e.Err)
	}
	return fmt.Sprintf("%s: %d %s", e.URL, e.StatusCode, text)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}
