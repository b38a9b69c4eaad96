package crawler

import (
	"context"
	"time"
)

// visitTracker remembers URLs already handled within one crawl tree.
type visitTracker interface {
	MarkIfNew(url string) bool
}

type setVisitTracker struct {
	seen map[string]struct{}
}

func newSetVisitTracker() *setVisitTracker {
	return &setVisitTracker{seen: make(map[string]struct{})}
}

// MarkIfNew stores the URL if it has not been seen before and returns true.
func (t *setVisitTracker) MarkIfNew(url string) bool {
	if url == "" {
		return false
	}
	if _, ok := t.seen[url]; ok {
		return false
	}
	t.seen[url] = struct{}{}
	return true
}

// Pauser abstracts how the crawler waits out a crawl-delay.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (p *timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
