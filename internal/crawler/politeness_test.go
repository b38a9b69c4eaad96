package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetVisitTracker(t *testing.T) {
	tracker := newSetVisitTracker()
	require.True(t, tracker.MarkIfNew("https://example.org/first"))
	require.False(t, tracker.MarkIfNew("https://example.org/first"))
	require.True(t, tracker.MarkIfNew("https://example.org/second"))
	require.False(t, tracker.MarkIfNew(""), "empty url is never new")
}

func TestTimerPauseControllerHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pauser := &timerPauseController{}
	start := time.Now()
	pauser.Pause(ctx, 5*time.Second)
	require.Less(t, time.Since(start), time.Second, "pause should exit immediately when context is done")
}

func TestTimerPauseControllerWaits(t *testing.T) {
	pauser := &timerPauseController{}
	start := time.Now()
	pauser.Pause(context.Background(), 20*time.Millisecond)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	start = time.Now()
	pauser.Pause(context.Background(), 0)
	require.Less(t, time.Since(start), 10*time.Millisecond)
}
