package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tradesdesk_backend/platform/logger"
)

type testCloser struct {
	mu      sync.Mutex
	befores []time.Time
	err     error
}

func (c *testCloser) CloseIdleConversations(_ context.Context, before time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.befores = append(c.befores, before)
	return 2, c.err
}

func TestConversationCleanupUsesIdleCutoff(t *testing.T) {
	closer := &testCloser{}
	cleanup := NewConversationCleanup(closer, logger.Discard(), 0, 48*time.Hour)
	now := time.Date(2025, time.April, 14, 9, 0, 0, 0, time.UTC)
	cleanup.now = func() time.Time { return now }

	cleanup.cleanup(context.Background())

	if len(closer.befores) != 1 || !closer.befores[0].Equal(now.Add(-48*time.Hour)) {
		t.Fatalf("unexpected cutoff %v", closer.befores)
	}
	if cleanup.interval != defaultConversationCleanupInterval {
		t.Fatalf("expected default interval, got %v", cleanup.interval)
	}
}

func TestConversationCleanupRunStopsWithContext(t *testing.T) {
	closer := &testCloser{err: errors.New("db down")}
	cleanup := NewConversationCleanup(closer, logger.Discard(), time.Hour, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cleanup.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup did not stop")
	}
	closer.mu.Lock()
	defer closer.mu.Unlock()
	if len(closer.befores) == 0 {
		t.Fatal("expected an initial cleanup pass")
	}
}
