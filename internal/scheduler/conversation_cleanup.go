package scheduler

import (
	"context"
	"time"

	"tradesdesk_backend/platform/logger"
)

const (
	defaultConversationCleanupInterval = time.Hour
	defaultConversationIdleTimeout     = 7 * 24 * time.Hour
)

type IdleConversationCloser interface {
	CloseIdleConversations(ctx context.Context, before time.Time) (int64, error)
}

// ConversationCleanup periodically closes conversations customers abandoned
// mid-flow, so their next message starts from the menu.
type ConversationCleanup struct {
	repo     IdleConversationCloser
	log      *logger.Logger
	interval time.Duration
	idle     time.Duration
	now      func() time.Time
}

func NewConversationCleanup(repo IdleConversationCloser, log *logger.Logger, interval, idle time.Duration) *ConversationCleanup {
	if interval <= 0 {
		interval = defaultConversationCleanupInterval
	}
	if idle <= 0 {
		idle = defaultConversationIdleTimeout
	}

	return &ConversationCleanup{
		repo:     repo,
		log:      log,
		interval: interval,
		idle:     idle,
		now:      time.Now,
	}
}

func (c *ConversationCleanup) Run(ctx context.Context) {
	if c == nil || c.repo == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *ConversationCleanup) cleanup(ctx context.Context) {
	closed, err := c.repo.CloseIdleConversations(ctx, c.now().Add(-c.idle))
	if err != nil {
		c.log.Warn("conversation cleanup failed", "error", err)
		return
	}

	if closed > 0 {
		c.log.Info("conversation cleanup closed idle conversations", "closed", closed)
	}
}
