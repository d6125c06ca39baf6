package tenant

import (
	"context"
	"fmt"
	"log/slog"

	"tradesdesk_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const invalidationChannel = "tenant:invalidate"

// Invalidator removes a tenant from the local cache and, when redis is
// configured, from the caches of every other replica.
type Invalidator struct {
	cache *Cache
	rdb   *redis.Client
	log   *logger.Logger
}

// NewInvalidator creates an invalidator. rdb may be nil for single-process
// deployments.
func NewInvalidator(cache *Cache, rdb *redis.Client, log *logger.Logger) *Invalidator {
	return &Invalidator{cache: cache, rdb: rdb, log: log}
}

// Invalidate drops the tenant locally and broadcasts the id.
func (i *Invalidator) Invalidate(ctx context.Context, id uuid.UUID) error {
	i.cache.Invalidate(id)
	if i.rdb == nil {
		return nil
	}
	if err := i.rdb.Publish(ctx, invalidationChannel, id.String()).Err(); err != nil {
		return fmt.Errorf("publish tenant invalidation: %w", err)
	}
	return nil
}

// Start subscribes to broadcasts and applies them until ctx is done. It
// returns once the subscription is confirmed.
func (i *Invalidator) Start(ctx context.Context) error {
	if i.rdb == nil {
		return nil
	}
	sub := i.rdb.Subscribe(ctx, invalidationChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe tenant invalidation: %w", err)
	}

	go func() {
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				id, err := uuid.Parse(msg.Payload)
				if err != nil {
					i.log.Warn("ignoring malformed tenant invalidation", slog.String("payload", msg.Payload))
					continue
				}
				i.cache.Invalidate(id)
			}
		}
	}()
	return nil
}
