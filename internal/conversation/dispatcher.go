package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tradesdesk_backend/platform/logger"
)

const defaultEventTimeout = 2 * time.Minute

// Handler processes one inbound event.
type Handler interface {
	Handle(ctx context.Context, ev InboundEvent) error
}

// Locker serializes work on a key across processes. Acquire blocks until
// the key is held or ctx ends.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Dispatcher runs events asynchronously while keeping per-conversation
// order: events with the same key run one at a time in arrival order,
// different keys run in parallel.
type Dispatcher struct {
	ctx     context.Context
	handler Handler
	locker  Locker
	log     *logger.Logger
	timeout time.Duration

	mu     sync.Mutex
	queues map[string][]InboundEvent
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher whose workers live as long as ctx.
// locker may be nil for a single-replica deployment.
func NewDispatcher(ctx context.Context, handler Handler, locker Locker, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		ctx:     ctx,
		handler: handler,
		locker:  locker,
		log:     log,
		timeout: defaultEventTimeout,
		queues:  make(map[string][]InboundEvent),
	}
}

// Submit enqueues ev and returns immediately.
func (d *Dispatcher) Submit(ev InboundEvent) {
	key := ev.Key()

	d.mu.Lock()
	pending, running := d.queues[key]
	d.queues[key] = append(pending, ev)
	if !running {
		d.wg.Add(1)
		go d.drain(key)
	}
	d.mu.Unlock()
}

// Wait blocks until every submitted event has been processed.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// drain owns key until its queue is empty. The map entry exists exactly as
// long as a drain goroutine runs for the key.
func (d *Dispatcher) drain(key string) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.queues[key]
		if len(queue) == 0 {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		ev := queue[0]
		d.queues[key] = queue[1:]
		d.mu.Unlock()

		d.process(key, ev)
	}
}

func (d *Dispatcher) process(key string, ev InboundEvent) {
	log := d.log.With(slog.String("conversation_key", key), slog.String("event_id", ev.EventID))

	ctx, cancel := context.WithTimeout(context.WithValue(d.ctx, logger.ConversationKey, key), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error("event handler panicked", slog.String("panic", fmt.Sprint(r)))
		}
	}()

	if d.locker != nil {
		release, err := d.locker.Acquire(ctx, key)
		if err != nil {
			log.Error("could not lock conversation", slog.String("error", err.Error()))
			return
		}
		defer release()
	}

	if err := d.handler.Handle(ctx, ev); err != nil {
		log.Error("event processing failed", slog.String("error", err.Error()))
	}
}
