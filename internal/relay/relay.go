// Package relay forwards domain events from the in-process bus to a
// RabbitMQ topic exchange, keyed by event name.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tradesdesk_backend/internal/events"
	"tradesdesk_backend/platform/logger"

	"github.com/google/uuid"
)

// Message is the relayed form of an event. Body is the event as JSON.
type Message struct {
	ID         string
	Name       string
	OccurredAt time.Time
	Body       []byte
}

// Relayed lists the events published to the exchange.
var Relayed = []string{
	events.JobCreated{}.EventName(),
	events.JobConfirmed{}.EventName(),
	events.JobScheduled{}.EventName(),
	events.JobStatusChanged{}.EventName(),
	events.ConversationHandedOff{}.EventName(),
	events.ConversationReleased{}.EventName(),
	events.TenantRegistered{}.EventName(),
	events.TenantUpdated{}.EventName(),
}

type Relay struct {
	pub Publisher
	log *logger.Logger
}

func New(pub Publisher, log *logger.Logger) *Relay {
	return &Relay{pub: pub, log: log}
}

// Attach subscribes the relay to every relayed event on bus.
func (r *Relay) Attach(bus events.Bus) {
	for _, name := range Relayed {
		bus.Subscribe(name, events.HandlerFunc(r.Handle))
	}
}

// Handle publishes one event. Errors surface through the bus, which logs them.
func (r *Relay) Handle(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.EventName(), err)
	}

	id := uuid.NewString()
	if identified, ok := event.(events.Identified); ok && identified.EventID() != uuid.Nil {
		id = identified.EventID().String()
	}

	msg := Message{
		ID:         id,
		Name:       event.EventName(),
		OccurredAt: event.OccurredAt(),
		Body:       body,
	}
	if err := r.pub.Publish(ctx, msg.Name, msg); err != nil {
		r.log.ExternalFailure("rabbitmq", "publish "+msg.Name, err)
		return err
	}
	return nil
}

func (r *Relay) Close() error {
	return r.pub.Close()
}
