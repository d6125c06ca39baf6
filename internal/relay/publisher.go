package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tradesdesk_backend/platform/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dialAttempts = 5
	dialDelay    = time.Second
	maxDialDelay = time.Minute
)

// Publisher sends one message to the relay exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg Message) error
	Close() error
}

// AMQPPublisher publishes to a durable topic exchange with publisher
// confirms.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string
	log      *logger.Logger
}

// Dial connects with exponential backoff and declares the exchange.
func Dial(ctx context.Context, url, exchange string, log *logger.Logger) (*AMQPPublisher, error) {
	conn, err := dialWithRetry(ctx, url, log)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{conn: conn, exchange: exchange, log: log}, nil
}

func dialWithRetry(ctx context.Context, url string, log *logger.Logger) (*amqp.Connection, error) {
	var lastErr error
	delay := dialDelay

	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			if attempt > 1 {
				log.Info("rabbit connected", slog.Int("attempt", attempt))
			}
			return conn, nil
		}
		lastErr = err

		log.Warn("rabbit dial failed",
			slog.Int("attempt", attempt),
			slog.Duration("sleep", delay),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(errors.New("rabbit dial cancelled"), ctx.Err())
		case <-timer.C:
		}
		delay = min(delay*2, maxDialDelay)
	}

	return nil, fmt.Errorf("connect to rabbit after %d attempts: %w", dialAttempts, lastErr)
}

// Publish waits for the broker to confirm the message.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, msg Message) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable confirms: %w", err)
	}

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(
		ctx, p.exchange, routingKey, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         msg.Name,
			Timestamp:    msg.OccurredAt,
			Body:         msg.Body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", routingKey, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked %s", routingKey)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}
