package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/HarveyThePooka404/jokes/internal/events"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// EventPublisher sends events as persistent JSON messages to a durable queue
// through the default exchange.
type EventPublisher struct {
	queue string
	open  func() (channel, error)

	mu       sync.Mutex
	declared bool
}

// NewEventPublisher publishes to queue over conn.
func NewEventPublisher(conn *amqp.Connection, queue string) *EventPublisher {
	return &EventPublisher{
		queue: queue,
		open: func() (channel, error) {
			ch, err := conn.Channel()
			if err != nil {
				return nil, err
			}
			return ch, nil
		},
	}
}

// Publish opens a short-lived channel per event. Channels are not safe for
// concurrent use and publishing is infrequent.
func (p *EventPublisher) Publish(ctx context.Context, e events.Event) error {
	ch, err := p.open()
	if err != nil {
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	defer ch.Close()

	if err := p.declare(ch); err != nil {
		return err
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Type:         string(e.Type),
		Timestamp:    e.At,
		Body:         payload,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *EventPublisher) declare(ch channel) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.declared {
		return nil
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare queue %s: %w", p.queue, err)
	}
	p.declared = true
	return nil
}
