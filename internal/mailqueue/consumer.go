package mailqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Sender delivers a dequeued message; the SMTP sender in production.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type consumeChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Decision is what the consumer does with a delivery after handling it.
type Decision int

const (
	Ack Decision = iota
	Requeue
	Drop
)

func (d Decision) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	default:
		return "drop"
	}
}

type Consumer struct {
	ch     consumeChannel
	queue  string
	sender Sender
	logger *slog.Logger
}

func NewConsumer(ch consumeChannel, queue string, sender Sender, logger *slog.Logger) *Consumer {
	return &Consumer{ch: ch, queue: queue, sender: sender, logger: logger}
}

// Handle delivers one message body. A failed first delivery is requeued;
// a failed redelivery and an unparseable body are dropped.
func (c *Consumer) Handle(ctx context.Context, body []byte, redelivered bool) Decision {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		c.logger.ErrorContext(ctx, "dropping malformed mail message", "error", err)
		return Drop
	}
	if msg.To == "" {
		c.logger.ErrorContext(ctx, "dropping mail message without recipient", "message_id", msg.ID)
		return Drop
	}

	if err := c.sender.Send(ctx, msg.To, msg.Subject, msg.Body); err != nil {
		if redelivered {
			c.logger.ErrorContext(ctx, "mail delivery failed twice, dropping", "message_id", msg.ID, "error", err)
			return Drop
		}
		c.logger.WarnContext(ctx, "mail delivery failed, requeueing", "message_id", msg.ID, "error", err)
		return Requeue
	}

	c.logger.InfoContext(ctx, "mail delivered", "message_id", msg.ID)
	return Ack
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := c.ch.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}
	c.logger.Info("consuming mail queue", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("mail queue channel closed")
			}
			c.settle(ctx, d, c.Handle(ctx, d.Body, d.Redelivered))
		}
	}
}

func (c *Consumer) settle(ctx context.Context, d amqp.Delivery, decision Decision) {
	var err error
	switch decision {
	case Ack:
		err = d.Ack(false)
	case Requeue:
		err = d.Nack(false, true)
	default:
		err = d.Nack(false, false)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to settle delivery", "decision", decision.String(), "error", err)
	}
}
