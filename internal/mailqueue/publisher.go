package mailqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher queues email instead of sending it. It satisfies
// services.EmailSender.
type Publisher struct {
	ch     publishChannel
	queue  string
	logger *slog.Logger
	now    func() time.Time
}

func NewPublisher(ch publishChannel, queue string, logger *slog.Logger) *Publisher {
	return &Publisher{ch: ch, queue: queue, logger: logger, now: time.Now}
}

func (p *Publisher) Send(ctx context.Context, to, subject, body string) error {
	msg := Message{
		ID:        uuid.NewString(),
		To:        to,
		Subject:   subject,
		Body:      body,
		CreatedAt: p.now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal mail message: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.ch.PublishWithContext(publishCtx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Timestamp:    msg.CreatedAt,
			Body:         payload,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish mail message: %w", err)
	}

	p.logger.DebugContext(ctx, "mail queued", "message_id", msg.ID, "queue", p.queue)
	return nil
}
