// Package mailqueue moves outgoing email through a durable RabbitMQ queue
// so the web process never blocks on SMTP.
package mailqueue

import (
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Message is the JSON body of one queued email.
type Message struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Connection is an AMQP connection with one channel and the mail queue
// declared on it.
type Connection struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  *slog.Logger
}

// Dial connects to RabbitMQ and declares queue as durable. Declaring is
// idempotent so both the api and the worker do it.
func Dial(url, queue string, logger *slog.Logger) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %q: %w", queue, err)
	}

	logger.Info("mail queue ready", "queue", q.Name, "messages", q.Messages)
	return &Connection{conn: conn, channel: ch, queue: q.Name, logger: logger}, nil
}

func (c *Connection) Close() error {
	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Connection) Publisher() *Publisher {
	return NewPublisher(c.channel, c.queue, c.logger)
}

func (c *Connection) Consumer(sender Sender) *Consumer {
	return NewConsumer(c.channel, c.queue, sender, c.logger)
}
