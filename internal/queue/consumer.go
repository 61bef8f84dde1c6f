package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/config"
)

// Consumer reads usage events from a durable queue bound to the usage exchange
type Consumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
}

// NewConsumer connects to RabbitMQ and binds cfg.AuditQueue to usage events
func NewConsumer(cfg config.QueueConfig) (*Consumer, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(step string, err error) (*Consumer, error) {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to %s: %w", step, err)
	}

	if err := channel.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}

	_, err = channel.QueueDeclare(
		cfg.AuditQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fail("declare queue", err)
	}

	if err := channel.QueueBind(cfg.AuditQueue, UsageRoutingKey, cfg.Exchange, false, nil); err != nil {
		return fail("bind queue", err)
	}

	return &Consumer{
		conn:      conn,
		channel:   channel,
		queueName: cfg.AuditQueue,
	}, nil
}

// Close closes the consumer connection
func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Ping fails once the broker connection has been closed
func (c *Consumer) Ping(ctx context.Context) error {
	if c.conn == nil || c.conn.IsClosed() {
		return fmt.Errorf("queue connection closed")
	}
	return nil
}

// ConsumeUsage delivers usage events to handler until ctx is cancelled.
// Malformed bodies are dropped; handler errors requeue the message.
func (c *Consumer) ConsumeUsage(ctx context.Context, handler func(*UsageMessage) error) error {
	err := c.channel.Qos(
		10,    // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				usage, err := decodeUsage(msg.Body)
				if err != nil {
					msg.Nack(false, false)
					continue
				}

				if err := handler(usage); err != nil {
					msg.Nack(false, true)
				} else {
					msg.Ack(false)
				}
			}
		}
	}()

	return nil
}

func decodeUsage(body []byte) (*UsageMessage, error) {
	var msg UsageMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode usage event: %w", err)
	}
	if msg.UserID == "" || msg.Endpoint == "" {
		return nil, fmt.Errorf("usage event %d is missing user or endpoint", msg.ID)
	}
	return &msg, nil
}
