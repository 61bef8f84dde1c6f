package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/config"
	"github.com/therealutkarshpriyadarshi/ttsgate/pkg/models"
)

// UsageRoutingKey is the routing key of usage events
const UsageRoutingKey = "usage.logged"

// UsageMessage is the body published for each stored usage log
type UsageMessage struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	Endpoint     string    `json:"endpoint"`
	Method       string    `json:"method"`
	LanguageCode string    `json:"language_code"`
	AudioKey     string    `json:"audio_key,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher fans usage events out to downstream consumers
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// New connects to RabbitMQ and declares the usage exchange
func New(cfg config.QueueConfig) (*Publisher, error) {
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

	err = channel.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: cfg.Exchange,
	}, nil
}

// Close closes the queue connection
func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishUsage publishes a stored usage log
func (p *Publisher) PublishUsage(ctx context.Context, msg *UsageMessage) error {
	publishing, err := newPublishing(msg)
	if err != nil {
		return err
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		UsageRoutingKey,
		false, // mandatory
		false, // immediate
		publishing,
	)
	if err != nil {
		return fmt.Errorf("failed to publish usage event: %w", err)
	}

	return nil
}

func newPublishing(msg *UsageMessage) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal usage event: %w", err)
	}

	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    fmt.Sprintf("usage-%d", msg.ID),
		Body:         body,
		Timestamp:    msg.Timestamp,
	}, nil
}

// NewUsageMessage builds the message for a stored usage log
func NewUsageMessage(entry *models.UsageLog, languageCode, audioKey string) *UsageMessage {
	return &UsageMessage{
		ID:           entry.ID,
		UserID:       entry.UserID,
		Endpoint:     entry.Endpoint,
		Method:       entry.Method,
		LanguageCode: languageCode,
		AudioKey:     audioKey,
		Timestamp:    entry.CreatedAt,
	}
}
