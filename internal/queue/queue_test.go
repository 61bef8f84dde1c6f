package queue

import (
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/config"
	"github.com/therealutkarshpriyadarshi/ttsgate/pkg/models"
)

func TestNewPublishing(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	entry := &models.UsageLog{ID: 42, UserID: "u-1", Endpoint: "/tts/synthesize", Method: "POST", CreatedAt: ts}

	publishing, err := newPublishing(NewUsageMessage(entry, "en", "audio/u-1/x.wav"))
	require.NoError(t, err)

	assert.Equal(t, uint8(amqp.Persistent), publishing.DeliveryMode)
	assert.Equal(t, "application/json", publishing.ContentType)
	assert.Equal(t, "usage-42", publishing.MessageId)
	assert.Equal(t, ts, publishing.Timestamp)

	var body UsageMessage
	require.NoError(t, json.Unmarshal(publishing.Body, &body))
	assert.Equal(t, "u-1", body.UserID)
	assert.Equal(t, "en", body.LanguageCode)
	assert.Equal(t, "audio/u-1/x.wav", body.AudioKey)
}

func TestNewUnreachableBroker(t *testing.T) {
	_, err := New(config.QueueConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "guest",
		Password: "guest",
		Vhost:    "/",
		Exchange: "tts_usage",
	})
	assert.Error(t, err)
}

func TestDecodeUsage(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		msg, err := decodeUsage([]byte(`{"id":7,"user_id":"u-1","endpoint":"/tts/synthesize","method":"POST","language_code":"de"}`))
		require.NoError(t, err)
		assert.Equal(t, int64(7), msg.ID)
		assert.Equal(t, "de", msg.LanguageCode)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := decodeUsage([]byte("{"))
		assert.Error(t, err)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := decodeUsage([]byte(`{"id":8,"endpoint":"/usage/increment"}`))
		assert.Error(t, err)
	})
}

func TestNewConsumerUnreachableBroker(t *testing.T) {
	_, err := NewConsumer(config.QueueConfig{
		Host:       "127.0.0.1",
		Port:       1,
		User:       "guest",
		Password:   "guest",
		Vhost:      "/",
		Exchange:   "tts_usage",
		AuditQueue: "tts_usage_audit",
	})
	assert.Error(t, err)
}
