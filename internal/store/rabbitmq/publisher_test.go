package rabbitmq

import (
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobPublishing(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	msg, err := jobPublishing("01JOB", now)
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "01JOB", msg.MessageId)
	assert.Equal(t, now, msg.Timestamp)

	var body JobMessage
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.Equal(t, "01JOB", body.JobID)
}

func TestQueueArgs_DeadLetterToDLQ(t *testing.T) {
	args := queueArgs("rag.ingest")
	assert.Equal(t, "", args["x-dead-letter-exchange"])
	assert.Equal(t, "rag.ingest.dlq", args["x-dead-letter-routing-key"])
	assert.Equal(t, "rag.ingest.dlq", DeadLetterQueue("rag.ingest"))
}
