package messaging

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"callinsight-server/pkg/analysis"
	"callinsight-server/pkg/errors"
)

func newTestClient(config AMQPConfig) *AMQPClient {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewAMQPClient(logger, config)
}

func TestPublishResultNilResult(t *testing.T) {
	client := newTestClient(AMQPConfig{URL: "amqp://localhost", QueueName: "q"})

	assert.NoError(t, client.PublishResult("call-1", nil), "Nothing to publish is not an error")
}

func TestPublishResultNotConnected(t *testing.T) {
	client := newTestClient(AMQPConfig{URL: "amqp://localhost", QueueName: "q"})

	err := client.PublishResult("call-1", &analysis.Result{SentimentScore: 0.5})

	assert.ErrorIs(t, err, errors.ErrNotConnected)
	assert.False(t, client.IsConnected())
}

func TestConnectRequiresConfiguration(t *testing.T) {
	client := newTestClient(AMQPConfig{})

	assert.Error(t, client.Connect(), "Missing URL and queue name must fail fast")
	assert.False(t, client.IsConnected())
}

func TestRoutingKeyDefaultsToQueueName(t *testing.T) {
	client := newTestClient(AMQPConfig{URL: "amqp://localhost", QueueName: "call_analysis"})
	assert.Equal(t, "call_analysis", client.config.RoutingKey)

	client = newTestClient(AMQPConfig{URL: "amqp://localhost", QueueName: "call_analysis", RoutingKey: "custom"})
	assert.Equal(t, "custom", client.config.RoutingKey)
}

func TestDisconnectIdempotent(t *testing.T) {
	client := newTestClient(AMQPConfig{URL: "amqp://localhost", QueueName: "q"})

	client.Disconnect()
	client.Disconnect()
	assert.False(t, client.IsConnected())
}
