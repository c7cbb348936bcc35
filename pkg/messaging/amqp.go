package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"callinsight-server/pkg/analysis"
	"callinsight-server/pkg/errors"
	"callinsight-server/pkg/metrics"
)

// AnalysisMessage is the JSON payload published after a completed analysis.
type AnalysisMessage struct {
	MessageID  string    `json:"message_id"`
	CallID     string    `json:"call_id"`
	CallScore  int       `json:"call_score"`
	Sentiment  string    `json:"sentiment"`
	Topics     []string  `json:"topics,omitempty"`
	KeyPhrases []string  `json:"key_phrases,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// AMQPConfig holds AMQP client configuration
type AMQPConfig struct {
	URL          string
	QueueName    string
	ExchangeName string
	RoutingKey   string
}

// AMQPClient publishes analysis results to an AMQP queue. Publication is
// best-effort: the analyzer logs failures and moves on.
type AMQPClient struct {
	logger    *logrus.Logger
	config    AMQPConfig
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
	connMutex sync.RWMutex
}

// NewAMQPClient creates a new AMQP client
func NewAMQPClient(logger *logrus.Logger, config AMQPConfig) *AMQPClient {
	if config.RoutingKey == "" {
		config.RoutingKey = config.QueueName
	}
	return &AMQPClient{
		logger: logger,
		config: config,
	}
}

// Connect establishes a connection to the AMQP server
func (c *AMQPClient) Connect() error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.connected {
		return nil
	}

	if c.config.URL == "" || c.config.QueueName == "" {
		c.logger.Warn("AMQP_URL or AMQP_QUEUE_NAME not set, AMQP functionality will be disabled")
		return fmt.Errorf("AMQP URL or queue name not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connChan := make(chan struct {
		conn *amqp.Connection
		err  error
	}, 1)

	go func() {
		conn, err := amqp.Dial(c.config.URL)
		select {
		case <-ctx.Done():
			if conn != nil {
				conn.Close()
			}
		case connChan <- struct {
			conn *amqp.Connection
			err  error
		}{conn, err}:
		}
	}()

	var conn *amqp.Connection
	var err error
	select {
	case result := <-connChan:
		conn = result.conn
		err = result.err
	case <-ctx.Done():
		observeConnectionError()
		return fmt.Errorf("connection to AMQP server timed out after 5 seconds")
	}
	if err != nil {
		observeConnectionError()
		return fmt.Errorf("failed to connect to AMQP server: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		c.config.QueueName, // name
		true,               // durable
		false,              // auto-delete
		false,              // exclusive
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare AMQP queue: %w", err)
	}

	c.conn = conn
	c.channel = channel
	c.connected = true

	c.logger.WithField("queue", c.config.QueueName).Info("Connected to AMQP server")
	return nil
}

// Disconnect closes the AMQP connection
func (c *AMQPClient) Disconnect() {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.logger.Debug("Disconnected from AMQP server")
}

// IsConnected returns the current connection status
func (c *AMQPClient) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.connected
}

// PublishResult implements analysis.ResultPublisher. It publishes a compact
// summary of the analysis with a publish timeout so a stalled broker cannot
// block the pipeline.
func (c *AMQPClient) PublishResult(callID string, result *analysis.Result) error {
	if result == nil {
		return nil
	}
	if !c.IsConnected() {
		return errors.Wrap(errors.ErrNotConnected, "cannot publish analysis result")
	}

	message := AnalysisMessage{
		MessageID:  uuid.New().String(),
		CallID:     callID,
		CallScore:  result.CallScore(),
		Sentiment:  string(result.Sentiment),
		Topics:     result.Topics,
		KeyPhrases: result.KeyPhrases,
		Timestamp:  time.Now(),
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	publishChan := make(chan error, 1)
	go func() {
		c.connMutex.RLock()
		defer c.connMutex.RUnlock()

		if !c.connected || c.channel == nil {
			select {
			case <-ctx.Done():
			case publishChan <- fmt.Errorf("lost AMQP connection before publishing"):
			}
			return
		}

		err := c.channel.Publish(
			c.config.ExchangeName,
			c.config.RoutingKey,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				Body:         body,
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
			},
		)
		select {
		case <-ctx.Done():
		case publishChan <- err:
		}
	}()

	select {
	case err := <-publishChan:
		if err != nil {
			observePublish("error")
			return fmt.Errorf("failed to publish analysis result: %w", err)
		}
	case <-ctx.Done():
		observePublish("timeout")
		return fmt.Errorf("publishing to AMQP timed out after 200ms")
	}

	observePublish("ok")
	c.logger.WithField("call_id", callID).Debug("Published analysis result to AMQP queue")
	return nil
}

func observePublish(status string) {
	if !metrics.IsMetricsEnabled() {
		return
	}
	if metrics.AMQPPublishedMessages != nil {
		metrics.AMQPPublishedMessages.WithLabelValues(status).Inc()
	}
}

func observeConnectionError() {
	if !metrics.IsMetricsEnabled() {
		return
	}
	if metrics.AMQPConnectionErrors != nil {
		metrics.AMQPConnectionErrors.Inc()
	}
}
