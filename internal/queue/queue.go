package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bookrel/backend/internal/util"
	"github.com/bookrel/backend/pkg/graph"
	"github.com/bookrel/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// Exchange is the topic exchange graph events are published to.
	Exchange = "bookrel"
	// MergedTopic is the routing key of graph.MergedEvent messages.
	MergedTopic = "graph.merged"
)

// Config holds the broker connection settings.
type Config struct {
	User     string
	Password string
	Host     string
	Port     string
}

// ConfigFromEnv reads the broker settings from RABBITMQ_* variables.
func ConfigFromEnv() Config {
	return Config{
		User:     util.GetEnv("RABBITMQ_USER"),
		Password: util.GetEnv("RABBITMQ_PASSWORD"),
		Host:     util.GetEnv("RABBITMQ_HOST"),
		Port:     util.GetEnvString("RABBITMQ_PORT", "5672"),
	}
}

// Enabled reports whether a broker host is configured.
func (c Config) Enabled() bool {
	return c.Host != ""
}

func (c Config) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		c.User,
		c.Password,
		c.Host,
		c.Port,
	)
}

func Init(cfg Config) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// SetupExchange declares the durable topic exchange graph events go to.
func SetupExchange(ch channel) error {
	err := ch.ExchangeDeclare(
		Exchange, // name
		"topic",  // type
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("ExchangeDeclare failed: %w", err)
	}
	return nil
}

// Publisher announces completed merges on the bookrel exchange.
type Publisher struct {
	ch channel
}

var _ graph.MergePublisher = (*Publisher)(nil)

func NewPublisher(ch channel) *Publisher {
	return &Publisher{ch: ch}
}

// PublishMerged sends event as a persistent JSON message with routing key
// graph.merged.
func (p *Publisher) PublishMerged(ctx context.Context, event graph.MergedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal merged event: %w", err)
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Type:         MergedTopic,
	}

	err = p.ch.PublishWithContext(
		ctx,
		Exchange,
		MergedTopic,
		false,
		false,
		publishing,
	)
	if err != nil {
		return fmt.Errorf("failed to publish merged event: %w", err)
	}

	logger.Debug("[Queue] Published merged event", "book_id", event.BookID, "edges_added", event.EdgesAdded)
	return nil
}
