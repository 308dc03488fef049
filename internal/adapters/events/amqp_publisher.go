// Package events publishes billing events to downstream consumers over RabbitMQ.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/encoding"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/observability"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/resilience"
)

// DefaultExchange is the durable topic exchange billing events are routed through
const DefaultExchange = "billing.events"

// channel is the part of *amqp.Channel the publisher uses
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc opens a channel with the exchange declared
type dialFunc func(url, exchange string) (channel, func() error, error)

// AMQPConfig configures the RabbitMQ publisher
type AMQPConfig struct {
	URL      string
	Exchange string
	Attempts int
}

// AMQPPublisher implements ports.EventPublisher.
// It keeps one channel open and reopens it after a failed publish.
type AMQPPublisher struct {
	mu        sync.Mutex
	ch        channel
	closeConn func() error
	dial      dialFunc
	backoff   resilience.BackoffStrategy
	timeouts  *resilience.TimeoutConfig
	config    AMQPConfig
	logger    ports.Logger
}

// NewAMQPPublisher creates a publisher. The broker is dialed lazily on first publish.
func NewAMQPPublisher(config AMQPConfig, logger ports.Logger) *AMQPPublisher {
	return newAMQPPublisher(config, dialAMQP, logger)
}

func newAMQPPublisher(config AMQPConfig, dial dialFunc, logger ports.Logger) *AMQPPublisher {
	if config.Exchange == "" {
		config.Exchange = DefaultExchange
	}
	if config.Attempts < 1 {
		config.Attempts = 3
	}
	return &AMQPPublisher{
		dial:     dial,
		backoff:  resilience.PublishBackoff(),
		timeouts: resilience.DefaultTimeoutConfig(),
		config:   config,
		logger:   logger,
	}
}

func dialAMQP(url, exchange string) (channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return ch, conn.Close, nil
}

// Publish sends the event as persistent JSON routed by its type
func (p *AMQPPublisher) Publish(ctx context.Context, event ports.BillingEvent) error {
	body, err := encoding.EncodeJSON(event)
	if err != nil {
		return fmt.Errorf("marshal billing event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         event.Type,
		Body:         body,
	}

	err = resilience.Retry(ctx, p.config.Attempts, p.backoff, func(ctx context.Context) error {
		return p.publishOnce(ctx, event.Type, msg)
	})
	if err != nil {
		observability.RecordBillingEventPublished(event.Type, "failed")
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	observability.RecordBillingEventPublished(event.Type, "published")
	p.logger.Debug("Billing event published",
		ports.String("event_type", event.Type),
		ports.String("invoice_id", event.InvoiceID))
	return nil
}

func (p *AMQPPublisher) publishOnce(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		ch, closeConn, err := p.dial(p.config.URL, p.config.Exchange)
		if err != nil {
			p.logger.Warn("RabbitMQ connection failed", ports.Err(err))
			return err
		}
		p.ch, p.closeConn = ch, closeConn
	}

	attemptCtx, cancel := p.timeouts.PublishContext(ctx)
	defer cancel()

	if err := p.ch.PublishWithContext(attemptCtx, p.config.Exchange, routingKey, false, false, msg); err != nil {
		p.logger.Warn("RabbitMQ publish failed, reopening channel",
			ports.String("routing_key", routingKey),
			ports.Err(err))
		p.resetLocked()
		return err
	}
	return nil
}

func (p *AMQPPublisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.closeConn != nil {
		_ = p.closeConn()
	}
	p.ch, p.closeConn = nil, nil
}

// Close releases the channel and connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

// NoopPublisher drops events. It is used when no broker is configured.
type NoopPublisher struct {
	logger ports.Logger
}

// NewNoopPublisher creates a publisher that only logs
func NewNoopPublisher(logger ports.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

// Publish logs the event at debug level and returns nil
func (p *NoopPublisher) Publish(_ context.Context, event ports.BillingEvent) error {
	p.logger.Debug("Billing event dropped, no broker configured",
		ports.String("event_type", event.Type),
		ports.String("invoice_id", event.InvoiceID))
	return nil
}

var (
	_ ports.EventPublisher = (*AMQPPublisher)(nil)
	_ ports.EventPublisher = (*NoopPublisher)(nil)
)
