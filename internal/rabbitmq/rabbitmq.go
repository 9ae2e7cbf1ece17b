// Package rabbitmq is the broker layer: a reconnecting amqp client plus
// the gateway that maps pipeline steps onto queues and exchanges.
package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"skirmish/internal/config"
)

// MaxPriority is the x-max-priority bound declared on every queue.
const MaxPriority = 10

// Client wraps one connection and channel with automatic reconnection.
// Publishing runs in confirm mode so callers learn whether the broker
// routed their message.
type Client interface {
	Close() error

	DeclareExchange(name, kind string) error
	DeclareQueue(name string) (amqp.Queue, error)
	BindQueue(queueName, exchangeName, routingKey string) error

	// Publish returns whether the broker confirmed routing the message.
	Publish(ctx context.Context, exchange, routingKey string, body []byte, priority uint8) (bool, error)
	Consume(queueName, consumerTag string, prefetch int) (<-chan amqp.Delivery, error)

	// Cancel deregisters a consumer tag. The broker stops pushing to it
	// and the library closes its delivery channel.
	Cancel(consumerTag string) error

	Health() error
}

type client struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	config       config.RabbitMQConfig
	mu           sync.Mutex
	reconnecting bool
	notifyClose  chan *amqp.Error
}

// NewClient dials the broker and opens a confirm-mode channel.
func NewClient(cfg config.RabbitMQConfig) (Client, error) {
	c := &client{config: cfg}
	if err := c.connect(); err != nil {
		return nil, err
	}
	c.setupReconnect()
	return c, nil
}

func (c *client) connect() error {
	conn, err := amqp.DialConfig(c.config.URL(), amqp.Config{
		Heartbeat: 30 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return fmt.Errorf("connecting to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("opening channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("enabling confirm mode: %w", err)
	}

	c.conn = conn
	c.channel = ch

	log.Info().
		Str("host", c.config.Host).
		Int("port", c.config.Port).
		Str("vhost", c.config.VHost).
		Msg("RabbitMQ connection established")
	return nil
}

func (c *client) setupReconnect() {
	c.notifyClose = c.conn.NotifyClose(make(chan *amqp.Error))

	go func() {
		for err := range c.notifyClose {
			log.Warn().
				Str("reason", err.Reason).
				Int("code", err.Code).
				Msg("RabbitMQ connection closed, reconnecting")
			c.doReconnect()
		}
	}()
}

func (c *client) doReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reconnecting {
		return
	}
	c.reconnecting = true
	defer func() { c.reconnecting = false }()

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil && !c.conn.IsClosed() {
		c.conn.Close()
	}

	backoff := time.Second
	maxBackoff := 30 * time.Second
	for {
		log.Info().Dur("backoff", backoff).Msg("Attempting to reconnect to RabbitMQ")
		if err := c.connect(); err != nil {
			log.Error().Err(err).Msg("Failed to reconnect to RabbitMQ")
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		c.notifyClose = c.conn.NotifyClose(make(chan *amqp.Error))
		log.Info().Msg("Successfully reconnected to RabbitMQ")
		return
	}
}

// ensureConnected must be called with the mutex held.
func (c *client) ensureConnected() error {
	if c.conn != nil && c.channel != nil && !c.conn.IsClosed() {
		return nil
	}
	if err := c.connect(); err != nil {
		return err
	}
	c.setupReconnect()
	return nil
}

func (c *client) Health() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.channel == nil {
		return fmt.Errorf("nil connection or channel")
	}
	if c.conn.IsClosed() {
		return fmt.Errorf("connection is closed")
	}
	return nil
}

func (c *client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			return fmt.Errorf("channel close error: %w", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("connection close error: %w", err)
		}
	}
	log.Info().Msg("RabbitMQ connection and channel closed")
	return nil
}

func (c *client) Publish(ctx context.Context, exchange, routingKey string, body []byte, priority uint8) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return false, fmt.Errorf("reconnecting before publish: %w", err)
	}

	publish := func() (*amqp.DeferredConfirmation, error) {
		return c.channel.PublishWithDeferredConfirmWithContext(ctx,
			exchange, routingKey,
			true,  // mandatory so unroutable messages are not confirmed silently
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Priority:     priority,
				Body:         body,
			})
	}

	confirmation, err := publish()
	if err != nil {
		// One reconnect attempt, then retry the publish.
		if rcErr := c.connect(); rcErr != nil {
			return false, fmt.Errorf("publishing to %s/%s: %w", exchange, routingKey, err)
		}
		c.setupReconnect()
		if confirmation, err = publish(); err != nil {
			return false, fmt.Errorf("publishing to %s/%s after reconnect: %w", exchange, routingKey, err)
		}
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return false, fmt.Errorf("waiting for publish confirm on %s/%s: %w", exchange, routingKey, err)
	}
	return acked, nil
}

func (c *client) Consume(queueName, consumerTag string, prefetch int) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return nil, fmt.Errorf("reconnecting before consume: %w", err)
	}
	if prefetch > 0 {
		if err := c.channel.Qos(prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("setting qos: %w", err)
		}
	}

	deliveries, err := c.channel.Consume(
		queueName,
		consumerTag,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consuming %s: %w", queueName, err)
	}

	log.Info().
		Str("queue", queueName).
		Str("consumer_tag", consumerTag).
		Msg("Started consuming messages")
	return deliveries, nil
}

func (c *client) Cancel(consumerTag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil {
		return nil
	}
	if err := c.channel.Cancel(consumerTag, false); err != nil {
		return fmt.Errorf("cancelling consumer %s: %w", consumerTag, err)
	}
	log.Debug().Str("consumer_tag", consumerTag).Msg("Cancelled consumer")
	return nil
}

func (c *client) DeclareExchange(name, kind string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return fmt.Errorf("reconnecting before exchange declare: %w", err)
	}
	err := c.channel.ExchangeDeclare(name, kind, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declaring exchange %s: %w", name, err)
	}
	log.Info().Str("exchange", name).Str("type", kind).Msg("Declared exchange")
	return nil
}

func (c *client) DeclareQueue(name string) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return amqp.Queue{}, fmt.Errorf("reconnecting before queue declare: %w", err)
	}
	queue, err := c.channel.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-max-priority": int32(MaxPriority)},
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declaring queue %s: %w", name, err)
	}
	log.Info().Str("queue", name).Msg("Declared queue")
	return queue, nil
}

func (c *client) BindQueue(queueName, exchangeName, routingKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return fmt.Errorf("reconnecting before queue bind: %w", err)
	}
	if err := c.channel.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
		return fmt.Errorf("binding %s to %s via %s: %w", queueName, exchangeName, routingKey, err)
	}
	log.Info().
		Str("queue", queueName).
		Str("exchange", exchangeName).
		Str("routing_key", routingKey).
		Msg("Bound queue to exchange")
	return nil
}
