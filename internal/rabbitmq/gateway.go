package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"skirmish/internal/metrics"
	"skirmish/internal/model"
)

// Message priorities. Tournament-lane traffic jumps the queue.
const (
	PriorityNormal uint8 = 2
	PriorityHigh   uint8 = 8
)

// Step pairs the gateway supports.
const (
	StepDiscovered = "discovered"
	StepTelemetry  = "telemetry"
	StepProcessing = "processing.telemetry"
	StepStats      = "stats"
)

// TypeMatch is the only message type the pipeline carries today.
const TypeMatch = "match"

// QueueName builds "{type}.{step}.{env}".
func QueueName(msgType, step, env string) string {
	return fmt.Sprintf("%s.%s.%s", msgType, step, env)
}

// ExchangeName builds "{type}.exchange.{env}".
func ExchangeName(msgType, env string) string {
	return fmt.Sprintf("%s.exchange.%s", msgType, env)
}

// Handler processes one delivery. A returned error marks the message
// failed; it is still acked and never requeued.
type Handler func(ctx context.Context, body []byte) error

// Gateway maps pipeline steps onto broker primitives: topic exchange per
// type, durable priority queue per (type, step), persistent JSON
// payloads stamped with environment and target queue.
type Gateway struct {
	client Client
	env    string
	logger zerolog.Logger
}

func NewGateway(client Client, env string, logger zerolog.Logger) *Gateway {
	return &Gateway{
		client: client,
		env:    env,
		logger: logger.With().Str("component", "broker_gateway").Logger(),
	}
}

// Steps the topology declares for the match type.
var matchSteps = []string{StepDiscovered, StepTelemetry, StepProcessing, StepStats}

// DeclareTopology creates the exchange, queues, and bindings for every
// supported step. Safe to run repeatedly.
func (g *Gateway) DeclareTopology() error {
	exchange := ExchangeName(TypeMatch, g.env)
	if err := g.client.DeclareExchange(exchange, "topic"); err != nil {
		return err
	}
	for _, step := range matchSteps {
		queue := QueueName(TypeMatch, step, g.env)
		if _, err := g.client.DeclareQueue(queue); err != nil {
			return err
		}
		if err := g.client.BindQueue(queue, exchange, queue); err != nil {
			return err
		}
	}
	return nil
}

// Publish serializes payload, stamps routing metadata, and reports
// whether the broker confirmed routing. An unrouted message is logged
// and swallowed; the ledger poll paths recover from lost nudges.
func (g *Gateway) Publish(ctx context.Context, msgType, step string, payload model.Stamped, priority uint8) bool {
	queue := QueueName(msgType, step, g.env)
	payload.StampRouting(g.env, queue)

	body, err := json.Marshal(payload)
	if err != nil {
		g.logger.Error().Err(err).Str("queue", queue).Msg("failed to serialize payload")
		return false
	}

	routed, err := g.client.Publish(ctx, ExchangeName(msgType, g.env), queue, body, priority)
	if err != nil {
		metrics.PublishedMessages.WithLabelValues(queue, "false").Inc()
		g.logger.Error().Err(err).Str("queue", queue).Msg("publish failed")
		return false
	}
	if !routed {
		metrics.PublishedMessages.WithLabelValues(queue, "false").Inc()
		g.logger.Warn().Str("queue", queue).Msg("broker did not confirm routing")
		return false
	}

	metrics.PublishedMessages.WithLabelValues(queue, "true").Inc()
	g.logger.Debug().Str("queue", queue).Int("size", len(body)).Msg("published message")
	return true
}

// Consume delivers messages to handler until ctx is cancelled. Every
// delivery is acked exactly once, success or failure; failures are the
// handler's to record on the ledger.
func (g *Gateway) Consume(ctx context.Context, msgType, step, consumerTag string, handler Handler) error {
	queue := QueueName(msgType, step, g.env)
	deliveries, err := g.client.Consume(queue, consumerTag, 1)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", queue)
			}
			g.handle(ctx, queue, consumerTag, d, handler)
		}
	}
}

func (g *Gateway) handle(ctx context.Context, queue, worker string, d amqp.Delivery, handler Handler) {
	start := time.Now()
	err := handler(ctx, d.Body)
	metrics.MessageDuration.WithLabelValues(worker).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.MessagesProcessed.WithLabelValues(worker, "error").Inc()
		g.logger.Error().Err(err).Str("queue", queue).Msg("handler failed, message not requeued")
	} else {
		metrics.MessagesProcessed.WithLabelValues(worker, "ok").Inc()
	}
	if ackErr := d.Ack(false); ackErr != nil {
		g.logger.Error().Err(ackErr).Str("queue", queue).Msg("ack failed")
	}
}

// BatchConsume drains up to n messages then returns how many it handled.
// Used by scheduled aggregators that merge nudges with a ledger poll.
// The consumer is deregistered before returning so the next cycle can
// reuse the tag; anything the broker pushed past the batch is requeued.
func (g *Gateway) BatchConsume(ctx context.Context, msgType, step, consumerTag string, n int, handler Handler) (int, error) {
	queue := QueueName(msgType, step, g.env)
	deliveries, err := g.client.Consume(queue, consumerTag, n)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := g.client.Cancel(consumerTag); err != nil {
			g.logger.Warn().Err(err).Str("queue", queue).Msg("cancelling batch consumer failed")
			return
		}
		// Cancel closes the delivery channel once in-flight messages
		// drain; requeue whatever arrived past the batch.
		for d := range deliveries {
			if nackErr := d.Nack(false, true); nackErr != nil {
				g.logger.Error().Err(nackErr).Str("queue", queue).Msg("requeue failed")
			}
		}
	}()

	handled := 0
	// Bounded wait for the first message of each iteration; an idle queue
	// ends the batch quickly.
	idle := time.NewTimer(2 * time.Second)
	defer idle.Stop()

	for handled < n {
		select {
		case <-ctx.Done():
			return handled, ctx.Err()
		case <-idle.C:
			return handled, nil
		case d, ok := <-deliveries:
			if !ok {
				return handled, fmt.Errorf("delivery channel for %s closed", queue)
			}
			g.handle(ctx, queue, consumerTag, d, handler)
			handled++
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(2 * time.Second)
		}
	}
	return handled, nil
}

// Health proxies the underlying client check.
func (g *Gateway) Health() error {
	return g.client.Health()
}
