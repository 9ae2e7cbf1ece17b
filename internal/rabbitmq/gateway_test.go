package rabbitmq

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"skirmish/internal/model"
)

func TestQueueAndExchangeNames(t *testing.T) {
	cases := []struct {
		step  string
		env   string
		queue string
	}{
		{StepDiscovered, "dev", "match.discovered.dev"},
		{StepTelemetry, "staging", "match.telemetry.staging"},
		{StepProcessing, "prod", "match.processing.telemetry.prod"},
		{StepStats, "prod", "match.stats.prod"},
	}
	for _, c := range cases {
		if got := QueueName(TypeMatch, c.step, c.env); got != c.queue {
			t.Errorf("QueueName(%s, %s) = %q, want %q", c.step, c.env, got, c.queue)
		}
	}
	if got := ExchangeName(TypeMatch, "dev"); got != "match.exchange.dev" {
		t.Errorf("ExchangeName = %q, want match.exchange.dev", got)
	}
}

func TestStampRoutingFillsMetadata(t *testing.T) {
	msg := &model.DiscoveredMessage{MatchID: "m-1"}
	msg.StampRouting("prod", QueueName(TypeMatch, StepDiscovered, "prod"))

	if msg.Environment != "prod" {
		t.Errorf("environment = %q, want prod", msg.Environment)
	}
	if msg.QueueTarget != "match.discovered.prod" {
		t.Errorf("queue target = %q", msg.QueueTarget)
	}
	if msg.Timestamp.IsZero() {
		t.Error("timestamp should be stamped when zero")
	}
}

func TestStampRoutingKeepsProducerTimestamp(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := &model.StatsMessage{MatchID: "m-2"}
	msg.Timestamp = at
	msg.StampRouting("dev", "match.stats.dev")

	if !msg.Timestamp.Equal(at) {
		t.Errorf("timestamp overwritten: %v", msg.Timestamp)
	}
}

// fakeClient serves preloaded deliveries and enforces the broker's
// one-consumer-per-tag rule: a second Consume on a live tag fails the
// way a real channel would.
type fakeClient struct {
	pending      []amqp.Delivery
	live         map[string]chan amqp.Delivery
	consumeCalls int
	cancelCalls  int
}

func newFakeClient(deliveries ...amqp.Delivery) *fakeClient {
	return &fakeClient{pending: deliveries, live: make(map[string]chan amqp.Delivery)}
}

func (f *fakeClient) Consume(_, consumerTag string, _ int) (<-chan amqp.Delivery, error) {
	f.consumeCalls++
	if _, ok := f.live[consumerTag]; ok {
		return nil, fmt.Errorf("duplicate consumer tag %s", consumerTag)
	}
	ch := make(chan amqp.Delivery, len(f.pending))
	for _, d := range f.pending {
		ch <- d
	}
	f.pending = nil
	f.live[consumerTag] = ch
	return ch, nil
}

func (f *fakeClient) Cancel(consumerTag string) error {
	f.cancelCalls++
	ch, ok := f.live[consumerTag]
	if !ok {
		return fmt.Errorf("unknown consumer tag %s", consumerTag)
	}
	close(ch)
	delete(f.live, consumerTag)
	return nil
}

func (f *fakeClient) Close() error                      { return nil }
func (f *fakeClient) DeclareExchange(_, _ string) error { return nil }
func (f *fakeClient) BindQueue(_, _, _ string) error    { return nil }
func (f *fakeClient) Health() error                     { return nil }

func (f *fakeClient) DeclareQueue(_ string) (amqp.Queue, error) { return amqp.Queue{}, nil }

func (f *fakeClient) Publish(_ context.Context, _, _ string, _ []byte, _ uint8) (bool, error) {
	return true, nil
}

// fakeAcknowledger records acks and requeues.
type fakeAcknowledger struct {
	acked    atomic.Int32
	requeued atomic.Int32
}

func (a *fakeAcknowledger) Ack(_ uint64, _ bool) error { a.acked.Add(1); return nil }
func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	if requeue {
		a.requeued.Add(1)
	}
	return nil
}
func (a *fakeAcknowledger) Reject(_ uint64, _ bool) error { return nil }

func delivery(ack amqp.Acknowledger, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, Body: []byte(body)}
}

func TestBatchConsumeCancelsConsumerBetweenCycles(t *testing.T) {
	ack := &fakeAcknowledger{}
	client := newFakeClient(delivery(ack, `{"match_id":"m-1"}`), delivery(ack, `{"match_id":"m-2"}`))
	g := NewGateway(client, "test", zerolog.Nop())

	noop := func(context.Context, []byte) error { return nil }

	handled, err := g.BatchConsume(context.Background(), TypeMatch, StepStats, "agg-1", 2, noop)
	if err != nil {
		t.Fatalf("first BatchConsume: %v", err)
	}
	if handled != 2 {
		t.Fatalf("handled = %d, want 2", handled)
	}
	if client.cancelCalls != 1 {
		t.Fatalf("consumer not cancelled after batch, cancels = %d", client.cancelCalls)
	}

	// Same stable tag on the next poll cycle must register cleanly.
	handled, err = g.BatchConsume(context.Background(), TypeMatch, StepStats, "agg-1", 2, noop)
	if err != nil {
		t.Fatalf("second BatchConsume: %v", err)
	}
	if handled != 0 {
		t.Errorf("second cycle handled = %d, want 0", handled)
	}
	if client.consumeCalls != 2 || client.cancelCalls != 2 {
		t.Errorf("consume/cancel calls = %d/%d, want 2/2", client.consumeCalls, client.cancelCalls)
	}
	if got := ack.acked.Load(); got != 2 {
		t.Errorf("acked = %d, want 2", got)
	}
}

func TestBatchConsumeRequeuesOverflow(t *testing.T) {
	ack := &fakeAcknowledger{}
	client := newFakeClient(
		delivery(ack, `{"match_id":"m-1"}`),
		delivery(ack, `{"match_id":"m-2"}`),
		delivery(ack, `{"match_id":"m-3"}`),
	)
	g := NewGateway(client, "test", zerolog.Nop())

	handled, err := g.BatchConsume(context.Background(), TypeMatch, StepStats, "agg-1", 2,
		func(context.Context, []byte) error { return nil })
	if err != nil {
		t.Fatalf("BatchConsume: %v", err)
	}
	if handled != 2 {
		t.Fatalf("handled = %d, want 2", handled)
	}
	if got := ack.requeued.Load(); got != 1 {
		t.Errorf("requeued = %d, want 1 (the delivery past the batch)", got)
	}
}
