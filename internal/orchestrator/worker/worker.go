// Package worker holds the broker-driven pipeline stages: summary,
// download, processing, and aggregation. Each worker consumes one queue,
// records outcomes on the match ledger, and publishes the next step.
package worker

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"skirmish/internal/model"
	"skirmish/internal/rabbitmq"
)

// Broker is the gateway slice the workers use.
type Broker interface {
	Publish(ctx context.Context, msgType, step string, payload model.Stamped, priority uint8) bool
	Consume(ctx context.Context, msgType, step, consumerTag string, handler rabbitmq.Handler) error
	BatchConsume(ctx context.Context, msgType, step, consumerTag string, n int, handler rabbitmq.Handler) (int, error)
}

// base carries the identity and liveness bookkeeping every worker shares.
type base struct {
	workerType string
	name       string
	id         string
	active     atomic.Bool
}

func newBase(workerType, name string) base {
	return base{
		workerType: workerType,
		name:       name,
		id:         workerType + "-" + uuid.NewString()[:8],
	}
}

func (b *base) Type() string     { return b.workerType }
func (b *base) Name() string     { return b.name }
func (b *base) WorkerID() string { return b.id }
func (b *base) Active() bool     { return b.active.Load() }
