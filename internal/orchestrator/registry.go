// Package orchestrator supervises the long-running pipeline workers and
// exposes them to the ops API.
package orchestrator

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Worker is one long-running pipeline stage. Run blocks until ctx is
// cancelled or the worker fails terminally.
type Worker interface {
	// Type is the stable registry key, e.g. "match_summary_worker".
	Type() string

	// Name is the human-readable description shown by the ops API.
	Name() string

	Run(ctx context.Context) error

	// Active reports whether the worker loop is currently running.
	Active() bool

	// WorkerID is the per-process instance id stamped onto published
	// messages.
	WorkerID() string
}

// WorkerRegistry tracks the registered workers by type.
type WorkerRegistry interface {
	Register(w Worker)
	Get(workerType string) (Worker, bool)
	Workers() []Worker
	StartAll(ctx context.Context) error
}

type registry struct {
	workers map[string]Worker
	mu      sync.RWMutex
}

func NewWorkerRegistry(workers ...Worker) WorkerRegistry {
	r := &registry{workers: make(map[string]Worker)}
	for _, w := range workers {
		r.Register(w)
	}
	return r
}

func (r *registry) Register(w Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[w.Type()] = w

	log.Info().
		Str("worker_type", w.Type()).
		Str("worker_id", w.WorkerID()).
		Msg("registered worker")
}

func (r *registry) Get(workerType string) (Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[workerType]
	return w, ok
}

// Workers returns the registered workers ordered by type.
func (r *registry) Workers() []Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Worker, 0, len(r.workers))
	for _, w := range r.workers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type() < out[j].Type() })
	return out
}

// StartAll runs every registered worker until the first terminal failure
// or until ctx is cancelled. Context cancellation is the normal shutdown
// path and is not reported as an error.
func (r *registry) StartAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range r.Workers() {
		g.Go(func() error {
			log.Info().Str("worker_type", w.Type()).Msg("starting worker")
			err := w.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("worker_type", w.Type()).Msg("worker stopped with error")
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
