package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"skirmish/internal/config"
	"skirmish/internal/metrics"
	"skirmish/internal/model"
	"skirmish/internal/rabbitmq"
	"skirmish/pkg/pubg"
)

const (
	AggregationWorkerType = "stats_aggregation_worker"
	aggregationWorkerName = "Stats Aggregation Worker - roll completed matches into career tables"
)

// AggregationStore is the database slice the aggregation worker uses.
type AggregationStore interface {
	GetMatch(ctx context.Context, matchID string) (*model.Match, error)
	MatchesPendingAggregation(ctx context.Context, limit int) ([]model.Match, error)
	AggregateMatch(ctx context.Context, matchID, matchClass string) (bool, error)
	RefreshCombatability(ctx context.Context) error
}

// AggregationWorker runs on a poll interval. Each cycle merges the
// ledger poll with any match.stats nudges, aggregates every pending
// match exactly once, and refreshes the combatability view when the
// cycle produced work.
type AggregationWorker struct {
	base
	db     AggregationStore
	broker Broker
	cfg    config.AggregationConfig
	logger zerolog.Logger
}

func NewAggregationWorker(db AggregationStore, broker Broker, cfg config.AggregationConfig, logger zerolog.Logger) *AggregationWorker {
	w := &AggregationWorker{
		base:   newBase(AggregationWorkerType, aggregationWorkerName),
		db:     db,
		broker: broker,
		cfg:    cfg,
	}
	w.logger = logger.With().Str("worker", w.WorkerID()).Logger()
	return w
}

func (w *AggregationWorker) Run(ctx context.Context) error {
	w.active.Store(true)
	defer w.active.Store(false)

	ticker := time.NewTicker(w.cfg.IntervalDuration())
	defer ticker.Stop()

	for {
		if err := w.RunCycle(ctx); err != nil {
			w.logger.Error().Err(err).Msg("aggregation cycle failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle performs one poll-and-drain pass.
func (w *AggregationWorker) RunCycle(ctx context.Context) error {
	pending, err := w.collectPending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	aggregated := 0
	for _, m := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := w.db.AggregateMatch(ctx, m.MatchID, pubg.MatchClass(m.GameType))
		if err != nil {
			w.logger.Error().Err(err).Str("match_id", m.MatchID).Msg("aggregation failed")
			continue
		}
		if done {
			aggregated++
			metrics.MatchesAggregated.Inc()
		}
	}

	if aggregated > 0 {
		if err := w.db.RefreshCombatability(ctx); err != nil {
			w.logger.Error().Err(err).Msg("combatability refresh failed")
		}
		w.logger.Info().
			Int("pending", len(pending)).
			Int("aggregated", aggregated).
			Msg("aggregation cycle complete")
	}
	return nil
}

// collectPending merges the authoritative ledger poll with any queued
// nudges, deduplicated by match id. A nudge for a match that is not
// actually ready is dropped here; AggregateMatch would refuse it anyway.
func (w *AggregationWorker) collectPending(ctx context.Context) ([]model.Match, error) {
	pending, err := w.db.MatchesPendingAggregation(ctx, w.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("polling pending matches: %w", err)
	}

	seen := make(map[string]bool, len(pending))
	for _, m := range pending {
		seen[m.MatchID] = true
	}

	var nudged []string
	_, err = w.broker.BatchConsume(ctx, rabbitmq.TypeMatch, rabbitmq.StepStats, w.WorkerID(), w.cfg.BatchSize,
		func(_ context.Context, body []byte) error {
			var msg model.StatsMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				return fmt.Errorf("malformed stats message: %w", err)
			}
			if msg.MatchID != "" && !seen[msg.MatchID] {
				seen[msg.MatchID] = true
				nudged = append(nudged, msg.MatchID)
			}
			return nil
		})
	if err != nil && ctx.Err() == nil {
		w.logger.Warn().Err(err).Msg("draining stats nudges failed, continuing with poll results")
	}

	for _, id := range nudged {
		m, err := w.db.GetMatch(ctx, id)
		if err != nil {
			w.logger.Warn().Err(err).Str("match_id", id).Msg("nudged match not loadable")
			continue
		}
		if m.Status == model.MatchStatusComplete && !m.StatsAggregated {
			pending = append(pending, *m)
		}
	}
	return pending, nil
}
