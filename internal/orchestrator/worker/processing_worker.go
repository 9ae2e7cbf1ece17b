package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"skirmish/internal/model"
	"skirmish/internal/rabbitmq"
)

const (
	ProcessingWorkerType = "telemetry_processing_worker"
	processingWorkerName = "Telemetry Processing Worker - run the extraction engine over stored telemetry"
)

// MatchProcessor runs the full telemetry pass for one match.
type MatchProcessor interface {
	Process(ctx context.Context, msg model.ProcessingMessage) error
}

// ProcessingStore is the ledger slice the processing worker writes
// through.
type ProcessingStore interface {
	SetMatchComplete(ctx context.Context, matchID string) error
	SetMatchFailed(ctx context.Context, matchID, errorMessage string) error
}

// ProcessingWorker consumes match.processing.telemetry, drives the
// engine, and closes the match out. A completed match gets a stats nudge
// so aggregation picks it up before the next poll.
type ProcessingWorker struct {
	base
	db     ProcessingStore
	engine MatchProcessor
	broker Broker
	logger zerolog.Logger
}

func NewProcessingWorker(db ProcessingStore, engine MatchProcessor, broker Broker, logger zerolog.Logger) *ProcessingWorker {
	w := &ProcessingWorker{
		base:   newBase(ProcessingWorkerType, processingWorkerName),
		db:     db,
		engine: engine,
		broker: broker,
	}
	w.logger = logger.With().Str("worker", w.WorkerID()).Logger()
	return w
}

func (w *ProcessingWorker) Run(ctx context.Context) error {
	w.active.Store(true)
	defer w.active.Store(false)
	return w.broker.Consume(ctx, rabbitmq.TypeMatch, rabbitmq.StepProcessing, w.WorkerID(), w.Handle)
}

func (w *ProcessingWorker) Handle(ctx context.Context, body []byte) error {
	var msg model.ProcessingMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("malformed processing message: %w", err)
	}
	if msg.MatchID == "" {
		return fmt.Errorf("processing message without match id")
	}

	if err := w.engine.Process(ctx, msg); err != nil {
		if dbErr := w.db.SetMatchFailed(ctx, msg.MatchID, err.Error()); dbErr != nil {
			w.logger.Error().Err(dbErr).Str("match_id", msg.MatchID).Msg("failed to record failure")
		}
		return err
	}

	if err := w.db.SetMatchComplete(ctx, msg.MatchID); err != nil {
		return fmt.Errorf("completing match %s: %w", msg.MatchID, err)
	}

	w.broker.Publish(ctx, rabbitmq.TypeMatch, rabbitmq.StepStats, &model.StatsMessage{
		MatchID:     msg.MatchID,
		WorkerID:    w.WorkerID(),
		RoutingMeta: model.RoutingMeta{Source: w.Type()},
	}, rabbitmq.PriorityNormal)
	return nil
}
