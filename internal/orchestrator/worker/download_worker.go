package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"skirmish/internal/filestore"
	"skirmish/internal/model"
	"skirmish/internal/orchestrator"
	"skirmish/internal/rabbitmq"
)

const (
	DownloadWorkerType = "telemetry_download_worker"
	downloadWorkerName = "Telemetry Download Worker - stream raw telemetry into the file store"
)

// TelemetryDownloader streams a telemetry document to disk as gzip.
type TelemetryDownloader interface {
	DownloadTelemetry(ctx context.Context, telemetryURL, destPath string) (int64, error)
}

// DownloadStore is the ledger slice the download worker writes through.
type DownloadStore interface {
	SetTelemetryStored(ctx context.Context, matchID, path string, sizeBytes int64) error
	SetMatchFailed(ctx context.Context, matchID, errorMessage string) error
}

// DownloadWorker consumes match.telemetry, lands the raw file under the
// store layout, optionally mirrors it to the archive, and publishes the
// processing step.
type DownloadWorker struct {
	base
	db       DownloadStore
	files    *filestore.Store
	archive  filestore.Archiver
	download TelemetryDownloader
	broker   Broker
	logger   zerolog.Logger
}

func NewDownloadWorker(db DownloadStore, files *filestore.Store, archive filestore.Archiver, download TelemetryDownloader, broker Broker, logger zerolog.Logger) *DownloadWorker {
	w := &DownloadWorker{
		base:     newBase(DownloadWorkerType, downloadWorkerName),
		db:       db,
		files:    files,
		archive:  archive,
		download: download,
		broker:   broker,
	}
	w.logger = logger.With().Str("worker", w.WorkerID()).Logger()
	return w
}

func (w *DownloadWorker) Run(ctx context.Context) error {
	w.active.Store(true)
	defer w.active.Store(false)
	return w.broker.Consume(ctx, rabbitmq.TypeMatch, rabbitmq.StepTelemetry, w.WorkerID(), w.Handle)
}

func (w *DownloadWorker) Handle(ctx context.Context, body []byte) error {
	var msg model.TelemetryMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("malformed telemetry message: %w", err)
	}
	if msg.MatchID == "" {
		return fmt.Errorf("telemetry message without match id")
	}

	err := w.process(ctx, msg)
	if statusErr, ok := err.(orchestrator.StatusError); ok && statusErr.Status() == orchestrator.StatusFailure {
		if dbErr := w.db.SetMatchFailed(ctx, msg.MatchID, statusErr.Message()); dbErr != nil {
			w.logger.Error().Err(dbErr).Str("match_id", msg.MatchID).Msg("failed to record failure")
		}
	}
	return err
}

func (w *DownloadWorker) process(ctx context.Context, msg model.TelemetryMessage) error {
	destPath := w.files.Path(msg.MatchID)

	// A file already on disk means a redelivery; skip straight to the
	// next stage.
	if ok, size := w.files.Exists(msg.MatchID); ok {
		w.logger.Info().Str("match_id", msg.MatchID).Msg("telemetry already stored, republishing")
		w.publishProcessing(ctx, msg, destPath, size)
		return nil
	}

	if msg.TelemetryURL == "" {
		return orchestrator.NewFailure(fmt.Errorf("missing telemetry URL"))
	}

	size, err := w.download.DownloadTelemetry(ctx, msg.TelemetryURL, destPath)
	if err != nil {
		return orchestrator.NewFailure(fmt.Errorf("downloading telemetry: %w", err))
	}

	if err := w.db.SetTelemetryStored(ctx, msg.MatchID, destPath, size); err != nil {
		return orchestrator.NewFailure(err)
	}

	// Archive failures are not fatal; the local file is authoritative.
	if err := w.archive.Archive(ctx, msg.MatchID, destPath); err != nil {
		w.logger.Warn().Err(err).Str("match_id", msg.MatchID).Msg("archive mirror failed")
	}

	w.logger.Info().
		Str("match_id", msg.MatchID).
		Int64("size_bytes", size).
		Msg("telemetry stored")
	w.publishProcessing(ctx, msg, destPath, size)
	return nil
}

func (w *DownloadWorker) publishProcessing(ctx context.Context, msg model.TelemetryMessage, path string, size int64) {
	w.broker.Publish(ctx, rabbitmq.TypeMatch, rabbitmq.StepProcessing, &model.ProcessingMessage{
		MatchID:       msg.MatchID,
		TelemetryPath: path,
		FileSizeBytes: size,
		MapName:       msg.MapName,
		GameMode:      msg.GameMode,
		MatchDatetime: msg.MatchDatetime,
		WorkerID:      w.WorkerID(),
		RoutingMeta:   model.RoutingMeta{Source: w.Type()},
	}, rabbitmq.PriorityNormal)
}
