package controller

import (
	"context"
	"errors"
	"fmt"

	"skirmish/internal/model"
	"skirmish/internal/rabbitmq"
)

// ErrNothingPending is returned by Republish for a fully processed match.
var ErrNothingPending = errors.New("match has no pending stage")

// MatchLedger is the store slice the match routes read.
type MatchLedger interface {
	GetMatch(ctx context.Context, matchID string) (*model.Match, error)
	ListMatches(ctx context.Context, status string, limit int) ([]model.Match, error)
}

// Publisher re-emits pipeline messages.
type Publisher interface {
	Publish(ctx context.Context, msgType, step string, payload model.Stamped, priority uint8) bool
}

type MatchController interface {
	Get(ctx context.Context, matchID string) (*model.Match, error)
	List(ctx context.Context, status string, limit int) ([]model.Match, error)
	// Republish re-emits the message for the match's next pending stage
	// and returns the step it published on.
	Republish(ctx context.Context, matchID string) (string, error)
}

type matchController struct {
	db  MatchLedger
	pub Publisher
}

func NewMatchController(db MatchLedger, pub Publisher) MatchController {
	return &matchController{db: db, pub: pub}
}

func (c *matchController) Get(ctx context.Context, matchID string) (*model.Match, error) {
	return c.db.GetMatch(ctx, matchID)
}

func (c *matchController) List(ctx context.Context, status string, limit int) ([]model.Match, error) {
	return c.db.ListMatches(ctx, status, limit)
}

func (c *matchController) Republish(ctx context.Context, matchID string) (string, error) {
	m, err := c.db.GetMatch(ctx, matchID)
	if err != nil {
		return "", err
	}

	priority := rabbitmq.PriorityNormal
	if m.DiscoveryPriority == model.PriorityHigh {
		priority = rabbitmq.PriorityHigh
	}

	switch {
	case !m.SummariesProcessed:
		c.pub.Publish(ctx, rabbitmq.TypeMatch, rabbitmq.StepDiscovered, &model.DiscoveredMessage{
			MatchID:       m.MatchID,
			MapName:       m.MapName,
			GameMode:      m.GameMode,
			GameType:      m.GameType,
			MatchDatetime: m.MatchDatetime,
			DiscoveredBy:  m.DiscoveredBy,
			Priority:      m.DiscoveryPriority,
			RoutingMeta:   model.RoutingMeta{Source: "ops_api"},
		}, priority)
		return rabbitmq.StepDiscovered, nil

	case !m.TelemetryDownloaded:
		if m.TelemetryURL == "" {
			return "", fmt.Errorf("match %s has no telemetry URL to redownload", matchID)
		}
		c.pub.Publish(ctx, rabbitmq.TypeMatch, rabbitmq.StepTelemetry, &model.TelemetryMessage{
			MatchID:       m.MatchID,
			TelemetryURL:  m.TelemetryURL,
			MapName:       m.MapName,
			GameMode:      m.GameMode,
			MatchDatetime: m.MatchDatetime,
			WorkerID:      "ops_api",
			RoutingMeta:   model.RoutingMeta{Source: "ops_api"},
		}, priority)
		return rabbitmq.StepTelemetry, nil

	case !extractionComplete(m):
		c.pub.Publish(ctx, rabbitmq.TypeMatch, rabbitmq.StepProcessing, &model.ProcessingMessage{
			MatchID:       m.MatchID,
			TelemetryPath: m.TelemetryPath,
			FileSizeBytes: m.TelemetrySizeBytes,
			MapName:       m.MapName,
			GameMode:      m.GameMode,
			MatchDatetime: m.MatchDatetime,
			WorkerID:      "ops_api",
			RoutingMeta:   model.RoutingMeta{Source: "ops_api"},
		}, priority)
		return rabbitmq.StepProcessing, nil

	case !m.StatsAggregated:
		c.pub.Publish(ctx, rabbitmq.TypeMatch, rabbitmq.StepStats, &model.StatsMessage{
			MatchID:     m.MatchID,
			WorkerID:    "ops_api",
			RoutingMeta: model.RoutingMeta{Source: "ops_api"},
		}, priority)
		return rabbitmq.StepStats, nil
	}

	return "", ErrNothingPending
}

// extractionComplete reports whether every engine stage flag is set.
func extractionComplete(m *model.Match) bool {
	return m.LandingsProcessed && m.KillsProcessed && m.CirclesProcessed &&
		m.WeaponsProcessed && m.DamageProcessed && m.FinishingProcessed &&
		m.FightsProcessed
}
