package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"skirmish/internal/model"
	"skirmish/internal/orchestrator"
	"skirmish/internal/rabbitmq"
	"skirmish/pkg/pubg"
)

const (
	SummaryWorkerType = "match_summary_worker"
	summaryWorkerName = "Match Summary Worker - fetch match documents and write participant summaries"
)

// MatchFetcher is the upstream client slice the summary worker needs.
type MatchFetcher interface {
	GetMatch(ctx context.Context, matchID string) (*pubg.MatchResponse, error)
}

// SummaryStore is the database slice the summary worker writes through.
type SummaryStore interface {
	GetMatch(ctx context.Context, matchID string) (*model.Match, error)
	SetMatchStatus(ctx context.Context, matchID, status string) error
	SetMatchFailed(ctx context.Context, matchID, errorMessage string) error
	MarkStageProcessed(ctx context.Context, matchID, stage string) error
	SummariesExist(ctx context.Context, matchID string) (bool, error)
	BulkInsertSummaries(ctx context.Context, rows []model.MatchSummary) (model.BulkInsertResult, error)
	AssignTournamentContext(ctx context.Context, matchID string, matchTime time.Time, mapName string, participants []string) (model.TournamentContext, error)
}

// SummaryWorker consumes match.discovered. It writes one summary row per
// participant, assigns tournament context for fast-lane matches, and
// hands the match to the download stage.
type SummaryWorker struct {
	base
	db         SummaryStore
	mainAPI    MatchFetcher
	tourneyAPI MatchFetcher
	broker     Broker
	logger     zerolog.Logger
}

func NewSummaryWorker(db SummaryStore, mainAPI, tourneyAPI MatchFetcher, broker Broker, logger zerolog.Logger) *SummaryWorker {
	w := &SummaryWorker{
		base:       newBase(SummaryWorkerType, summaryWorkerName),
		db:         db,
		mainAPI:    mainAPI,
		tourneyAPI: tourneyAPI,
		broker:     broker,
	}
	w.logger = logger.With().Str("worker", w.WorkerID()).Logger()
	return w
}

func (w *SummaryWorker) Run(ctx context.Context) error {
	w.active.Store(true)
	defer w.active.Store(false)
	return w.broker.Consume(ctx, rabbitmq.TypeMatch, rabbitmq.StepDiscovered, w.WorkerID(), w.Handle)
}

// Handle processes one match.discovered delivery.
func (w *SummaryWorker) Handle(ctx context.Context, body []byte) error {
	var msg model.DiscoveredMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("malformed discovered message: %w", err)
	}
	if msg.MatchID == "" {
		return fmt.Errorf("discovered message without match id")
	}

	err := w.process(ctx, msg)
	if statusErr, ok := err.(orchestrator.StatusError); ok {
		switch statusErr.Status() {
		case orchestrator.StatusFailure:
			if dbErr := w.db.SetMatchFailed(ctx, msg.MatchID, statusErr.Message()); dbErr != nil {
				w.logger.Error().Err(dbErr).Str("match_id", msg.MatchID).Msg("failed to record failure")
			}
			return statusErr
		case orchestrator.StatusWarning, orchestrator.StatusSkipped:
			w.logger.Warn().Str("match_id", msg.MatchID).Str("status", statusErr.Status()).
				Msg(statusErr.Message())
			return nil
		}
	}
	return err
}

func (w *SummaryWorker) process(ctx context.Context, msg model.DiscoveredMessage) error {
	if err := w.db.SetMatchStatus(ctx, msg.MatchID, model.MatchStatusProcessing); err != nil {
		return orchestrator.NewFailure(fmt.Errorf("setting status: %w", err))
	}

	exists, err := w.db.SummariesExist(ctx, msg.MatchID)
	if err != nil {
		return orchestrator.NewFailure(err)
	}
	if exists {
		return w.republish(ctx, msg)
	}

	resp, err := w.clientFor(msg.DiscoveredBy).GetMatch(ctx, msg.MatchID)
	if err != nil {
		return orchestrator.NewFailure(fmt.Errorf("fetching match: %w", err))
	}

	rows, names, err := buildSummaryRows(resp)
	if err != nil {
		return orchestrator.NewFailure(err)
	}
	telemetryURL, urlErr := resp.TelemetryURL()

	if _, err := w.db.BulkInsertSummaries(ctx, rows); err != nil {
		return orchestrator.NewFailure(fmt.Errorf("inserting summaries: %w", err))
	}
	if err := w.db.MarkStageProcessed(ctx, msg.MatchID, "summaries_processed"); err != nil {
		return orchestrator.NewFailure(err)
	}

	if msg.DiscoveredBy == model.DiscoveredByTournament {
		tc, err := w.db.AssignTournamentContext(ctx, msg.MatchID, msg.MatchDatetime, msg.MapName, names)
		if err != nil {
			w.logger.Error().Err(err).Str("match_id", msg.MatchID).Msg("tournament context assignment failed")
		} else {
			w.logger.Info().
				Str("match_id", msg.MatchID).
				Str("validation", tc.ValidationStatus).
				Int("teams", tc.TeamCount).
				Msg("tournament context assigned")
		}
	}

	// Participant rows are valuable even without telemetry; the match just
	// cannot advance past this stage.
	if urlErr != nil {
		return orchestrator.NewFailure(fmt.Errorf("missing telemetry URL"))
	}

	w.publishTelemetry(ctx, msg, telemetryURL, len(rows))
	return nil
}

// republish short-circuits a redelivered match whose rows already exist.
// The telemetry URL comes from the ledger, falling back to a fresh fetch
// when discovery never captured one.
func (w *SummaryWorker) republish(ctx context.Context, msg model.DiscoveredMessage) error {
	m, err := w.db.GetMatch(ctx, msg.MatchID)
	if err != nil {
		return orchestrator.NewFailure(err)
	}

	telemetryURL := m.TelemetryURL
	if telemetryURL == "" {
		resp, err := w.clientFor(msg.DiscoveredBy).GetMatch(ctx, msg.MatchID)
		if err != nil {
			return orchestrator.NewFailure(fmt.Errorf("re-fetching match: %w", err))
		}
		if telemetryURL, err = resp.TelemetryURL(); err != nil {
			return orchestrator.NewFailure(fmt.Errorf("missing telemetry URL"))
		}
	}

	w.logger.Info().Str("match_id", msg.MatchID).Msg("summaries already present, republishing")
	w.publishTelemetry(ctx, msg, telemetryURL, 0)
	return nil
}

func (w *SummaryWorker) publishTelemetry(ctx context.Context, msg model.DiscoveredMessage, telemetryURL string, participants int) {
	w.broker.Publish(ctx, rabbitmq.TypeMatch, rabbitmq.StepTelemetry, &model.TelemetryMessage{
		MatchID:          msg.MatchID,
		TelemetryURL:     telemetryURL,
		MapName:          msg.MapName,
		GameMode:         msg.GameMode,
		MatchDatetime:    msg.MatchDatetime,
		ParticipantCount: participants,
		WorkerID:         w.WorkerID(),
		RoutingMeta:      model.RoutingMeta{Source: w.Type()},
	}, priorityFor(msg.Priority))
}

// clientFor keeps tournament traffic on the tournament credential pool.
func (w *SummaryWorker) clientFor(discoveredBy string) MatchFetcher {
	if discoveredBy == model.DiscoveredByTournament && w.tourneyAPI != nil {
		return w.tourneyAPI
	}
	return w.mainAPI
}

func priorityFor(p string) uint8 {
	if p == model.PriorityHigh {
		return rabbitmq.PriorityHigh
	}
	return rabbitmq.PriorityNormal
}

// buildSummaryRows flattens the match document into one row per included
// participant, joined to its roster for placement.
func buildSummaryRows(resp *pubg.MatchResponse) ([]model.MatchSummary, []string, error) {
	participants, err := resp.Participants()
	if err != nil {
		return nil, nil, err
	}
	rosters, err := resp.Rosters()
	if err != nil {
		return nil, nil, err
	}

	byParticipant := make(map[string]pubg.Roster)
	for _, r := range rosters {
		for _, pid := range r.ParticipantIDs {
			byParticipant[pid] = r
		}
	}

	startedAt, err := resp.Data.Attributes.StartedAt()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing match datetime: %w", err)
	}
	mapName := pubg.TranslateMapName(resp.Data.Attributes.MapName)

	rows := make([]model.MatchSummary, 0, len(participants))
	var names []string
	for _, p := range participants {
		s := p.Stats
		row := model.MatchSummary{
			MatchID:       resp.Data.ID,
			ParticipantID: p.ID,
			PlayerID:      s.PlayerID,
			PlayerName:    s.Name,

			Kills:           s.Kills,
			Assists:         s.Assists,
			DBNOs:           s.DBNOs,
			DamageDealt:     s.DamageDealt,
			HeadshotKills:   s.HeadshotKills,
			KillPlace:       s.KillPlace,
			KillStreaks:     s.KillStreaks,
			LongestKill:     s.LongestKill,
			Revives:         s.Revives,
			Heals:           s.Heals,
			Boosts:          s.Boosts,
			WalkDistance:    s.WalkDistance,
			RideDistance:    s.RideDistance,
			SwimDistance:    s.SwimDistance,
			RoadKills:       s.RoadKills,
			TeamKills:       s.TeamKills,
			TimeSurvived:    s.TimeSurvived,
			VehicleDestroys: s.VehicleDestroys,
			WeaponsAcquired: s.WeaponsAcquired,
			WinPlace:        s.WinPlace,
			DeathType:       s.DeathType,

			MapName:       mapName,
			GameMode:      resp.Data.Attributes.GameMode,
			MatchDatetime: startedAt.UTC(),
		}
		if r, ok := byParticipant[p.ID]; ok {
			row.TeamID = strconv.Itoa(r.TeamID)
			row.TeamRank = r.Rank
			row.Won = r.Won
		}
		rows = append(rows, row)
		if p.IsValidPlayer() {
			names = append(names, s.Name)
		}
	}
	return rows, names, nil
}
