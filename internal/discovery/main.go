package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"skirmish/internal/cache"
	"skirmish/internal/config"
	"skirmish/internal/metrics"
	"skirmish/internal/model"
	"skirmish/internal/rabbitmq"
)

// TrackedRoster is the player store slice the main lane reads.
type TrackedRoster interface {
	TrackedPlayers(ctx context.Context, limit int) ([]model.TrackedPlayer, error)
}

// MainLane scans tracked players for matches the ledger has not seen.
type MainLane struct {
	ledger Ledger
	roster TrackedRoster
	api    MatchAPI
	known  *cache.Matches
	pub    Publisher
	cfg    config.MainDiscoveryConfig
	logger zerolog.Logger
}

func NewMainLane(ledger Ledger, roster TrackedRoster, api MatchAPI, known *cache.Matches, pub Publisher, cfg config.MainDiscoveryConfig, logger zerolog.Logger) *MainLane {
	return &MainLane{
		ledger: ledger,
		roster: roster,
		api:    api,
		known:  known,
		pub:    pub,
		cfg:    cfg,
		logger: logger.With().Str("component", "main_discovery").Logger(),
	}
}

// Run cycles RunOnce on the configured interval until ctx is cancelled.
// A failed run is logged and the lane waits for the next tick.
func (l *MainLane) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.IntervalDuration())
	defer ticker.Stop()

	for {
		summary, err := l.RunOnce(ctx)
		if err != nil {
			l.logger.Error().Err(err).Msg("discovery run failed")
		} else {
			l.logger.Info().
				Int("total", summary.Total).
				Int("processed", summary.Processed).
				Int("failed", summary.Failed).
				Int("queued", summary.Queued).
				Msg("discovery run complete")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs one full scan: tracked players, recent match ids,
// ledger diff, fetch and insert per new id. Per-match failures record a
// failed ledger row and the run continues.
func (l *MainLane) RunOnce(ctx context.Context) (model.RunSummary, error) {
	metrics.DiscoveryRuns.WithLabelValues(model.DiscoveredByMain).Inc()

	players, err := l.roster.TrackedPlayers(ctx, l.cfg.PlayerLimit)
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("loading tracked players: %w", err)
	}
	if len(players) == 0 {
		l.logger.Warn().Msg("no tracked players, nothing to discover")
		return model.RunSummary{}, nil
	}

	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.PlayerName
	}

	resp, err := l.api.LookupPlayers(ctx, names)
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("looking up tracked players: %w", err)
	}

	ids := resp.GetUniqueMatchIDs()
	summary := model.RunSummary{Total: len(ids)}

	newIDs, err := l.diffAgainstLedger(ctx, ids)
	if err != nil {
		return summary, err
	}
	metrics.DiscoveredMatches.WithLabelValues(model.DiscoveredByMain, "known").
		Add(float64(len(ids) - len(newIDs)))

	for _, id := range newIDs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if l.discoverMatch(ctx, id, &summary) {
			summary.Processed++
		} else {
			summary.Failed++
		}
	}

	return summary, nil
}

// diffAgainstLedger drops ids the cache remembers, then asks the ledger
// about the rest. Ledger hits the cache had forgotten are re-marked.
func (l *MainLane) diffAgainstLedger(ctx context.Context, ids []string) ([]string, error) {
	candidates := l.known.FilterUnknown(ctx, ids)

	newIDs, err := l.ledger.FilterUnknownMatchIDs(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("diffing match ids: %w", err)
	}

	if len(newIDs) < len(candidates) {
		unknown := make(map[string]bool, len(newIDs))
		for _, id := range newIDs {
			unknown[id] = true
		}
		for _, id := range candidates {
			if !unknown[id] {
				l.known.MarkKnown(ctx, id)
			}
		}
	}
	return newIDs, nil
}

// discoverMatch fetches, inserts, and publishes one match id. A fetch or
// mapping failure still claims the id with a failed row so the lane does
// not retry it forever.
func (l *MainLane) discoverMatch(ctx context.Context, matchID string, summary *model.RunSummary) bool {
	resp, err := l.api.GetMatch(ctx, matchID)
	var m *model.Match
	if err == nil {
		m, err = matchFromResponse(resp, model.DiscoveredByMain, model.PriorityNormal)
	}
	if err != nil {
		l.logger.Error().Err(err).Str("match_id", matchID).Msg("match fetch failed, recording failed row")
		metrics.DiscoveredMatches.WithLabelValues(model.DiscoveredByMain, "failed").Inc()
		failed := &model.Match{
			MatchID:           matchID,
			Status:            model.MatchStatusFailed,
			ErrorMessage:      err.Error(),
			DiscoveredBy:      model.DiscoveredByMain,
			DiscoveryPriority: model.PriorityNormal,
		}
		if _, insErr := l.ledger.InsertMatch(ctx, failed); insErr != nil {
			l.logger.Error().Err(insErr).Str("match_id", matchID).Msg("failed row insert failed")
		}
		l.known.MarkKnown(ctx, matchID)
		return false
	}

	created, err := l.ledger.InsertMatch(ctx, m)
	if err != nil {
		l.logger.Error().Err(err).Str("match_id", matchID).Msg("ledger insert failed")
		metrics.DiscoveredMatches.WithLabelValues(model.DiscoveredByMain, "failed").Inc()
		return false
	}
	l.known.MarkKnown(ctx, matchID)
	if !created {
		metrics.DiscoveredMatches.WithLabelValues(model.DiscoveredByMain, "duplicate").Inc()
		return true
	}

	metrics.DiscoveredMatches.WithLabelValues(model.DiscoveredByMain, "new").Inc()
	if l.pub.Publish(ctx, rabbitmq.TypeMatch, rabbitmq.StepDiscovered,
		discoveredMessage(m, "main_discovery"), rabbitmq.PriorityNormal) {
		summary.Queued++
	}
	return true
}
