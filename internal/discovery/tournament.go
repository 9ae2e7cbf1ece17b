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

// Adaptive sampling bounds. Three dry runs widen the per-lobby sample by
// one step; any hit snaps back to the configured size.
const (
	sampleSizeCap      = 12
	adaptiveStep       = 2
	zeroRunsBeforeBump = 3
)

// LobbySampler is the tournament store slice the fast lane reads.
type LobbySampler interface {
	ActiveLobbies(ctx context.Context) ([]model.Lobby, error)
	PrimarySampleRosters(ctx context.Context, lobby model.Lobby, limit int) ([]model.RosterEntry, error)
}

// TournamentLane samples lobby rosters on a fast cycle during scheduled
// play windows. It runs against the tournament credential pool so bursts
// never starve the main lane.
type TournamentLane struct {
	ledger   Ledger
	lobbies  LobbySampler
	api      MatchAPI
	known    *cache.Matches
	pub      Publisher
	cfg      config.TournamentDiscoveryConfig
	schedule Schedule
	cutoff   time.Time
	logger   zerolog.Logger

	sampleSize int
	zeroRuns   int
}

func NewTournamentLane(ledger Ledger, lobbies LobbySampler, api MatchAPI, known *cache.Matches, pub Publisher, cfg config.TournamentDiscoveryConfig, logger zerolog.Logger) *TournamentLane {
	cutoff, _ := cfg.Cutoff()
	return &TournamentLane{
		ledger:     ledger,
		lobbies:    lobbies,
		api:        api,
		known:      known,
		pub:        pub,
		cfg:        cfg,
		schedule:   NewSchedule(cfg),
		cutoff:     cutoff,
		logger:     logger.With().Str("component", "tournament_discovery").Logger(),
		sampleSize: cfg.SampleSize,
	}
}

// Run cycles on the configured interval, skipping ticks that fall
// outside the schedule window.
func (l *TournamentLane) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.IntervalDuration())
	defer ticker.Stop()

	for {
		if l.schedule.InWindow(time.Now()) {
			summary, err := l.RunOnce(ctx)
			if err != nil {
				l.logger.Error().Err(err).Msg("tournament discovery run failed")
			} else if summary.Processed > 0 {
				l.logger.Info().
					Int("total", summary.Total).
					Int("processed", summary.Processed).
					Int("queued", summary.Queued).
					Int("sample_size", l.sampleSize).
					Msg("tournament discovery run complete")
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce samples every active lobby, looks the sampled names up, and
// claims any qualifying match the ledger has not seen.
func (l *TournamentLane) RunOnce(ctx context.Context) (model.RunSummary, error) {
	metrics.DiscoveryRuns.WithLabelValues(model.DiscoveredByTournament).Inc()

	names, err := l.sampleNames(ctx)
	if err != nil {
		return model.RunSummary{}, err
	}
	if len(names) == 0 {
		return model.RunSummary{}, nil
	}

	resp, err := l.api.LookupPlayers(ctx, names)
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("looking up sampled players: %w", err)
	}

	ids := resp.GetUniqueMatchIDs()
	summary := model.RunSummary{Total: len(ids)}

	candidates := l.known.FilterUnknown(ctx, ids)
	newIDs, err := l.ledger.FilterUnknownMatchIDs(ctx, candidates)
	if err != nil {
		return summary, fmt.Errorf("diffing sampled match ids: %w", err)
	}
	for _, id := range ids {
		l.known.MarkKnown(ctx, id)
	}
	metrics.DiscoveredMatches.WithLabelValues(model.DiscoveredByTournament, "known").
		Add(float64(len(ids) - len(newIDs)))

	hits := 0
	for _, id := range newIDs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		switch l.claimMatch(ctx, id, &summary) {
		case claimInserted:
			summary.Processed++
			hits++
		case claimSkipped:
			summary.Processed++
		case claimFailed:
			summary.Failed++
		}
	}

	l.adapt(hits)
	return summary, nil
}

// sampleNames stratifies the roster pull per lobby so a loud bracket
// cannot crowd out a quiet one.
func (l *TournamentLane) sampleNames(ctx context.Context) ([]string, error) {
	lobbies, err := l.lobbies.ActiveLobbies(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active lobbies: %w", err)
	}

	var names []string
	for _, lobby := range lobbies {
		rosters, err := l.lobbies.PrimarySampleRosters(ctx, lobby, l.sampleSize)
		if err != nil {
			return nil, fmt.Errorf("sampling lobby %s: %w", lobby.Division, err)
		}
		for _, r := range rosters {
			names = append(names, r.PlayerName)
		}
	}
	return names, nil
}

type claimResult int

const (
	claimInserted claimResult = iota
	claimSkipped
	claimFailed
)

// claimMatch fetches one candidate and inserts it when it passes the
// match-type and cutoff filters. Unlike the main lane, a filtered match
// leaves no ledger row; the id stays cached so it is not re-fetched.
func (l *TournamentLane) claimMatch(ctx context.Context, matchID string, summary *model.RunSummary) claimResult {
	resp, err := l.api.GetMatch(ctx, matchID)
	var m *model.Match
	if err == nil {
		m, err = matchFromResponse(resp, model.DiscoveredByTournament, model.PriorityHigh)
	}
	if err != nil {
		l.logger.Error().Err(err).Str("match_id", matchID).Msg("candidate fetch failed")
		metrics.DiscoveredMatches.WithLabelValues(model.DiscoveredByTournament, "failed").Inc()
		return claimFailed
	}

	if !l.wantMatch(m) {
		metrics.DiscoveredMatches.WithLabelValues(model.DiscoveredByTournament, "filtered").Inc()
		return claimSkipped
	}

	created, err := l.ledger.InsertMatch(ctx, m)
	if err != nil {
		l.logger.Error().Err(err).Str("match_id", matchID).Msg("ledger insert failed")
		metrics.DiscoveredMatches.WithLabelValues(model.DiscoveredByTournament, "failed").Inc()
		return claimFailed
	}
	if !created {
		metrics.DiscoveredMatches.WithLabelValues(model.DiscoveredByTournament, "duplicate").Inc()
		return claimSkipped
	}

	metrics.DiscoveredMatches.WithLabelValues(model.DiscoveredByTournament, "new").Inc()
	if l.pub.Publish(ctx, rabbitmq.TypeMatch, rabbitmq.StepDiscovered,
		discoveredMessage(m, "tournament_discovery"), rabbitmq.PriorityHigh) {
		summary.Queued++
	}
	return claimInserted
}

// wantMatch applies the game-type allowlist and the season cutoff.
func (l *TournamentLane) wantMatch(m *model.Match) bool {
	allowed := false
	for _, t := range l.cfg.MatchType {
		if m.GameType == t {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}
	return l.cutoff.IsZero() || !m.MatchDatetime.Before(l.cutoff)
}

// adapt widens the sample after repeated dry runs and snaps back on any
// hit.
func (l *TournamentLane) adapt(hits int) {
	if !l.cfg.AdaptiveSampling {
		return
	}
	if hits > 0 {
		if l.sampleSize != l.cfg.SampleSize {
			l.logger.Info().Int("sample_size", l.cfg.SampleSize).Msg("sampling hit, resetting sample size")
		}
		l.sampleSize = l.cfg.SampleSize
		l.zeroRuns = 0
		return
	}

	l.zeroRuns++
	if l.zeroRuns < zeroRunsBeforeBump || l.sampleSize >= sampleSizeCap {
		return
	}
	l.sampleSize += adaptiveStep
	if l.sampleSize > sampleSizeCap {
		l.sampleSize = sampleSizeCap
	}
	l.zeroRuns = 0
	l.logger.Info().Int("sample_size", l.sampleSize).Msg("no yield in three runs, widening sample")
}
