package controller

import (
	"context"
	"fmt"

	"skirmish/internal/model"
)

// DiscoveryLane is a manually triggerable discovery cycle.
type DiscoveryLane interface {
	RunOnce(ctx context.Context) (model.RunSummary, error)
}

type DiscoveryController interface {
	// Run triggers one cycle of the named lane, main or tournament.
	Run(ctx context.Context, lane string) (model.RunSummary, error)
	Lanes() []string
}

type discoveryController struct {
	lanes map[string]DiscoveryLane
}

func NewDiscoveryController(main, tournament DiscoveryLane) DiscoveryController {
	lanes := make(map[string]DiscoveryLane)
	if main != nil {
		lanes[model.DiscoveredByMain] = main
	}
	if tournament != nil {
		lanes[model.DiscoveredByTournament] = tournament
	}
	return &discoveryController{lanes: lanes}
}

func (c *discoveryController) Run(ctx context.Context, lane string) (model.RunSummary, error) {
	runner, ok := c.lanes[lane]
	if !ok {
		return model.RunSummary{}, fmt.Errorf("unknown discovery lane %q", lane)
	}
	return runner.RunOnce(ctx)
}

func (c *discoveryController) Lanes() []string {
	out := make([]string, 0, len(c.lanes))
	for lane := range c.lanes {
		out = append(out, lane)
	}
	return out
}

// BackfillStore rolls aggregated matches back out of the career tables
// so re-accumulation starts from a clean slate.
type BackfillStore interface {
	ResetAggregatedSince(ctx context.Context, days int) (int64, error)
}

// FightReader loads persisted fights.
type FightReader interface {
	FightsByMatch(ctx context.Context, matchID string) ([]model.Fight, error)
}

type StatsController interface {
	// Backfill subtracts each aggregated match inside the window from the
	// career tables and clears stats_aggregated so the aggregation worker
	// re-rolls them. days <= 0 uses the default window.
	Backfill(ctx context.Context, days int) (int64, error)
	Fights(ctx context.Context, matchID string) ([]model.Fight, error)
}

type statsController struct {
	db          BackfillStore
	fights      FightReader
	defaultDays int
}

func NewStatsController(db BackfillStore, fights FightReader, defaultDays int) StatsController {
	return &statsController{db: db, fights: fights, defaultDays: defaultDays}
}

func (c *statsController) Backfill(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = c.defaultDays
	}
	return c.db.ResetAggregatedSince(ctx, days)
}

func (c *statsController) Fights(ctx context.Context, matchID string) ([]model.Fight, error) {
	return c.fights.FightsByMatch(ctx, matchID)
}
