package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"skirmish/internal/database"
	"skirmish/internal/fights"
	"skirmish/internal/filestore"
	"skirmish/internal/metrics"
	"skirmish/internal/model"
	"skirmish/pkg/pubg"
)

// Store is the database slice the engine writes through.
type Store interface {
	database.TelemetryStore
	database.FightStore
	PlayerStoreSlice
	MarkStageProcessed(ctx context.Context, matchID, stage string) error
}

// PlayerStoreSlice is the tracked-roster lookup the engine needs.
type PlayerStoreSlice interface {
	TrackedPlayerNames(ctx context.Context) (map[string]bool, error)
}

// Engine runs the full telemetry pass for one match: parse once, seven
// parallel extractors, dependent knock and fight passes, summary
// roll-up.
type Engine struct {
	store    Store
	files    *filestore.Store
	detector *fights.Detector
	logger   zerolog.Logger
}

func NewEngine(store Store, files *filestore.Store, logger zerolog.Logger) *Engine {
	return &Engine{
		store:    store,
		files:    files,
		detector: fights.NewDetector(logger),
		logger:   logger.With().Str("component", "telemetry_engine").Logger(),
	}
}

// Process executes all three phases. Any error leaves the match's stage
// flags describing exactly which tables are complete; a retry re-runs
// everything idempotently.
func (e *Engine) Process(ctx context.Context, msg model.ProcessingMessage) error {
	start := time.Now()

	raw, err := e.files.OpenRaw(msg.MatchID)
	if err != nil {
		return fmt.Errorf("opening telemetry: %w", err)
	}
	events, parseErr := pubg.ParseTelemetry(raw)
	raw.Close()
	if parseErr != nil {
		return fmt.Errorf("parsing telemetry for match %s: %w", msg.MatchID, parseErr)
	}

	tracked, err := e.store.TrackedPlayerNames(ctx)
	if err != nil {
		return fmt.Errorf("loading tracked players: %w", err)
	}

	phase1, err := e.runExtractors(ctx, msg, events, tracked)
	if err != nil {
		return err
	}

	if err := e.runDependentPhase(ctx, msg.MatchID, events); err != nil {
		return err
	}

	if err := e.rollUp(ctx, msg.MatchID, phase1); err != nil {
		return err
	}

	e.logger.Info().
		Str("match_id", msg.MatchID).
		Int("events", len(events)).
		Dur("duration", time.Since(start)).
		Msg("telemetry processing complete")
	return nil
}

// phase1Result holds the extractor outputs Phase 3 still needs after
// the database writes are done.
type phase1Result struct {
	items    map[string]*model.ItemUsage
	advanced map[string]*model.AdvancedStats
	circles  CircleResult
	weapons  []model.WeaponKillEvent
}

// runExtractors is Phase 1: the seven independent extractors in
// parallel. Five write their tables and flip flags; item usage and
// advanced stats only compute, their results land in Phase 3.
func (e *Engine) runExtractors(ctx context.Context, msg model.ProcessingMessage, events []pubg.RawEvent, tracked map[string]bool) (phase1Result, error) {
	result := phase1Result{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(e.timed("landings", func() error {
		rows := ExtractLandings(msg.MatchID, msg.MapName, events)
		return e.store.InsertLandings(gctx, msg.MatchID, rows)
	}))
	g.Go(e.timed("kill_positions", func() error {
		rows := ExtractKillPositions(msg.MatchID, events)
		return e.store.InsertKillPositions(gctx, msg.MatchID, rows)
	}))
	g.Go(e.timed("weapon_kills", func() error {
		result.weapons = ExtractWeaponKills(msg.MatchID, events)
		return e.store.InsertWeaponKillEvents(gctx, msg.MatchID, result.weapons)
	}))
	g.Go(e.timed("damage_events", func() error {
		rows := ExtractDamageEvents(msg.MatchID, events, tracked)
		return e.store.InsertDamageEvents(gctx, msg.MatchID, rows)
	}))
	g.Go(e.timed("circle_positions", func() error {
		result.circles = ExtractCirclePositions(msg.MatchID, events, tracked)
		return e.store.InsertCirclePositions(gctx, msg.MatchID, result.circles.Detail)
	}))
	g.Go(e.timed("item_usage", func() error {
		result.items = ExtractItemUsage(events)
		return nil
	}))
	g.Go(e.timed("advanced_stats", func() error {
		result.advanced = ExtractAdvancedStats(events)
		return nil
	}))

	if err := g.Wait(); err != nil {
		return phase1Result{}, fmt.Errorf("extractor phase for match %s: %w", msg.MatchID, err)
	}
	return result, nil
}

// runDependentPhase is Phase 2: knock lifecycle then fight detection,
// strictly sequential since both read the whole event array.
func (e *Engine) runDependentPhase(ctx context.Context, matchID string, events []pubg.RawEvent) error {
	knocks, summaries := BuildKnockLifecycle(matchID, events)
	if err := e.store.InsertKnockEvents(ctx, matchID, knocks, summaries); err != nil {
		return fmt.Errorf("storing knock lifecycle for match %s: %w", matchID, err)
	}

	combat, err := fights.CombatEventsFromTelemetry(events)
	if err != nil {
		return fmt.Errorf("lifting combat events for match %s: %w", matchID, err)
	}
	detected := e.detector.Detect(matchID, combat)

	if err := e.store.PurgeFights(ctx, matchID); err != nil {
		return err
	}
	for i := range detected {
		if err := e.store.InsertFight(ctx, &detected[i]); err != nil {
			return fmt.Errorf("storing fight for match %s: %w", matchID, err)
		}
		metrics.FightsDetected.WithLabelValues(detected[i].FightReason).Inc()
	}
	if err := e.store.MarkStageProcessed(ctx, matchID, "fights_processed"); err != nil {
		return err
	}

	e.logger.Debug().
		Str("match_id", matchID).
		Int("knocks", len(knocks)).
		Int("fights", len(detected)).
		Msg("dependent phase complete")
	return nil
}

// rollUp is Phase 3: weapon category distribution and the enhanced
// summary columns.
func (e *Engine) rollUp(ctx context.Context, matchID string, phase1 phase1Result) error {
	summaries := BuildWeaponSummaries(matchID, phase1.weapons)
	if err := e.store.UpsertMatchWeaponSummaries(ctx, matchID, summaries); err != nil {
		return fmt.Errorf("storing weapon summaries for match %s: %w", matchID, err)
	}

	enhancements := BuildSummaryEnhancements(matchID, phase1.items, phase1.advanced, phase1.circles.Means)
	if err := e.store.UpdateSummaryEnhancements(ctx, enhancements); err != nil {
		return fmt.Errorf("storing summary enhancements for match %s: %w", matchID, err)
	}
	return nil
}

func (e *Engine) timed(name string, fn func() error) func() error {
	return func() error {
		start := time.Now()
		err := fn()
		metrics.ExtractorDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		return err
	}
}
