package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"skirmish/internal/model"
)

// ErrMatchNotFound is returned by lookups against an unknown match id.
var ErrMatchNotFound = errors.New("match not found")

// MatchStore is the unified match ledger.
type MatchStore interface {
	// InsertMatch creates the ledger row with first-writer-wins
	// semantics. It reports whether this caller created the row; a false
	// return means another discoverer got there first and nothing was
	// mutated.
	InsertMatch(ctx context.Context, m *model.Match) (bool, error)
	GetMatch(ctx context.Context, matchID string) (*model.Match, error)
	// FilterUnknownMatchIDs returns the subset of ids with no ledger row,
	// preserving input order.
	FilterUnknownMatchIDs(ctx context.Context, ids []string) ([]string, error)
	ListMatches(ctx context.Context, status string, limit int) ([]model.Match, error)

	SetMatchStatus(ctx context.Context, matchID, status string) error
	SetMatchFailed(ctx context.Context, matchID, errorMessage string) error
	SetMatchComplete(ctx context.Context, matchID string) error
	MarkStageProcessed(ctx context.Context, matchID, stage string) error
	SetTelemetryStored(ctx context.Context, matchID, path string, sizeBytes int64) error
	ApplyTournamentContext(ctx context.Context, matchID string, tc model.TournamentContext) error
}

const matchColumns = `match_id, map_name, game_mode, game_type, match_datetime, duration,
	telemetry_url, telemetry_path, telemetry_size_bytes, status, error_message,
	is_tournament_match, discovered_by, discovery_priority,
	round_ref, schedule_slot_ref, validation_status, team_count, unmatched_player_count,
	summaries_processed, telemetry_downloaded, landings_processed, kills_processed,
	circles_processed, weapons_processed, damage_processed, finishing_processed,
	fights_processed, stats_aggregated, stats_aggregated_at, created_at, updated_at`

// stageColumns whitelists the flag names MarkStageProcessed accepts. The
// stage name arrives from code, never from input, but interpolating an
// unchecked identifier into SQL is still off the table.
var stageColumns = map[string]bool{
	"summaries_processed":  true,
	"telemetry_downloaded": true,
	"landings_processed":   true,
	"kills_processed":      true,
	"circles_processed":    true,
	"weapons_processed":    true,
	"damage_processed":     true,
	"finishing_processed":  true,
	"fights_processed":     true,
}

func (db *postgresDB) InsertMatch(ctx context.Context, m *model.Match) (bool, error) {
	if m.Status == "" {
		m.Status = model.MatchStatusDiscovered
	}
	if m.ValidationStatus == "" {
		m.ValidationStatus = model.ValidationNotTournament
	}

	tag, err := db.pool.Exec(ctx, `
		INSERT INTO matches (
			match_id, map_name, game_mode, game_type, match_datetime, duration,
			telemetry_url, status, error_message,
			is_tournament_match, discovered_by, discovery_priority, validation_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (match_id) DO NOTHING`,
		m.MatchID, m.MapName, m.GameMode, m.GameType, m.MatchDatetime, m.Duration,
		m.TelemetryURL, m.Status, m.ErrorMessage,
		m.IsTournamentMatch, m.DiscoveredBy, m.DiscoveryPriority, m.ValidationStatus,
	)
	if err != nil {
		return false, fmt.Errorf("inserting match %s: %w", m.MatchID, err)
	}

	inserted := tag.RowsAffected() == 1
	if !inserted {
		log.Debug().Str("match_id", m.MatchID).Str("discovered_by", m.DiscoveredBy).
			Msg("match already in ledger, first writer kept")
	}
	return inserted, nil
}

func (db *postgresDB) GetMatch(ctx context.Context, matchID string) (*model.Match, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE match_id = $1`, matchID)
	m, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading match %s: %w", matchID, err)
	}
	return m, nil
}

func (db *postgresDB) FilterUnknownMatchIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT match_id FROM matches WHERE match_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("filtering known matches: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var unknown []string
	for _, id := range ids {
		if !known[id] {
			unknown = append(unknown, id)
		}
	}
	return unknown, nil
}

func (db *postgresDB) ListMatches(ctx context.Context, status string, limit int) ([]model.Match, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT ` + matchColumns + ` FROM matches`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY match_datetime DESC LIMIT %d`, limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (db *postgresDB) SetMatchStatus(ctx context.Context, matchID, status string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE matches SET status = $2, updated_at = now() WHERE match_id = $1`,
		matchID, status)
	if err != nil {
		return fmt.Errorf("setting match %s status %s: %w", matchID, status, err)
	}
	return nil
}

func (db *postgresDB) SetMatchFailed(ctx context.Context, matchID, errorMessage string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE matches SET status = $2, error_message = $3, updated_at = now()
		 WHERE match_id = $1`,
		matchID, model.MatchStatusFailed, errorMessage)
	if err != nil {
		return fmt.Errorf("marking match %s failed: %w", matchID, err)
	}
	return nil
}

func (db *postgresDB) SetMatchComplete(ctx context.Context, matchID string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE matches SET status = $2, error_message = '', updated_at = now()
		 WHERE match_id = $1`,
		matchID, model.MatchStatusComplete)
	if err != nil {
		return fmt.Errorf("marking match %s complete: %w", matchID, err)
	}
	return nil
}

func (db *postgresDB) MarkStageProcessed(ctx context.Context, matchID, stage string) error {
	if !stageColumns[stage] {
		return fmt.Errorf("unknown processing stage %q", stage)
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE matches SET `+stage+` = true, updated_at = now() WHERE match_id = $1`,
		matchID)
	if err != nil {
		return fmt.Errorf("flipping %s for match %s: %w", stage, matchID, err)
	}
	return nil
}

func (db *postgresDB) SetTelemetryStored(ctx context.Context, matchID, path string, sizeBytes int64) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE matches
		 SET telemetry_downloaded = true, telemetry_path = $2, telemetry_size_bytes = $3,
		     updated_at = now()
		 WHERE match_id = $1`,
		matchID, path, sizeBytes)
	if err != nil {
		return fmt.Errorf("recording telemetry file for match %s: %w", matchID, err)
	}
	return nil
}

func (db *postgresDB) ApplyTournamentContext(ctx context.Context, matchID string, tc model.TournamentContext) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE matches
		 SET is_tournament_match = $2, validation_status = $3,
		     round_ref = $4, schedule_slot_ref = $5,
		     team_count = $6, unmatched_player_count = $7,
		     updated_at = now()
		 WHERE match_id = $1`,
		matchID, tc.IsTournamentMatch, tc.ValidationStatus,
		tc.RoundRef, tc.ScheduleSlotRef, tc.TeamCount, tc.UnmatchedPlayerCount)
	if err != nil {
		return fmt.Errorf("applying tournament context to match %s: %w", matchID, err)
	}
	return nil
}

func scanMatch(row pgx.Row) (*model.Match, error) {
	var m model.Match
	var errorMessage, telemetryPath *string
	var aggregatedAt *time.Time

	err := row.Scan(
		&m.MatchID, &m.MapName, &m.GameMode, &m.GameType, &m.MatchDatetime, &m.Duration,
		&m.TelemetryURL, &telemetryPath, &m.TelemetrySizeBytes, &m.Status, &errorMessage,
		&m.IsTournamentMatch, &m.DiscoveredBy, &m.DiscoveryPriority,
		&m.RoundRef, &m.ScheduleSlotRef, &m.ValidationStatus, &m.TeamCount, &m.UnmatchedPlayerCount,
		&m.SummariesProcessed, &m.TelemetryDownloaded, &m.LandingsProcessed, &m.KillsProcessed,
		&m.CirclesProcessed, &m.WeaponsProcessed, &m.DamageProcessed, &m.FinishingProcessed,
		&m.FightsProcessed, &m.StatsAggregated, &aggregatedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if errorMessage != nil {
		m.ErrorMessage = *errorMessage
	}
	if telemetryPath != nil {
		m.TelemetryPath = *telemetryPath
	}
	m.StatsAggregatedAt = aggregatedAt
	return &m, nil
}
