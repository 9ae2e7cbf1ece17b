package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"skirmish/internal/model"
)

// SummaryStore holds per-participant match lines.
type SummaryStore interface {
	SummariesExist(ctx context.Context, matchID string) (bool, error)
	// BulkInsertSummaries writes participant rows, skipping any
	// (match_id, participant_id) pair that already exists.
	BulkInsertSummaries(ctx context.Context, rows []model.MatchSummary) (model.BulkInsertResult, error)
	ParticipantNames(ctx context.Context, matchID string) ([]string, error)
	MatchSummaries(ctx context.Context, matchID string) ([]model.MatchSummary, error)
}

func (db *postgresDB) SummariesExist(ctx context.Context, matchID string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM match_summaries WHERE match_id = $1)`,
		matchID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking summaries for match %s: %w", matchID, err)
	}
	return exists, nil
}

func (db *postgresDB) BulkInsertSummaries(ctx context.Context, rows []model.MatchSummary) (model.BulkInsertResult, error) {
	result := model.BulkInsertResult{}
	if len(rows) == 0 {
		return result, nil
	}

	batch := &pgx.Batch{}
	for _, s := range rows {
		batch.Queue(`
			INSERT INTO match_summaries (
				match_id, participant_id, player_id, player_name,
				team_id, team_rank, won,
				kills, assists, dbnos, damage_dealt, headshot_kills,
				kill_place, kill_streaks, longest_kill, revives, heals, boosts,
				walk_distance, ride_distance, swim_distance,
				road_kills, team_kills, time_survived, vehicle_destroys,
				weapons_acquired, win_place, death_type,
				map_name, game_mode, match_datetime
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,
			          $19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31)
			ON CONFLICT (match_id, participant_id) DO NOTHING`,
			s.MatchID, s.ParticipantID, s.PlayerID, s.PlayerName,
			s.TeamID, s.TeamRank, s.Won,
			s.Kills, s.Assists, s.DBNOs, s.DamageDealt, s.HeadshotKills,
			s.KillPlace, s.KillStreaks, s.LongestKill, s.Revives, s.Heals, s.Boosts,
			s.WalkDistance, s.RideDistance, s.SwimDistance,
			s.RoadKills, s.TeamKills, s.TimeSurvived, s.VehicleDestroys,
			s.WeaponsAcquired, s.WinPlace, s.DeathType,
			s.MapName, s.GameMode, s.MatchDatetime,
		)
	}

	results := db.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		tag, err := results.Exec()
		if err != nil {
			result.FailureCount++
			continue
		}
		if tag.RowsAffected() == 1 {
			result.InsertedCount++
		} else {
			result.DuplicateCount++
		}
	}

	if result.FailureCount > 0 {
		log.Warn().
			Int("inserted", result.InsertedCount).
			Int("duplicates", result.DuplicateCount).
			Int("failures", result.FailureCount).
			Msg("summary bulk insert finished with failures")
		return result, fmt.Errorf("%d of %d summary rows failed", result.FailureCount, len(rows))
	}
	return result, nil
}

func (db *postgresDB) ParticipantNames(ctx context.Context, matchID string) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT player_name FROM match_summaries WHERE match_id = $1 ORDER BY player_name`,
		matchID)
	if err != nil {
		return nil, fmt.Errorf("loading participant names for match %s: %w", matchID, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (db *postgresDB) MatchSummaries(ctx context.Context, matchID string) ([]model.MatchSummary, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT match_id, participant_id, player_id, player_name,
		       team_id, team_rank, won,
		       kills, assists, dbnos, damage_dealt, headshot_kills,
		       kill_place, kill_streaks, longest_kill, revives, heals, boosts,
		       walk_distance, ride_distance, swim_distance,
		       road_kills, team_kills, time_survived, vehicle_destroys,
		       weapons_acquired, win_place, death_type,
		       killsteals, heals_used, boosts_used, throwables_used, smokes_thrown,
		       throwable_damage, damage_received,
		       avg_distance_from_center, avg_distance_from_edge, in_zone_ratio,
		       map_name, game_mode, match_datetime, created_at
		FROM match_summaries WHERE match_id = $1
		ORDER BY win_place, player_name`, matchID)
	if err != nil {
		return nil, fmt.Errorf("loading summaries for match %s: %w", matchID, err)
	}
	defer rows.Close()

	var out []model.MatchSummary
	for rows.Next() {
		var s model.MatchSummary
		err := rows.Scan(
			&s.MatchID, &s.ParticipantID, &s.PlayerID, &s.PlayerName,
			&s.TeamID, &s.TeamRank, &s.Won,
			&s.Kills, &s.Assists, &s.DBNOs, &s.DamageDealt, &s.HeadshotKills,
			&s.KillPlace, &s.KillStreaks, &s.LongestKill, &s.Revives, &s.Heals, &s.Boosts,
			&s.WalkDistance, &s.RideDistance, &s.SwimDistance,
			&s.RoadKills, &s.TeamKills, &s.TimeSurvived, &s.VehicleDestroys,
			&s.WeaponsAcquired, &s.WinPlace, &s.DeathType,
			&s.Killsteals, &s.HealsUsed, &s.BoostsUsed, &s.ThrowablesUsed, &s.SmokesThrown,
			&s.ThrowableDamage, &s.DamageReceived,
			&s.AvgDistanceFromCenter, &s.AvgDistanceFromEdge, &s.InZoneRatio,
			&s.MapName, &s.GameMode, &s.MatchDatetime, &s.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
