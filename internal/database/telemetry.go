package database

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"skirmish/internal/model"
)

// TelemetryStore writes the per-event detail tables. Every insert runs
// purge-then-copy under a per-match advisory lock and flips its stage
// flag in the same transaction, so a redelivered message rebuilds the
// table instead of doubling it.
type TelemetryStore interface {
	InsertLandings(ctx context.Context, matchID string, rows []model.Landing) error
	InsertKillPositions(ctx context.Context, matchID string, rows []model.KillPosition) error
	InsertWeaponKillEvents(ctx context.Context, matchID string, rows []model.WeaponKillEvent) error
	InsertDamageEvents(ctx context.Context, matchID string, rows []model.DamageEvent) error
	InsertCirclePositions(ctx context.Context, matchID string, rows []model.CirclePosition) error
	// InsertKnockEvents writes the knock lifecycle rows together with their
	// per-player finishing summaries.
	InsertKnockEvents(ctx context.Context, matchID string, knocks []model.KnockEvent, summaries []model.FinishingSummary) error
	UpsertMatchWeaponSummaries(ctx context.Context, matchID string, rows []model.MatchWeaponSummary) error
	// UpdateSummaryEnhancements merges Phase 3 roll-ups into existing
	// summary rows. Missing rows are skipped, not created.
	UpdateSummaryEnhancements(ctx context.Context, rows []model.SummaryEnhancement) error
}

// matchLockKey derives the advisory lock key for a match id.
func matchLockKey(matchID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(matchID))
	return int64(h.Sum64())
}

// withMatchLock runs fn inside a transaction holding the per-match
// advisory lock. Concurrent writers for the same match serialize here;
// different matches proceed in parallel.
func (db *postgresDB) withMatchLock(ctx context.Context, matchID string, fn func(pgx.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction for match %s: %w", matchID, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, matchLockKey(matchID)); err != nil {
		return fmt.Errorf("acquiring match lock for %s: %w", matchID, err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func flipStage(ctx context.Context, tx pgx.Tx, matchID, stage string) error {
	if !stageColumns[stage] {
		return fmt.Errorf("unknown processing stage %q", stage)
	}
	_, err := tx.Exec(ctx,
		`UPDATE matches SET `+stage+` = true, updated_at = now() WHERE match_id = $1`,
		matchID)
	return err
}

func (db *postgresDB) InsertLandings(ctx context.Context, matchID string, rows []model.Landing) error {
	return db.withMatchLock(ctx, matchID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM landings WHERE match_id = $1`, matchID); err != nil {
			return fmt.Errorf("purging landings for match %s: %w", matchID, err)
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"landings"},
			[]string{"match_id", "player_name", "account_id", "team_id",
				"x", "y", "z", "is_game", "map_name", "landed_at"},
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				r := rows[i]
				return []any{r.MatchID, r.PlayerName, r.AccountID, r.TeamID,
					r.X, r.Y, r.Z, r.IsGame, r.MapName, r.LandedAt}, nil
			}))
		if err != nil {
			return fmt.Errorf("copying landings for match %s: %w", matchID, err)
		}
		return flipStage(ctx, tx, matchID, "landings_processed")
	})
}

func (db *postgresDB) InsertKillPositions(ctx context.Context, matchID string, rows []model.KillPosition) error {
	return db.withMatchLock(ctx, matchID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM kill_positions WHERE match_id = $1`, matchID); err != nil {
			return fmt.Errorf("purging kill positions for match %s: %w", matchID, err)
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"kill_positions"},
			[]string{"match_id", "victim_name", "victim_account", "victim_team_id",
				"victim_x", "victim_y", "victim_z",
				"dbno_id", "dbno_maker_name", "dbno_maker_account", "dbno_maker_team_id",
				"dbno_maker_x", "dbno_maker_y", "dbno_maker_z", "dbno_maker_zone",
				"dbno_damage_reason", "dbno_damage_category", "dbno_damage_causer", "dbno_distance",
				"finisher_name", "finisher_account", "finisher_team_id",
				"finisher_x", "finisher_y", "finisher_z", "finisher_zone",
				"finish_damage_reason", "finish_damage_category", "finish_damage_causer", "finish_distance",
				"is_suicide", "victim_in_blue_zone", "killed_at"},
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				r := rows[i]
				return []any{r.MatchID, r.VictimName, r.VictimAccount, r.VictimTeamID,
					r.VictimX, r.VictimY, r.VictimZ,
					r.DBNOID, r.DBNOMakerName, r.DBNOMakerAccount, r.DBNOMakerTeamID,
					r.DBNOMakerX, r.DBNOMakerY, r.DBNOMakerZ, r.DBNOMakerZone,
					r.DBNODamageReason, r.DBNODamageCategory, r.DBNODamageCauser, r.DBNODistance,
					r.FinisherName, r.FinisherAccount, r.FinisherTeamID,
					r.FinisherX, r.FinisherY, r.FinisherZ, r.FinisherZone,
					r.FinishDamageReason, r.FinishDamageCategory, r.FinishDamageCauser, r.FinishDistance,
					r.IsSuicide, r.VictimInBlueZone, r.KilledAt}, nil
			}))
		if err != nil {
			return fmt.Errorf("copying kill positions for match %s: %w", matchID, err)
		}
		return flipStage(ctx, tx, matchID, "kills_processed")
	})
}

func (db *postgresDB) InsertWeaponKillEvents(ctx context.Context, matchID string, rows []model.WeaponKillEvent) error {
	return db.withMatchLock(ctx, matchID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM weapon_kill_events WHERE match_id = $1`, matchID); err != nil {
			return fmt.Errorf("purging weapon kill events for match %s: %w", matchID, err)
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"weapon_kill_events"},
			[]string{"match_id", "attacker_name", "attacker_account", "attacker_team_id",
				"victim_name", "victim_team_id",
				"weapon_id", "weapon_category", "damage_type", "damage_reason",
				"distance", "is_knock", "is_kill", "zone_phase", "time_survived", "occurred_at"},
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				r := rows[i]
				return []any{r.MatchID, r.AttackerName, r.AttackerAccount, r.AttackerTeamID,
					r.VictimName, r.VictimTeamID,
					r.WeaponID, r.WeaponCategory, r.DamageType, r.DamageReason,
					r.Distance, r.IsKnock, r.IsKill, r.ZonePhase, r.TimeSurvived, r.OccurredAt}, nil
			}))
		if err != nil {
			return fmt.Errorf("copying weapon kill events for match %s: %w", matchID, err)
		}
		return flipStage(ctx, tx, matchID, "weapons_processed")
	})
}

func (db *postgresDB) InsertDamageEvents(ctx context.Context, matchID string, rows []model.DamageEvent) error {
	return db.withMatchLock(ctx, matchID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM player_damage_events WHERE match_id = $1`, matchID); err != nil {
			return fmt.Errorf("purging damage events for match %s: %w", matchID, err)
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"player_damage_events"},
			[]string{"match_id", "attacker_name", "attacker_team_id",
				"victim_name", "victim_team_id",
				"damage_type", "damage_reason", "damage_causer", "damage",
				"attacker_x", "attacker_y", "attacker_z",
				"victim_x", "victim_y", "victim_z",
				"distance", "occurred_at"},
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				r := rows[i]
				return []any{r.MatchID, r.AttackerName, r.AttackerTeamID,
					r.VictimName, r.VictimTeamID,
					r.DamageType, r.DamageReason, r.DamageCauser, r.Damage,
					r.AttackerX, r.AttackerY, r.AttackerZ,
					r.VictimX, r.VictimY, r.VictimZ,
					r.Distance, r.OccurredAt}, nil
			}))
		if err != nil {
			return fmt.Errorf("copying damage events for match %s: %w", matchID, err)
		}
		return flipStage(ctx, tx, matchID, "damage_processed")
	})
}

func (db *postgresDB) InsertCirclePositions(ctx context.Context, matchID string, rows []model.CirclePosition) error {
	return db.withMatchLock(ctx, matchID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM circle_positions WHERE match_id = $1`, matchID); err != nil {
			return fmt.Errorf("purging circle positions for match %s: %w", matchID, err)
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"circle_positions"},
			[]string{"match_id", "player_name", "team_id",
				"x", "y", "z", "circle_x", "circle_y", "circle_radius",
				"distance_from_center", "distance_from_edge", "in_zone",
				"phase", "elapsed_seconds", "sampled_at"},
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				r := rows[i]
				return []any{r.MatchID, r.PlayerName, r.TeamID,
					r.X, r.Y, r.Z, r.CircleX, r.CircleY, r.CircleRadius,
					r.DistanceFromCenter, r.DistanceFromEdge, r.InZone,
					r.Phase, r.ElapsedSeconds, r.SampledAt}, nil
			}))
		if err != nil {
			return fmt.Errorf("copying circle positions for match %s: %w", matchID, err)
		}
		return flipStage(ctx, tx, matchID, "circles_processed")
	})
}

func (db *postgresDB) InsertKnockEvents(ctx context.Context, matchID string, knocks []model.KnockEvent, summaries []model.FinishingSummary) error {
	return db.withMatchLock(ctx, matchID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM player_knock_events WHERE match_id = $1`, matchID); err != nil {
			return fmt.Errorf("purging knock events for match %s: %w", matchID, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM player_finishing_summary WHERE match_id = $1`, matchID); err != nil {
			return fmt.Errorf("purging finishing summaries for match %s: %w", matchID, err)
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"player_knock_events"},
			[]string{"match_id", "dbno_id",
				"attacker_name", "attacker_account", "attacker_team_id",
				"victim_name", "victim_account", "victim_team_id",
				"weapon_id", "damage_reason", "distance",
				"attacker_x", "attacker_y", "attacker_z",
				"victim_x", "victim_y", "victim_z",
				"knocked_at", "outcome", "finisher_name",
				"finisher_is_self", "finisher_is_teammate", "time_to_finish",
				"nearest_teammate_distance", "mean_teammate_distance",
				"teammates_within_50", "teammates_within_100", "teammates_within_200",
				"team_spread_variance", "alive_teammates", "teammate_distances"},
			pgx.CopyFromSlice(len(knocks), func(i int) ([]any, error) {
				r := knocks[i]
				return []any{r.MatchID, r.DBNOID,
					r.AttackerName, r.AttackerAccount, r.AttackerTeamID,
					r.VictimName, r.VictimAccount, r.VictimTeamID,
					r.WeaponID, r.DamageReason, r.Distance,
					r.AttackerX, r.AttackerY, r.AttackerZ,
					r.VictimX, r.VictimY, r.VictimZ,
					r.KnockedAt, r.Outcome, r.FinisherName,
					r.FinisherIsSelf, r.FinisherIsTeammate, r.TimeToFinish,
					r.NearestTeammateDistance, r.MeanTeammateDistance,
					r.TeammatesWithin50, r.TeammatesWithin100, r.TeammatesWithin200,
					r.TeamSpreadVariance, r.AliveTeammates, r.TeammateDistances}, nil
			}))
		if err != nil {
			return fmt.Errorf("copying knock events for match %s: %w", matchID, err)
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"player_finishing_summary"},
			[]string{"match_id", "player_name", "team_id",
				"knocks", "converted", "revived", "unknown",
				"self_finished", "teammate_finished", "avg_time_to_finish",
				"knocks_0_10", "knocks_10_50", "knocks_50_100", "knocks_100_200", "knocks_200_plus",
				"support_under_25", "support_25_50", "support_50_100", "support_100_200", "support_200_plus"},
			pgx.CopyFromSlice(len(summaries), func(i int) ([]any, error) {
				s := summaries[i]
				return []any{s.MatchID, s.PlayerName, s.TeamID,
					s.Knocks, s.Converted, s.Revived, s.Unknown,
					s.SelfFinished, s.TeammateFinished, s.AvgTimeToFinish,
					s.Knocks0To10, s.Knocks10To50, s.Knocks50To100, s.Knocks100To200, s.Knocks200Plus,
					s.SupportUnder25, s.Support25To50, s.Support50To100, s.Support100To200, s.Support200Plus}, nil
			}))
		if err != nil {
			return fmt.Errorf("copying finishing summaries for match %s: %w", matchID, err)
		}
		return flipStage(ctx, tx, matchID, "finishing_processed")
	})
}

func (db *postgresDB) UpsertMatchWeaponSummaries(ctx context.Context, matchID string, rows []model.MatchWeaponSummary) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO match_weapon_summaries (match_id, player_name, weapon_category, knocks, kills)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (match_id, player_name, weapon_category)
			DO UPDATE SET knocks = EXCLUDED.knocks, kills = EXCLUDED.kills`,
			r.MatchID, r.PlayerName, r.WeaponCategory, r.Knocks, r.Kills)
	}
	results := db.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upserting weapon summaries for match %s: %w", matchID, err)
		}
	}
	return nil
}

func (db *postgresDB) UpdateSummaryEnhancements(ctx context.Context, rows []model.SummaryEnhancement) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			UPDATE match_summaries
			SET killsteals = $3, heals_used = $4, boosts_used = $5,
			    throwables_used = $6, smokes_thrown = $7,
			    throwable_damage = $8, damage_received = $9,
			    avg_distance_from_center = COALESCE($10, avg_distance_from_center),
			    avg_distance_from_edge = COALESCE($11, avg_distance_from_edge),
			    in_zone_ratio = COALESCE($12, in_zone_ratio)
			WHERE match_id = $1 AND player_name = $2`,
			r.MatchID, r.PlayerName,
			r.Killsteals, r.HealsUsed, r.BoostsUsed,
			r.ThrowablesUsed, r.SmokesThrown,
			r.ThrowableDamage, r.DamageReceived,
			r.AvgDistanceFromCenter, r.AvgDistanceFromEdge, r.InZoneRatio)
	}
	results := db.pool.SendBatch(ctx, batch)
	defer results.Close()

	missing := 0
	for range rows {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("updating summary enhancements: %w", err)
		}
		if tag.RowsAffected() == 0 {
			missing++
		}
	}
	if missing > 0 {
		log.Warn().Int("missing", missing).Int("total", len(rows)).
			Msg("summary enhancements skipped rows without a summary line")
	}
	return nil
}
