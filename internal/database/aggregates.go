package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"skirmish/internal/model"
	"skirmish/pkg/pubg"
)

// AggregateStore maintains career totals. AggregateMatch accumulates a
// match into the per-player tables exactly once: the stats_aggregated
// flag is checked and flipped inside the same transaction as the sums,
// so a crashed or redelivered run can never double-count.
type AggregateStore interface {
	MatchesPendingAggregation(ctx context.Context, limit int) ([]model.Match, error)
	AggregateMatch(ctx context.Context, matchID, matchClass string) (bool, error)
	// ResetAggregatedSince subtracts every aggregated match newer than the
	// window back out of the career tables and clears its flag, so the
	// aggregation worker replays the window without double-counting.
	ResetAggregatedSince(ctx context.Context, days int) (int64, error)

	RequestBackfill(ctx context.Context, playerName string, windowDays int) error
	SetBackfillStatus(ctx context.Context, playerName, status string) error
	ListBackfills(ctx context.Context) ([]model.BackfillStatus, error)
}

func (db *postgresDB) MatchesPendingAggregation(ctx context.Context, limit int) ([]model.Match, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+matchColumns+` FROM matches
		 WHERE status = $1 AND NOT stats_aggregated
		 ORDER BY match_datetime
		 LIMIT $2`,
		model.MatchStatusComplete, limit)
	if err != nil {
		return nil, fmt.Errorf("loading matches pending aggregation: %w", err)
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

func (db *postgresDB) AggregateMatch(ctx context.Context, matchID, matchClass string) (bool, error) {
	aggregated := false
	err := db.withMatchLock(ctx, matchID, func(tx pgx.Tx) error {
		var done bool
		err := tx.QueryRow(ctx,
			`SELECT stats_aggregated FROM matches WHERE match_id = $1 FOR UPDATE`,
			matchID).Scan(&done)
		if err != nil {
			return fmt.Errorf("checking aggregation flag for match %s: %w", matchID, err)
		}
		if done {
			log.Debug().Str("match_id", matchID).Msg("match already aggregated, skipping")
			return nil
		}

		for _, class := range []string{matchClass, model.MatchClassAll} {
			if err := applyMatchStats(ctx, tx, matchID, class, 1); err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx,
			`UPDATE matches
			 SET stats_aggregated = true, stats_aggregated_at = now(), updated_at = now()
			 WHERE match_id = $1`, matchID)
		if err != nil {
			return fmt.Errorf("flipping aggregation flag for match %s: %w", matchID, err)
		}
		aggregated = true
		return nil
	})
	return aggregated, err
}

// applyMatchStats adds (sign 1) or subtracts (sign -1) one match's
// contribution to the career tables for a class bucket.
func applyMatchStats(ctx context.Context, tx pgx.Tx, matchID, class string, sign int) error {
	if err := aggregateDamage(ctx, tx, matchID, class, sign); err != nil {
		return err
	}
	if err := aggregateWeapons(ctx, tx, matchID, class, sign); err != nil {
		return err
	}
	return aggregateAdvanced(ctx, tx, matchID, class, sign)
}

func aggregateDamage(ctx context.Context, tx pgx.Tx, matchID, class string, sign int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO player_damage_stats (
			player_name, match_class, matches,
			total_damage_dealt, total_damage_taken, damage_event_count, headshot_damage,
			updated_at
		)
		SELECT s.player_name, $2, $3::int,
		       $3 * COALESCE(dealt.total, 0), $3 * COALESCE(taken.total, 0),
		       $3 * COALESCE(dealt.events, 0), $3 * COALESCE(dealt.headshot, 0),
		       now()
		FROM match_summaries s
		LEFT JOIN (
			SELECT attacker_name,
			       SUM(damage) AS total,
			       COUNT(*) AS events,
			       COALESCE(SUM(damage) FILTER (WHERE damage_reason = 'HeadShot'), 0) AS headshot
			FROM player_damage_events WHERE match_id = $1
			GROUP BY attacker_name
		) dealt ON dealt.attacker_name = s.player_name
		LEFT JOIN (
			SELECT victim_name, SUM(damage) AS total
			FROM player_damage_events WHERE match_id = $1
			GROUP BY victim_name
		) taken ON taken.victim_name = s.player_name
		WHERE s.match_id = $1
		ON CONFLICT (player_name, match_class) DO UPDATE SET
			matches            = player_damage_stats.matches + EXCLUDED.matches,
			total_damage_dealt = player_damage_stats.total_damage_dealt + EXCLUDED.total_damage_dealt,
			total_damage_taken = player_damage_stats.total_damage_taken + EXCLUDED.total_damage_taken,
			damage_event_count = player_damage_stats.damage_event_count + EXCLUDED.damage_event_count,
			headshot_damage    = player_damage_stats.headshot_damage + EXCLUDED.headshot_damage,
			updated_at         = now()`,
		matchID, class, sign)
	if err != nil {
		return fmt.Errorf("aggregating damage stats for match %s class %s: %w", matchID, class, err)
	}
	return nil
}

// aggregateWeapons rolls weapon kill events into the career tables.
// longest_kill is a running maximum and cannot be inverted; a subtract
// pass contributes a negative value that GREATEST ignores, so the max
// only corrects once the window is re-aggregated.
func aggregateWeapons(ctx context.Context, tx pgx.Tx, matchID, class string, sign int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO player_weapon_stats (
			player_name, match_class, weapon_category,
			kills, knocks, longest_kill, total_distance, events, updated_at
		)
		SELECT attacker_name, $2, weapon_category,
		       $3 * COUNT(*) FILTER (WHERE is_kill),
		       $3 * COUNT(*) FILTER (WHERE is_knock),
		       $3 * COALESCE(MAX(distance) FILTER (WHERE is_kill), 0),
		       $3 * SUM(distance),
		       $3 * COUNT(*),
		       now()
		FROM weapon_kill_events
		WHERE match_id = $1 AND attacker_name <> ''
		GROUP BY attacker_name, weapon_category
		ON CONFLICT (player_name, match_class, weapon_category) DO UPDATE SET
			kills          = player_weapon_stats.kills + EXCLUDED.kills,
			knocks         = player_weapon_stats.knocks + EXCLUDED.knocks,
			longest_kill   = GREATEST(player_weapon_stats.longest_kill, EXCLUDED.longest_kill),
			total_distance = player_weapon_stats.total_distance + EXCLUDED.total_distance,
			events         = player_weapon_stats.events + EXCLUDED.events,
			updated_at     = now()`,
		matchID, class, sign)
	if err != nil {
		return fmt.Errorf("aggregating weapon stats for match %s class %s: %w", matchID, class, err)
	}
	return nil
}

func aggregateAdvanced(ctx context.Context, tx pgx.Tx, matchID, class string, sign int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO player_advanced_career_stats (
			player_name, match_class, matches,
			killsteals, throwable_damage, damage_received,
			heals_used, boosts_used, throwables_used, smokes_thrown,
			updated_at
		)
		SELECT player_name, $2, $3::int,
		       $3 * COALESCE(killsteals, 0), $3 * COALESCE(throwable_damage, 0), $3 * COALESCE(damage_received, 0),
		       $3 * COALESCE(heals_used, 0), $3 * COALESCE(boosts_used, 0),
		       $3 * COALESCE(throwables_used, 0), $3 * COALESCE(smokes_thrown, 0),
		       now()
		FROM match_summaries
		WHERE match_id = $1
		ON CONFLICT (player_name, match_class) DO UPDATE SET
			matches          = player_advanced_career_stats.matches + EXCLUDED.matches,
			killsteals       = player_advanced_career_stats.killsteals + EXCLUDED.killsteals,
			throwable_damage = player_advanced_career_stats.throwable_damage + EXCLUDED.throwable_damage,
			damage_received  = player_advanced_career_stats.damage_received + EXCLUDED.damage_received,
			heals_used       = player_advanced_career_stats.heals_used + EXCLUDED.heals_used,
			boosts_used      = player_advanced_career_stats.boosts_used + EXCLUDED.boosts_used,
			throwables_used  = player_advanced_career_stats.throwables_used + EXCLUDED.throwables_used,
			smokes_thrown    = player_advanced_career_stats.smokes_thrown + EXCLUDED.smokes_thrown,
			updated_at       = now()`,
		matchID, class, sign)
	if err != nil {
		return fmt.Errorf("aggregating advanced stats for match %s class %s: %w", matchID, class, err)
	}
	return nil
}

// deaggregateMatch is AggregateMatch run backwards: subtract the match
// from the career tables and clear its flag in one transaction. A match
// whose flag is already clear contributes nothing, so replays are safe.
func (db *postgresDB) deaggregateMatch(ctx context.Context, matchID, matchClass string) (bool, error) {
	removed := false
	err := db.withMatchLock(ctx, matchID, func(tx pgx.Tx) error {
		var done bool
		err := tx.QueryRow(ctx,
			`SELECT stats_aggregated FROM matches WHERE match_id = $1 FOR UPDATE`,
			matchID).Scan(&done)
		if err != nil {
			return fmt.Errorf("checking aggregation flag for match %s: %w", matchID, err)
		}
		if !done {
			log.Debug().Str("match_id", matchID).Msg("match not aggregated, nothing to subtract")
			return nil
		}

		for _, class := range []string{matchClass, model.MatchClassAll} {
			if err := applyMatchStats(ctx, tx, matchID, class, -1); err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx,
			`UPDATE matches
			 SET stats_aggregated = false, stats_aggregated_at = NULL, updated_at = now()
			 WHERE match_id = $1`, matchID)
		if err != nil {
			return fmt.Errorf("clearing aggregation flag for match %s: %w", matchID, err)
		}
		removed = true
		return nil
	})
	return removed, err
}

func (db *postgresDB) ResetAggregatedSince(ctx context.Context, days int) (int64, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT match_id, game_type FROM matches
		WHERE stats_aggregated
		  AND match_datetime >= now() - make_interval(days => $1)`,
		days)
	if err != nil {
		return 0, fmt.Errorf("loading aggregated matches in window: %w", err)
	}
	defer rows.Close()

	type candidate struct{ matchID, gameType string }
	var pending []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.matchID, &c.gameType); err != nil {
			return 0, err
		}
		pending = append(pending, c)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	rows.Close()

	var reset int64
	for _, c := range pending {
		removed, err := db.deaggregateMatch(ctx, c.matchID, pubg.MatchClass(c.gameType))
		if err != nil {
			return reset, fmt.Errorf("deaggregating match %s: %w", c.matchID, err)
		}
		if removed {
			reset++
		}
	}
	return reset, nil
}

func (db *postgresDB) RequestBackfill(ctx context.Context, playerName string, windowDays int) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO player_backfill_status (player_name, window_days, status, requested_at)
		VALUES ($1, $2, 'pending', now())
		ON CONFLICT (player_name) DO UPDATE SET
			window_days = EXCLUDED.window_days,
			status = 'pending',
			requested_at = now(),
			completed_at = NULL`,
		playerName, windowDays)
	if err != nil {
		return fmt.Errorf("requesting backfill for %s: %w", playerName, err)
	}
	return nil
}

func (db *postgresDB) SetBackfillStatus(ctx context.Context, playerName, status string) error {
	_, err := db.pool.Exec(ctx, `
		UPDATE player_backfill_status
		SET status = $2,
		    completed_at = CASE WHEN $2 IN ('done', 'failed') THEN now() ELSE NULL END
		WHERE player_name = $1`,
		playerName, status)
	if err != nil {
		return fmt.Errorf("setting backfill status for %s: %w", playerName, err)
	}
	return nil
}

func (db *postgresDB) ListBackfills(ctx context.Context) ([]model.BackfillStatus, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT player_name, window_days, status, requested_at, completed_at
		FROM player_backfill_status
		ORDER BY requested_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing backfills: %w", err)
	}
	defer rows.Close()

	var out []model.BackfillStatus
	for rows.Next() {
		var b model.BackfillStatus
		if err := rows.Scan(&b.PlayerName, &b.WindowDays, &b.Status, &b.RequestedAt, &b.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
