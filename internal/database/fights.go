package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"skirmish/internal/model"
)

// FightStore persists classified team fights. A fight and its
// participant rows commit atomically; participants never exist without
// their fight.
type FightStore interface {
	// PurgeFights removes a match's fights ahead of reprocessing.
	PurgeFights(ctx context.Context, matchID string) error
	InsertFight(ctx context.Context, fight *model.Fight) error
	FightsByMatch(ctx context.Context, matchID string) ([]model.Fight, error)
	// RefreshCombatability rebuilds the team combatability rollup view.
	RefreshCombatability(ctx context.Context) error
}

func (db *postgresDB) PurgeFights(ctx context.Context, matchID string) error {
	return db.withMatchLock(ctx, matchID, func(tx pgx.Tx) error {
		// fight_participants rows follow via ON DELETE CASCADE.
		if _, err := tx.Exec(ctx, `DELETE FROM team_fights WHERE match_id = $1`, matchID); err != nil {
			return fmt.Errorf("purging fights for match %s: %w", matchID, err)
		}
		return nil
	})
}

func (db *postgresDB) InsertFight(ctx context.Context, fight *model.Fight) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning fight transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	teamOutcomes := make(map[string]string, len(fight.TeamOutcomes))
	for team, outcome := range fight.TeamOutcomes {
		teamOutcomes[fmt.Sprint(team)] = outcome
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO team_fights (
			match_id, started_at, ended_at, duration_seconds,
			team_ids, primary_team_a, primary_team_b, third_party_teams,
			center_x, center_y, spread_radius,
			total_knocks, total_kills, total_damage, damage_events, attack_events,
			outcome, winning_team, losing_team, team_outcomes, fight_reason
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		RETURNING id`,
		fight.MatchID, fight.StartedAt, fight.EndedAt, fight.DurationSeconds,
		fight.TeamIDs, fight.PrimaryTeamA, fight.PrimaryTeamB, fight.ThirdPartyTeams,
		fight.CenterX, fight.CenterY, fight.SpreadRadius,
		fight.TotalKnocks, fight.TotalKills, fight.TotalDamage, fight.DamageEvents, fight.AttackEvents,
		fight.Outcome, fight.WinningTeam, fight.LosingTeam, teamOutcomes, fight.FightReason,
	).Scan(&fight.ID)
	if err != nil {
		return fmt.Errorf("inserting fight for match %s: %w", fight.MatchID, err)
	}

	for i := range fight.Participants {
		fight.Participants[i].FightID = fight.ID
		fight.Participants[i].MatchID = fight.MatchID
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"fight_participants"},
		[]string{"fight_id", "match_id", "player_name", "account_id", "team_id",
			"knocks", "kills", "damage_dealt", "damage_taken", "attacks",
			"mean_x", "mean_y",
			"was_knocked", "was_killed", "survived", "knocked_at", "killed_at"},
		pgx.CopyFromSlice(len(fight.Participants), func(i int) ([]any, error) {
			p := fight.Participants[i]
			return []any{p.FightID, p.MatchID, p.PlayerName, p.AccountID, p.TeamID,
				p.Knocks, p.Kills, p.DamageDealt, p.DamageTaken, p.Attacks,
				p.MeanX, p.MeanY,
				p.WasKnocked, p.WasKilled, p.Survived, p.KnockedAt, p.KilledAt}, nil
		}))
	if err != nil {
		return fmt.Errorf("inserting participants for fight %d: %w", fight.ID, err)
	}

	return tx.Commit(ctx)
}

func (db *postgresDB) FightsByMatch(ctx context.Context, matchID string) ([]model.Fight, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, match_id, started_at, ended_at, duration_seconds,
		       team_ids, primary_team_a, primary_team_b, third_party_teams,
		       center_x, center_y, spread_radius,
		       total_knocks, total_kills, total_damage, damage_events, attack_events,
		       outcome, winning_team, losing_team, team_outcomes, fight_reason
		FROM team_fights
		WHERE match_id = $1
		ORDER BY started_at`, matchID)
	if err != nil {
		return nil, fmt.Errorf("loading fights for match %s: %w", matchID, err)
	}
	defer rows.Close()

	var fights []model.Fight
	for rows.Next() {
		var f model.Fight
		var teamOutcomes map[string]string
		err := rows.Scan(
			&f.ID, &f.MatchID, &f.StartedAt, &f.EndedAt, &f.DurationSeconds,
			&f.TeamIDs, &f.PrimaryTeamA, &f.PrimaryTeamB, &f.ThirdPartyTeams,
			&f.CenterX, &f.CenterY, &f.SpreadRadius,
			&f.TotalKnocks, &f.TotalKills, &f.TotalDamage, &f.DamageEvents, &f.AttackEvents,
			&f.Outcome, &f.WinningTeam, &f.LosingTeam, &teamOutcomes, &f.FightReason,
		)
		if err != nil {
			return nil, err
		}
		f.TeamOutcomes = make(map[int]string, len(teamOutcomes))
		for team, outcome := range teamOutcomes {
			var ref int
			if _, err := fmt.Sscanf(team, "%d", &ref); err == nil {
				f.TeamOutcomes[ref] = outcome
			}
		}
		fights = append(fights, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range fights {
		if err := db.loadFightParticipants(ctx, &fights[i]); err != nil {
			return nil, err
		}
	}
	return fights, nil
}

func (db *postgresDB) loadFightParticipants(ctx context.Context, fight *model.Fight) error {
	rows, err := db.pool.Query(ctx, `
		SELECT id, fight_id, match_id, player_name, account_id, team_id,
		       knocks, kills, damage_dealt, damage_taken, attacks,
		       mean_x, mean_y,
		       was_knocked, was_killed, survived, knocked_at, killed_at
		FROM fight_participants
		WHERE fight_id = $1
		ORDER BY team_id, player_name`, fight.ID)
	if err != nil {
		return fmt.Errorf("loading participants for fight %d: %w", fight.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.FightParticipant
		err := rows.Scan(
			&p.ID, &p.FightID, &p.MatchID, &p.PlayerName, &p.AccountID, &p.TeamID,
			&p.Knocks, &p.Kills, &p.DamageDealt, &p.DamageTaken, &p.Attacks,
			&p.MeanX, &p.MeanY,
			&p.WasKnocked, &p.WasKilled, &p.Survived, &p.KnockedAt, &p.KilledAt,
		)
		if err != nil {
			return err
		}
		fight.Participants = append(fight.Participants, p)
	}
	return rows.Err()
}

func (db *postgresDB) RefreshCombatability(ctx context.Context) error {
	_, err := db.pool.Exec(ctx,
		`REFRESH MATERIALIZED VIEW CONCURRENTLY team_combatability_metrics`)
	if err != nil {
		return fmt.Errorf("refreshing combatability metrics: %w", err)
	}
	return nil
}
