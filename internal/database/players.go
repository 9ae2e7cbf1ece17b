package database

import (
	"context"
	"fmt"

	"skirmish/internal/model"
)

// PlayerStore reads the tracked-player roster maintained by the admin flow.
type PlayerStore interface {
	TrackedPlayers(ctx context.Context, limit int) ([]model.TrackedPlayer, error)
	// TrackedPlayerNames returns the set of names whose telemetry detail
	// rows are retained (filtered storage).
	TrackedPlayerNames(ctx context.Context) (map[string]bool, error)
}

func (db *postgresDB) TrackedPlayers(ctx context.Context, limit int) ([]model.TrackedPlayer, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.pool.Query(ctx, `
		SELECT player_id, player_name, platform, tracking_enabled, created_at
		FROM players
		WHERE tracking_enabled
		ORDER BY player_name
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("loading tracked players: %w", err)
	}
	defer rows.Close()

	var out []model.TrackedPlayer
	for rows.Next() {
		var p model.TrackedPlayer
		if err := rows.Scan(&p.PlayerID, &p.PlayerName, &p.Platform, &p.TrackingEnabled, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *postgresDB) TrackedPlayerNames(ctx context.Context) (map[string]bool, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT player_name FROM players WHERE tracking_enabled`)
	if err != nil {
		return nil, fmt.Errorf("loading tracked player names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names[n] = true
	}
	return names, rows.Err()
}
