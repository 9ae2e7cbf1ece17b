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

// Tournament context constants.
const (
	// minTeamsForRound is the floor under which a lobby result is treated
	// as a remake candidate rather than a scheduled round.
	minTeamsForRound = 8
	// slotTolerance bounds how far a match may start from its scheduled
	// slot and still bind to it.
	slotTolerance = 30 * time.Minute
)

// TournamentStore serves the tournament lane: sampling inputs for
// discovery and context assignment for the summary worker.
type TournamentStore interface {
	ActiveLobbies(ctx context.Context) ([]model.Lobby, error)
	// PrimarySampleRosters returns up to limit roster entries for one
	// lobby, ascending sample_priority with a stable player_name
	// tie-break, restricted to primary_sample, active, preferred_team.
	PrimarySampleRosters(ctx context.Context, lobby model.Lobby, limit int) ([]model.RosterEntry, error)
	// AssignTournamentContext runs the §validation ladder for a match and
	// persists the outcome, including any admin override.
	AssignTournamentContext(ctx context.Context, matchID string, matchTime time.Time, mapName string, participants []string) (model.TournamentContext, error)
}

// RosterMatch is one participant resolved to their preferred active team.
type RosterMatch struct {
	PlayerName string
	TeamRef    int64
	Division   string
	GroupName  *string
}

// ContextInputs is everything the pure inference step needs.
type ContextInputs struct {
	MatchTime    time.Time
	MapName      string
	Participants []string
	Roster       map[string]RosterMatch
	Rounds       []model.TournamentRound
	Slots        []model.ScheduledSlot
}

// InferTournamentContext applies the validation ladder: roster
// intersection, division/group span, team count, round window, slot
// binding. It is pure so the ladder is testable without a database.
func InferTournamentContext(in ContextInputs) model.TournamentContext {
	tc := model.TournamentContext{}

	var matched []RosterMatch
	for _, name := range in.Participants {
		if rm, ok := in.Roster[name]; ok {
			matched = append(matched, rm)
		} else {
			tc.UnmatchedPlayerCount++
		}
	}

	if len(matched) == 0 {
		tc.ValidationStatus = model.ValidationNotTournament
		return tc
	}

	// Collect the spanned (division, group) set; more than one lobby means
	// the match cannot belong to the tournament.
	type lobbyKey struct {
		division string
		group    string
	}
	lobbies := make(map[lobbyKey]bool)
	teams := make(map[int64]bool)
	for _, rm := range matched {
		key := lobbyKey{division: rm.Division}
		if rm.GroupName != nil {
			key.group = *rm.GroupName
		}
		lobbies[key] = true
		teams[rm.TeamRef] = true
	}
	tc.TeamCount = len(teams)

	if len(lobbies) != 1 {
		tc.ValidationStatus = model.ValidationMixedDivision
		tc.IsTournamentMatch = false
		return tc
	}

	tc.IsTournamentMatch = true
	if tc.TeamCount < minTeamsForRound {
		tc.ValidationStatus = model.ValidationRemake
		return tc
	}

	var round *model.TournamentRound
	for i := range in.Rounds {
		r := in.Rounds[i]
		if !in.MatchTime.Before(r.StartDate) && !in.MatchTime.After(r.EndDate) {
			round = &r
			break
		}
	}
	if round == nil {
		tc.ValidationStatus = model.ValidationUnscheduled
		return tc
	}
	tc.RoundRef = &round.RoundRef

	// Bind the closest same-map slot inside the tolerance.
	var best *model.ScheduledSlot
	var bestDelta time.Duration
	for i := range in.Slots {
		s := in.Slots[i]
		if s.RoundRef != round.RoundRef || s.MapName != in.MapName {
			continue
		}
		delta := in.MatchTime.Sub(s.ScheduledDatetime)
		if delta < 0 {
			delta = -delta
		}
		if delta > slotTolerance {
			continue
		}
		if best == nil || delta < bestDelta {
			best, bestDelta = &s, delta
		}
	}
	if best == nil {
		tc.ValidationStatus = model.ValidationUnscheduled
		return tc
	}
	tc.ScheduleSlotRef = &best.SlotRef
	tc.ValidationStatus = model.ValidationConfirmed
	return tc
}

func (db *postgresDB) ActiveLobbies(ctx context.Context) ([]model.Lobby, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT DISTINCT division, group_name
		FROM teams
		WHERE active
		ORDER BY division, group_name`)
	if err != nil {
		return nil, fmt.Errorf("loading active lobbies: %w", err)
	}
	defer rows.Close()

	var out []model.Lobby
	for rows.Next() {
		var l model.Lobby
		if err := rows.Scan(&l.Division, &l.GroupName); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (db *postgresDB) PrimarySampleRosters(ctx context.Context, lobby model.Lobby, limit int) ([]model.RosterEntry, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT tp.id, tp.player_name, tp.team_ref, tp.preferred_team,
		       tp.primary_sample, tp.sample_priority, tp.active, tp.created_at
		FROM tournament_players tp
		JOIN teams t ON t.team_ref = tp.team_ref
		WHERE t.active AND t.division = $1 AND t.group_name IS NOT DISTINCT FROM $2
		  AND tp.active AND tp.primary_sample AND tp.preferred_team
		ORDER BY tp.sample_priority, tp.player_name
		LIMIT $3`,
		lobby.Division, lobby.GroupName, limit)
	if err != nil {
		return nil, fmt.Errorf("loading sample rosters for %s/%v: %w", lobby.Division, lobby.GroupName, err)
	}
	defer rows.Close()

	var out []model.RosterEntry
	for rows.Next() {
		var e model.RosterEntry
		err := rows.Scan(&e.ID, &e.PlayerName, &e.TeamRef, &e.PreferredTeam,
			&e.PrimarySample, &e.SamplePriority, &e.Active, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (db *postgresDB) AssignTournamentContext(ctx context.Context, matchID string, matchTime time.Time, mapName string, participants []string) (model.TournamentContext, error) {
	roster, err := db.rosterLookup(ctx, participants)
	if err != nil {
		return model.TournamentContext{}, err
	}

	inputs := ContextInputs{
		MatchTime:    matchTime,
		MapName:      mapName,
		Participants: participants,
		Roster:       roster,
	}

	// The round and slot tables are only consulted when the match survived
	// the lobby check, but loading them for the single spanned lobby keeps
	// the inference pure.
	if lobby, ok := singleLobby(roster); ok {
		if inputs.Rounds, err = db.roundsForLobby(ctx, lobby); err != nil {
			return model.TournamentContext{}, err
		}
		if inputs.Slots, err = db.slotsForLobby(ctx, lobby); err != nil {
			return model.TournamentContext{}, err
		}
	}

	tc := InferTournamentContext(inputs)

	if err := db.applyOverride(ctx, matchID, &tc); err != nil {
		return tc, err
	}
	if err := db.ApplyTournamentContext(ctx, matchID, tc); err != nil {
		return tc, err
	}

	log.Info().
		Str("match_id", matchID).
		Str("validation_status", tc.ValidationStatus).
		Int("team_count", tc.TeamCount).
		Int("unmatched_players", tc.UnmatchedPlayerCount).
		Bool("is_tournament", tc.IsTournamentMatch).
		Msg("tournament context assigned")
	return tc, nil
}

func (db *postgresDB) rosterLookup(ctx context.Context, names []string) (map[string]RosterMatch, error) {
	if len(names) == 0 {
		return map[string]RosterMatch{}, nil
	}
	rows, err := db.pool.Query(ctx, `
		SELECT tp.player_name, t.team_ref, t.division, t.group_name
		FROM tournament_players tp
		JOIN teams t ON t.team_ref = tp.team_ref
		WHERE tp.active AND tp.preferred_team AND t.active
		  AND tp.player_name = ANY($1)`, names)
	if err != nil {
		return nil, fmt.Errorf("roster lookup: %w", err)
	}
	defer rows.Close()

	out := make(map[string]RosterMatch)
	for rows.Next() {
		var rm RosterMatch
		if err := rows.Scan(&rm.PlayerName, &rm.TeamRef, &rm.Division, &rm.GroupName); err != nil {
			return nil, err
		}
		out[rm.PlayerName] = rm
	}
	return out, rows.Err()
}

func singleLobby(roster map[string]RosterMatch) (model.Lobby, bool) {
	var lobby model.Lobby
	seen := false
	for _, rm := range roster {
		l := model.Lobby{Division: rm.Division, GroupName: rm.GroupName}
		if !seen {
			lobby, seen = l, true
			continue
		}
		if lobby.Division != l.Division || !equalGroup(lobby.GroupName, l.GroupName) {
			return model.Lobby{}, false
		}
	}
	return lobby, seen
}

func equalGroup(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (db *postgresDB) roundsForLobby(ctx context.Context, lobby model.Lobby) ([]model.TournamentRound, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT round_ref, division, group_name, round_number, start_date, end_date
		FROM tournament_rounds
		WHERE division = $1 AND group_name IS NOT DISTINCT FROM $2
		ORDER BY round_number`,
		lobby.Division, lobby.GroupName)
	if err != nil {
		return nil, fmt.Errorf("loading rounds: %w", err)
	}
	defer rows.Close()

	var out []model.TournamentRound
	for rows.Next() {
		var r model.TournamentRound
		if err := rows.Scan(&r.RoundRef, &r.Division, &r.GroupName, &r.RoundNumber, &r.StartDate, &r.EndDate); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *postgresDB) slotsForLobby(ctx context.Context, lobby model.Lobby) ([]model.ScheduledSlot, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT s.slot_ref, s.round_ref, s.scheduled_datetime, s.map_name
		FROM tournament_scheduled_matches s
		JOIN tournament_rounds r ON r.round_ref = s.round_ref
		WHERE r.division = $1 AND r.group_name IS NOT DISTINCT FROM $2
		ORDER BY s.scheduled_datetime`,
		lobby.Division, lobby.GroupName)
	if err != nil {
		return nil, fmt.Errorf("loading scheduled slots: %w", err)
	}
	defer rows.Close()

	var out []model.ScheduledSlot
	for rows.Next() {
		var s model.ScheduledSlot
		if err := rows.Scan(&s.SlotRef, &s.RoundRef, &s.ScheduledDatetime, &s.MapName); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// applyOverride replaces inferred fields one-to-one with any admin
// correction recorded for the match.
func (db *postgresDB) applyOverride(ctx context.Context, matchID string, tc *model.TournamentContext) error {
	var o model.MatchOverride
	err := db.pool.QueryRow(ctx, `
		SELECT match_id, round_ref, schedule_slot_ref, validation_status, is_tournament_match
		FROM tournament_match_overrides
		WHERE match_id = $1`, matchID).
		Scan(&o.MatchID, &o.RoundRef, &o.ScheduleSlotRef, &o.ValidationStatus, &o.IsTournament)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading override for match %s: %w", matchID, err)
	}

	if o.RoundRef != nil {
		tc.RoundRef = o.RoundRef
	}
	if o.ScheduleSlotRef != nil {
		tc.ScheduleSlotRef = o.ScheduleSlotRef
	}
	if o.ValidationStatus != nil {
		tc.ValidationStatus = *o.ValidationStatus
	}
	if o.IsTournament != nil {
		tc.IsTournamentMatch = *o.IsTournament
	}
	log.Info().Str("match_id", matchID).Msg("admin override applied to tournament context")
	return nil
}
