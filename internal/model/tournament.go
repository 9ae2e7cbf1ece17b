package model

import "time"

// RosterEntry is one tournament player's sampling row. At most one
// preferred team per player name.
type RosterEntry struct {
	ID             int64     `json:"id"`
	PlayerName     string    `json:"player_name"`
	TeamRef        int64     `json:"team_ref"`
	PreferredTeam  bool      `json:"preferred_team"`
	PrimarySample  bool      `json:"primary_sample"`
	SamplePriority int       `json:"sample_priority"` // 1 is best
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Team belongs to a lobby, the (division, group_name) pair. A lobby holds
// at most 16 teams.
type Team struct {
	TeamRef    int64     `json:"team_ref"`
	TeamName   string    `json:"team_name"`
	Division   string    `json:"division"`
	GroupName  *string   `json:"group_name,omitempty"`
	TeamNumber int       `json:"team_number"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Lobby identifies a (division, group) bracket for stratified sampling.
type Lobby struct {
	Division  string
	GroupName *string
}

// TournamentRound is a dated window inside a division/group.
type TournamentRound struct {
	RoundRef    int64     `json:"round_ref"`
	Division    string    `json:"division"`
	GroupName   *string   `json:"group_name,omitempty"`
	RoundNumber int       `json:"round_number"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

// ScheduledSlot is one planned map inside a round.
type ScheduledSlot struct {
	SlotRef           int64     `json:"slot_ref"`
	RoundRef          int64     `json:"round_ref"`
	ScheduledDatetime time.Time `json:"scheduled_datetime"`
	MapName           string    `json:"map_name"`
}

// MatchOverride carries admin corrections that replace inferred context
// fields one-to-one by match id.
type MatchOverride struct {
	MatchID          string  `json:"match_id"`
	RoundRef         *int64  `json:"round_ref,omitempty"`
	ScheduleSlotRef  *int64  `json:"schedule_slot_ref,omitempty"`
	ValidationStatus *string `json:"validation_status,omitempty"`
	IsTournament     *bool   `json:"is_tournament_match,omitempty"`
}

// TournamentContext is the outcome of context assignment for one match.
type TournamentContext struct {
	IsTournamentMatch    bool
	ValidationStatus     string
	RoundRef             *int64
	ScheduleSlotRef      *int64
	TeamCount            int
	UnmatchedPlayerCount int
}
