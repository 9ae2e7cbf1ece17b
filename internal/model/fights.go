package model

import "time"

// Fight outcome classifiers.
const (
	OutcomeDecisiveWin = "DECISIVE_WIN"
	OutcomeMarginalWin = "MARGINAL_WIN"
	OutcomeDraw        = "DRAW"
	OutcomeThirdParty  = "THIRD_PARTY"

	TeamOutcomeWon  = "WON"
	TeamOutcomeLost = "LOST"
	TeamOutcomeDraw = "DRAW"
)

// Classifier rules, recorded as fight_reason.
const (
	ReasonMultipleCasualties = "multiple_casualties"
	ReasonSingleKillResisted = "single_kill_with_resistance"
	ReasonReciprocalDamage   = "reciprocal_damage"
	ReasonKnockReturnFire    = "knock_with_return_fire"
)

// Fight is one classified engagement. Center coordinates are game-world
// units; spread radius and distances are meters.
type Fight struct {
	ID      int64  `json:"id"`
	MatchID string `json:"match_id"`

	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds float64   `json:"duration_seconds"`

	TeamIDs         []int `json:"team_ids"`
	PrimaryTeamA    int   `json:"primary_team_a"`
	PrimaryTeamB    int   `json:"primary_team_b"`
	ThirdPartyTeams []int `json:"third_party_teams"`

	CenterX      float64 `json:"center_x"`
	CenterY      float64 `json:"center_y"`
	SpreadRadius float64 `json:"spread_radius"`

	TotalKnocks  int     `json:"total_knocks"`
	TotalKills   int     `json:"total_kills"`
	TotalDamage  float64 `json:"total_damage"`
	DamageEvents int     `json:"damage_events"`
	AttackEvents int     `json:"attack_events"`

	Outcome      string         `json:"outcome"`
	WinningTeam  *int           `json:"winning_team,omitempty"`
	LosingTeam   *int           `json:"losing_team,omitempty"`
	TeamOutcomes map[int]string `json:"team_outcomes"` // team_ref -> WON|LOST|DRAW
	FightReason  string         `json:"fight_reason"`

	Participants []FightParticipant `json:"participants,omitempty"`
}

// FightParticipant is one player's line inside a fight. Rows are written in
// the same transaction as their fight and never without it.
type FightParticipant struct {
	ID         int64  `json:"id"`
	FightID    int64  `json:"fight_id"`
	MatchID    string `json:"match_id"`
	PlayerName string `json:"player_name"`
	AccountID  string `json:"account_id"`
	TeamID     int    `json:"team_id"`

	Knocks      int     `json:"knocks"`
	Kills       int     `json:"kills"`
	DamageDealt float64 `json:"damage_dealt"`
	DamageTaken float64 `json:"damage_taken"`
	Attacks     int     `json:"attacks"`

	MeanX float64 `json:"mean_x"`
	MeanY float64 `json:"mean_y"`

	WasKnocked bool       `json:"was_knocked"`
	WasKilled  bool       `json:"was_killed"`
	Survived   bool       `json:"survived"`
	KnockedAt  *time.Time `json:"knocked_at,omitempty"`
	KilledAt   *time.Time `json:"killed_at,omitempty"`
}
