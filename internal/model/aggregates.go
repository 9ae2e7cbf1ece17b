package model

import "time"

// Match-type classes for career aggregation. Every match contributes to
// "all" plus exactly one of ranked/normal.
const (
	MatchClassRanked = "ranked"
	MatchClassNormal = "normal"
	MatchClassAll    = "all"
)

// PlayerDamageStats rolls damage-event aggregates forward per
// (player, match class).
type PlayerDamageStats struct {
	PlayerName       string    `json:"player_name"`
	MatchClass       string    `json:"match_class"`
	Matches          int       `json:"matches"`
	TotalDamageDealt float64   `json:"total_damage_dealt"`
	TotalDamageTaken float64   `json:"total_damage_taken"`
	DamageEventCount int       `json:"damage_event_count"`
	HeadshotDamage   float64   `json:"headshot_damage"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PlayerWeaponStats rolls weapon-kill aggregates forward per
// (player, match class, weapon category).
type PlayerWeaponStats struct {
	PlayerName     string    `json:"player_name"`
	MatchClass     string    `json:"match_class"`
	WeaponCategory string    `json:"weapon_category"`
	Kills          int       `json:"kills"`
	Knocks         int       `json:"knocks"`
	LongestKill    float64   `json:"longest_kill"` // Meters
	TotalDistance  float64   `json:"total_distance"`
	Events         int       `json:"events"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PlayerAdvancedCareerStats rolls the enhanced summary columns forward.
type PlayerAdvancedCareerStats struct {
	PlayerName      string    `json:"player_name"`
	MatchClass      string    `json:"match_class"`
	Matches         int       `json:"matches"`
	Killsteals      int       `json:"killsteals"`
	ThrowableDamage float64   `json:"throwable_damage"`
	DamageReceived  float64   `json:"damage_received"`
	HealsUsed       int       `json:"heals_used"`
	BoostsUsed      int       `json:"boosts_used"`
	ThrowablesUsed  int       `json:"throwables_used"`
	SmokesThrown    int       `json:"smokes_thrown"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BackfillStatus tracks retroactive population when a tracked player is
// added.
type BackfillStatus struct {
	PlayerName  string     `json:"player_name"`
	WindowDays  int        `json:"window_days"`
	Status      string     `json:"status"` // pending | running | done | failed
	RequestedAt time.Time  `json:"requested_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
