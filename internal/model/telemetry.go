package model

import "time"

// Knock outcomes after lifecycle matching on dBNOId.
const (
	KnockOutcomeKilled  = "killed"
	KnockOutcomeRevived = "revived"
	KnockOutcomeUnknown = "unknown"
)

// Landing is one parachute landing. Coordinates are raw game-world units.
type Landing struct {
	MatchID    string    `json:"match_id"`
	PlayerName string    `json:"player_name"`
	AccountID  string    `json:"account_id"`
	TeamID     int       `json:"team_id"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Z          float64   `json:"z"`
	IsGame     float64   `json:"is_game"` // Upstream phase marker at the event
	MapName    string    `json:"map_name"`
	LandedAt   time.Time `json:"landed_at"`
}

// KillPosition is one kill with both the knock-maker and the finisher
// sub-records. Zone blobs carry the upstream zone-name arrays as JSON.
type KillPosition struct {
	MatchID       string  `json:"match_id"`
	VictimName    string  `json:"victim_name"`
	VictimAccount string  `json:"victim_account"`
	VictimTeamID  int     `json:"victim_team_id"`
	VictimX       float64 `json:"victim_x"`
	VictimY       float64 `json:"victim_y"`
	VictimZ       float64 `json:"victim_z"`

	DBNOID             int64    `json:"dbno_id"` // -1 when the kill had no knock
	DBNOMakerName      string   `json:"dbno_maker_name"`
	DBNOMakerAccount   string   `json:"dbno_maker_account"`
	DBNOMakerTeamID    int      `json:"dbno_maker_team_id"`
	DBNOMakerX         float64  `json:"dbno_maker_x"`
	DBNOMakerY         float64  `json:"dbno_maker_y"`
	DBNOMakerZ         float64  `json:"dbno_maker_z"`
	DBNOMakerZone      []string `json:"dbno_maker_zone"`
	DBNODamageReason   string   `json:"dbno_damage_reason"`
	DBNODamageCategory string   `json:"dbno_damage_category"`
	DBNODamageCauser   string   `json:"dbno_damage_causer"`
	DBNODistance       float64  `json:"dbno_distance"` // Meters

	FinisherName         string    `json:"finisher_name"`
	FinisherAccount      string    `json:"finisher_account"`
	FinisherTeamID       int       `json:"finisher_team_id"`
	FinisherX            float64   `json:"finisher_x"`
	FinisherY            float64   `json:"finisher_y"`
	FinisherZ            float64   `json:"finisher_z"`
	FinisherZone         []string  `json:"finisher_zone"`
	FinishDamageReason   string    `json:"finish_damage_reason"`
	FinishDamageCategory string    `json:"finish_damage_category"`
	FinishDamageCauser   string    `json:"finish_damage_causer"`
	FinishDistance       float64   `json:"finish_distance"` // Meters
	IsSuicide            bool      `json:"is_suicide"`
	VictimInBlueZone     bool      `json:"victim_in_blue_zone"`
	KilledAt             time.Time `json:"killed_at"`
}

// WeaponKillEvent is one knock or kill attributed to a weapon id.
type WeaponKillEvent struct {
	MatchID        string    `json:"match_id"`
	AttackerName   string    `json:"attacker_name"`
	AttackerAccount string   `json:"attacker_account"`
	AttackerTeamID int       `json:"attacker_team_id"`
	VictimName     string    `json:"victim_name"`
	VictimTeamID   int       `json:"victim_team_id"`
	WeaponID       string    `json:"weapon_id"` // Upstream damage causer name
	WeaponCategory string    `json:"weapon_category"`
	DamageType     string    `json:"damage_type"` // Upstream damageTypeCategory
	DamageReason   string    `json:"damage_reason"`
	Distance       float64   `json:"distance"` // Meters
	IsKnock        bool      `json:"is_knock"`
	IsKill         bool      `json:"is_kill"`
	ZonePhase      float64   `json:"zone_phase"` // Upstream isGame marker
	TimeSurvived   float64   `json:"time_survived"` // Victim seconds into the match
	OccurredAt     time.Time `json:"occurred_at"`
}

// DamageEvent is one LogPlayerTakeDamage equivalent. Detail rows are stored
// for tracked players only; aggregates count everyone.
type DamageEvent struct {
	MatchID         string    `json:"match_id"`
	AttackerName    string    `json:"attacker_name"`
	AttackerTeamID  int       `json:"attacker_team_id"`
	VictimName      string    `json:"victim_name"`
	VictimTeamID    int       `json:"victim_team_id"`
	DamageType      string    `json:"damage_type"`
	DamageReason    string    `json:"damage_reason"` // HeadShot, TorsoShot, ...
	DamageCauser    string    `json:"damage_causer"`
	Damage          float64   `json:"damage"`
	AttackerX       float64   `json:"attacker_x"`
	AttackerY       float64   `json:"attacker_y"`
	AttackerZ       float64   `json:"attacker_z"`
	VictimX         float64   `json:"victim_x"`
	VictimY         float64   `json:"victim_y"`
	VictimZ         float64   `json:"victim_z"`
	Distance        float64   `json:"distance"` // Meters
	OccurredAt      time.Time `json:"occurred_at"`
}

// CirclePosition is one sampled (player, game state) row for tracked players.
type CirclePosition struct {
	MatchID            string    `json:"match_id"`
	PlayerName         string    `json:"player_name"`
	TeamID             int       `json:"team_id"`
	X                  float64   `json:"x"`
	Y                  float64   `json:"y"`
	Z                  float64   `json:"z"`
	CircleX            float64   `json:"circle_x"`
	CircleY            float64   `json:"circle_y"`
	CircleRadius       float64   `json:"circle_radius"` // Meters
	DistanceFromCenter float64   `json:"distance_from_center"`
	DistanceFromEdge   float64   `json:"distance_from_edge"` // Negative outside the circle
	InZone             bool      `json:"in_zone"`
	Phase              float64   `json:"phase"`
	ElapsedSeconds     int       `json:"elapsed_seconds"`
	SampledAt          time.Time `json:"sampled_at"`
}

// KnockEvent is one LogPlayerMakeGroggy equivalent with its lifecycle outcome
// and the teammate-proximity snapshot taken at knock time.
type KnockEvent struct {
	MatchID         string  `json:"match_id"`
	DBNOID          int64   `json:"dbno_id"`
	AttackerName    string  `json:"attacker_name"`
	AttackerAccount string  `json:"attacker_account"`
	AttackerTeamID  int     `json:"attacker_team_id"`
	VictimName      string  `json:"victim_name"`
	VictimAccount   string  `json:"victim_account"`
	VictimTeamID    int     `json:"victim_team_id"`
	WeaponID        string  `json:"weapon_id"`
	DamageReason    string  `json:"damage_reason"`
	Distance        float64 `json:"distance"` // Meters
	AttackerX       float64 `json:"attacker_x"`
	AttackerY       float64 `json:"attacker_y"`
	AttackerZ       float64 `json:"attacker_z"`
	VictimX         float64 `json:"victim_x"`
	VictimY         float64 `json:"victim_y"`
	VictimZ         float64 `json:"victim_z"`

	KnockedAt          time.Time `json:"knocked_at"`
	Outcome            string    `json:"outcome"` // killed | revived | unknown
	FinisherName       string    `json:"finisher_name,omitempty"`
	FinisherIsSelf     bool      `json:"finisher_is_self"`
	FinisherIsTeammate bool      `json:"finisher_is_teammate"`
	TimeToFinish       *float64  `json:"time_to_finish,omitempty"` // Seconds

	// Teammate proximity snapshot, knocker's team, ±5 s window
	NearestTeammateDistance *float64  `json:"nearest_teammate_distance,omitempty"`
	MeanTeammateDistance    *float64  `json:"mean_teammate_distance,omitempty"`
	TeammatesWithin50       int       `json:"teammates_within_50"`
	TeammatesWithin100      int       `json:"teammates_within_100"`
	TeammatesWithin200      int       `json:"teammates_within_200"`
	TeamSpreadVariance      *float64  `json:"team_spread_variance,omitempty"`
	AliveTeammates          int       `json:"alive_teammates"`
	TeammateDistances       []float64 `json:"teammate_distances"`
}

// FinishingSummary is the per-(match, player) roll-up of knock events.
type FinishingSummary struct {
	MatchID    string `json:"match_id"`
	PlayerName string `json:"player_name"`
	TeamID     int    `json:"team_id"`

	Knocks           int      `json:"knocks"`
	Converted        int      `json:"converted"` // Knock ended in a kill
	Revived          int      `json:"revived"`
	Unknown          int      `json:"unknown"`
	SelfFinished     int      `json:"self_finished"`
	TeammateFinished int      `json:"teammate_finished"`
	AvgTimeToFinish  *float64 `json:"avg_time_to_finish,omitempty"`

	// Knock distance histogram, meters
	Knocks0To10    int `json:"knocks_0_10"`
	Knocks10To50   int `json:"knocks_10_50"`
	Knocks50To100  int `json:"knocks_50_100"`
	Knocks100To200 int `json:"knocks_100_200"`
	Knocks200Plus  int `json:"knocks_200_plus"`

	// Nearest-teammate support histogram, meters
	SupportUnder25  int `json:"support_under_25"`
	Support25To50   int `json:"support_25_50"`
	Support50To100  int `json:"support_50_100"`
	Support100To200 int `json:"support_100_200"`
	Support200Plus  int `json:"support_200_plus"`
}

// ItemUsage is the per-player Phase 1 item aggregate, written into the
// summary row during roll-up.
type ItemUsage struct {
	PlayerName     string
	HealsUsed      int
	BoostsUsed     int
	ThrowablesUsed int
	SmokesThrown   int
}

// AdvancedStats is the per-player advanced aggregate (Phase 1, rolled up in
// Phase 3).
type AdvancedStats struct {
	PlayerName      string
	Killsteals      int
	ThrowableDamage float64
	DamageReceived  float64
}

// SummaryEnhancement is the per-player Phase 3 roll-up merged into the
// existing summary row. Pointer fields stay untouched when nil.
type SummaryEnhancement struct {
	MatchID    string
	PlayerName string

	Killsteals      int
	HealsUsed       int
	BoostsUsed      int
	ThrowablesUsed  int
	SmokesThrown    int
	ThrowableDamage float64
	DamageReceived  float64

	AvgDistanceFromCenter *float64
	AvgDistanceFromEdge   *float64
	InZoneRatio           *float64
}

// MatchWeaponSummary is the per-(match, player, weapon category) tally.
type MatchWeaponSummary struct {
	MatchID        string `json:"match_id"`
	PlayerName     string `json:"player_name"`
	WeaponCategory string `json:"weapon_category"`
	Knocks         int    `json:"knocks"`
	Kills          int    `json:"kills"`
}

// PositionalMeans carries the all-player running circle averages for the
// summary roll-up.
type PositionalMeans struct {
	PlayerName            string
	AvgDistanceFromCenter float64
	AvgDistanceFromEdge   float64
	InZoneRatio           float64
	Samples               int
}
