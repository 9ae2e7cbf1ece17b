package model

import "time"

const (
	// Ledger status
	MatchStatusDiscovered = "discovered"
	MatchStatusProcessing = "processing"
	MatchStatusComplete   = "complete"
	MatchStatusFailed     = "failed"

	// Discovery lanes
	DiscoveredByMain       = "main"
	DiscoveredByTournament = "tournament"

	// Queue priorities
	PriorityNormal = "normal"
	PriorityHigh   = "high"

	// Tournament validation outcomes
	ValidationConfirmed     = "confirmed"
	ValidationUnscheduled   = "unscheduled"
	ValidationRemake        = "remake_candidate"
	ValidationMixedDivision = "mixed_division"
	ValidationNotTournament = "not_tournament"
)

// Match is the unified ledger row. One row per upstream match id, created by
// a discovery service and mutated only through stage transitions afterwards.
type Match struct {
	MatchID            string    `json:"match_id"`
	MapName            string    `json:"map_name"`  // Translated display name (Erangel, not Baltic_Main)
	GameMode           string    `json:"game_mode"` // From gameMode in API (squad-fpp, ...)
	GameType           string    `json:"game_type"` // From matchType in API (competitive, official, ...)
	MatchDatetime      time.Time `json:"match_datetime"`
	Duration           int       `json:"duration"` // Seconds
	TelemetryURL       string    `json:"telemetry_url"`
	TelemetryPath      string    `json:"telemetry_path"`       // Relative path inside the file store
	TelemetrySizeBytes int64     `json:"telemetry_size_bytes"` // Stored gzip size
	Status             string    `json:"status"`
	ErrorMessage       string    `json:"error_message,omitempty"`

	IsTournamentMatch bool   `json:"is_tournament_match"`
	DiscoveredBy      string `json:"discovered_by"`      // main | tournament, first writer wins
	DiscoveryPriority string `json:"discovery_priority"` // normal | high

	// Tournament context, assigned by the summary worker
	RoundRef             *int64 `json:"round_ref,omitempty"`
	ScheduleSlotRef      *int64 `json:"schedule_slot_ref,omitempty"`
	ValidationStatus     string `json:"validation_status"`
	TeamCount            int    `json:"team_count"`
	UnmatchedPlayerCount int    `json:"unmatched_player_count"`

	// Per-stage processing ledger
	SummariesProcessed  bool `json:"summaries_processed"`
	TelemetryDownloaded bool `json:"telemetry_downloaded"`
	LandingsProcessed   bool `json:"landings_processed"`
	KillsProcessed      bool `json:"kills_processed"`
	CirclesProcessed    bool `json:"circles_processed"`
	WeaponsProcessed    bool `json:"weapons_processed"`
	DamageProcessed     bool `json:"damage_processed"`
	FinishingProcessed  bool `json:"finishing_processed"`
	FightsProcessed     bool `json:"fights_processed"`

	StatsAggregated   bool       `json:"stats_aggregated"`
	StatsAggregatedAt *time.Time `json:"stats_aggregated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MatchSummary is one participant's line in a match, keyed (match_id, participant_id).
type MatchSummary struct {
	MatchID       string `json:"match_id"`
	ParticipantID string `json:"participant_id"`
	PlayerID      string `json:"player_id"` // Upstream account id
	PlayerName    string `json:"player_name"`

	// Team placement from the roster join
	TeamID   string `json:"team_id"`
	TeamRank int    `json:"team_rank"`
	Won      bool   `json:"won"`

	// Upstream per-participant stats
	Kills           int     `json:"kills"`
	Assists         int     `json:"assists"`
	DBNOs           int     `json:"dbnos"`
	DamageDealt     float64 `json:"damage_dealt"`
	HeadshotKills   int     `json:"headshot_kills"`
	KillPlace       int     `json:"kill_place"`
	KillStreaks     int     `json:"kill_streaks"`
	LongestKill     float64 `json:"longest_kill"`
	Revives         int     `json:"revives"`
	Heals           int     `json:"heals"`
	Boosts          int     `json:"boosts"`
	WalkDistance    float64 `json:"walk_distance"`
	RideDistance    float64 `json:"ride_distance"`
	SwimDistance    float64 `json:"swim_distance"`
	RoadKills       int     `json:"road_kills"`
	TeamKills       int     `json:"team_kills"`
	TimeSurvived    float64 `json:"time_survived"`
	VehicleDestroys int     `json:"vehicle_destroys"`
	WeaponsAcquired int     `json:"weapons_acquired"`
	WinPlace        int     `json:"win_place"`
	DeathType       string  `json:"death_type"`

	// Enhanced columns filled by the processing engine roll-up
	Killsteals            int      `json:"killsteals"`
	HealsUsed             int      `json:"heals_used"`
	BoostsUsed            int      `json:"boosts_used"`
	ThrowablesUsed        int      `json:"throwables_used"`
	SmokesThrown          int      `json:"smokes_thrown"`
	ThrowableDamage       float64  `json:"throwable_damage"`
	DamageReceived        float64  `json:"damage_received"`
	AvgDistanceFromCenter *float64 `json:"avg_distance_from_center,omitempty"`
	AvgDistanceFromEdge   *float64 `json:"avg_distance_from_edge,omitempty"`
	InZoneRatio           *float64 `json:"in_zone_ratio,omitempty"`

	MapName       string    `json:"map_name"`
	GameMode      string    `json:"game_mode"`
	MatchDatetime time.Time `json:"match_datetime"`
	CreatedAt     time.Time `json:"created_at"`
}

// TrackedPlayer is a player whose match history the main lane pulls.
type TrackedPlayer struct {
	PlayerID        string    `json:"player_id"`
	PlayerName      string    `json:"player_name"`
	Platform        string    `json:"platform"`
	TrackingEnabled bool      `json:"tracking_enabled"`
	CreatedAt       time.Time `json:"created_at"`
}

// RunSummary is what a discovery run reports back.
type RunSummary struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Queued    int `json:"queued"`
}

// BulkInsertResult counts the outcome of a first-writer-wins batch.
type BulkInsertResult struct {
	InsertedCount  int
	DuplicateCount int
	FailureCount   int
}
