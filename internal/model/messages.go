package model

import "time"

// Stamped is implemented by broker payloads so the gateway can record the
// environment and target queue on every published message.
type Stamped interface {
	StampRouting(environment, queueTarget string)
}

// RoutingMeta is embedded in every queue payload. The gateway fills
// Environment and QueueTarget at publish time; Source and Timestamp are set
// by the producer.
type RoutingMeta struct {
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
	Environment string    `json:"environment"`
	QueueTarget string    `json:"queue_target"`
}

func (m *RoutingMeta) StampRouting(environment, queueTarget string) {
	m.Environment = environment
	m.QueueTarget = queueTarget
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
}

// DiscoveredMessage flows on match.discovered.
type DiscoveredMessage struct {
	MatchID       string    `json:"match_id"`
	MapName       string    `json:"map_name"`
	GameMode      string    `json:"game_mode"`
	GameType      string    `json:"game_type"`
	MatchDatetime time.Time `json:"match_datetime"`
	DiscoveredBy  string    `json:"discovered_by"`
	Priority      string    `json:"priority"`
	RoutingMeta
}

// TelemetryMessage flows on match.telemetry.
type TelemetryMessage struct {
	MatchID          string    `json:"match_id"`
	TelemetryURL     string    `json:"telemetry_url"`
	MapName          string    `json:"map_name"`
	GameMode         string    `json:"game_mode"`
	MatchDatetime    time.Time `json:"match_datetime"`
	ParticipantCount int       `json:"participant_count"`
	WorkerID         string    `json:"worker_id"`
	RoutingMeta
}

// ProcessingMessage flows on match.processing.telemetry.
type ProcessingMessage struct {
	MatchID       string    `json:"match_id"`
	TelemetryPath string    `json:"telemetry_path"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	MapName       string    `json:"map_name"`
	GameMode      string    `json:"game_mode"`
	MatchDatetime time.Time `json:"match_datetime"`
	WorkerID      string    `json:"worker_id"`
	RoutingMeta
}

// StatsMessage nudges the aggregation worker on match.stats. The ledger
// poll remains authoritative; losing one of these is harmless.
type StatsMessage struct {
	MatchID  string `json:"match_id"`
	WorkerID string `json:"worker_id"`
	RoutingMeta
}
