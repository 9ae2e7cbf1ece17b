package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ServicesConfig holds the per-service scheduling and sampling options.
// The file is decoded strictly: any option the services do not recognize
// aborts startup.
type ServicesConfig struct {
	MainDiscovery       MainDiscoveryConfig       `json:"main_discovery"`
	TournamentDiscovery TournamentDiscoveryConfig `json:"tournament_discovery"`
	Aggregation         AggregationConfig         `json:"aggregation"`
}

// MainDiscoveryConfig drives the 10-minute tracked-player scan.
type MainDiscoveryConfig struct {
	Interval    int `json:"interval"`     // Seconds between runs
	PlayerLimit int `json:"player_limit"` // Tracked players fetched per run
}

func (c MainDiscoveryConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// TournamentDiscoveryConfig drives the fast lane.
type TournamentDiscoveryConfig struct {
	Interval         int      `json:"interval"`    // Seconds between runs
	SampleSize       int      `json:"sample_size"` // Rosters sampled per lobby
	MatchType        []string `json:"match_type"`  // Allowed upstream match types
	ScheduleEnabled  bool     `json:"schedule_enabled"`
	ScheduleDays     []int    `json:"schedule_days"`  // 0=Mon .. 6=Sun
	ScheduleStart    string   `json:"schedule_start"` // HH:MM
	ScheduleEnd      string   `json:"schedule_end"`   // HH:MM
	AdaptiveSampling bool     `json:"adaptive_sampling"`
	CutoffDate       string   `json:"cutoff_date"` // YYYY-MM-DD, matches before it are ignored
}

func (c TournamentDiscoveryConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// Cutoff parses the configured cutoff date. A zero time means no cutoff.
func (c TournamentDiscoveryConfig) Cutoff() (time.Time, error) {
	if c.CutoffDate == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", c.CutoffDate)
}

// AggregationConfig drives the career stats worker.
type AggregationConfig struct {
	BatchSize           int `json:"batch_size"`
	AggregationInterval int `json:"aggregation_interval"` // Seconds between poll cycles
	BackfillWindow      int `json:"backfill_window"`      // Days reset by a backfill request
}

func (c AggregationConfig) IntervalDuration() time.Duration {
	return time.Duration(c.AggregationInterval) * time.Second
}

// DefaultServices returns the built-in service options used when no file is
// configured.
func DefaultServices() ServicesConfig {
	return ServicesConfig{
		MainDiscovery: MainDiscoveryConfig{
			Interval:    600,
			PlayerLimit: 500,
		},
		TournamentDiscovery: TournamentDiscoveryConfig{
			Interval:         60,
			SampleSize:       6,
			MatchType:        []string{"competitive", "official", "custom-esports"},
			ScheduleEnabled:  false,
			AdaptiveSampling: true,
		},
		Aggregation: AggregationConfig{
			BatchSize:           25,
			AggregationInterval: 300,
			BackfillWindow:      180,
		},
	}
}

// LoadServices reads and strictly decodes the services file. An empty path
// yields the defaults.
func LoadServices(path string) (ServicesConfig, error) {
	sc := DefaultServices()
	if path == "" {
		return sc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("error reading services config: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sc); err != nil {
		return sc, fmt.Errorf("error parsing services config %s: %w", path, err)
	}

	if err := sc.Validate(); err != nil {
		return sc, fmt.Errorf("invalid services config %s: %w", path, err)
	}
	return sc, nil
}

// Validate rejects option values the services cannot honor.
func (sc ServicesConfig) Validate() error {
	if sc.MainDiscovery.Interval <= 0 {
		return fmt.Errorf("main_discovery.interval must be positive")
	}
	if sc.MainDiscovery.PlayerLimit <= 0 {
		return fmt.Errorf("main_discovery.player_limit must be positive")
	}

	td := sc.TournamentDiscovery
	if td.Interval <= 0 {
		return fmt.Errorf("tournament_discovery.interval must be positive")
	}
	if td.SampleSize <= 0 {
		return fmt.Errorf("tournament_discovery.sample_size must be positive")
	}
	if len(td.MatchType) == 0 {
		return fmt.Errorf("tournament_discovery.match_type must not be empty")
	}
	for _, d := range td.ScheduleDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("tournament_discovery.schedule_days entry %d out of range 0..6", d)
		}
	}
	if td.ScheduleEnabled {
		if _, err := ParseClock(td.ScheduleStart); err != nil {
			return fmt.Errorf("tournament_discovery.schedule_start: %w", err)
		}
		if _, err := ParseClock(td.ScheduleEnd); err != nil {
			return fmt.Errorf("tournament_discovery.schedule_end: %w", err)
		}
	}
	if _, err := td.Cutoff(); err != nil {
		return fmt.Errorf("tournament_discovery.cutoff_date: %w", err)
	}

	if sc.Aggregation.BatchSize <= 0 {
		return fmt.Errorf("aggregation.batch_size must be positive")
	}
	if sc.Aggregation.AggregationInterval <= 0 {
		return fmt.Errorf("aggregation.aggregation_interval must be positive")
	}
	if sc.Aggregation.BackfillWindow <= 0 {
		return fmt.Errorf("aggregation.backfill_window must be positive")
	}
	return nil
}

// ParseClock converts an HH:MM string into minutes from midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
