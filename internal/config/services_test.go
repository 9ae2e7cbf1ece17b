package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeServicesFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "services.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing services file: %v", err)
	}
	return path
}

func TestLoadServicesDefaults(t *testing.T) {
	sc, err := LoadServices("")
	if err != nil {
		t.Fatalf("LoadServices(\"\") returned error: %v", err)
	}
	if sc.MainDiscovery.Interval != 600 || sc.MainDiscovery.PlayerLimit != 500 {
		t.Errorf("unexpected main discovery defaults: %+v", sc.MainDiscovery)
	}
	if sc.TournamentDiscovery.SampleSize != 6 {
		t.Errorf("expected default sample_size 6, got %d", sc.TournamentDiscovery.SampleSize)
	}
	if len(sc.TournamentDiscovery.MatchType) != 3 {
		t.Errorf("expected 3 default match types, got %v", sc.TournamentDiscovery.MatchType)
	}
}

func TestLoadServicesOverrides(t *testing.T) {
	path := writeServicesFile(t, `{
		"tournament_discovery": {
			"interval": 30,
			"sample_size": 8,
			"match_type": ["competitive"],
			"schedule_enabled": true,
			"schedule_days": [4, 5, 6],
			"schedule_start": "18:00",
			"schedule_end": "23:30",
			"adaptive_sampling": true,
			"cutoff_date": "2026-02-01"
		}
	}`)

	sc, err := LoadServices(path)
	if err != nil {
		t.Fatalf("LoadServices returned error: %v", err)
	}
	td := sc.TournamentDiscovery
	if td.Interval != 30 || td.SampleSize != 8 {
		t.Errorf("overrides not applied: %+v", td)
	}
	if !td.ScheduleEnabled || len(td.ScheduleDays) != 3 {
		t.Errorf("schedule not applied: %+v", td)
	}
	cutoff, err := td.Cutoff()
	if err != nil {
		t.Fatalf("Cutoff: %v", err)
	}
	if cutoff.Year() != 2026 || cutoff.Month() != 2 {
		t.Errorf("unexpected cutoff %v", cutoff)
	}
	// Untouched sections keep their defaults.
	if sc.Aggregation.BatchSize != 25 {
		t.Errorf("aggregation defaults lost: %+v", sc.Aggregation)
	}
}

func TestLoadServicesRejectsUnknownOption(t *testing.T) {
	path := writeServicesFile(t, `{
		"tournament_discovery": {"interval": 60, "sampel_size": 6}
	}`)

	_, err := LoadServices(path)
	if err == nil {
		t.Fatal("expected error for unrecognized option, got nil")
	}
	if !strings.Contains(err.Error(), "sampel_size") {
		t.Errorf("error should name the unknown option, got: %v", err)
	}
}

func TestLoadServicesRejectsUnknownSection(t *testing.T) {
	path := writeServicesFile(t, `{"rotation": {"interval": 60}}`)
	if _, err := LoadServices(path); err == nil {
		t.Fatal("expected error for unrecognized section, got nil")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*ServicesConfig)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(sc *ServicesConfig) {},
			wantErr: "",
		},
		{
			name: "zero interval",
			mutate: func(sc *ServicesConfig) {
				sc.TournamentDiscovery.Interval = 0
			},
			wantErr: "interval",
		},
		{
			name: "day out of range",
			mutate: func(sc *ServicesConfig) {
				sc.TournamentDiscovery.ScheduleDays = []int{7}
			},
			wantErr: "schedule_days",
		},
		{
			name: "bad clock",
			mutate: func(sc *ServicesConfig) {
				sc.TournamentDiscovery.ScheduleEnabled = true
				sc.TournamentDiscovery.ScheduleStart = "25:99"
				sc.TournamentDiscovery.ScheduleEnd = "23:00"
			},
			wantErr: "schedule_start",
		},
		{
			name: "empty match types",
			mutate: func(sc *ServicesConfig) {
				sc.TournamentDiscovery.MatchType = nil
			},
			wantErr: "match_type",
		},
		{
			name: "bad cutoff",
			mutate: func(sc *ServicesConfig) {
				sc.TournamentDiscovery.CutoffDate = "not-a-date"
			},
			wantErr: "cutoff_date",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc := DefaultServices()
			tc.mutate(&sc)
			err := sc.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	if m, err := ParseClock("18:30"); err != nil || m != 18*60+30 {
		t.Errorf("ParseClock(18:30) = %d, %v", m, err)
	}
	if _, err := ParseClock("24:00"); err == nil {
		t.Error("ParseClock(24:00) should fail")
	}
	if _, err := ParseClock(""); err == nil {
		t.Error("ParseClock(\"\") should fail")
	}
}
