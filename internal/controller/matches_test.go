package controller

import (
	"context"
	"errors"
	"testing"

	"skirmish/internal/model"
)

type fakeLedger struct {
	match *model.Match
}

func (f *fakeLedger) GetMatch(_ context.Context, matchID string) (*model.Match, error) {
	if f.match == nil || f.match.MatchID != matchID {
		return nil, errors.New("match not found")
	}
	return f.match, nil
}

func (f *fakeLedger) ListMatches(_ context.Context, _ string, _ int) ([]model.Match, error) {
	return nil, nil
}

type fakePublisher struct {
	steps []string
}

func (p *fakePublisher) Publish(_ context.Context, _, step string, _ model.Stamped, _ uint8) bool {
	p.steps = append(p.steps, step)
	return true
}

func republishFor(t *testing.T, m *model.Match) (string, *fakePublisher, error) {
	t.Helper()
	pub := &fakePublisher{}
	c := NewMatchController(&fakeLedger{match: m}, pub)
	step, err := c.Republish(context.Background(), m.MatchID)
	return step, pub, err
}

func TestRepublishPicksNextPendingStage(t *testing.T) {
	cases := []struct {
		name  string
		match model.Match
		want  string
	}{
		{
			name:  "nothing processed restarts at discovery",
			match: model.Match{MatchID: "m-1"},
			want:  "discovered",
		},
		{
			name: "summaries done but no telemetry",
			match: model.Match{
				MatchID: "m-2", SummariesProcessed: true,
				TelemetryURL: "https://cdn.example.com/t.json",
			},
			want: "telemetry",
		},
		{
			name: "downloaded but extraction incomplete",
			match: model.Match{
				MatchID: "m-3", SummariesProcessed: true, TelemetryDownloaded: true,
				LandingsProcessed: true, KillsProcessed: true,
				TelemetryPath: "/data/matchID=m-3/raw.json.gz",
			},
			want: "processing.telemetry",
		},
		{
			name:  "extracted but not aggregated",
			match: fullyExtracted("m-4"),
			want:  "stats",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			step, pub, err := republishFor(t, &tc.match)
			if err != nil {
				t.Fatalf("Republish: %v", err)
			}
			if step != tc.want {
				t.Errorf("step = %q, want %q", step, tc.want)
			}
			if len(pub.steps) != 1 || pub.steps[0] != tc.want {
				t.Errorf("published on %v", pub.steps)
			}
		})
	}
}

func TestRepublishFullyProcessedMatch(t *testing.T) {
	m := fullyExtracted("m-5")
	m.StatsAggregated = true

	_, pub, err := republishFor(t, &m)
	if !errors.Is(err, ErrNothingPending) {
		t.Fatalf("err = %v, want ErrNothingPending", err)
	}
	if len(pub.steps) != 0 {
		t.Errorf("nothing should be published, got %v", pub.steps)
	}
}

func TestRepublishWithoutTelemetryURLFails(t *testing.T) {
	m := model.Match{MatchID: "m-6", SummariesProcessed: true}

	_, pub, err := republishFor(t, &m)
	if err == nil {
		t.Fatal("want error for missing telemetry URL")
	}
	if len(pub.steps) != 0 {
		t.Errorf("nothing should be published, got %v", pub.steps)
	}
}

func fullyExtracted(matchID string) model.Match {
	return model.Match{
		MatchID:             matchID,
		SummariesProcessed:  true,
		TelemetryDownloaded: true,
		LandingsProcessed:   true,
		KillsProcessed:      true,
		CirclesProcessed:    true,
		WeaponsProcessed:    true,
		DamageProcessed:     true,
		FinishingProcessed:  true,
		FightsProcessed:     true,
	}
}
