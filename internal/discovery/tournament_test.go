package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"skirmish/internal/cache"
	"skirmish/internal/config"
	"skirmish/internal/model"
	"skirmish/pkg/pubg"
)

type fakeLobbies struct {
	lobbies []model.Lobby
	sampled []int // Sample size requested per call
	rosters map[string][]model.RosterEntry
}

func (f *fakeLobbies) ActiveLobbies(_ context.Context) ([]model.Lobby, error) {
	return f.lobbies, nil
}

func (f *fakeLobbies) PrimarySampleRosters(_ context.Context, lobby model.Lobby, limit int) ([]model.RosterEntry, error) {
	f.sampled = append(f.sampled, limit)
	rosters := f.rosters[lobby.Division]
	if limit > len(rosters) {
		limit = len(rosters)
	}
	return rosters[:limit], nil
}

func tournamentCfg() config.TournamentDiscoveryConfig {
	return config.TournamentDiscoveryConfig{
		Interval:         60,
		SampleSize:       6,
		MatchType:        []string{"competitive", "official", "custom-esports"},
		AdaptiveSampling: true,
		CutoffDate:       "2026-01-01",
	}
}

func newTestTournamentLane(ledger *fakeLedger, lobbies *fakeLobbies, api *fakeAPI, pub *fakePublisher) *TournamentLane {
	return NewTournamentLane(ledger, lobbies, api, cache.NewMatches(nil), pub, tournamentCfg(), zerolog.Nop())
}

func TestTournamentLaneClaimsQualifyingMatch(t *testing.T) {
	after := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	ledger := newFakeLedger()
	lobbies := &fakeLobbies{
		lobbies: []model.Lobby{{Division: "pro"}},
		rosters: map[string][]model.RosterEntry{"pro": {{PlayerName: "alice"}, {PlayerName: "bob"}}},
	}
	api := &fakeAPI{
		matchIDs: []string{"match-comp", "match-casual", "match-old"},
		matches: map[string]*pubg.MatchResponse{
			"match-comp":   matchResponse("match-comp", "competitive", after),
			"match-casual": matchResponse("match-casual", "casual", after),
			"match-old":    matchResponse("match-old", "competitive", time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)),
		},
	}
	pub := &fakePublisher{}

	lane := newTestTournamentLane(ledger, lobbies, api, pub)
	summary, err := lane.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if summary.Total != 3 || summary.Processed != 3 || summary.Queued != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if len(ledger.created) != 1 || ledger.created[0] != "match-comp" {
		t.Errorf("inserted = %v, want only match-comp", ledger.created)
	}
	m := ledger.rows["match-comp"]
	if m.DiscoveredBy != model.DiscoveredByTournament || m.DiscoveryPriority != model.PriorityHigh {
		t.Errorf("lane attribution = %s/%s", m.DiscoveredBy, m.DiscoveryPriority)
	}
	if len(pub.sent) != 1 || pub.sent[0].priority != 8 {
		t.Fatalf("published = %+v, want one high-priority message", pub.sent)
	}
}

func TestTournamentLaneAdaptiveSampling(t *testing.T) {
	after := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	ledger := newFakeLedger()
	lobbies := &fakeLobbies{
		lobbies: []model.Lobby{{Division: "pro"}},
		rosters: map[string][]model.RosterEntry{"pro": {{PlayerName: "alice"}}},
	}
	api := &fakeAPI{} // No matches at all
	pub := &fakePublisher{}

	lane := newTestTournamentLane(ledger, lobbies, api, pub)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := lane.RunOnce(ctx); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	want := []int{6, 6, 6}
	for i, got := range lobbies.sampled {
		if got != want[i] {
			t.Fatalf("sample sizes before bump = %v", lobbies.sampled)
		}
	}
	if lane.sampleSize != 8 {
		t.Fatalf("sample size after three dry runs = %d, want 8", lane.sampleSize)
	}

	// Three more dry runs bump again.
	for i := 0; i < 3; i++ {
		if _, err := lane.RunOnce(ctx); err != nil {
			t.Fatalf("second round run %d: %v", i, err)
		}
	}
	if lane.sampleSize != 10 {
		t.Fatalf("sample size after six dry runs = %d, want 10", lane.sampleSize)
	}

	// A hit snaps back to the configured size.
	api.matchIDs = []string{"match-hit"}
	api.matches = map[string]*pubg.MatchResponse{"match-hit": matchResponse("match-hit", "competitive", after)}
	if _, err := lane.RunOnce(ctx); err != nil {
		t.Fatalf("hit run: %v", err)
	}
	if lane.sampleSize != 6 {
		t.Errorf("sample size after hit = %d, want configured 6", lane.sampleSize)
	}
}

func TestTournamentLaneSampleCap(t *testing.T) {
	lane := newTestTournamentLane(newFakeLedger(), &fakeLobbies{}, &fakeAPI{}, &fakePublisher{})
	lane.sampleSize = sampleSizeCap
	for i := 0; i < 6; i++ {
		lane.adapt(0)
	}
	if lane.sampleSize != sampleSizeCap {
		t.Errorf("sample size exceeded cap: %d", lane.sampleSize)
	}
}
