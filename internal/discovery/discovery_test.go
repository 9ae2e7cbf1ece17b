package discovery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"skirmish/internal/cache"
	"skirmish/internal/config"
	"skirmish/internal/model"
	"skirmish/pkg/pubg"
)

type fakeLedger struct {
	rows    map[string]*model.Match
	created []string
}

func newFakeLedger(existing ...string) *fakeLedger {
	l := &fakeLedger{rows: make(map[string]*model.Match)}
	for _, id := range existing {
		l.rows[id] = &model.Match{MatchID: id}
	}
	return l
}

func (l *fakeLedger) InsertMatch(_ context.Context, m *model.Match) (bool, error) {
	if _, ok := l.rows[m.MatchID]; ok {
		return false, nil
	}
	l.rows[m.MatchID] = m
	l.created = append(l.created, m.MatchID)
	return true, nil
}

func (l *fakeLedger) FilterUnknownMatchIDs(_ context.Context, ids []string) ([]string, error) {
	var unknown []string
	for _, id := range ids {
		if _, ok := l.rows[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	return unknown, nil
}

type fakeRoster struct {
	players []model.TrackedPlayer
}

func (r *fakeRoster) TrackedPlayers(_ context.Context, limit int) ([]model.TrackedPlayer, error) {
	if limit > len(r.players) {
		limit = len(r.players)
	}
	return r.players[:limit], nil
}

type fakeAPI struct {
	matchIDs []string               // Returned for every player lookup
	matches  map[string]*pubg.MatchResponse
	broken   map[string]bool // GetMatch errors for these ids
}

func (a *fakeAPI) LookupPlayers(_ context.Context, names []string) (*pubg.PlayerResponse, error) {
	items := make([]pubg.RelatedItem, len(a.matchIDs))
	for i, id := range a.matchIDs {
		items[i] = pubg.RelatedItem{Type: "match", ID: id}
	}
	resp := &pubg.PlayerResponse{}
	for _, name := range names {
		resp.Data = append(resp.Data, pubg.PlayerData{
			Type:       "player",
			ID:         "account." + name,
			Attributes: pubg.PlayerAttributes{Name: name},
			Relationships: pubg.PlayerRelationships{
				Matches: pubg.RelationshipData{Data: items},
			},
		})
	}
	return resp, nil
}

func (a *fakeAPI) GetMatch(_ context.Context, matchID string) (*pubg.MatchResponse, error) {
	if a.broken[matchID] {
		return nil, fmt.Errorf("upstream says no")
	}
	m, ok := a.matches[matchID]
	if !ok {
		return nil, fmt.Errorf("unexpected match fetch %s", matchID)
	}
	return m, nil
}

type published struct {
	step     string
	priority uint8
	payload  model.Stamped
}

type fakePublisher struct {
	sent []published
}

func (p *fakePublisher) Publish(_ context.Context, _, step string, payload model.Stamped, priority uint8) bool {
	p.sent = append(p.sent, published{step: step, priority: priority, payload: payload})
	return true
}

func matchResponse(id, matchType string, at time.Time) *pubg.MatchResponse {
	return &pubg.MatchResponse{
		Data: pubg.MatchData{
			Type: "match",
			ID:   id,
			Attributes: pubg.MatchAttributes{
				CreatedAt: at.UTC().Format(time.RFC3339),
				Duration:  1800,
				MatchType: matchType,
				GameMode:  "squad-fpp",
				MapName:   "Baltic_Main",
			},
		},
	}
}

func mainLaneCfg() config.MainDiscoveryConfig {
	return config.MainDiscoveryConfig{Interval: 600, PlayerLimit: 500}
}

func TestMainLaneDiscoversNewMatches(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	ledger := newFakeLedger("match-known")
	api := &fakeAPI{
		matchIDs: []string{"match-known", "match-new"},
		matches:  map[string]*pubg.MatchResponse{"match-new": matchResponse("match-new", "official", now)},
	}
	pub := &fakePublisher{}
	roster := &fakeRoster{players: []model.TrackedPlayer{{PlayerName: "alice"}, {PlayerName: "bob"}}}

	lane := NewMainLane(ledger, roster, api, cache.NewMatches(nil), pub, mainLaneCfg(), zerolog.Nop())
	summary, err := lane.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	want := model.RunSummary{Total: 2, Processed: 1, Failed: 0, Queued: 1}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}

	m := ledger.rows["match-new"]
	if m == nil {
		t.Fatal("new match was not inserted")
	}
	if m.DiscoveredBy != model.DiscoveredByMain || m.DiscoveryPriority != model.PriorityNormal {
		t.Errorf("lane attribution = %s/%s", m.DiscoveredBy, m.DiscoveryPriority)
	}
	if m.MapName != "Erangel" {
		t.Errorf("map name not translated: %q", m.MapName)
	}
	if m.Status != model.MatchStatusDiscovered {
		t.Errorf("status = %q", m.Status)
	}

	if len(pub.sent) != 1 || pub.sent[0].step != "discovered" {
		t.Fatalf("published = %+v", pub.sent)
	}
	if pub.sent[0].priority != 2 {
		t.Errorf("priority = %d, want normal (2)", pub.sent[0].priority)
	}
}

func TestMainLaneFetchFailureLeavesFailedRow(t *testing.T) {
	ledger := newFakeLedger()
	api := &fakeAPI{
		matchIDs: []string{"match-bad"},
		broken:   map[string]bool{"match-bad": true},
	}
	pub := &fakePublisher{}
	roster := &fakeRoster{players: []model.TrackedPlayer{{PlayerName: "alice"}}}

	lane := NewMainLane(ledger, roster, api, cache.NewMatches(nil), pub, mainLaneCfg(), zerolog.Nop())
	summary, err := lane.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if summary.Failed != 1 || summary.Processed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	m := ledger.rows["match-bad"]
	if m == nil {
		t.Fatal("failed row missing")
	}
	if m.Status != model.MatchStatusFailed || m.ErrorMessage == "" {
		t.Errorf("failed row = %+v", m)
	}
	if len(pub.sent) != 0 {
		t.Errorf("failed match must not be published, got %d messages", len(pub.sent))
	}
}

func TestMainLaneNoTrackedPlayersIsEmptyRun(t *testing.T) {
	lane := NewMainLane(newFakeLedger(), &fakeRoster{}, &fakeAPI{}, cache.NewMatches(nil), &fakePublisher{}, mainLaneCfg(), zerolog.Nop())
	summary, err := lane.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary != (model.RunSummary{}) {
		t.Errorf("summary = %+v, want zero", summary)
	}
}
