package fights

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"skirmish/internal/metrics"
	"skirmish/internal/model"
	"skirmish/pkg/pubg"
)

var fightStart = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

// scenario builds combat event streams for detector tests. All events land
// near the origin unless placed explicitly, so they cluster together.
type scenario struct {
	events []CombatEvent
	at     time.Duration
}

func (s *scenario) advance(d time.Duration) *scenario {
	s.at += d
	return s
}

func (s *scenario) loc(x, y float64) pubg.Location {
	return pubg.Location{X: x * pubg.UnitsPerMeter, Y: y * pubg.UnitsPerMeter}
}

func (s *scenario) player(name string, team int) Actor {
	return Actor{Name: name, AccountID: "account." + name, TeamID: team, Location: s.loc(0, 0)}
}

func (s *scenario) damage(attacker, victim Actor, hp float64) *scenario {
	s.events = append(s.events, CombatEvent{
		Kind: KindDamage, Timestamp: fightStart.Add(s.at),
		Attacker: attacker, Victim: victim, Damage: hp,
	})
	return s
}

func (s *scenario) knock(attacker, victim Actor, dbnoID int64) *scenario {
	s.events = append(s.events, CombatEvent{
		Kind: KindKnock, Timestamp: fightStart.Add(s.at),
		Attacker: attacker, Victim: victim, DBNOID: dbnoID,
	})
	return s
}

func (s *scenario) kill(attacker, victim Actor, dbnoID int64) *scenario {
	s.events = append(s.events, CombatEvent{
		Kind: KindKill, Timestamp: fightStart.Add(s.at),
		Attacker: attacker, Victim: victim, DBNOID: dbnoID,
	})
	return s
}

func detect(t *testing.T, s *scenario) []model.Fight {
	t.Helper()
	return NewDetector(zerolog.Nop()).Detect("match-1", s.events)
}

func TestExecutionWithoutResistanceIsNotAFight(t *testing.T) {
	// 4v1, single kill with no knock, victim side dealt nothing back.
	s := &scenario{}
	victim := s.player("prey", 7)
	squad := []Actor{s.player("a1", 3), s.player("a2", 3), s.player("a3", 3), s.player("a4", 3)}

	s.damage(squad[0], victim, 40)
	s.advance(time.Second).damage(squad[1], victim, 35)
	s.advance(time.Second).damage(squad[2], victim, 25)
	s.advance(time.Second).kill(squad[3], victim, -1)

	if fights := detect(t, s); len(fights) != 0 {
		t.Fatalf("expected no fight from a 4v1 execution, got %d", len(fights))
	}
}

func TestSingleKillWithResistanceIsAFight(t *testing.T) {
	// Same 4v1 shape but the victim dealt 80 HP back, above the 75 HP bar.
	s := &scenario{}
	victim := s.player("prey", 7)
	squad := []Actor{s.player("a1", 3), s.player("a2", 3), s.player("a3", 3), s.player("a4", 3)}

	s.damage(victim, squad[0], 80)
	s.advance(time.Second).damage(squad[0], victim, 40)
	s.advance(time.Second).damage(squad[1], victim, 30)
	s.advance(time.Second).damage(squad[2], victim, 25)
	s.advance(time.Second).kill(squad[3], victim, -1)

	fights := detect(t, s)
	if len(fights) != 1 {
		t.Fatalf("expected one fight, got %d", len(fights))
	}
	if fights[0].FightReason != model.ReasonSingleKillResisted {
		t.Errorf("fight_reason = %q, want %q", fights[0].FightReason, model.ReasonSingleKillResisted)
	}
}

func TestTripleTeamThirdParty(t *testing.T) {
	// Teams {5, 9, 14}; deaths {5:3, 9:1, 14:0}; kills {5:0, 9:1, 14:3}.
	s := &scenario{}
	t5 := []Actor{s.player("t5a", 5), s.player("t5b", 5), s.player("t5c", 5)}
	t9 := []Actor{s.player("t9a", 9), s.player("t9b", 9)}
	t14 := []Actor{s.player("t14a", 14), s.player("t14b", 14)}

	s.damage(t5[0], t9[0], 60)
	s.advance(2 * time.Second).damage(t9[0], t5[0], 70)
	s.advance(2 * time.Second).damage(t14[0], t5[1], 90)
	s.advance(2 * time.Second).kill(t14[0], t5[0], -1)
	s.advance(2 * time.Second).kill(t14[1], t5[1], -1)
	s.advance(2 * time.Second).kill(t14[0], t5[2], -1)
	// Team 9's single kill is a teamkill, leaving team 14 untouched.
	s.advance(2 * time.Second).kill(t9[1], t9[0], -1)

	fights := detect(t, s)
	if len(fights) != 1 {
		t.Fatalf("expected one fight, got %d", len(fights))
	}
	f := fights[0]
	if f.Outcome != model.OutcomeThirdParty {
		t.Fatalf("outcome = %q, want THIRD_PARTY", f.Outcome)
	}
	if f.WinningTeam == nil || *f.WinningTeam != 14 {
		t.Errorf("winning_team = %v, want 14", f.WinningTeam)
	}
	if f.LosingTeam == nil || *f.LosingTeam != 5 {
		t.Errorf("losing_team = %v, want 5", f.LosingTeam)
	}
	want := map[int]string{5: model.TeamOutcomeLost, 9: model.TeamOutcomeDraw, 14: model.TeamOutcomeWon}
	for team, outcome := range want {
		if f.TeamOutcomes[team] != outcome {
			t.Errorf("team_outcomes[%d] = %q, want %q", team, f.TeamOutcomes[team], outcome)
		}
	}
}

func TestThirdPartyOutcomeCounts(t *testing.T) {
	// Any 3+ team fight carries exactly one WON, one LOST, rest DRAW.
	s := &scenario{}
	a := s.player("a", 1)
	b := s.player("b", 2)
	c := s.player("c", 3)
	d := s.player("d", 4)

	s.damage(a, b, 60)
	s.advance(time.Second).damage(b, c, 60)
	s.advance(time.Second).damage(c, d, 60)
	s.advance(time.Second).kill(a, b, -1)
	s.advance(time.Second).kill(c, d, -1)

	fights := detect(t, s)
	if len(fights) != 1 {
		t.Fatalf("expected one fight, got %d", len(fights))
	}
	won, lost, draw := 0, 0, 0
	for _, outcome := range fights[0].TeamOutcomes {
		switch outcome {
		case model.TeamOutcomeWon:
			won++
		case model.TeamOutcomeLost:
			lost++
		case model.TeamOutcomeDraw:
			draw++
		}
	}
	if won != 1 || lost != 1 || draw != len(fights[0].TeamIDs)-2 {
		t.Errorf("outcome counts won=%d lost=%d draw=%d for %d teams",
			won, lost, draw, len(fights[0].TeamIDs))
	}
}

func TestReciprocalStalemate(t *testing.T) {
	// Two teams, 250/350 damage, no casualties.
	s := &scenario{}
	a := s.player("alpha", 1)
	b := s.player("bravo", 2)

	s.damage(a, b, 125)
	s.advance(3 * time.Second).damage(b, a, 175)
	s.advance(3 * time.Second).damage(a, b, 125)
	s.advance(3 * time.Second).damage(b, a, 175)

	fights := detect(t, s)
	if len(fights) != 1 {
		t.Fatalf("expected one fight, got %d", len(fights))
	}
	f := fights[0]
	if f.FightReason != model.ReasonReciprocalDamage {
		t.Errorf("fight_reason = %q, want %q", f.FightReason, model.ReasonReciprocalDamage)
	}
	if f.Outcome != model.OutcomeDraw {
		t.Errorf("outcome = %q, want DRAW", f.Outcome)
	}
	if f.TotalKnocks != 0 || f.TotalKills != 0 {
		t.Errorf("totals knocks=%d kills=%d, want 0/0", f.TotalKnocks, f.TotalKills)
	}
	if f.TotalDamage != 600 {
		t.Errorf("total_damage = %v, want 600", f.TotalDamage)
	}
}

func TestOneSidedPokeIsNotReciprocal(t *testing.T) {
	// 500 HP from one side, 20 from the other: under the 20% floor.
	s := &scenario{}
	a := s.player("alpha", 1)
	b := s.player("bravo", 2)

	s.damage(a, b, 250)
	s.advance(2 * time.Second).damage(a, b, 250)
	s.advance(2 * time.Second).damage(b, a, 20)

	if fights := detect(t, s); len(fights) != 0 {
		t.Fatalf("expected no fight, got %d", len(fights))
	}
}

func TestKnockWithReturnFire(t *testing.T) {
	s := &scenario{}
	a := s.player("alpha", 1)
	b := s.player("bravo", 2)

	s.damage(a, b, 80)
	s.advance(2 * time.Second).damage(b, a, 90)
	s.advance(2 * time.Second).knock(a, b, 1001)

	fights := detect(t, s)
	if len(fights) != 1 {
		t.Fatalf("expected one fight, got %d", len(fights))
	}
	if fights[0].FightReason != model.ReasonKnockReturnFire {
		t.Errorf("fight_reason = %q, want %q", fights[0].FightReason, model.ReasonKnockReturnFire)
	}
}

func TestMultipleCasualtiesOutranksOtherRules(t *testing.T) {
	s := &scenario{}
	a := s.player("alpha", 1)
	b := s.player("bravo", 2)
	b2 := s.player("bravo2", 2)

	s.damage(a, b, 100)
	s.advance(time.Second).knock(a, b, 2001)
	s.advance(2 * time.Second).kill(a, b, 2001)
	s.advance(2 * time.Second).knock(a, b2, 2002)
	s.advance(2 * time.Second).kill(a, b2, 2002)

	fights := detect(t, s)
	if len(fights) != 1 {
		t.Fatalf("expected one fight, got %d", len(fights))
	}
	f := fights[0]
	if f.FightReason != model.ReasonMultipleCasualties {
		t.Errorf("fight_reason = %q, want %q", f.FightReason, model.ReasonMultipleCasualties)
	}
	// Team 2 lost everyone present: decisive win for team 1.
	if f.Outcome != model.OutcomeDecisiveWin {
		t.Errorf("outcome = %q, want DECISIVE_WIN", f.Outcome)
	}
	if f.WinningTeam == nil || *f.WinningTeam != 1 {
		t.Errorf("winning_team = %v, want 1", f.WinningTeam)
	}
}

func TestDetectDoesNotCountPersistedFights(t *testing.T) {
	// The fights-persisted counter belongs to the persist loop; detection
	// alone must leave it untouched or redeliveries double-count.
	s := &scenario{}
	a := s.player("alpha", 1)
	b := s.player("bravo", 2)
	s.knock(a, b, 1)
	s.advance(time.Second).kill(a, b, 1)

	before := testutil.ToFloat64(metrics.FightsDetected.WithLabelValues(model.ReasonMultipleCasualties))
	fights := detect(t, s)
	after := testutil.ToFloat64(metrics.FightsDetected.WithLabelValues(model.ReasonMultipleCasualties))

	if len(fights) != 1 {
		t.Fatalf("expected one fight, got %d", len(fights))
	}
	if after != before {
		t.Errorf("fights counter moved during detection: %v -> %v", before, after)
	}
}

func TestNPCEventsAreExcluded(t *testing.T) {
	s := &scenario{}
	a := s.player("alpha", 1)
	b := s.player("bravo", 2)
	npc := Actor{Name: "ZombieSoldier", TeamID: 99, Location: s.loc(0, 0)}

	// Real fight between two players plus NPC noise.
	s.damage(a, b, 100)
	s.advance(time.Second).damage(b, a, 100)
	s.advance(time.Second).kill(a, npc, -1)
	s.advance(time.Second).kill(npc, b, -1)
	s.advance(time.Second).knock(a, b, 3001)
	s.advance(time.Second).kill(a, b, 3001)

	fights := detect(t, s)
	if len(fights) != 1 {
		t.Fatalf("expected one fight, got %d", len(fights))
	}
	f := fights[0]
	for _, p := range f.Participants {
		if IsNPC(p.PlayerName) {
			t.Errorf("NPC %q leaked into participants", p.PlayerName)
		}
	}
	// The NPC kill events must not count toward totals.
	if f.TotalKills != 1 {
		t.Errorf("total_kills = %d, want 1", f.TotalKills)
	}
	for _, team := range f.TeamIDs {
		if team == 99 {
			t.Error("NPC team leaked into team set")
		}
	}
}

func TestEngagementSplitsOnTimeGap(t *testing.T) {
	s := &scenario{}
	a := s.player("alpha", 1)
	b := s.player("bravo", 2)

	s.knock(a, b, 1)
	s.kill(a, b, 1)
	// Second skirmish well past the 45 s window.
	s.advance(EngagementWindow + 30*time.Second)
	s.knock(b, a, 2)
	s.kill(b, a, 2)

	fights := detect(t, s)
	if len(fights) != 2 {
		t.Fatalf("expected two fights after the gap, got %d", len(fights))
	}
}

func TestEngagementSplitsOnDistance(t *testing.T) {
	s := &scenario{}
	a := s.player("alpha", 1)
	b := s.player("bravo", 2)
	farA := a
	farB := b
	farA.Location = s.loc(2000, 0)
	farB.Location = s.loc(2000, 0)

	s.knock(a, b, 1)
	s.advance(time.Second).kill(a, b, 1)
	s.advance(2 * time.Second)
	s.knock(farA, farB, 2)
	s.advance(time.Second).kill(farA, farB, 2)

	fights := detect(t, s)
	if len(fights) != 2 {
		t.Fatalf("expected two fights 2 km apart, got %d", len(fights))
	}
}

func TestTimestampTiesOrderDamageKnockKill(t *testing.T) {
	ts := fightStart
	events := []CombatEvent{
		{Kind: KindKill, Timestamp: ts},
		{Kind: KindDamage, Timestamp: ts},
		{Kind: KindKnock, Timestamp: ts},
	}
	sortEvents(events)
	want := []EventKind{KindDamage, KindKnock, KindKill}
	for i, k := range want {
		if events[i].Kind != k {
			t.Fatalf("position %d = %v, want %v", i, events[i].Kind, k)
		}
	}
}

func TestParticipantEnrichment(t *testing.T) {
	s := &scenario{}
	a := s.player("alpha", 1)
	b := s.player("bravo", 2)

	s.damage(a, b, 60)
	s.advance(time.Second).damage(b, a, 45)
	s.advance(time.Second).knock(a, b, 1)
	s.advance(time.Second).kill(a, b, 1)

	fights := detect(t, s)
	if len(fights) != 1 {
		t.Fatalf("expected one fight, got %d", len(fights))
	}
	byName := make(map[string]model.FightParticipant)
	for _, p := range fights[0].Participants {
		byName[p.PlayerName] = p
	}

	alpha := byName["alpha"]
	if alpha.Knocks != 1 || alpha.Kills != 1 || alpha.DamageDealt != 60 || alpha.DamageTaken != 45 {
		t.Errorf("alpha line = %+v", alpha)
	}
	if !alpha.Survived || alpha.WasKnocked || alpha.WasKilled {
		t.Errorf("alpha flags = %+v", alpha)
	}

	bravo := byName["bravo"]
	if !bravo.WasKnocked || !bravo.WasKilled || bravo.Survived {
		t.Errorf("bravo flags = %+v", bravo)
	}
	if bravo.KnockedAt == nil || bravo.KilledAt == nil {
		t.Fatal("bravo missing knocked_at/killed_at")
	}
	if !bravo.KnockedAt.Before(*bravo.KilledAt) {
		t.Error("knocked_at should precede killed_at")
	}
}
