package database

import (
	"testing"
	"time"

	"skirmish/internal/model"
)

func strPtr(s string) *string { return &s }

// lobbyRoster builds a roster map with n teams of 4 in one lobby.
func lobbyRoster(division string, group *string, teams int) (map[string]RosterMatch, []string) {
	roster := make(map[string]RosterMatch)
	var names []string
	for t := 0; t < teams; t++ {
		for p := 0; p < 4; p++ {
			name := string(rune('A'+t)) + "_player" + string(rune('0'+p))
			roster[name] = RosterMatch{
				PlayerName: name,
				TeamRef:    int64(100 + t),
				Division:   division,
				GroupName:  group,
			}
			names = append(names, name)
		}
	}
	return roster, names
}

func testRound(at time.Time) model.TournamentRound {
	return model.TournamentRound{
		RoundRef:    7,
		Division:    "masters",
		RoundNumber: 3,
		StartDate:   at.Add(-24 * time.Hour),
		EndDate:     at.Add(24 * time.Hour),
	}
}

func TestInferNoRosterPlayersIsNotTournament(t *testing.T) {
	tc := InferTournamentContext(ContextInputs{
		MatchTime:    time.Now(),
		Participants: []string{"rando1", "rando2"},
		Roster:       map[string]RosterMatch{},
	})
	if tc.ValidationStatus != model.ValidationNotTournament {
		t.Errorf("status = %q, want %q", tc.ValidationStatus, model.ValidationNotTournament)
	}
	if tc.IsTournamentMatch {
		t.Error("match should not be flagged as tournament")
	}
	if tc.UnmatchedPlayerCount != 2 {
		t.Errorf("unmatched = %d, want 2", tc.UnmatchedPlayerCount)
	}
}

func TestInferMixedDivisionRejected(t *testing.T) {
	roster, names := lobbyRoster("masters", nil, 8)
	roster["intruder"] = RosterMatch{PlayerName: "intruder", TeamRef: 900, Division: "challengers"}
	names = append(names, "intruder")

	tc := InferTournamentContext(ContextInputs{
		MatchTime:    time.Now(),
		Participants: names,
		Roster:       roster,
	})
	if tc.ValidationStatus != model.ValidationMixedDivision {
		t.Errorf("status = %q, want %q", tc.ValidationStatus, model.ValidationMixedDivision)
	}
	if tc.IsTournamentMatch {
		t.Error("mixed lobby must not count as tournament")
	}
}

func TestInferGroupSplitIsMixed(t *testing.T) {
	roster, names := lobbyRoster("masters", strPtr("alpha"), 6)
	other, otherNames := lobbyRoster("masters", strPtr("bravo"), 2)
	for k, v := range other {
		v.PlayerName = "b_" + k
		roster["b_"+k] = v
		names = append(names, "b_"+k)
	}
	_ = otherNames

	tc := InferTournamentContext(ContextInputs{
		MatchTime:    time.Now(),
		Participants: names,
		Roster:       roster,
	})
	if tc.ValidationStatus != model.ValidationMixedDivision {
		t.Errorf("status = %q, want %q", tc.ValidationStatus, model.ValidationMixedDivision)
	}
}

func TestInferSmallLobbyIsRemakeCandidate(t *testing.T) {
	roster, names := lobbyRoster("masters", nil, 5)

	tc := InferTournamentContext(ContextInputs{
		MatchTime:    time.Now(),
		Participants: names,
		Roster:       roster,
	})
	if tc.ValidationStatus != model.ValidationRemake {
		t.Errorf("status = %q, want %q", tc.ValidationStatus, model.ValidationRemake)
	}
	if !tc.IsTournamentMatch {
		t.Error("remake candidate is still a tournament match")
	}
	if tc.TeamCount != 5 {
		t.Errorf("team count = %d, want 5", tc.TeamCount)
	}
}

func TestInferNoRoundWindowIsUnscheduled(t *testing.T) {
	roster, names := lobbyRoster("masters", nil, 10)
	at := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	round := testRound(at)
	round.StartDate = at.Add(48 * time.Hour)
	round.EndDate = at.Add(72 * time.Hour)

	tc := InferTournamentContext(ContextInputs{
		MatchTime:    at,
		Participants: names,
		Roster:       roster,
		Rounds:       []model.TournamentRound{round},
	})
	if tc.ValidationStatus != model.ValidationUnscheduled {
		t.Errorf("status = %q, want %q", tc.ValidationStatus, model.ValidationUnscheduled)
	}
	if tc.RoundRef != nil {
		t.Error("no round should be bound outside its window")
	}
}

func TestInferSlotBindingWithinTolerance(t *testing.T) {
	roster, names := lobbyRoster("masters", nil, 10)
	at := time.Date(2026, 3, 14, 19, 10, 0, 0, time.UTC)

	tc := InferTournamentContext(ContextInputs{
		MatchTime:    at,
		MapName:      "Erangel",
		Participants: names,
		Roster:       roster,
		Rounds:       []model.TournamentRound{testRound(at)},
		Slots: []model.ScheduledSlot{
			{SlotRef: 41, RoundRef: 7, ScheduledDatetime: at.Add(-70 * time.Minute), MapName: "Erangel"},
			{SlotRef: 42, RoundRef: 7, ScheduledDatetime: at.Add(-10 * time.Minute), MapName: "Erangel"},
			{SlotRef: 43, RoundRef: 7, ScheduledDatetime: at.Add(50 * time.Minute), MapName: "Miramar"},
		},
	})
	if tc.ValidationStatus != model.ValidationConfirmed {
		t.Fatalf("status = %q, want %q", tc.ValidationStatus, model.ValidationConfirmed)
	}
	if tc.RoundRef == nil || *tc.RoundRef != 7 {
		t.Errorf("round ref = %v, want 7", tc.RoundRef)
	}
	if tc.ScheduleSlotRef == nil || *tc.ScheduleSlotRef != 42 {
		t.Errorf("slot ref = %v, want 42", tc.ScheduleSlotRef)
	}
}

func TestInferSlotOutsideToleranceIsUnscheduled(t *testing.T) {
	roster, names := lobbyRoster("masters", nil, 10)
	at := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

	tc := InferTournamentContext(ContextInputs{
		MatchTime:    at,
		MapName:      "Erangel",
		Participants: names,
		Roster:       roster,
		Rounds:       []model.TournamentRound{testRound(at)},
		Slots: []model.ScheduledSlot{
			{SlotRef: 41, RoundRef: 7, ScheduledDatetime: at.Add(-45 * time.Minute), MapName: "Erangel"},
		},
	})
	if tc.ValidationStatus != model.ValidationUnscheduled {
		t.Errorf("status = %q, want %q", tc.ValidationStatus, model.ValidationUnscheduled)
	}
	if tc.RoundRef == nil {
		t.Error("round ref should still bind when only the slot misses")
	}
}

func TestInferMapMismatchBlocksSlotBinding(t *testing.T) {
	roster, names := lobbyRoster("masters", nil, 10)
	at := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

	tc := InferTournamentContext(ContextInputs{
		MatchTime:    at,
		MapName:      "Taego",
		Participants: names,
		Roster:       roster,
		Rounds:       []model.TournamentRound{testRound(at)},
		Slots: []model.ScheduledSlot{
			{SlotRef: 41, RoundRef: 7, ScheduledDatetime: at, MapName: "Erangel"},
		},
	})
	if tc.ValidationStatus != model.ValidationUnscheduled {
		t.Errorf("status = %q, want %q", tc.ValidationStatus, model.ValidationUnscheduled)
	}
}
