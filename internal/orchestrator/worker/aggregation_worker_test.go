package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"skirmish/internal/config"
	"skirmish/internal/model"
)

func aggCfg() config.AggregationConfig {
	return config.AggregationConfig{BatchSize: 25, AggregationInterval: 300, BackfillWindow: 180}
}

func statsNudge(matchID string) []byte {
	body, _ := json.Marshal(model.StatsMessage{MatchID: matchID})
	return body
}

func TestAggregationCycleMergesPollAndNudges(t *testing.T) {
	ledger := newMockLedger()
	ledger.pendingAggregation = []model.Match{
		{MatchID: "m-poll", GameType: "competitive", Status: model.MatchStatusComplete},
	}
	ledger.matches["m-nudge"] = &model.Match{
		MatchID: "m-nudge", GameType: "official", Status: model.MatchStatusComplete,
	}
	broker := &mockBroker{queued: [][]byte{
		statsNudge("m-nudge"),
		statsNudge("m-poll"), // Duplicate of the poll result, must not double-aggregate
	}}

	w := NewAggregationWorker(ledger, broker, aggCfg(), zerolog.Nop())
	if err := w.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	want := []string{"m-poll:ranked", "m-nudge:normal"}
	if len(ledger.aggregated) != len(want) {
		t.Fatalf("aggregated = %v, want %v", ledger.aggregated, want)
	}
	for i, a := range want {
		if ledger.aggregated[i] != a {
			t.Errorf("aggregated[%d] = %q, want %q", i, ledger.aggregated[i], a)
		}
	}
	if ledger.refreshed != 1 {
		t.Errorf("combatability refreshes = %d, want 1", ledger.refreshed)
	}
}

func TestAggregationCycleSkipsUnreadyNudges(t *testing.T) {
	ledger := newMockLedger()
	ledger.matches["m-early"] = &model.Match{
		MatchID: "m-early", GameType: "official", Status: model.MatchStatusProcessing,
	}
	ledger.matches["m-done"] = &model.Match{
		MatchID: "m-done", GameType: "official", Status: model.MatchStatusComplete, StatsAggregated: true,
	}
	broker := &mockBroker{queued: [][]byte{statsNudge("m-early"), statsNudge("m-done")}}

	w := NewAggregationWorker(ledger, broker, aggCfg(), zerolog.Nop())
	if err := w.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if len(ledger.aggregated) != 0 {
		t.Errorf("aggregated = %v, want none", ledger.aggregated)
	}
	if ledger.refreshed != 0 {
		t.Errorf("empty cycle must not refresh the view")
	}
}

func TestAggregationEmptyCycleIsQuiet(t *testing.T) {
	w := NewAggregationWorker(newMockLedger(), &mockBroker{}, aggCfg(), zerolog.Nop())
	if err := w.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
}
