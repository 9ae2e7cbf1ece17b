package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"skirmish/internal/model"
)

func processingMsg(matchID string) []byte {
	body, _ := json.Marshal(model.ProcessingMessage{
		MatchID:       matchID,
		TelemetryPath: "/tmp/matchID=" + matchID + "/raw.json.gz",
	})
	return body
}

func TestProcessingWorkerCompletesAndNudges(t *testing.T) {
	ledger := newMockLedger()
	engine := &mockEngine{}
	broker := &mockBroker{}

	w := NewProcessingWorker(ledger, engine, broker, zerolog.Nop())
	if err := w.Handle(context.Background(), processingMsg("m-1")); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(engine.processed) != 1 || engine.processed[0] != "m-1" {
		t.Errorf("engine processed = %v", engine.processed)
	}
	if len(ledger.completed) != 1 || ledger.completed[0] != "m-1" {
		t.Errorf("completed = %v", ledger.completed)
	}
	if len(broker.published) != 1 || broker.published[0].step != "stats" {
		t.Fatalf("published = %+v", broker.published)
	}
}

func TestProcessingWorkerEngineFailureMarksMatch(t *testing.T) {
	ledger := newMockLedger()
	engine := &mockEngine{err: errors.New("telemetry truncated")}
	broker := &mockBroker{}

	w := NewProcessingWorker(ledger, engine, broker, zerolog.Nop())
	if err := w.Handle(context.Background(), processingMsg("m-2")); err == nil {
		t.Fatal("want engine error to propagate")
	}

	if ledger.failedWith["m-2"] != "telemetry truncated" {
		t.Errorf("failure message = %q", ledger.failedWith["m-2"])
	}
	if len(ledger.completed) != 0 {
		t.Error("failed match must not be completed")
	}
	if len(broker.published) != 0 {
		t.Error("failed match must not nudge aggregation")
	}
}
