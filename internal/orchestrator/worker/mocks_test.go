package worker

import (
	"context"
	"fmt"
	"time"

	"skirmish/internal/model"
	"skirmish/internal/rabbitmq"
	"skirmish/pkg/pubg"
)

type publishedMsg struct {
	step     string
	priority uint8
	payload  model.Stamped
}

// mockBroker records publishes and feeds queued bodies to BatchConsume.
// Consume is not exercised; handler methods are called directly.
type mockBroker struct {
	published []publishedMsg
	queued    [][]byte
}

func (b *mockBroker) Publish(_ context.Context, _, step string, payload model.Stamped, priority uint8) bool {
	b.published = append(b.published, publishedMsg{step: step, priority: priority, payload: payload})
	return true
}

func (b *mockBroker) Consume(ctx context.Context, _, _, _ string, _ rabbitmq.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (b *mockBroker) BatchConsume(ctx context.Context, _, _, _ string, n int, handler rabbitmq.Handler) (int, error) {
	handled := 0
	for len(b.queued) > 0 && handled < n {
		body := b.queued[0]
		b.queued = b.queued[1:]
		if err := handler(ctx, body); err != nil {
			return handled, err
		}
		handled++
	}
	return handled, nil
}

// mockLedger backs every store slice the workers need.
type mockLedger struct {
	matches        map[string]*model.Match
	summariesExist map[string]bool

	statusSet    map[string]string
	failedWith   map[string]string
	stagesMarked []string
	completed    []string
	summaryRows  []model.MatchSummary

	contextAssigned []string
	contextResult   model.TournamentContext

	telemetryStored map[string]int64

	pendingAggregation []model.Match
	aggregated         []string
	aggregateErr       error
	refreshed          int
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		matches:         make(map[string]*model.Match),
		summariesExist:  make(map[string]bool),
		statusSet:       make(map[string]string),
		failedWith:      make(map[string]string),
		telemetryStored: make(map[string]int64),
	}
}

func (l *mockLedger) GetMatch(_ context.Context, matchID string) (*model.Match, error) {
	m, ok := l.matches[matchID]
	if !ok {
		return nil, fmt.Errorf("match %s not found", matchID)
	}
	return m, nil
}

func (l *mockLedger) SetMatchStatus(_ context.Context, matchID, status string) error {
	l.statusSet[matchID] = status
	return nil
}

func (l *mockLedger) SetMatchFailed(_ context.Context, matchID, errorMessage string) error {
	l.failedWith[matchID] = errorMessage
	return nil
}

func (l *mockLedger) SetMatchComplete(_ context.Context, matchID string) error {
	l.completed = append(l.completed, matchID)
	return nil
}

func (l *mockLedger) MarkStageProcessed(_ context.Context, matchID, stage string) error {
	l.stagesMarked = append(l.stagesMarked, matchID+":"+stage)
	return nil
}

func (l *mockLedger) SetTelemetryStored(_ context.Context, matchID, _ string, sizeBytes int64) error {
	l.telemetryStored[matchID] = sizeBytes
	return nil
}

func (l *mockLedger) SummariesExist(_ context.Context, matchID string) (bool, error) {
	return l.summariesExist[matchID], nil
}

func (l *mockLedger) BulkInsertSummaries(_ context.Context, rows []model.MatchSummary) (model.BulkInsertResult, error) {
	l.summaryRows = append(l.summaryRows, rows...)
	return model.BulkInsertResult{InsertedCount: len(rows)}, nil
}

func (l *mockLedger) AssignTournamentContext(_ context.Context, matchID string, _ time.Time, _ string, _ []string) (model.TournamentContext, error) {
	l.contextAssigned = append(l.contextAssigned, matchID)
	return l.contextResult, nil
}

func (l *mockLedger) MatchesPendingAggregation(_ context.Context, limit int) ([]model.Match, error) {
	if limit > len(l.pendingAggregation) {
		limit = len(l.pendingAggregation)
	}
	return l.pendingAggregation[:limit], nil
}

func (l *mockLedger) AggregateMatch(_ context.Context, matchID, matchClass string) (bool, error) {
	if l.aggregateErr != nil {
		return false, l.aggregateErr
	}
	l.aggregated = append(l.aggregated, matchID+":"+matchClass)
	return true, nil
}

func (l *mockLedger) RefreshCombatability(_ context.Context) error {
	l.refreshed++
	return nil
}

// mockFetcher serves canned match documents.
type mockFetcher struct {
	responses map[string]*pubg.MatchResponse
	calls     int
}

func (f *mockFetcher) GetMatch(_ context.Context, matchID string) (*pubg.MatchResponse, error) {
	f.calls++
	resp, ok := f.responses[matchID]
	if !ok {
		return nil, fmt.Errorf("no canned response for %s", matchID)
	}
	return resp, nil
}

type mockDownloader struct {
	size int64
	err  error
	urls []string
}

func (d *mockDownloader) DownloadTelemetry(_ context.Context, telemetryURL, _ string) (int64, error) {
	d.urls = append(d.urls, telemetryURL)
	return d.size, d.err
}

type mockEngine struct {
	processed []string
	err       error
}

func (e *mockEngine) Process(_ context.Context, msg model.ProcessingMessage) error {
	if e.err != nil {
		return e.err
	}
	e.processed = append(e.processed, msg.MatchID)
	return nil
}
