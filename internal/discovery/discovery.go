// Package discovery runs the two match-finding lanes. The main lane
// scans tracked players on a slow cycle; the tournament lane samples
// lobby rosters on a fast cycle inside its schedule window. Both diff
// upstream match ids against the ledger and publish match.discovered
// for every id they win.
package discovery

import (
	"context"

	"skirmish/internal/model"
	"skirmish/pkg/pubg"
)

// MatchAPI is the upstream client slice both lanes use.
type MatchAPI interface {
	LookupPlayers(ctx context.Context, names []string) (*pubg.PlayerResponse, error)
	GetMatch(ctx context.Context, matchID string) (*pubg.MatchResponse, error)
}

// Publisher sends queue payloads. The routed result is already logged
// and counted by the gateway; lanes only use it for the run summary.
type Publisher interface {
	Publish(ctx context.Context, msgType, step string, payload model.Stamped, priority uint8) bool
}

// Ledger is the match store slice discovery writes through.
type Ledger interface {
	InsertMatch(ctx context.Context, m *model.Match) (bool, error)
	FilterUnknownMatchIDs(ctx context.Context, ids []string) ([]string, error)
}

// matchFromResponse maps an upstream match document onto a ledger row
// for the given lane. The datetime parse error is the caller's to
// handle; everything else is best effort.
func matchFromResponse(resp *pubg.MatchResponse, discoveredBy, priority string) (*model.Match, error) {
	attrs := resp.Data.Attributes
	startedAt, err := attrs.StartedAt()
	if err != nil {
		return nil, err
	}

	m := &model.Match{
		MatchID:           resp.Data.ID,
		MapName:           pubg.TranslateMapName(attrs.MapName),
		GameMode:          attrs.GameMode,
		GameType:          attrs.MatchType,
		MatchDatetime:     startedAt,
		Duration:          attrs.Duration,
		Status:            model.MatchStatusDiscovered,
		DiscoveredBy:      discoveredBy,
		DiscoveryPriority: priority,
	}
	if url, err := resp.TelemetryURL(); err == nil {
		m.TelemetryURL = url
	}
	return m, nil
}

// discoveredMessage builds the queue payload for a freshly inserted row.
func discoveredMessage(m *model.Match, source string) *model.DiscoveredMessage {
	return &model.DiscoveredMessage{
		MatchID:       m.MatchID,
		MapName:       m.MapName,
		GameMode:      m.GameMode,
		GameType:      m.GameType,
		MatchDatetime: m.MatchDatetime,
		DiscoveredBy:  m.DiscoveredBy,
		Priority:      m.DiscoveryPriority,
		RoutingMeta:   model.RoutingMeta{Source: source},
	}
}
