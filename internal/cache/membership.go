package cache

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// Matches wraps a Cache with the known-match membership operations the
// discovery services use to avoid re-diffing ids against the ledger.
type Matches struct {
	cache Cache
}

func NewMatches(cache Cache) *Matches {
	return &Matches{cache: cache}
}

func matchKey(matchID string) string {
	return "match:" + matchID
}

// Known reports whether the match id was recently seen. Errors degrade
// to "unknown" so discovery falls through to the ledger.
func (m *Matches) Known(ctx context.Context, matchID string) bool {
	if m == nil || m.cache == nil {
		return false
	}
	_, err := m.cache.Get(ctx, matchKey(matchID))
	if errors.Is(err, ErrCacheMiss) {
		return false
	}
	if err != nil {
		log.Warn().Err(err).Str("match_id", matchID).Msg("match cache lookup failed")
		return false
	}
	return true
}

// MarkKnown records the id after a successful ledger insert (or after
// finding it already there).
func (m *Matches) MarkKnown(ctx context.Context, matchID string) {
	if m == nil || m.cache == nil {
		return
	}
	if err := m.cache.Set(ctx, matchKey(matchID), []byte{1}, MatchTTL); err != nil {
		log.Warn().Err(err).Str("match_id", matchID).Msg("match cache write failed")
	}
}

// FilterUnknown returns the ids not present in the cache, preserving
// order. Cached hits are dropped without touching the ledger.
func (m *Matches) FilterUnknown(ctx context.Context, ids []string) []string {
	if m == nil || m.cache == nil {
		return ids
	}
	var unknown []string
	for _, id := range ids {
		if !m.Known(ctx, id) {
			unknown = append(unknown, id)
		}
	}
	return unknown
}
