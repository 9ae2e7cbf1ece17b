package pubg

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const playerLookupChunkSize = 10 // Upstream caps filter[playerNames] at 10 names per call

// PlayerResponse is the root structure for player data from the API.
type PlayerResponse struct {
	Data  []PlayerData `json:"data"`
	Links Links        `json:"links"`
}

// PlayerData represents information about a player.
type PlayerData struct {
	Type          string              `json:"type"`
	ID            string              `json:"id"`
	Attributes    PlayerAttributes    `json:"attributes"`
	Relationships PlayerRelationships `json:"relationships"`
	Links         SelfLinks           `json:"links"`
}

// PlayerAttributes contains player details.
type PlayerAttributes struct {
	Name         string `json:"name"`
	TitleID      string `json:"titleId"`
	ShardID      string `json:"shardId"`
	PatchVersion string `json:"patchVersion"`
	BanType      string `json:"banType"`
	ClanID       string `json:"clanId"`
}

// PlayerRelationships represents related data for a player.
type PlayerRelationships struct {
	Assets  RelationshipData `json:"assets"`
	Matches RelationshipData `json:"matches"`
}

// RelationshipData contains relationship items.
type RelationshipData struct {
	Data []RelatedItem `json:"data"`
}

// RelatedItem represents a related entity reference.
type RelatedItem struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// SelfLinks contains self-referencing links.
type SelfLinks struct {
	Self   string `json:"self"`
	Schema string `json:"schema"`
}

// Links contains top-level links.
type Links struct {
	Self string `json:"self"`
}

// MatchIDs returns the recent match ids attached to a player document,
// newest first as the upstream orders them.
func (p PlayerData) MatchIDs() []string {
	ids := make([]string, 0, len(p.Relationships.Matches.Data))
	for _, item := range p.Relationships.Matches.Data {
		if item.Type == "match" {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

// LookupPlayers fetches player documents by in-game name. Names are
// chunked by ten internally and the chunk responses are merged, so the
// caller can pass any number of names. Names that no longer resolve are
// skipped rather than failing the whole lookup.
func (c *Client) LookupPlayers(ctx context.Context, names []string) (*PlayerResponse, error) {
	operationID := fmt.Sprintf("lookup_players_%d", time.Now().UnixNano())
	startTime := time.Now()

	if len(names) == 0 {
		return nil, fmt.Errorf("names cannot be empty")
	}

	log.Debug().
		Str("operation_id", operationID).
		Int("player_count", len(names)).
		Msg("LookupPlayers started")

	merged := &PlayerResponse{}
	chunks := 0

	for start := 0; start < len(names); start += playerLookupChunkSize {
		end := start + playerLookupChunkSize
		if end > len(names) {
			end = len(names)
		}
		chunk := names[start:end]
		chunks++

		query := url.Values{}
		query.Set("filter[playerNames]", strings.Join(chunk, ","))
		endpoint := fmt.Sprintf("/shards/%s/players?%s", c.platform, query.Encode())

		respBody, err := c.request(ctx, endpoint)
		if err != nil {
			if IsNotFound(err) {
				log.Warn().
					Str("operation_id", operationID).
					Strs("names", chunk).
					Msg("LookupPlayers chunk resolved no players, skipping")
				continue
			}
			return nil, fmt.Errorf("error getting players data: %w", err)
		}

		var chunkResponse PlayerResponse
		if err := json.Unmarshal(respBody, &chunkResponse); err != nil {
			log.Error().
				Str("operation_id", operationID).
				Err(err).
				Msg("LookupPlayers response unmarshaling failed")
			return nil, &APIError{Kind: MalformedResponse, Message: fmt.Sprintf("unmarshaling players document: %v", err)}
		}

		merged.Data = append(merged.Data, chunkResponse.Data...)
		if merged.Links.Self == "" {
			merged.Links = chunkResponse.Links
		}
	}

	log.Debug().
		Str("operation_id", operationID).
		Int("requested", len(names)).
		Int("resolved", len(merged.Data)).
		Int("chunks", chunks).
		Dur("duration", time.Since(startTime)).
		Msg("LookupPlayers completed")

	return merged, nil
}

// GetUniqueMatchIDs flattens the recent-match relationships of every
// player in the response into a de-duplicated id list, preserving
// first-seen order.
func (r *PlayerResponse) GetUniqueMatchIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, player := range r.Data {
		for _, id := range player.MatchIDs() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
