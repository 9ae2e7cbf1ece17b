package pubg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
)

// MatchResponse is the root structure for match data from the API.
type MatchResponse struct {
	Data     MatchData       `json:"data"`
	Included []IncludedEntry `json:"included"`
	Links    Links           `json:"links"`
}

// MatchData represents information about a match.
type MatchData struct {
	Type          string             `json:"type"`
	ID            string             `json:"id"`
	Attributes    MatchAttributes    `json:"attributes"`
	Relationships MatchRelationships `json:"relationships"`
	Links         SelfLinks          `json:"links"`
}

// MatchAttributes contains match details.
type MatchAttributes struct {
	CreatedAt     string `json:"createdAt"` // ISO-8601 UTC
	Duration      int    `json:"duration"`
	TitleID       string `json:"titleId"`
	IsCustomMatch bool   `json:"isCustomMatch"`
	MatchType     string `json:"matchType"` // official, competitive, custom, event, ...
	SeasonState   string `json:"seasonState"`
	GameMode      string `json:"gameMode"`
	ShardID       string `json:"shardId"`
	MapName       string `json:"mapName"` // Internal name, see TranslateMapName
}

// StartedAt parses the upstream creation timestamp.
func (a MatchAttributes) StartedAt() (time.Time, error) {
	return time.Parse(time.RFC3339, a.CreatedAt)
}

// MatchRelationships represents related data for a match.
type MatchRelationships struct {
	Rosters RelationshipData `json:"rosters"`
	Assets  RelationshipData `json:"assets"`
}

// IncludedEntry is the tagged envelope for the heterogeneous included
// array. Attributes stay raw until the entry is decoded by type.
type IncludedEntry struct {
	Type          string          `json:"type"` // roster | participant | asset
	ID            string          `json:"id"`
	Attributes    json.RawMessage `json:"attributes"`
	Relationships json.RawMessage `json:"relationships,omitempty"`
}

// Participant is one decoded participant entry.
type Participant struct {
	ID    string
	Stats ParticipantStats
}

// ParticipantStats carries the upstream per-participant statistic set.
type ParticipantStats struct {
	DBNOs           int     `json:"DBNOs"`
	Assists         int     `json:"assists"`
	Boosts          int     `json:"boosts"`
	DamageDealt     float64 `json:"damageDealt"`
	DeathType       string  `json:"deathType"`
	HeadshotKills   int     `json:"headshotKills"`
	Heals           int     `json:"heals"`
	KillPlace       int     `json:"killPlace"`
	KillStreaks     int     `json:"killStreaks"`
	Kills           int     `json:"kills"`
	LongestKill     float64 `json:"longestKill"`
	Name            string  `json:"name"`
	PlayerID        string  `json:"playerId"`
	Revives         int     `json:"revives"`
	RideDistance    float64 `json:"rideDistance"`
	RoadKills       int     `json:"roadKills"`
	SwimDistance    float64 `json:"swimDistance"`
	TeamKills       int     `json:"teamKills"`
	TimeSurvived    float64 `json:"timeSurvived"`
	VehicleDestroys int     `json:"vehicleDestroys"`
	WalkDistance    float64 `json:"walkDistance"`
	WeaponsAcquired int     `json:"weaponsAcquired"`
	WinPlace        int     `json:"winPlace"`
}

// Roster is one decoded roster entry with its member participant ids.
type Roster struct {
	ID             string
	TeamID         int
	Rank           int
	Won            bool
	ParticipantIDs []string
}

// Asset is one decoded asset entry; the telemetry asset carries the CDN URL.
type Asset struct {
	ID        string
	Name      string
	URL       string
	CreatedAt string
}

type participantAttributes struct {
	Stats   ParticipantStats `json:"stats"`
	ShardID string           `json:"shardId"`
}

type rosterAttributes struct {
	Stats struct {
		Rank   int `json:"rank"`
		TeamID int `json:"teamId"`
	} `json:"stats"`
	Won     string `json:"won"` // Upstream sends "true"/"false" strings
	ShardID string `json:"shardId"`
}

type rosterRelationships struct {
	Participants RelationshipData `json:"participants"`
}

type assetAttributes struct {
	Name      string `json:"name"`
	URL       string `json:"URL"`
	CreatedAt string `json:"createdAt"`
}

// Participants decodes every included entry of type participant.
func (m *MatchResponse) Participants() ([]Participant, error) {
	var out []Participant
	for _, entry := range m.Included {
		if entry.Type != "participant" {
			continue
		}
		var attrs participantAttributes
		if err := json.Unmarshal(entry.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("decoding participant %s: %w", entry.ID, err)
		}
		out = append(out, Participant{ID: entry.ID, Stats: attrs.Stats})
	}
	return out, nil
}

// Rosters decodes every included entry of type roster.
func (m *MatchResponse) Rosters() ([]Roster, error) {
	var out []Roster
	for _, entry := range m.Included {
		if entry.Type != "roster" {
			continue
		}
		var attrs rosterAttributes
		if err := json.Unmarshal(entry.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("decoding roster %s: %w", entry.ID, err)
		}
		roster := Roster{
			ID:     entry.ID,
			TeamID: attrs.Stats.TeamID,
			Rank:   attrs.Stats.Rank,
			Won:    attrs.Won == "true",
		}
		if len(entry.Relationships) > 0 {
			var rels rosterRelationships
			if err := json.Unmarshal(entry.Relationships, &rels); err != nil {
				return nil, fmt.Errorf("decoding roster %s relationships: %w", entry.ID, err)
			}
			for _, item := range rels.Participants.Data {
				if item.Type == "participant" {
					roster.ParticipantIDs = append(roster.ParticipantIDs, item.ID)
				}
			}
		}
		out = append(out, roster)
	}
	return out, nil
}

// TelemetryURL walks data.relationships.assets into the included asset
// entries and returns the telemetry CDN URL.
func (m *MatchResponse) TelemetryURL() (string, error) {
	assetIDs := make(map[string]bool)
	for _, item := range m.Data.Relationships.Assets.Data {
		if item.Type == "asset" {
			assetIDs[item.ID] = true
		}
	}
	if len(assetIDs) == 0 {
		return "", fmt.Errorf("no assets found in match data")
	}

	for _, entry := range m.Included {
		if entry.Type != "asset" || !assetIDs[entry.ID] {
			continue
		}
		var attrs assetAttributes
		if err := json.Unmarshal(entry.Attributes, &attrs); err != nil {
			return "", fmt.Errorf("decoding asset %s: %w", entry.ID, err)
		}
		if attrs.Name == "telemetry" && attrs.URL != "" {
			return attrs.URL, nil
		}
	}
	return "", fmt.Errorf("telemetry URL not found in match data")
}

// IsBot reports whether an account id belongs to an AI player.
func IsBot(accountID string) bool {
	trimmed := strings.TrimLeftFunc(accountID, unicode.IsSpace)
	return len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "ai.")
}

// IsValidPlayer filters participants without a usable name or with a bot
// account id.
func (p Participant) IsValidPlayer() bool {
	if strings.TrimSpace(p.Stats.Name) == "" {
		return false
	}
	if p.Stats.PlayerID == "" || IsBot(p.Stats.PlayerID) {
		return false
	}
	return true
}

// MatchClass buckets a match for career aggregation.
func MatchClass(matchType string) string {
	if matchType == "competitive" {
		return "ranked"
	}
	return "normal"
}

// GetMatch retrieves a single match document.
func (c *Client) GetMatch(ctx context.Context, matchID string) (*MatchResponse, error) {
	operationID := fmt.Sprintf("get_match_%s_%d", matchID, time.Now().UnixNano())

	if matchID == "" {
		return nil, fmt.Errorf("matchID cannot be empty")
	}

	endpoint := fmt.Sprintf("/shards/%s/matches/%s", c.platform, matchID)
	respBody, err := c.request(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("error getting match data: %w", err)
	}

	var matchResponse MatchResponse
	if err := json.Unmarshal(respBody, &matchResponse); err != nil {
		log.Error().
			Str("operation_id", operationID).
			Err(err).
			Msg("GetMatch response unmarshaling failed")
		return nil, &APIError{Kind: MalformedResponse, Message: fmt.Sprintf("unmarshaling match document: %v", err)}
	}

	log.Debug().
		Str("operation_id", operationID).
		Str("match_id", matchResponse.Data.ID).
		Str("game_mode", matchResponse.Data.Attributes.GameMode).
		Str("match_type", matchResponse.Data.Attributes.MatchType).
		Str("map_name", matchResponse.Data.Attributes.MapName).
		Int("included_objects_count", len(matchResponse.Included)).
		Msg("GetMatch retrieved match data")

	return &matchResponse, nil
}
