package pubg

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"
)

// UnitsPerMeter converts telemetry world coordinates (centimeters) to meters.
const UnitsPerMeter = 100.0

// Telemetry event type names as they appear in the _T envelope field.
const (
	EventParachuteLanding   = "LogParachuteLanding"
	EventPlayerKillV2       = "LogPlayerKillV2"
	EventPlayerMakeGroggy   = "LogPlayerMakeGroggy"
	EventPlayerTakeDamage   = "LogPlayerTakeDamage"
	EventPlayerRevive       = "LogPlayerRevive"
	EventItemUse            = "LogItemUse"
	EventPlayerUseThrowable = "LogPlayerUseThrowable"
	EventGameStatePeriodic  = "LogGameStatePeriodic"
	EventPlayerPosition     = "LogPlayerPosition"
)

// RawEvent is one telemetry event with its envelope decoded and the full
// object kept raw for typed decoding by whoever cares about the type.
type RawEvent struct {
	Type      string
	Timestamp time.Time
	Data      json.RawMessage
}

type eventEnvelope struct {
	Type      string    `json:"_T"`
	Timestamp time.Time `json:"_D"`
}

// ParseTelemetry streams a telemetry document (a single JSON array of
// event objects) into raw events. The reader must yield decompressed
// JSON; gzip handling belongs to the caller.
func ParseTelemetry(r io.Reader) ([]RawEvent, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading telemetry opening token: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("telemetry document is not a JSON array")
	}

	var events []RawEvent
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding telemetry event %d: %w", len(events), err)
		}
		var env eventEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decoding envelope of event %d: %w", len(events), err)
		}
		events = append(events, RawEvent{Type: env.Type, Timestamp: env.Timestamp, Data: raw})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading telemetry closing token: %w", err)
	}
	return events, nil
}

// Decode unmarshals a raw event into its typed form.
func Decode[T any](ev RawEvent) (*T, error) {
	var out T
	if err := json.Unmarshal(ev.Data, &out); err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", ev.Type, err)
	}
	return &out, nil
}

// Location is a world position in game units (centimeters).
type Location struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DistanceTo returns the 3D distance to other, in game units.
func (l Location) DistanceTo(other Location) float64 {
	dx := l.X - other.X
	dy := l.Y - other.Y
	dz := l.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// HorizontalDistanceTo returns the ground-plane distance to other, in
// game units. Circle geometry and fight clustering ignore elevation.
func (l Location) HorizontalDistanceTo(other Location) float64 {
	dx := l.X - other.X
	dy := l.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Character is the actor snapshot embedded in most telemetry events.
type Character struct {
	Name         string   `json:"name"`
	TeamID       int      `json:"teamId"`
	Health       float64  `json:"health"`
	Location     Location `json:"location"`
	Ranking      int      `json:"ranking"`
	AccountID    string   `json:"accountId"`
	IsInBlueZone bool     `json:"isInBlueZone"`
	IsInRedZone  bool     `json:"isInRedZone"`
	Zone         []string `json:"zone"`
}

// Common carries the match phase marker shared by all events. IsGame is
// 0 in the lobby, fractional on the plane, and >= 1 once the first
// circle is live.
type Common struct {
	IsGame float64 `json:"isGame"`
}

// DamageInfo describes one damage application inside a kill event.
type DamageInfo struct {
	DamageReason            string   `json:"damageReason"`
	DamageTypeCategory      string   `json:"damageTypeCategory"`
	DamageCauserName        string   `json:"damageCauserName"`
	AdditionalInfo          []string `json:"additionalInfo"`
	Distance                float64  `json:"distance"`
	IsThroughPenetrableWall bool     `json:"isThroughPenetrableWall"`
}

// ParachuteLanding fires once per player when they touch down.
type ParachuteLanding struct {
	Character Character `json:"character"`
	Distance  float64   `json:"distance"`
	Common    Common    `json:"common"`
}

// PlayerKillV2 is the authoritative kill record. DBNOID is -1 when the
// kill happened without a preceding knock; DBNOMaker, Finisher and
// Killer are null for environmental deaths.
type PlayerKillV2 struct {
	AttackID         int64      `json:"attackId"`
	DBNOID           int64      `json:"dBNOId"`
	Victim           Character  `json:"victim"`
	VictimWeapon     string     `json:"victimWeapon"`
	DBNOMaker        *Character `json:"dBNOMaker"`
	DBNODamageInfo   DamageInfo `json:"dBNODamageInfo"`
	Finisher         *Character `json:"finisher"`
	FinishDamageInfo DamageInfo `json:"finishDamageInfo"`
	Killer           *Character `json:"killer"`
	IsSuicide        bool       `json:"isSuicide"`
	Common           Common     `json:"common"`
}

// PlayerMakeGroggy records a knock. DBNOID correlates it with the kill
// or revive that resolves it.
type PlayerMakeGroggy struct {
	AttackID            int64      `json:"attackId"`
	Attacker            *Character `json:"attacker"`
	Victim              Character  `json:"victim"`
	DamageReason        string     `json:"damageReason"`
	DamageTypeCategory  string     `json:"damageTypeCategory"`
	DamageCauserName    string     `json:"damageCauserName"`
	Distance            float64    `json:"distance"`
	IsAttackerInVehicle bool       `json:"isAttackerInVehicle"`
	DBNOID              int64      `json:"dBNOId"`
	Common              Common     `json:"common"`
}

// PlayerTakeDamage records one damage tick. Attacker is null for
// environmental damage (bluezone, falling, drowning).
type PlayerTakeDamage struct {
	AttackID           int64      `json:"attackId"`
	Attacker           *Character `json:"attacker"`
	Victim             Character  `json:"victim"`
	DamageTypeCategory string     `json:"damageTypeCategory"`
	DamageReason       string     `json:"damageReason"`
	Damage             float64    `json:"damage"`
	DamageCauserName   string     `json:"damageCauserName"`
	Common             Common     `json:"common"`
}

// PlayerRevive resolves a knock back to playing state.
type PlayerRevive struct {
	Reviver Character `json:"reviver"`
	Victim  Character `json:"victim"`
	DBNOID  int64     `json:"dBNOId"`
	Common  Common    `json:"common"`
}

// Item is the consumable or weapon payload of item events.
type Item struct {
	ItemID      string `json:"itemId"`
	StackCount  int    `json:"stackCount"`
	Category    string `json:"category"`
	SubCategory string `json:"subCategory"`
}

// ItemUse fires when a player consumes a heal or boost item.
type ItemUse struct {
	Character Character `json:"character"`
	Item      Item      `json:"item"`
	Common    Common    `json:"common"`
}

// PlayerUseThrowable fires when a player throws a grenade-class weapon.
type PlayerUseThrowable struct {
	AttackID int64     `json:"attackId"`
	Attacker Character `json:"attacker"`
	Weapon   Item      `json:"weapon"`
	Common   Common    `json:"common"`
}

// GameState is the periodic zone snapshot.
type GameState struct {
	ElapsedTime              int      `json:"elapsedTime"`
	NumAliveTeams            int      `json:"numAliveTeams"`
	NumAlivePlayers          int      `json:"numAlivePlayers"`
	SafetyZonePosition       Location `json:"safetyZonePosition"`
	SafetyZoneRadius         float64  `json:"safetyZoneRadius"`
	PoisonGasWarningPosition Location `json:"poisonGasWarningPosition"`
	PoisonGasWarningRadius   float64  `json:"poisonGasWarningRadius"`
	RedZonePosition          Location `json:"redZonePosition"`
	RedZoneRadius            float64  `json:"redZoneRadius"`
}

// GameStatePeriodic carries the zone state roughly every ten seconds.
type GameStatePeriodic struct {
	GameState GameState `json:"gameState"`
	Common    Common    `json:"common"`
}

// PlayerPosition is the periodic per-player location sample.
type PlayerPosition struct {
	Character       Character `json:"character"`
	ElapsedTime     int       `json:"elapsedTime"`
	NumAlivePlayers int       `json:"numAlivePlayers"`
	Common          Common    `json:"common"`
}
