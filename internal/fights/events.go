package fights

import (
	"sort"
	"time"

	"skirmish/pkg/pubg"
)

// EventKind orders combat events that share a timestamp: damage before
// knock before kill, so a knock and the kill that resolves it in the same
// tick cluster deterministically.
type EventKind int

const (
	KindDamage EventKind = iota
	KindKnock
	KindKill
)

func (k EventKind) String() string {
	switch k {
	case KindDamage:
		return "damage"
	case KindKnock:
		return "knock"
	case KindKill:
		return "kill"
	}
	return "unknown"
}

// Actor is one side of a combat event.
type Actor struct {
	Name      string
	AccountID string
	TeamID    int
	Location  pubg.Location
}

// CombatEvent is one damage tick, knock, or kill, normalized for
// clustering. Damage is HP for damage events and zero otherwise. DBNOID
// is meaningful on kills only: -1 marks a kill without a preceding knock.
type CombatEvent struct {
	Kind      EventKind
	Timestamp time.Time
	Attacker  Actor
	Victim    Actor
	Damage    float64
	DBNOID    int64
}

// HasAttacker reports whether the event has a player on the giving end.
// Environmental damage (bluezone, falls) carries an empty attacker.
func (e CombatEvent) HasAttacker() bool {
	return e.Attacker.Name != ""
}

// Location is where the event is anchored for clustering: the victim's
// position, since that is where the fight physically is.
func (e CombatEvent) Location() pubg.Location {
	return e.Victim.Location
}

// npcNames are AI entities that must never appear in fight statistics.
var npcNames = map[string]bool{
	"Commander":     true,
	"Guard":         true,
	"Pillar":        true,
	"SkySoldier":    true,
	"Soldier":       true,
	"PillarSoldier": true,
	"ZombieSoldier": true,
}

// IsNPC reports whether a character name belongs to the AI set.
func IsNPC(name string) bool {
	return npcNames[name]
}

// involvesNPC reports whether either side of the event is an AI entity.
func involvesNPC(e CombatEvent) bool {
	return IsNPC(e.Attacker.Name) || IsNPC(e.Victim.Name)
}

// sortEvents orders events by timestamp, breaking ties by kind
// (damage < knock < kill). The sort is stable so equal events keep their
// stream order.
func sortEvents(events []CombatEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].Kind < events[j].Kind
	})
}

// CombatEventsFromTelemetry lifts the raw event stream into normalized
// combat events. Damage events with zero damage are dropped, as are
// events with no victim.
func CombatEventsFromTelemetry(events []pubg.RawEvent) ([]CombatEvent, error) {
	var out []CombatEvent
	for _, ev := range events {
		switch ev.Type {
		case pubg.EventPlayerTakeDamage:
			td, err := pubg.Decode[pubg.PlayerTakeDamage](ev)
			if err != nil {
				return nil, err
			}
			if td.Damage <= 0 || td.Victim.Name == "" {
				continue
			}
			ce := CombatEvent{
				Kind:      KindDamage,
				Timestamp: ev.Timestamp,
				Victim:    actorFromCharacter(td.Victim),
				Damage:    td.Damage,
			}
			if td.Attacker != nil {
				ce.Attacker = actorFromCharacter(*td.Attacker)
			}
			out = append(out, ce)

		case pubg.EventPlayerMakeGroggy:
			kg, err := pubg.Decode[pubg.PlayerMakeGroggy](ev)
			if err != nil {
				return nil, err
			}
			if kg.Victim.Name == "" {
				continue
			}
			ce := CombatEvent{
				Kind:      KindKnock,
				Timestamp: ev.Timestamp,
				Victim:    actorFromCharacter(kg.Victim),
				DBNOID:    kg.DBNOID,
			}
			if kg.Attacker != nil {
				ce.Attacker = actorFromCharacter(*kg.Attacker)
			}
			out = append(out, ce)

		case pubg.EventPlayerKillV2:
			kill, err := pubg.Decode[pubg.PlayerKillV2](ev)
			if err != nil {
				return nil, err
			}
			if kill.Victim.Name == "" {
				continue
			}
			ce := CombatEvent{
				Kind:      KindKill,
				Timestamp: ev.Timestamp,
				Victim:    actorFromCharacter(kill.Victim),
				DBNOID:    kill.DBNOID,
			}
			if kill.Finisher != nil {
				ce.Attacker = actorFromCharacter(*kill.Finisher)
			} else if kill.Killer != nil {
				ce.Attacker = actorFromCharacter(*kill.Killer)
			}
			out = append(out, ce)
		}
	}
	return out, nil
}

func actorFromCharacter(c pubg.Character) Actor {
	return Actor{
		Name:      c.Name,
		AccountID: c.AccountID,
		TeamID:    c.TeamID,
		Location:  c.Location,
	}
}
