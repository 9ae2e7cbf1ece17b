// Package telemetry is the match processing engine: it materializes the
// raw event array once, fans out the independent extractors, then runs
// the dependent knock-lifecycle and fight passes and the summary
// roll-up.
package telemetry

import (
	"strings"
	"time"

	"skirmish/internal/fights"
	"skirmish/internal/model"
	"skirmish/pkg/pubg"
)

// matchStartTime anchors time_survived calculations. The first event of
// the array predates the drop, which is close enough for survival
// measured in minutes.
func matchStartTime(events []pubg.RawEvent) time.Time {
	if len(events) == 0 {
		return time.Time{}
	}
	return events[0].Timestamp
}

func isRealPlayer(c *pubg.Character) bool {
	return c != nil && c.Name != "" && !fights.IsNPC(c.Name)
}

// ExtractLandings returns one row per player touchdown.
func ExtractLandings(matchID, mapName string, events []pubg.RawEvent) []model.Landing {
	var out []model.Landing
	for _, ev := range events {
		if ev.Type != pubg.EventParachuteLanding {
			continue
		}
		landing, err := pubg.Decode[pubg.ParachuteLanding](ev)
		if err != nil || !isRealPlayer(&landing.Character) {
			continue
		}
		out = append(out, model.Landing{
			MatchID:    matchID,
			PlayerName: landing.Character.Name,
			AccountID:  landing.Character.AccountID,
			TeamID:     landing.Character.TeamID,
			X:          landing.Character.Location.X,
			Y:          landing.Character.Location.Y,
			Z:          landing.Character.Location.Z,
			IsGame:     landing.Common.IsGame,
			MapName:    mapName,
			LandedAt:   ev.Timestamp,
		})
	}
	return out
}

// ExtractKillPositions returns one row per player kill with the
// knock-maker and finisher sub-records.
func ExtractKillPositions(matchID string, events []pubg.RawEvent) []model.KillPosition {
	var out []model.KillPosition
	for _, ev := range events {
		if ev.Type != pubg.EventPlayerKillV2 {
			continue
		}
		kill, err := pubg.Decode[pubg.PlayerKillV2](ev)
		if err != nil || !isRealPlayer(&kill.Victim) {
			continue
		}

		row := model.KillPosition{
			MatchID:          matchID,
			VictimName:       kill.Victim.Name,
			VictimAccount:    kill.Victim.AccountID,
			VictimTeamID:     kill.Victim.TeamID,
			VictimX:          kill.Victim.Location.X,
			VictimY:          kill.Victim.Location.Y,
			VictimZ:          kill.Victim.Location.Z,
			DBNOID:           kill.DBNOID,
			IsSuicide:        kill.IsSuicide,
			VictimInBlueZone: kill.Victim.IsInBlueZone,
			KilledAt:         ev.Timestamp,
		}

		if maker := kill.DBNOMaker; isRealPlayer(maker) {
			row.DBNOMakerName = maker.Name
			row.DBNOMakerAccount = maker.AccountID
			row.DBNOMakerTeamID = maker.TeamID
			row.DBNOMakerX = maker.Location.X
			row.DBNOMakerY = maker.Location.Y
			row.DBNOMakerZ = maker.Location.Z
			row.DBNOMakerZone = maker.Zone
			row.DBNODamageReason = kill.DBNODamageInfo.DamageReason
			row.DBNODamageCategory = kill.DBNODamageInfo.DamageTypeCategory
			row.DBNODamageCauser = kill.DBNODamageInfo.DamageCauserName
			row.DBNODistance = kill.DBNODamageInfo.Distance / pubg.UnitsPerMeter
		}

		if fin := kill.Finisher; isRealPlayer(fin) {
			row.FinisherName = fin.Name
			row.FinisherAccount = fin.AccountID
			row.FinisherTeamID = fin.TeamID
			row.FinisherX = fin.Location.X
			row.FinisherY = fin.Location.Y
			row.FinisherZ = fin.Location.Z
			row.FinisherZone = fin.Zone
			row.FinishDamageReason = kill.FinishDamageInfo.DamageReason
			row.FinishDamageCategory = kill.FinishDamageInfo.DamageTypeCategory
			row.FinishDamageCauser = kill.FinishDamageInfo.DamageCauserName
			row.FinishDistance = kill.FinishDamageInfo.Distance / pubg.UnitsPerMeter
		}

		out = append(out, row)
	}
	return out
}

// ExtractWeaponKills returns one row per knock and per kill attributed
// to a weapon id.
func ExtractWeaponKills(matchID string, events []pubg.RawEvent) []model.WeaponKillEvent {
	start := matchStartTime(events)
	var out []model.WeaponKillEvent

	for _, ev := range events {
		switch ev.Type {
		case pubg.EventPlayerMakeGroggy:
			groggy, err := pubg.Decode[pubg.PlayerMakeGroggy](ev)
			if err != nil || !isRealPlayer(groggy.Attacker) || !isRealPlayer(&groggy.Victim) {
				continue
			}
			out = append(out, model.WeaponKillEvent{
				MatchID:         matchID,
				AttackerName:    groggy.Attacker.Name,
				AttackerAccount: groggy.Attacker.AccountID,
				AttackerTeamID:  groggy.Attacker.TeamID,
				VictimName:      groggy.Victim.Name,
				VictimTeamID:    groggy.Victim.TeamID,
				WeaponID:        groggy.DamageCauserName,
				WeaponCategory:  pubg.CategorizeDamage(groggy.DamageCauserName, groggy.DamageTypeCategory),
				DamageType:      groggy.DamageTypeCategory,
				DamageReason:    groggy.DamageReason,
				Distance:        groggy.Distance / pubg.UnitsPerMeter,
				IsKnock:         true,
				ZonePhase:       groggy.Common.IsGame,
				TimeSurvived:    ev.Timestamp.Sub(start).Seconds(),
				OccurredAt:      ev.Timestamp,
			})

		case pubg.EventPlayerKillV2:
			kill, err := pubg.Decode[pubg.PlayerKillV2](ev)
			if err != nil || !isRealPlayer(kill.Finisher) || !isRealPlayer(&kill.Victim) {
				continue
			}
			out = append(out, model.WeaponKillEvent{
				MatchID:         matchID,
				AttackerName:    kill.Finisher.Name,
				AttackerAccount: kill.Finisher.AccountID,
				AttackerTeamID:  kill.Finisher.TeamID,
				VictimName:      kill.Victim.Name,
				VictimTeamID:    kill.Victim.TeamID,
				WeaponID:        kill.FinishDamageInfo.DamageCauserName,
				WeaponCategory:  pubg.CategorizeDamage(kill.FinishDamageInfo.DamageCauserName, kill.FinishDamageInfo.DamageTypeCategory),
				DamageType:      kill.FinishDamageInfo.DamageTypeCategory,
				DamageReason:    kill.FinishDamageInfo.DamageReason,
				Distance:        kill.FinishDamageInfo.Distance / pubg.UnitsPerMeter,
				IsKill:          true,
				ZonePhase:       kill.Common.IsGame,
				TimeSurvived:    ev.Timestamp.Sub(start).Seconds(),
				OccurredAt:      ev.Timestamp,
			})
		}
	}
	return out
}

// ExtractDamageEvents returns detail rows for events touching a tracked
// player. Aggregate consumers count everyone through ExtractAdvancedStats.
func ExtractDamageEvents(matchID string, events []pubg.RawEvent, tracked map[string]bool) []model.DamageEvent {
	var out []model.DamageEvent
	for _, ev := range events {
		if ev.Type != pubg.EventPlayerTakeDamage {
			continue
		}
		dmg, err := pubg.Decode[pubg.PlayerTakeDamage](ev)
		if err != nil || dmg.Damage <= 0 || !isRealPlayer(&dmg.Victim) {
			continue
		}
		attackerTracked := dmg.Attacker != nil && tracked[dmg.Attacker.Name]
		if !attackerTracked && !tracked[dmg.Victim.Name] {
			continue
		}

		row := model.DamageEvent{
			MatchID:      matchID,
			VictimName:   dmg.Victim.Name,
			VictimTeamID: dmg.Victim.TeamID,
			DamageType:   dmg.DamageTypeCategory,
			DamageReason: dmg.DamageReason,
			DamageCauser: dmg.DamageCauserName,
			Damage:       dmg.Damage,
			VictimX:      dmg.Victim.Location.X,
			VictimY:      dmg.Victim.Location.Y,
			VictimZ:      dmg.Victim.Location.Z,
			OccurredAt:   ev.Timestamp,
		}
		if isRealPlayer(dmg.Attacker) {
			row.AttackerName = dmg.Attacker.Name
			row.AttackerTeamID = dmg.Attacker.TeamID
			row.AttackerX = dmg.Attacker.Location.X
			row.AttackerY = dmg.Attacker.Location.Y
			row.AttackerZ = dmg.Attacker.Location.Z
			row.Distance = dmg.Attacker.Location.DistanceTo(dmg.Victim.Location) / pubg.UnitsPerMeter
		}
		out = append(out, row)
	}
	return out
}

// Item id prefixes for consumable classification.
const (
	healItemPrefix  = "Item_Heal_"
	boostItemPrefix = "Item_Boost_"
	smokeItemInfix  = "Smoke"
)

// ExtractItemUsage tallies heals, boosts, and throwables per player.
func ExtractItemUsage(events []pubg.RawEvent) map[string]*model.ItemUsage {
	usage := make(map[string]*model.ItemUsage)
	get := func(name string) *model.ItemUsage {
		u, ok := usage[name]
		if !ok {
			u = &model.ItemUsage{PlayerName: name}
			usage[name] = u
		}
		return u
	}

	for _, ev := range events {
		switch ev.Type {
		case pubg.EventItemUse:
			use, err := pubg.Decode[pubg.ItemUse](ev)
			if err != nil || !isRealPlayer(&use.Character) {
				continue
			}
			switch {
			case strings.HasPrefix(use.Item.ItemID, healItemPrefix):
				get(use.Character.Name).HealsUsed++
			case strings.HasPrefix(use.Item.ItemID, boostItemPrefix):
				get(use.Character.Name).BoostsUsed++
			}

		case pubg.EventPlayerUseThrowable:
			throw, err := pubg.Decode[pubg.PlayerUseThrowable](ev)
			if err != nil || !isRealPlayer(&throw.Attacker) {
				continue
			}
			u := get(throw.Attacker.Name)
			u.ThrowablesUsed++
			if strings.Contains(throw.Weapon.ItemID, smokeItemInfix) {
				u.SmokesThrown++
			}
		}
	}
	return usage
}

// ExtractAdvancedStats computes killsteals, throwable damage, and damage
// received per player across all participants.
//
// A killsteal is a finisher on another team than the knocker of the same
// dBNOId; same-team finishes, including by the knocker, never count.
func ExtractAdvancedStats(events []pubg.RawEvent) map[string]*model.AdvancedStats {
	stats := make(map[string]*model.AdvancedStats)
	get := func(name string) *model.AdvancedStats {
		s, ok := stats[name]
		if !ok {
			s = &model.AdvancedStats{PlayerName: name}
			stats[name] = s
		}
		return s
	}

	knockTeams := make(map[int64]int)
	for _, ev := range events {
		if ev.Type != pubg.EventPlayerMakeGroggy {
			continue
		}
		groggy, err := pubg.Decode[pubg.PlayerMakeGroggy](ev)
		if err != nil || groggy.DBNOID <= 0 || !isRealPlayer(groggy.Attacker) {
			continue
		}
		knockTeams[groggy.DBNOID] = groggy.Attacker.TeamID
	}

	for _, ev := range events {
		switch ev.Type {
		case pubg.EventPlayerKillV2:
			kill, err := pubg.Decode[pubg.PlayerKillV2](ev)
			if err != nil || !isRealPlayer(kill.Finisher) {
				continue
			}
			if team, ok := knockTeams[kill.DBNOID]; ok && team != kill.Finisher.TeamID {
				get(kill.Finisher.Name).Killsteals++
			}

		case pubg.EventPlayerTakeDamage:
			dmg, err := pubg.Decode[pubg.PlayerTakeDamage](ev)
			if err != nil || dmg.Damage <= 0 || !isRealPlayer(&dmg.Victim) {
				continue
			}
			if isRealPlayer(dmg.Attacker) &&
				pubg.CategorizeDamage(dmg.DamageCauserName, dmg.DamageTypeCategory) == pubg.CategoryThrowable {
				get(dmg.Attacker.Name).ThrowableDamage += dmg.Damage
			}
			selfInflicted := dmg.Attacker != nil && dmg.Attacker.Name == dmg.Victim.Name
			if !selfInflicted && dmg.DamageTypeCategory != "Damage_BlueZone" {
				get(dmg.Victim.Name).DamageReceived += dmg.Damage
			}
		}
	}
	return stats
}
