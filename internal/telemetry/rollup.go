package telemetry

import (
	"sort"

	"skirmish/internal/model"
	"skirmish/pkg/pubg"
)

// BuildWeaponSummaries rolls weapon kill events into the per-(player,
// category) match table. Only player-facing categories are kept.
func BuildWeaponSummaries(matchID string, rows []model.WeaponKillEvent) []model.MatchWeaponSummary {
	type key struct {
		player   string
		category string
	}
	tally := make(map[key]*model.MatchWeaponSummary)

	for _, r := range rows {
		if !pubg.IsPlayerFacingCategory(r.WeaponCategory) {
			continue
		}
		k := key{player: r.AttackerName, category: r.WeaponCategory}
		s, ok := tally[k]
		if !ok {
			s = &model.MatchWeaponSummary{
				MatchID:        matchID,
				PlayerName:     r.AttackerName,
				WeaponCategory: r.WeaponCategory,
			}
			tally[k] = s
		}
		if r.IsKnock {
			s.Knocks++
		}
		if r.IsKill {
			s.Kills++
		}
	}

	out := make([]model.MatchWeaponSummary, 0, len(tally))
	for _, s := range tally {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlayerName != out[j].PlayerName {
			return out[i].PlayerName < out[j].PlayerName
		}
		return out[i].WeaponCategory < out[j].WeaponCategory
	})
	return out
}

// BuildSummaryEnhancements merges the held Phase 1 outputs into one
// per-player update set for the summary rows.
func BuildSummaryEnhancements(matchID string, items map[string]*model.ItemUsage, advanced map[string]*model.AdvancedStats, means []model.PositionalMeans) []model.SummaryEnhancement {
	byPlayer := make(map[string]*model.SummaryEnhancement)
	get := func(name string) *model.SummaryEnhancement {
		e, ok := byPlayer[name]
		if !ok {
			e = &model.SummaryEnhancement{MatchID: matchID, PlayerName: name}
			byPlayer[name] = e
		}
		return e
	}

	for name, u := range items {
		e := get(name)
		e.HealsUsed = u.HealsUsed
		e.BoostsUsed = u.BoostsUsed
		e.ThrowablesUsed = u.ThrowablesUsed
		e.SmokesThrown = u.SmokesThrown
	}
	for name, a := range advanced {
		e := get(name)
		e.Killsteals = a.Killsteals
		e.ThrowableDamage = a.ThrowableDamage
		e.DamageReceived = a.DamageReceived
	}
	for i := range means {
		m := means[i]
		e := get(m.PlayerName)
		e.AvgDistanceFromCenter = &m.AvgDistanceFromCenter
		e.AvgDistanceFromEdge = &m.AvgDistanceFromEdge
		e.InZoneRatio = &m.InZoneRatio
	}

	out := make([]model.SummaryEnhancement, 0, len(byPlayer))
	for _, e := range byPlayer {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerName < out[j].PlayerName })
	return out
}
