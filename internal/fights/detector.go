// Package fights clusters a match's combat events into engagements,
// classifies each against the four-rule ladder, and emits the fights that
// pass together with their per-player participant lines.
package fights

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"skirmish/internal/metrics"
	"skirmish/internal/model"
	"skirmish/pkg/pubg"
)

// Clustering and classification constants. Distances are meters.
const (
	EngagementWindow      = 45 * time.Second
	MaxEngagementDistance = 300.0 // Events beyond this join without moving the center
	HardBreakDistance     = 500.0 // Events beyond this start a new engagement
	MaxFightDuration      = 240 * time.Second

	reciprocalDamageFloor = 150.0
	reciprocalSideShare   = 0.20
	knockReturnFireFloor  = 75.0
)

// Detector turns combat event streams into persisted-shape fights.
type Detector struct {
	logger zerolog.Logger
}

func NewDetector(logger zerolog.Logger) *Detector {
	return &Detector{logger: logger.With().Str("component", "fights").Logger()}
}

// Detect runs the full pipeline for one match: NPC filtering, time-and-
// space clustering, the classifier ladder, outcome assignment, and
// participant enrichment. Engagements that match no rule are dropped.
func (d *Detector) Detect(matchID string, events []CombatEvent) []model.Fight {
	filtered := make([]CombatEvent, 0, len(events))
	for _, ev := range events {
		if involvesNPC(ev) {
			continue
		}
		filtered = append(filtered, ev)
	}
	sortEvents(filtered)

	engagements := cluster(filtered)

	var out []model.Fight
	discarded := 0
	for _, eng := range engagements {
		reason, ok := classify(eng)
		if !ok {
			discarded++
			continue
		}
		fight := eng.toFight(matchID, reason)
		assignOutcome(&fight, eng)
		fight.Participants = eng.participants()
		out = append(out, fight)
	}
	metrics.EngagementsDiscarded.Add(float64(discarded))

	d.logger.Debug().
		Str("match_id", matchID).
		Int("combat_events", len(filtered)).
		Int("engagements", len(engagements)).
		Int("fights", len(out)).
		Int("discarded", discarded).
		Msg("fight detection complete")
	return out
}

// engagement is a rolling cluster of combat events under construction.
type engagement struct {
	events []CombatEvent
	start  time.Time
	last   time.Time

	center      pubg.Location
	centerCount int // Events that contributed to the running center
	teams       map[int]bool
}

func newEngagement(first CombatEvent) *engagement {
	eng := &engagement{
		start:       first.Timestamp,
		last:        first.Timestamp,
		center:      first.Location(),
		centerCount: 1,
		teams:       make(map[int]bool),
	}
	eng.events = append(eng.events, first)
	eng.noteTeams(first)
	return eng
}

func (e *engagement) noteTeams(ev CombatEvent) {
	if ev.HasAttacker() {
		e.teams[ev.Attacker.TeamID] = true
	}
	e.teams[ev.Victim.TeamID] = true
}

// add appends an event, updating the running center with events that land
// within MaxEngagementDistance; long-range pokes join without dragging the
// center toward them.
func (e *engagement) add(ev CombatEvent) {
	e.events = append(e.events, ev)
	e.last = ev.Timestamp
	e.noteTeams(ev)

	loc := ev.Location()
	if loc.HorizontalDistanceTo(e.center)/pubg.UnitsPerMeter <= MaxEngagementDistance {
		n := float64(e.centerCount)
		e.center.X = (e.center.X*n + loc.X) / (n + 1)
		e.center.Y = (e.center.Y*n + loc.Y) / (n + 1)
		e.centerCount++
	}
}

// accepts reports whether the event continues this engagement.
func (e *engagement) accepts(ev CombatEvent) bool {
	if ev.Timestamp.Sub(e.last) > EngagementWindow {
		return false
	}
	if ev.Location().HorizontalDistanceTo(e.center)/pubg.UnitsPerMeter > HardBreakDistance {
		return false
	}
	if ev.Timestamp.Sub(e.start) > MaxFightDuration {
		return false
	}
	return true
}

// cluster walks the sorted stream and groups events into engagements.
func cluster(events []CombatEvent) []*engagement {
	var out []*engagement
	var current *engagement
	for _, ev := range events {
		if current == nil || !current.accepts(ev) {
			current = newEngagement(ev)
			out = append(out, current)
			continue
		}
		current.add(ev)
	}
	return out
}

// Per-engagement tallies used by the classifier and outcome assignment.

func (e *engagement) knocks() int {
	n := 0
	for _, ev := range e.events {
		if ev.Kind == KindKnock {
			n++
		}
	}
	return n
}

func (e *engagement) kills() []CombatEvent {
	var out []CombatEvent
	for _, ev := range e.events {
		if ev.Kind == KindKill {
			out = append(out, ev)
		}
	}
	return out
}

// teamDamage sums damage dealt per attacking team.
func (e *engagement) teamDamage() map[int]float64 {
	out := make(map[int]float64)
	for _, ev := range e.events {
		if ev.Kind == KindDamage && ev.HasAttacker() {
			out[ev.Attacker.TeamID] += ev.Damage
		}
	}
	return out
}

// teamDeaths counts kill victims per team.
func (e *engagement) teamDeaths() map[int]int {
	out := make(map[int]int)
	for _, ev := range e.events {
		if ev.Kind == KindKill {
			out[ev.Victim.TeamID]++
		}
	}
	return out
}

// teamKills counts kills dealt per team.
func (e *engagement) teamKills() map[int]int {
	out := make(map[int]int)
	for _, ev := range e.events {
		if ev.Kind == KindKill && ev.HasAttacker() {
			out[ev.Attacker.TeamID]++
		}
	}
	return out
}

// teamKnocks counts knocks dealt per team.
func (e *engagement) teamKnocks() map[int]int {
	out := make(map[int]int)
	for _, ev := range e.events {
		if ev.Kind == KindKnock && ev.HasAttacker() {
			out[ev.Attacker.TeamID]++
		}
	}
	return out
}

// teamMembers collects the distinct players observed per team.
func (e *engagement) teamMembers() map[int]map[string]bool {
	out := make(map[int]map[string]bool)
	note := func(a Actor) {
		if a.Name == "" {
			return
		}
		if out[a.TeamID] == nil {
			out[a.TeamID] = make(map[string]bool)
		}
		out[a.TeamID][a.Name] = true
	}
	for _, ev := range e.events {
		note(ev.Attacker)
		note(ev.Victim)
	}
	return out
}

// sortedTeams returns the engagement's team ids in ascending order.
func (e *engagement) sortedTeams() []int {
	teams := make([]int, 0, len(e.teams))
	for t := range e.teams {
		teams = append(teams, t)
	}
	sort.Ints(teams)
	return teams
}

// classify runs the priority ladder. The first rule that fires names the
// fight; an engagement matching no rule is not a fight.
func classify(e *engagement) (string, bool) {
	kills := e.kills()
	knocks := e.knocks()
	casualties := knocks + len(kills)

	// Rule 1: multiple casualties.
	if casualties >= 2 {
		return model.ReasonMultipleCasualties, true
	}

	// Rule 2: single instant kill with resistance. The victim's team must
	// have fought back hard enough for the threshold set by the imbalance;
	// below it the engagement is an execution, not a fight.
	if len(kills) == 1 && knocks == 0 && kills[0].DBNOID == -1 {
		kill := kills[0]
		members := e.teamMembers()
		attackers := len(members[kill.Attacker.TeamID])
		victims := len(members[kill.Victim.TeamID])

		threshold := 25.0
		switch {
		case attackers-victims >= 3:
			threshold = 75.0
		case attackers-victims == 2:
			threshold = 50.0
		}

		if e.teamDamage()[kill.Victim.TeamID] >= threshold {
			return model.ReasonSingleKillResisted, true
		}
		return "", false
	}

	damage := e.teamDamage()
	total := 0.0
	for _, d := range damage {
		total += d
	}

	// Rule 3: reciprocal damage, no casualties.
	if casualties == 0 && total >= reciprocalDamageFloor {
		a, b := topTwoTeamsByDamage(damage)
		if b >= 0 && damage[a] >= reciprocalSideShare*total && damage[b] >= reciprocalSideShare*total {
			return model.ReasonReciprocalDamage, true
		}
	}

	// Rule 4: single knock with return fire.
	if knocks == 1 && len(kills) == 0 {
		a, b := topTwoTeamsByDamage(damage)
		if b >= 0 && damage[a] >= knockReturnFireFloor && damage[b] >= knockReturnFireFloor {
			return model.ReasonKnockReturnFire, true
		}
	}

	return "", false
}

// topTwoTeamsByDamage returns the two heaviest-hitting team ids, lower id
// first on equal damage. The second id is -1 when fewer than two teams
// dealt damage.
func topTwoTeamsByDamage(damage map[int]float64) (int, int) {
	teams := make([]int, 0, len(damage))
	for t := range damage {
		teams = append(teams, t)
	}
	sort.Slice(teams, func(i, j int) bool {
		if damage[teams[i]] != damage[teams[j]] {
			return damage[teams[i]] > damage[teams[j]]
		}
		return teams[i] < teams[j]
	})
	switch len(teams) {
	case 0:
		return -1, -1
	case 1:
		return teams[0], -1
	}
	return teams[0], teams[1]
}

// toFight builds the fight record shell: time range, teams, geometry, and
// totals. Outcome fields are filled by assignOutcome.
func (e *engagement) toFight(matchID, reason string) model.Fight {
	teams := e.sortedTeams()

	damageTotal := 0.0
	damageEvents := 0
	attackEvents := 0
	spread := 0.0
	for _, ev := range e.events {
		if ev.Kind == KindDamage {
			damageTotal += ev.Damage
			damageEvents++
		}
		if ev.HasAttacker() {
			attackEvents++
		}
		if d := ev.Location().HorizontalDistanceTo(e.center) / pubg.UnitsPerMeter; d > spread {
			spread = d
		}
	}

	fight := model.Fight{
		MatchID:         matchID,
		StartedAt:       e.start,
		EndedAt:         e.last,
		DurationSeconds: e.last.Sub(e.start).Seconds(),
		TeamIDs:         teams,
		CenterX:         e.center.X,
		CenterY:         e.center.Y,
		SpreadRadius:    spread,
		TotalKnocks:     e.knocks(),
		TotalKills:      len(e.kills()),
		TotalDamage:     damageTotal,
		DamageEvents:    damageEvents,
		AttackEvents:    attackEvents,
		FightReason:     reason,
		TeamOutcomes:    make(map[int]string),
	}

	// Primary pair = the two most damaging teams; everyone else arrived to
	// third-party.
	a, b := topTwoTeamsByDamage(e.teamDamage())
	if a < 0 && len(teams) > 0 {
		a = teams[0]
	}
	if b < 0 && len(teams) > 1 {
		for _, t := range teams {
			if t != a {
				b = t
				break
			}
		}
	}
	fight.PrimaryTeamA = a
	fight.PrimaryTeamB = b
	for _, t := range teams {
		if t != a && t != b {
			fight.ThirdPartyTeams = append(fight.ThirdPartyTeams, t)
		}
	}
	return fight
}

// assignOutcome fills the outcome classifier, winner/loser, and the
// per-team outcome map.
func assignOutcome(fight *model.Fight, e *engagement) {
	teams := fight.TeamIDs
	deaths := e.teamDeaths()

	if len(teams) >= 3 {
		assignThirdParty(fight, e)
		return
	}

	for _, t := range teams {
		fight.TeamOutcomes[t] = model.TeamOutcomeDraw
	}
	if len(teams) < 2 {
		fight.Outcome = model.OutcomeDraw
		return
	}

	a, b := teams[0], teams[1]
	members := e.teamMembers()
	totalDeaths := deaths[a] + deaths[b]
	diff := deaths[a] - deaths[b]

	winner, loser := -1, -1
	switch {
	case len(members[a]) > 0 && deaths[a] >= len(members[a]):
		// One side lost everyone it brought.
		fight.Outcome = model.OutcomeDecisiveWin
		winner, loser = b, a
	case len(members[b]) > 0 && deaths[b] >= len(members[b]):
		fight.Outcome = model.OutcomeDecisiveWin
		winner, loser = a, b
	case diff >= 2:
		fight.Outcome = model.OutcomeDecisiveWin
		winner, loser = b, a
	case diff <= -2:
		fight.Outcome = model.OutcomeDecisiveWin
		winner, loser = a, b
	case diff == 1 && totalDeaths >= 2:
		fight.Outcome = model.OutcomeMarginalWin
		winner, loser = b, a
	case diff == -1 && totalDeaths >= 2:
		fight.Outcome = model.OutcomeMarginalWin
		winner, loser = a, b
	default:
		fight.Outcome = model.OutcomeDraw
		return
	}

	fight.WinningTeam = &winner
	fight.LosingTeam = &loser
	fight.TeamOutcomes[winner] = model.TeamOutcomeWon
	fight.TeamOutcomes[loser] = model.TeamOutcomeLost
}

// assignThirdParty handles the three-or-more-team case: loser is the team
// with most deaths, winner the team with most kills (ties broken by
// knocks, then damage), everyone else draws.
func assignThirdParty(fight *model.Fight, e *engagement) {
	fight.Outcome = model.OutcomeThirdParty

	deaths := e.teamDeaths()
	kills := e.teamKills()
	knocks := e.teamKnocks()
	damage := e.teamDamage()

	loser := fight.TeamIDs[0]
	for _, t := range fight.TeamIDs[1:] {
		if deaths[t] > deaths[loser] {
			loser = t
		}
	}

	winner := -1
	for _, t := range fight.TeamIDs {
		if t == loser {
			continue
		}
		if winner < 0 {
			winner = t
			continue
		}
		if kills[t] != kills[winner] {
			if kills[t] > kills[winner] {
				winner = t
			}
			continue
		}
		if knocks[t] != knocks[winner] {
			if knocks[t] > knocks[winner] {
				winner = t
			}
			continue
		}
		if damage[t] > damage[winner] {
			winner = t
		}
	}

	for _, t := range fight.TeamIDs {
		fight.TeamOutcomes[t] = model.TeamOutcomeDraw
	}
	fight.TeamOutcomes[winner] = model.TeamOutcomeWon
	fight.TeamOutcomes[loser] = model.TeamOutcomeLost
	fight.WinningTeam = &winner
	fight.LosingTeam = &loser
}

// participants aggregates per-player lines for every player that appeared
// in any event of the engagement.
func (e *engagement) participants() []model.FightParticipant {
	type accum struct {
		p        model.FightParticipant
		sumX     float64
		sumY     float64
		posCount int
	}
	byName := make(map[string]*accum)
	order := []string{}

	get := func(a Actor) *accum {
		acc, ok := byName[a.Name]
		if !ok {
			acc = &accum{p: model.FightParticipant{
				PlayerName: a.Name,
				AccountID:  a.AccountID,
				TeamID:     a.TeamID,
				Survived:   true,
			}}
			byName[a.Name] = acc
			order = append(order, a.Name)
		}
		return acc
	}
	observe := func(acc *accum, loc pubg.Location) {
		acc.sumX += loc.X
		acc.sumY += loc.Y
		acc.posCount++
	}

	for _, ev := range e.events {
		victim := get(ev.Victim)
		observe(victim, ev.Victim.Location)

		var attacker *accum
		if ev.HasAttacker() {
			attacker = get(ev.Attacker)
			observe(attacker, ev.Attacker.Location)
			attacker.p.Attacks++
		}

		switch ev.Kind {
		case KindDamage:
			victim.p.DamageTaken += ev.Damage
			if attacker != nil {
				attacker.p.DamageDealt += ev.Damage
			}
		case KindKnock:
			if attacker != nil {
				attacker.p.Knocks++
			}
			if !victim.p.WasKnocked {
				victim.p.WasKnocked = true
				ts := ev.Timestamp
				victim.p.KnockedAt = &ts
			}
		case KindKill:
			if attacker != nil {
				attacker.p.Kills++
			}
			if !victim.p.WasKilled {
				victim.p.WasKilled = true
				victim.p.Survived = false
				ts := ev.Timestamp
				victim.p.KilledAt = &ts
			}
		}
	}

	out := make([]model.FightParticipant, 0, len(order))
	for _, name := range order {
		acc := byName[name]
		if acc.posCount > 0 {
			acc.p.MeanX = acc.sumX / float64(acc.posCount)
			acc.p.MeanY = acc.sumY / float64(acc.posCount)
		}
		out = append(out, acc.p)
	}
	return out
}

// MetersBetween is a helper for callers that reason about fight geometry
// in meters rather than raw world units.
func MetersBetween(a, b pubg.Location) float64 {
	return math.Sqrt((a.X-b.X)*(a.X-b.X)+(a.Y-b.Y)*(a.Y-b.Y)) / pubg.UnitsPerMeter
}
