package telemetry

import (
	"sort"
	"time"

	"skirmish/internal/fights"
	"skirmish/internal/model"
	"skirmish/pkg/pubg"
)

// proximityWindow bounds how far from the knock timestamp a position
// sample may sit and still describe the knocker's support.
const proximityWindow = 5 * time.Second

// positionSample is one observed location. Position events outrank
// damage-event locations when both land on the same timestamp.
type positionSample struct {
	at           time.Time
	loc          pubg.Location
	teamID       int
	fromPosition bool
}

// BuildKnockLifecycle matches knocks to their resolving kill or revive
// on dBNOId and snapshots teammate proximity at knock time. It returns
// the per-knock rows and the per-player finishing roll-up.
func BuildKnockLifecycle(matchID string, events []pubg.RawEvent) ([]model.KnockEvent, []model.FinishingSummary) {
	samples := collectPositionSamples(events)

	var knocks []model.KnockEvent
	index := make(map[int64]int) // dBNOId -> knocks slice position

	for _, ev := range events {
		if ev.Type != pubg.EventPlayerMakeGroggy {
			continue
		}
		groggy, err := pubg.Decode[pubg.PlayerMakeGroggy](ev)
		if err != nil || groggy.DBNOID <= 0 ||
			!isRealPlayer(groggy.Attacker) || !isRealPlayer(&groggy.Victim) {
			continue
		}

		knock := model.KnockEvent{
			MatchID:         matchID,
			DBNOID:          groggy.DBNOID,
			AttackerName:    groggy.Attacker.Name,
			AttackerAccount: groggy.Attacker.AccountID,
			AttackerTeamID:  groggy.Attacker.TeamID,
			VictimName:      groggy.Victim.Name,
			VictimAccount:   groggy.Victim.AccountID,
			VictimTeamID:    groggy.Victim.TeamID,
			WeaponID:        groggy.DamageCauserName,
			DamageReason:    groggy.DamageReason,
			Distance:        groggy.Distance / pubg.UnitsPerMeter,
			AttackerX:       groggy.Attacker.Location.X,
			AttackerY:       groggy.Attacker.Location.Y,
			AttackerZ:       groggy.Attacker.Location.Z,
			VictimX:         groggy.Victim.Location.X,
			VictimY:         groggy.Victim.Location.Y,
			VictimZ:         groggy.Victim.Location.Z,
			KnockedAt:       ev.Timestamp,
			Outcome:         model.KnockOutcomeUnknown,
		}
		snapshotTeammates(&knock, groggy.Attacker, ev.Timestamp, samples)

		index[groggy.DBNOID] = len(knocks)
		knocks = append(knocks, knock)
	}

	// Resolve each knock with the kill or revive sharing its dBNOId.
	for _, ev := range events {
		switch ev.Type {
		case pubg.EventPlayerKillV2:
			kill, err := pubg.Decode[pubg.PlayerKillV2](ev)
			if err != nil || kill.DBNOID <= 0 {
				continue
			}
			i, ok := index[kill.DBNOID]
			if !ok || knocks[i].Outcome != model.KnockOutcomeUnknown {
				continue
			}
			k := &knocks[i]
			k.Outcome = model.KnockOutcomeKilled
			ttf := ev.Timestamp.Sub(k.KnockedAt).Seconds()
			k.TimeToFinish = &ttf
			if fin := kill.Finisher; isRealPlayer(fin) {
				k.FinisherName = fin.Name
				k.FinisherIsSelf = fin.Name == k.AttackerName
				k.FinisherIsTeammate = !k.FinisherIsSelf && fin.TeamID == k.AttackerTeamID
			}

		case pubg.EventPlayerRevive:
			revive, err := pubg.Decode[pubg.PlayerRevive](ev)
			if err != nil || revive.DBNOID <= 0 {
				continue
			}
			i, ok := index[revive.DBNOID]
			if !ok || knocks[i].Outcome != model.KnockOutcomeUnknown {
				continue
			}
			knocks[i].Outcome = model.KnockOutcomeRevived
		}
	}

	return knocks, summarizeFinishing(matchID, knocks)
}

// collectPositionSamples indexes observed locations per player from
// position events and, at lower precedence, damage-event actor
// snapshots.
func collectPositionSamples(events []pubg.RawEvent) map[string][]positionSample {
	samples := make(map[string][]positionSample)
	add := func(name string, s positionSample) {
		if name == "" || fights.IsNPC(name) {
			return
		}
		samples[name] = append(samples[name], s)
	}

	for _, ev := range events {
		switch ev.Type {
		case pubg.EventPlayerPosition:
			pos, err := pubg.Decode[pubg.PlayerPosition](ev)
			if err != nil {
				continue
			}
			add(pos.Character.Name, positionSample{
				at: ev.Timestamp, loc: pos.Character.Location,
				teamID: pos.Character.TeamID, fromPosition: true,
			})

		case pubg.EventPlayerTakeDamage:
			dmg, err := pubg.Decode[pubg.PlayerTakeDamage](ev)
			if err != nil {
				continue
			}
			if dmg.Attacker != nil {
				add(dmg.Attacker.Name, positionSample{
					at: ev.Timestamp, loc: dmg.Attacker.Location, teamID: dmg.Attacker.TeamID,
				})
			}
			add(dmg.Victim.Name, positionSample{
				at: ev.Timestamp, loc: dmg.Victim.Location, teamID: dmg.Victim.TeamID,
			})
		}
	}

	for name := range samples {
		s := samples[name]
		sort.SliceStable(s, func(i, j int) bool { return s[i].at.Before(s[j].at) })
	}
	return samples
}

// bestSample picks the sample closest to t within the window, preferring
// position events over damage snapshots at equal offsets.
func bestSample(s []positionSample, t time.Time) (positionSample, bool) {
	var best positionSample
	found := false
	var bestDelta time.Duration

	for _, sample := range s {
		delta := sample.at.Sub(t)
		if delta < 0 {
			delta = -delta
		}
		if delta > proximityWindow {
			continue
		}
		better := !found ||
			delta < bestDelta ||
			(delta == bestDelta && sample.fromPosition && !best.fromPosition)
		if better {
			best, bestDelta, found = sample, delta, true
		}
	}
	return best, found
}

// snapshotTeammates fills the knocker-team proximity fields on a knock.
func snapshotTeammates(knock *model.KnockEvent, attacker *pubg.Character, at time.Time, samples map[string][]positionSample) {
	var distances []float64

	for name, s := range samples {
		if name == attacker.Name {
			continue
		}
		sample, ok := bestSample(s, at)
		if !ok || sample.teamID != attacker.TeamID {
			continue
		}
		d := attacker.Location.DistanceTo(sample.loc) / pubg.UnitsPerMeter
		distances = append(distances, d)
	}

	knock.AliveTeammates = len(distances)
	knock.TeammateDistances = distances
	if len(distances) == 0 {
		return
	}

	sort.Float64s(distances)
	nearest := distances[0]
	knock.NearestTeammateDistance = &nearest

	sum := 0.0
	for _, d := range distances {
		sum += d
		switch {
		case d <= 50:
			knock.TeammatesWithin50++
			knock.TeammatesWithin100++
			knock.TeammatesWithin200++
		case d <= 100:
			knock.TeammatesWithin100++
			knock.TeammatesWithin200++
		case d <= 200:
			knock.TeammatesWithin200++
		}
	}
	mean := sum / float64(len(distances))
	knock.MeanTeammateDistance = &mean

	variance := 0.0
	for _, d := range distances {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(distances))
	knock.TeamSpreadVariance = &variance
}

// summarizeFinishing rolls knock rows into the per-player histograms.
func summarizeFinishing(matchID string, knocks []model.KnockEvent) []model.FinishingSummary {
	byPlayer := make(map[string]*model.FinishingSummary)
	finishTimes := make(map[string][]float64)

	for _, k := range knocks {
		s, ok := byPlayer[k.AttackerName]
		if !ok {
			s = &model.FinishingSummary{
				MatchID:    matchID,
				PlayerName: k.AttackerName,
				TeamID:     k.AttackerTeamID,
			}
			byPlayer[k.AttackerName] = s
		}

		s.Knocks++
		switch k.Outcome {
		case model.KnockOutcomeKilled:
			s.Converted++
			if k.FinisherIsSelf {
				s.SelfFinished++
			} else if k.FinisherIsTeammate {
				s.TeammateFinished++
			}
			if k.TimeToFinish != nil {
				finishTimes[k.AttackerName] = append(finishTimes[k.AttackerName], *k.TimeToFinish)
			}
		case model.KnockOutcomeRevived:
			s.Revived++
		default:
			s.Unknown++
		}

		switch {
		case k.Distance < 10:
			s.Knocks0To10++
		case k.Distance < 50:
			s.Knocks10To50++
		case k.Distance < 100:
			s.Knocks50To100++
		case k.Distance < 200:
			s.Knocks100To200++
		default:
			s.Knocks200Plus++
		}

		if k.NearestTeammateDistance != nil {
			switch d := *k.NearestTeammateDistance; {
			case d < 25:
				s.SupportUnder25++
			case d < 50:
				s.Support25To50++
			case d < 100:
				s.Support50To100++
			case d < 200:
				s.Support100To200++
			default:
				s.Support200Plus++
			}
		}
	}

	var out []model.FinishingSummary
	for name, s := range byPlayer {
		if times := finishTimes[name]; len(times) > 0 {
			sum := 0.0
			for _, t := range times {
				sum += t
			}
			avg := sum / float64(len(times))
			s.AvgTimeToFinish = &avg
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerName < out[j].PlayerName })
	return out
}
