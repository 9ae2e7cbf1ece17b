package telemetry

import (
	"time"

	"skirmish/internal/model"
	"skirmish/pkg/pubg"
)

// circleSampleInterval thins LogGameStatePeriodic, which upstream emits
// roughly every second late in the match.
const circleSampleInterval = 10 // seconds of elapsed game time

// positionStaleness drops players whose last known location is too old
// to pair with a zone snapshot.
const positionStaleness = 30 * time.Second

// CircleResult carries both outputs of the circle extractor: detail rows
// for tracked players and running positional means for everyone.
type CircleResult struct {
	Detail []model.CirclePosition
	Means  []model.PositionalMeans
}

type meanAccumulator struct {
	centerSum float64
	edgeSum   float64
	inZone    int
	samples   int
}

// ExtractCirclePositions walks the event stream in order, carrying the
// latest position per living player, and samples zone geometry against
// those positions at each thinned game-state snapshot.
func ExtractCirclePositions(matchID string, events []pubg.RawEvent, tracked map[string]bool) CircleResult {
	type lastPos struct {
		char pubg.Character
		at   time.Time
	}
	positions := make(map[string]lastPos)
	dead := make(map[string]bool)
	means := make(map[string]*meanAccumulator)

	var detail []model.CirclePosition
	lastSampled := -circleSampleInterval

	for _, ev := range events {
		switch ev.Type {
		case pubg.EventPlayerPosition:
			pos, err := pubg.Decode[pubg.PlayerPosition](ev)
			if err != nil || !isRealPlayer(&pos.Character) {
				continue
			}
			positions[pos.Character.Name] = lastPos{char: pos.Character, at: ev.Timestamp}

		case pubg.EventPlayerKillV2:
			kill, err := pubg.Decode[pubg.PlayerKillV2](ev)
			if err != nil {
				continue
			}
			dead[kill.Victim.Name] = true

		case pubg.EventGameStatePeriodic:
			state, err := pubg.Decode[pubg.GameStatePeriodic](ev)
			if err != nil || state.Common.IsGame < 1 {
				continue
			}
			if state.GameState.ElapsedTime < lastSampled+circleSampleInterval {
				continue
			}
			lastSampled = state.GameState.ElapsedTime

			center := state.GameState.SafetyZonePosition
			radius := state.GameState.SafetyZoneRadius / pubg.UnitsPerMeter

			for name, p := range positions {
				if dead[name] || ev.Timestamp.Sub(p.at) > positionStaleness {
					continue
				}
				fromCenter := p.char.Location.HorizontalDistanceTo(center) / pubg.UnitsPerMeter
				fromEdge := radius - fromCenter
				inZone := fromCenter <= radius

				acc, ok := means[name]
				if !ok {
					acc = &meanAccumulator{}
					means[name] = acc
				}
				acc.centerSum += fromCenter
				acc.edgeSum += fromEdge
				if inZone {
					acc.inZone++
				}
				acc.samples++

				if !tracked[name] {
					continue
				}
				detail = append(detail, model.CirclePosition{
					MatchID:            matchID,
					PlayerName:         name,
					TeamID:             p.char.TeamID,
					X:                  p.char.Location.X,
					Y:                  p.char.Location.Y,
					Z:                  p.char.Location.Z,
					CircleX:            center.X,
					CircleY:            center.Y,
					CircleRadius:       radius,
					DistanceFromCenter: fromCenter,
					DistanceFromEdge:   fromEdge,
					InZone:             inZone,
					Phase:              state.Common.IsGame,
					ElapsedSeconds:     state.GameState.ElapsedTime,
					SampledAt:          ev.Timestamp,
				})
			}
		}
	}

	result := CircleResult{Detail: detail}
	for name, acc := range means {
		if acc.samples == 0 {
			continue
		}
		result.Means = append(result.Means, model.PositionalMeans{
			PlayerName:            name,
			AvgDistanceFromCenter: acc.centerSum / float64(acc.samples),
			AvgDistanceFromEdge:   acc.edgeSum / float64(acc.samples),
			InZoneRatio:           float64(acc.inZone) / float64(acc.samples),
			Samples:               acc.samples,
		})
	}
	return result
}
