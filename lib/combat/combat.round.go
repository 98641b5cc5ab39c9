package combat

import (
	"math"
	"math/rand"
)

const (
	VarianceMin = 0.8
	VarianceMax = 1.2

	MinLossFraction = 0.05
	MaxLossFraction = 0.5
	// HolderLossShare is the part of the loser's fraction the holder pays.
	HolderLossShare = 0.25

	lossEpsilon = 1e-9
)

// Combatant pairs a fleet with its assessment for the current round.
type Combatant struct {
	Fleet FleetSnapshot
	Power PowerAssessment
}

type RoundOutcome struct {
	AttackerVariance float64
	DefenderVariance float64
	AttackerAdjusted float64
	DefenderAdjusted float64
	Holder           Side

	AttackerLossFraction float64
	DefenderLossFraction float64
	AttackerLosses       map[string]int
	DefenderLosses       map[string]int

	Attacker FleetSnapshot
	Defender FleetSnapshot
}

// RoundSimulator runs single damage exchanges. It owns its random source
// and must not be shared between goroutines.
type RoundSimulator struct {
	rng *rand.Rand
}

func NewRoundSimulator(rng *rand.Rand) *RoundSimulator {
	return &RoundSimulator{rng: rng}
}

func (s *RoundSimulator) variance() float64 {
	return VarianceMin + (VarianceMax-VarianceMin)*s.rng.Float64()
}

// Simulate plays one round. The attacker variance is always drawn first so
// a seed replays the same battle. Input fleets are not modified.
func (s *RoundSimulator) Simulate(attacker, defender Combatant, attack_type AttackType) RoundOutcome {
	outcome := RoundOutcome{
		AttackerVariance: s.variance(),
		DefenderVariance: s.variance(),
	}
	outcome.AttackerAdjusted = attacker.Power.EffectivePower * outcome.AttackerVariance
	outcome.DefenderAdjusted = defender.Power.EffectivePower * outcome.DefenderVariance

	// attacker holds ties
	if outcome.AttackerAdjusted >= outcome.DefenderAdjusted {
		outcome.Holder = Attacker
		outcome.DefenderLossFraction = lossFraction(outcome.DefenderAdjusted, outcome.AttackerAdjusted)
		outcome.AttackerLossFraction = outcome.DefenderLossFraction * HolderLossShare
	} else {
		outcome.Holder = Defender
		outcome.AttackerLossFraction = lossFraction(outcome.AttackerAdjusted, outcome.DefenderAdjusted)
		outcome.DefenderLossFraction = outcome.AttackerLossFraction * HolderLossShare
	}

	if attack_type == Bombard {
		outcome.DefenderLossFraction = math.Min(1, outcome.DefenderLossFraction*2)
	}

	outcome.Attacker, outcome.AttackerLosses = ApplyLosses(attacker.Fleet, outcome.AttackerLossFraction)
	outcome.Defender, outcome.DefenderLosses = ApplyLosses(defender.Fleet, outcome.DefenderLossFraction)
	return outcome
}

// lossFraction grows with the gap between the two adjusted powers.
func lossFraction(loser, holder float64) float64 {
	if holder <= 0 {
		return MinLossFraction
	}
	fraction := 1 - loser/holder
	return math.Max(MinLossFraction, math.Min(MaxLossFraction, fraction))
}

// ApplyLosses removes fraction of every ship type from fleet. Whole ships
// are destroyed by floor; the remainder is carried in Damage so that small
// stacks still wear down over several rounds. Counts never go below zero.
func ApplyLosses(fleet FleetSnapshot, fraction float64) (FleetSnapshot, map[string]int) {
	next := fleet.Clone()
	next.Composition = make(map[string]int, len(fleet.Composition))
	next.Damage = make(map[string]float64, len(fleet.Composition))
	losses := make(map[string]int, len(fleet.Composition))

	if fraction < 0 {
		fraction = 0
	}

	for _, ship_type := range shipTypes(fleet.Composition) {
		count := fleet.Composition[ship_type]
		if count <= 0 {
			next.Composition[ship_type] = 0
			continue
		}
		pending := fraction*float64(count) + fleet.Damage[ship_type]
		lost := int(math.Floor(pending + lossEpsilon))
		if lost > count {
			lost = count
		}
		if lost < 0 {
			lost = 0
		}
		next.Composition[ship_type] = count - lost
		losses[ship_type] = lost
		if count-lost > 0 {
			next.Damage[ship_type] = math.Max(0, pending-float64(lost))
		}
	}
	return next, losses
}
