package combat

// BattleState is what a retreat policy sees before each round.
type BattleState struct {
	Round    int
	Attacker PowerAssessment
	Defender PowerAssessment
	// Initial assessments taken before the first round.
	InitialAttacker PowerAssessment
	InitialDefender PowerAssessment

	AttackerFleet FleetSnapshot
	DefenderFleet FleetSnapshot
}

// RetreatPolicy decides whether one side withdraws before the next round.
// It is never consulted before the first round.
type RetreatPolicy interface {
	Retreat(state BattleState) (Side, bool)
}

type RetreatFunc func(state BattleState) (Side, bool)

func (f RetreatFunc) Retreat(state BattleState) (Side, bool) {
	return f(state)
}

// RetreatAfter withdraws side once rounds rounds have been fought. At least
// one round is always fought, so rounds below 1 count as 1.
func RetreatAfter(side Side, rounds int) RetreatPolicy {
	rounds = max(1, rounds)
	return RetreatFunc(func(state BattleState) (Side, bool) {
		return side, state.Round > rounds
	})
}

// RetreatBelow withdraws side when its remaining health drops under ratio
// of what it started with.
func RetreatBelow(side Side, ratio float64) RetreatPolicy {
	return RetreatFunc(func(state BattleState) (Side, bool) {
		current, initial := state.Attacker, state.InitialAttacker
		if side == Defender {
			current, initial = state.Defender, state.InitialDefender
		}
		if initial.TotalHealth == 0 {
			return side, false
		}
		return side, float64(current.TotalHealth) < ratio*float64(initial.TotalHealth)
	})
}

// AnyRetreat returns the first policy that fires. The attacker's policies
// should come first when both sides may withdraw.
func AnyRetreat(policies ...RetreatPolicy) RetreatPolicy {
	return RetreatFunc(func(state BattleState) (Side, bool) {
		for _, policy := range policies {
			if policy == nil {
				continue
			}
			if side, ok := policy.Retreat(state); ok {
				return side, true
			}
		}
		return "", false
	})
}
