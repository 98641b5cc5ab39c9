package combat

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func combatant(t *testing.T, calculator *Calculator, fleet FleetSnapshot) Combatant {
	t.Helper()
	power, err := calculator.Assess(fleet)
	require.NoError(t, err)
	return Combatant{Fleet: fleet, Power: power}
}

func TestLossFraction(t *testing.T) {
	tests := []struct {
		loser, holder float64
		want          float64
	}{
		{100, 100, MinLossFraction},
		{99, 100, MinLossFraction},
		{70, 100, 0.3},
		{10, 100, MaxLossFraction},
		{0, 100, MaxLossFraction},
		{0, 0, MinLossFraction},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, lossFraction(tt.loser, tt.holder), 1e-9, "loser=%v holder=%v", tt.loser, tt.holder)
	}
}

func TestSimulateVarianceBounds(t *testing.T) {
	calculator := NewCalculator(DefaultCatalog())
	simulator := NewRoundSimulator(rand.New(rand.NewSource(7)))
	attacker := combatant(t, calculator, NewFleet("a", map[string]int{Fighter: 10}))
	defender := combatant(t, calculator, NewFleet("d", map[string]int{Corvette: 4}))

	for i := 0; i < 500; i++ {
		outcome := simulator.Simulate(attacker, defender, Assault)
		assert.GreaterOrEqual(t, outcome.AttackerVariance, VarianceMin)
		assert.LessOrEqual(t, outcome.AttackerVariance, VarianceMax)
		assert.GreaterOrEqual(t, outcome.DefenderVariance, VarianceMin)
		assert.LessOrEqual(t, outcome.DefenderVariance, VarianceMax)
		assert.InDelta(t, attacker.Power.EffectivePower*outcome.AttackerVariance, outcome.AttackerAdjusted, 1e-9)

		if outcome.Holder == Attacker {
			assert.InDelta(t, outcome.DefenderLossFraction*HolderLossShare, outcome.AttackerLossFraction, 1e-12)
		} else {
			assert.InDelta(t, outcome.AttackerLossFraction*HolderLossShare, outcome.DefenderLossFraction, 1e-12)
		}
	}
}

func TestSimulateAttackerHoldsTies(t *testing.T) {
	fleet := NewFleet("a", map[string]int{Fighter: 10})
	simulator := NewRoundSimulator(rand.New(rand.NewSource(1)))

	// zero power on both sides is an exact tie whatever the variance
	outcome := simulator.Simulate(Combatant{Fleet: fleet}, Combatant{Fleet: fleet.Clone()}, Assault)
	assert.Equal(t, Attacker, outcome.Holder)
	assert.InDelta(t, MinLossFraction, outcome.DefenderLossFraction, 1e-12)
	assert.InDelta(t, MinLossFraction*HolderLossShare, outcome.AttackerLossFraction, 1e-12)
}

func TestSimulateIsReproducible(t *testing.T) {
	calculator := NewCalculator(DefaultCatalog())
	attacker := combatant(t, calculator, NewFleet("a", map[string]int{Destroyer: 6, Scout: 20}))
	defender := combatant(t, calculator, NewFleet("d", map[string]int{Cruiser: 2}))

	first := NewRoundSimulator(rand.New(rand.NewSource(42))).Simulate(attacker, defender, Assault)
	second := NewRoundSimulator(rand.New(rand.NewSource(42))).Simulate(attacker, defender, Assault)
	assert.Equal(t, first, second)
}

func TestSimulateBombardDoublesDefenderLosses(t *testing.T) {
	calculator := NewCalculator(DefaultCatalog())
	attacker := combatant(t, calculator, NewFleet("a", map[string]int{Fighter: 40}))
	defender := combatant(t, calculator, NewFleet("d", map[string]int{Fighter: 40}))

	for seed := int64(0); seed < 50; seed++ {
		assault := NewRoundSimulator(rand.New(rand.NewSource(seed))).Simulate(attacker, defender, Assault)
		bombard := NewRoundSimulator(rand.New(rand.NewSource(seed))).Simulate(attacker, defender, Bombard)

		assert.Equal(t, assault.Holder, bombard.Holder)
		assert.InDelta(t, assault.AttackerLossFraction, bombard.AttackerLossFraction, 1e-12)
		assert.InDelta(t, assault.DefenderLossFraction*2, bombard.DefenderLossFraction, 1e-12)
		assert.GreaterOrEqual(t, bombard.DefenderLosses[Fighter], assault.DefenderLosses[Fighter])
	}
}

func TestApplyLossesCarriesDamage(t *testing.T) {
	fleet := NewFleet("a", map[string]int{Dreadnought: 1})

	once, losses := ApplyLosses(fleet, 0.5)
	assert.Equal(t, 0, losses[Dreadnought])
	assert.Equal(t, 1, once.Composition[Dreadnought])
	assert.InDelta(t, 0.5, once.Damage[Dreadnought], 1e-12)

	twice, losses := ApplyLosses(once, 0.5)
	assert.Equal(t, 1, losses[Dreadnought])
	assert.Equal(t, 0, twice.Composition[Dreadnought])
	assert.Zero(t, twice.Damage[Dreadnought])

	assert.Equal(t, 1, fleet.Composition[Dreadnought], "input fleet must not change")
	assert.Nil(t, fleet.Damage)
}

func TestApplyLossesConservation(t *testing.T) {
	catalog := DefaultCatalog()
	calculator := NewCalculator(catalog)
	types := catalog.Types()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("a round never adds ships nor removes more health than the fleet had", prop.ForAll(
		func(composition map[string]int, fraction float64) bool {
			fleet := NewFleet("a", composition)
			next, losses := ApplyLosses(fleet, fraction)

			health_lost := 0
			for ship_type, count := range fleet.Composition {
				if next.Composition[ship_type] > count || next.Composition[ship_type] < 0 {
					return false
				}
				if count-next.Composition[ship_type] != losses[ship_type] {
					return false
				}
				ship_stats, _ := catalog.StatsFor(ship_type)
				health_lost += losses[ship_type] * ship_stats.Health
			}

			before, err := calculator.Assess(fleet)
			if err != nil {
				return false
			}
			return health_lost <= before.TotalHealth
		},
		genComposition(types),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
