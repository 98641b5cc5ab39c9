package balance

import (
	"bytes"
	"context"
	"testing"

	"galaxy/lib/combat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mirror() Matchup {
	return Matchup{
		Attacker: combat.NewFleet("a", map[string]int{combat.Fighter: 5}),
		Defender: combat.NewFleet("d", map[string]int{combat.Fighter: 5}),
		Type:     combat.Assault,
	}
}

func TestRunIsReproducibleAcrossWorkerCounts(t *testing.T) {
	engine := combat.NewEngine(combat.DefaultCatalog())

	single := &Harness{Engine: engine, Workers: 1, Trials: 300, BaseSeed: 1000}
	parallel := &Harness{Engine: engine, Workers: 8, Trials: 300, BaseSeed: 1000}

	first, err := single.Run(context.Background(), mirror())
	require.NoError(t, err)
	second, err := parallel.Run(context.Background(), mirror())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 300, first.Trials)
	assert.Equal(t, first.Trials, first.AttackerWins+first.DefenderWins+first.Retreats)
	assert.Greater(t, first.MeanRounds, 1.0)
}

func TestRunMirrorMatchIsBalanced(t *testing.T) {
	harness := NewHarness(combat.NewEngine(combat.DefaultCatalog()), 1000)

	tally, err := harness.Run(context.Background(), mirror())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, tally.WinRate(), 0.07)
}

func TestRunErrors(t *testing.T) {
	engine := combat.NewEngine(combat.DefaultCatalog())

	_, err := (&Harness{Engine: engine, Trials: 0}).Run(context.Background(), mirror())
	assert.ErrorIs(t, err, ErrNoTrials)

	bad := mirror()
	bad.Defender = combat.NewFleet("d", nil)
	_, err = (&Harness{Engine: engine, Workers: 2, Trials: 10}).Run(context.Background(), bad)
	assert.ErrorIs(t, err, combat.ErrInvalidCombatant)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&Harness{Engine: engine, Workers: 2, Trials: 10}).Run(ctx, mirror())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRoundCap(t *testing.T) {
	harness := &Harness{Engine: combat.NewEngine(combat.DefaultCatalog()), Workers: 4, Trials: 50, RoundCap: 1}

	tally, err := harness.Run(context.Background(), Matchup{
		Attacker: combat.NewFleet("a", map[string]int{combat.Cruiser: 10}),
		Defender: combat.NewFleet("d", map[string]int{combat.Cruiser: 10}),
	})
	require.NoError(t, err)
	assert.Equal(t, 50, tally.TotalRounds)
	assert.InDelta(t, 1.0, tally.MeanRounds, 1e-12)
}

func TestShipMatrix(t *testing.T) {
	harness := &Harness{Engine: combat.NewEngine(combat.DefaultCatalog()), Workers: 4, Trials: 40}

	matrix, err := harness.ShipMatrix(context.Background(), 2500)
	require.NoError(t, err)
	require.Len(t, matrix.Types, 7)
	require.Len(t, matrix.Rates, 7)
	for _, row := range matrix.Rates {
		require.Len(t, row, 7)
		for _, rate := range row {
			assert.GreaterOrEqual(t, rate, 0.0)
			assert.LessOrEqual(t, rate, 1.0)
		}
	}

	var out bytes.Buffer
	require.NoError(t, WriteMatrix(&out, matrix))
	assert.Contains(t, out.String(), combat.Dreadnought)
	assert.Contains(t, out.String(), "%")
}

func TestFleetForBudget(t *testing.T) {
	catalog := combat.DefaultCatalog()

	fleet, err := fleetForBudget(catalog, "a", combat.Fighter, 100)
	require.NoError(t, err)
	assert.Equal(t, 4, fleet.Composition[combat.Fighter])

	fleet, err = fleetForBudget(catalog, "a", combat.Dreadnought, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, fleet.Composition[combat.Dreadnought])

	_, err = fleetForBudget(catalog, "a", "mothership", 100)
	assert.ErrorIs(t, err, combat.ErrUnknownShipType)
}

func TestExperienceCurve(t *testing.T) {
	harness := &Harness{Engine: combat.NewEngine(combat.DefaultCatalog()), Workers: 4, Trials: 1000}

	curve, err := harness.ExperienceCurve(context.Background(), map[string]int{combat.Fighter: 10}, []int{0, 100})
	require.NoError(t, err)
	require.Len(t, curve, 2)
	assert.Equal(t, 100, curve[1].Experience)
	assert.Greater(t, curve[1].WinRate, curve[0].WinRate)
	assert.Greater(t, curve[1].WinRate, 0.5)

	var out bytes.Buffer
	require.NoError(t, WriteCurve(&out, curve))
	assert.Contains(t, out.String(), "win rate")
}
