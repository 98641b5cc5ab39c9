package combat

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogProgression(t *testing.T) {
	catalog := DefaultCatalog()
	types := catalog.Types()
	require.Equal(t, []string{Scout, Fighter, Corvette, Destroyer, Cruiser, Battleship, Dreadnought}, types)

	for i := 1; i < len(types); i++ {
		previous, err := catalog.StatsFor(types[i-1])
		require.NoError(t, err)
		current, err := catalog.StatsFor(types[i])
		require.NoError(t, err)

		assert.Greater(t, current.Cost, previous.Cost, types[i])
		assert.Greater(t, current.Attack*current.Health, previous.Attack*previous.Health, types[i])
	}
}

func TestCatalogStatsForIsStable(t *testing.T) {
	catalog := DefaultCatalog()
	types := catalog.Types()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("statsFor returns the same stats on every call", prop.ForAll(
		func(index int) bool {
			first, err1 := catalog.StatsFor(types[index])
			second, err2 := catalog.StatsFor(types[index])
			return err1 == nil && err2 == nil && first == second
		},
		gen.IntRange(0, len(types)-1),
	))

	properties.TestingRun(t)
}

func TestCatalogUnknownShipType(t *testing.T) {
	_, err := DefaultCatalog().StatsFor("mothership")
	require.ErrorIs(t, err, ErrUnknownShipType)
	assert.False(t, IsInputError(err))
}

func TestNewCatalogCopiesInput(t *testing.T) {
	stats := map[string]ShipStats{" Probe ": {Cost: 1, Attack: 1, Health: 1}}
	catalog, err := NewCatalog(stats)
	require.NoError(t, err)

	stats[" Probe "] = ShipStats{Cost: 99, Attack: 99, Health: 99}
	delete(stats, " Probe ")

	probe, err := catalog.StatsFor("probe")
	require.NoError(t, err)
	assert.Equal(t, ShipStats{Cost: 1, Attack: 1, Health: 1}, probe)

	types := catalog.Types()
	types[0] = "tampered"
	assert.True(t, catalog.Has("probe"))
	assert.Equal(t, []string{"probe"}, catalog.Types())
}

func TestNewCatalogRejectsInvalidStats(t *testing.T) {
	tests := []struct {
		name  string
		stats map[string]ShipStats
	}{
		{"empty", map[string]ShipStats{}},
		{"blank name", map[string]ShipStats{" ": {Cost: 1, Attack: 1, Health: 1}}},
		{"zero attack", map[string]ShipStats{"probe": {Cost: 1, Attack: 0, Health: 1}}},
		{"zero health", map[string]ShipStats{"probe": {Cost: 1, Attack: 1, Health: 0}}},
		{"duplicate", map[string]ShipStats{"probe": {Cost: 1, Attack: 1, Health: 1}, "PROBE": {Cost: 1, Attack: 1, Health: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.stats)
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	input := `
ships:
  probe: {cost: 5, attack: 1, health: 4}
  lancer:
    cost: 80
    attack: 20
    health: 40
`
	catalog, err := LoadCatalog(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"probe", "lancer"}, catalog.Types())

	lancer, err := catalog.StatsFor("lancer")
	require.NoError(t, err)
	assert.Equal(t, ShipStats{Cost: 80, Attack: 20, Health: 40}, lancer)

	_, err = LoadCatalog(strings.NewReader("ships: [1, 2]"))
	assert.Error(t, err)

	_, err = LoadCatalog(strings.NewReader("ships: {}"))
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}
