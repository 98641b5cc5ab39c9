package config

import (
	"os"
	"path/filepath"
	"testing"

	"galaxy/lib/combat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 10, cfg.RoundCap)
	assert.False(t, cfg.Attrition)
	assert.Equal(t, 8, cfg.BattleWorkers)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", ":memory:")
	t.Setenv("COMBAT_ROUND_CAP", "6")
	t.Setenv("COMBAT_ATTRITION", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, DriverSqlite, cfg.StoreDriver)
	assert.Equal(t, ":memory:", cfg.SqlitePath)
	assert.Equal(t, 6, cfg.RoundCap)
	assert.True(t, cfg.Attrition)
	assert.Len(t, cfg.EngineOptions(), 2)
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")

	t.Setenv("PORT", "8080")
	t.Setenv("STORE_DRIVER", "mongo")
	_, err = Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)

	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("COMBAT_ROUND_CAP", "0")
	_, err = Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadCatalog(t *testing.T) {
	catalog, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, combat.DefaultCatalog().Types(), catalog.Types())

	path := filepath.Join(t.TempDir(), "ships.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ships:\n  probe: {cost: 3, attack: 1, health: 2}\n"), 0o600))

	catalog, err = Config{CatalogPath: path}.Catalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"probe"}, catalog.Types())

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
