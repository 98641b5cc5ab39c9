package config

import (
	"errors"
	"fmt"
	"os"

	"galaxy/lib/combat"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
)

type Config struct {
	Port    int    `env:"PORT" envDefault:"8080"`
	LogFile string `env:"LOG_FILE" envDefault:"logs/galaxy.log"`

	VaultAddr string `env:"VAULT_ADDR"`

	DbAddress string `env:"DB_ADDRESS" envDefault:"localhost:5432"`
	DbName    string `env:"DB_NAME" envDefault:"galaxy"`
	DbUser    string `env:"DB_USER" envDefault:"galaxy"`

	CacheAddress string `env:"CACHE_ADDRESS" envDefault:"localhost:6379"`
	CacheUser    string `env:"CACHE_USER" envDefault:"galaxy"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	SqlitePath  string `env:"SQLITE_PATH" envDefault:"data/galaxy.db"`

	RoundCap    int    `env:"COMBAT_ROUND_CAP" envDefault:"10"`
	Attrition   bool   `env:"COMBAT_ATTRITION" envDefault:"false"`
	CatalogPath string `env:"CATALOG_PATH"`

	BattleWorkers       int `env:"BATTLE_WORKERS" envDefault:"8"`
	NotificationWorkers int `env:"NOTIFICATION_WORKERS" envDefault:"4"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the environment (and a .env file when present) and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) Validate() error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("%w: PORT %d", ErrInvalidConfig, cfg.Port)
	}
	if cfg.StoreDriver != DriverPostgres && cfg.StoreDriver != DriverSqlite {
		return fmt.Errorf("%w: STORE_DRIVER must be %s or %s, got %q", ErrInvalidConfig, DriverPostgres, DriverSqlite, cfg.StoreDriver)
	}
	if cfg.RoundCap <= 0 {
		return fmt.Errorf("%w: COMBAT_ROUND_CAP must be positive", ErrInvalidConfig)
	}
	if cfg.BattleWorkers <= 0 || cfg.NotificationWorkers <= 0 {
		return fmt.Errorf("%w: worker counts must be positive", ErrInvalidConfig)
	}
	return nil
}

// EngineOptions are the defaults every battle of this deployment uses.
func (cfg Config) EngineOptions() []combat.Option {
	return []combat.Option{
		combat.WithRoundCap(cfg.RoundCap),
		combat.WithAttrition(cfg.Attrition),
	}
}

// Catalog loads CATALOG_PATH, or the built-in catalog when it is unset.
func (cfg Config) Catalog() (combat.Catalog, error) {
	return LoadCatalog(cfg.CatalogPath)
}

func LoadCatalog(path string) (combat.Catalog, error) {
	if path == "" {
		return combat.DefaultCatalog(), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return combat.Catalog{}, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer file.Close()

	catalog, err := combat.LoadCatalog(file)
	if err != nil {
		return combat.Catalog{}, fmt.Errorf("catalog %s: %w", path, err)
	}
	return catalog, nil
}
