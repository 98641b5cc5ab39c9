package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"galaxy/lib/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Service interface {
	Health() bool
}

type Database struct {
	Pool *pgxpool.Pool
}

func DefaultDatabase() Database {
	return Database{
		Pool: nil,
	}
}

// Uri builds the postgres connection string of cfg.
func Uri(cfg config.Config, password string) string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", cfg.DbUser, password, cfg.DbAddress, cfg.DbName)
}

func (db *Database) Connect(cfg config.Config, password string) error {
	pool_config, err := pgxpool.ParseConfig(Uri(cfg, password))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgresDB: %w", err)
	}
	pool_config.MaxConns = int32(max(4, cfg.BattleWorkers+2))
	pool_config.MinConns = 2
	pool_config.MaxConnLifetime = 1 * time.Hour
	pool_config.MaxConnIdleTime = 30 * time.Minute
	pool_config.HealthCheckPeriod = 1 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, pool_config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	db.Pool = pool
	slog.Info("Db connection succeeded", "address", cfg.DbAddress, "database", cfg.DbName)
	return nil
}

func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

func (db *Database) Health() bool {
	if db.Pool == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	return db.Pool.Ping(ctx) == nil
}
