package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"galaxy/lib/config"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	Db *redis.Client
}

func DefaultCache() Cache {
	return Cache{
		Db: nil,
	}
}

func (cache *Cache) Connect(cfg config.Config, password string) error {
	db := redis.NewClient(&redis.Options{
		Addr:     cfg.CacheAddress,
		Username: cfg.CacheUser,
		Password: password,
	})
	cache.Db = db
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := cache.Db.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to the cache: %w", err)
	}
	slog.Info("Cache connection succeeded", "address", cfg.CacheAddress)
	return nil
}

func (cache *Cache) Health() bool {
	if cache.Db == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	return cache.Db.Ping(ctx).Err() == nil
}
