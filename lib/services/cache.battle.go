package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"galaxy/lib/combat"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNoRetreatOrder = errors.New("no retreat order")
	ErrFleetEngaged   = errors.New("fleet is already engaged in a battle")
	ErrNotCached      = errors.New("combat record not cached")
)

const (
	RETREAT_ORDER_TTL = 24 * time.Hour
	COMBAT_RECORD_TTL = 1 * time.Hour
	FLEET_LOCK_TTL    = 30 * time.Second

	BattleOrderChannelPrefix = "battle:order:"
)

// RetreatOrder is a standing order: the fleet withdraws from its next
// battle once its health falls below Threshold of what it started with.
type RetreatOrder struct {
	FleetID   string    `json:"fleet_id"`
	Threshold float64   `json:"threshold"`
	CreatedAt time.Time `json:"created_at"`
}

func retreatKey(fleet_id string) string {
	return fmt.Sprintf("battle:retreat:%s", fleet_id)
}

func (cache *Cache) SetRetreatOrder(ctx context.Context, order RetreatOrder) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order_json, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal retreat order: %w", err)
	}
	if err := cache.Db.Set(ctx, retreatKey(order.FleetID), order_json, RETREAT_ORDER_TTL).Err(); err != nil {
		return fmt.Errorf("failed to store retreat order: %w", err)
	}
	return nil
}

func (cache *Cache) GetRetreatOrder(ctx context.Context, fleet_id string) (RetreatOrder, error) {
	order_json, err := cache.Db.Get(ctx, retreatKey(fleet_id)).Result()
	if err == redis.Nil {
		return RetreatOrder{}, ErrNoRetreatOrder
	} else if err != nil {
		return RetreatOrder{}, fmt.Errorf("failed to get retreat order: %w", err)
	}
	var order RetreatOrder
	if err := json.Unmarshal([]byte(order_json), &order); err != nil {
		return RetreatOrder{}, fmt.Errorf("failed to unmarshal retreat order: %w", err)
	}
	return order, nil
}

func (cache *Cache) DeleteRetreatOrder(ctx context.Context, fleet_id string) error {
	if err := cache.Db.Del(ctx, retreatKey(fleet_id)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to delete retreat order: %w", err)
	}
	return nil
}

func combatKey(id string) string {
	return fmt.Sprintf("battle:record:%s", id)
}

func (cache *Cache) CacheCombat(ctx context.Context, record combat.CombatRecord) error {
	record_json, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal combat record: %w", err)
	}
	if err := cache.Db.Set(ctx, combatKey(record.ID), record_json, COMBAT_RECORD_TTL).Err(); err != nil {
		return fmt.Errorf("failed to cache combat record: %w", err)
	}
	return nil
}

func (cache *Cache) GetCachedCombat(ctx context.Context, id string) (combat.CombatRecord, error) {
	record_json, err := cache.Db.Get(ctx, combatKey(id)).Result()
	if err == redis.Nil {
		return combat.CombatRecord{}, ErrNotCached
	} else if err != nil {
		return combat.CombatRecord{}, fmt.Errorf("failed to get cached combat: %w", err)
	}
	var record combat.CombatRecord
	if err := json.Unmarshal([]byte(record_json), &record); err != nil {
		return combat.CombatRecord{}, fmt.Errorf("failed to unmarshal combat record: %w", err)
	}
	return record, nil
}

func fleetLockKey(fleet_id string) string {
	return fmt.Sprintf("battle:lock:%s", fleet_id)
}

// LockFleets reserves every fleet for one battle. Either all fleets are
// locked or none is.
func (cache *Cache) LockFleets(ctx context.Context, battle_id string, fleet_ids ...string) error {
	locked := make([]string, 0, len(fleet_ids))
	for _, fleet_id := range fleet_ids {
		ok, err := cache.Db.SetNX(ctx, fleetLockKey(fleet_id), battle_id, FLEET_LOCK_TTL).Result()
		if err == nil && !ok {
			err = fmt.Errorf("%w: %s", ErrFleetEngaged, fleet_id)
		}
		if err != nil {
			cache.UnlockFleets(context.Background(), battle_id, locked...)
			return err
		}
		locked = append(locked, fleet_id)
	}
	return nil
}

// UnlockFleets releases the locks still held by battle_id.
func (cache *Cache) UnlockFleets(ctx context.Context, battle_id string, fleet_ids ...string) error {
	var unlock_err error
	for _, fleet_id := range fleet_ids {
		key := fleetLockKey(fleet_id)
		owner, err := cache.Db.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		} else if err != nil {
			unlock_err = fmt.Errorf("failed to read fleet lock: %w", err)
			continue
		}
		if owner != battle_id {
			continue
		}
		if err := cache.Db.Del(ctx, key).Err(); err != nil {
			unlock_err = fmt.Errorf("failed to release fleet lock: %w", err)
		}
	}
	return unlock_err
}

// PublishBattleOrder hands a queued battle order to the battle subscribers.
func (cache *Cache) PublishBattleOrder(ctx context.Context, order_id string, payload []byte) error {
	if err := cache.Db.Publish(ctx, BattleOrderChannelPrefix+order_id, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish battle order: %w", err)
	}
	return nil
}
