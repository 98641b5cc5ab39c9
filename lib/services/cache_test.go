package services

import (
	"context"
	"testing"
	"time"

	"galaxy/lib/combat"
	"galaxy/lib/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return &Cache{Db: client}, server
}

func TestCacheConnect(t *testing.T) {
	server := miniredis.RunT(t)
	cache := DefaultCache()
	assert.False(t, cache.Health())

	require.NoError(t, cache.Connect(config.Config{CacheAddress: server.Addr()}, ""))
	assert.True(t, cache.Health())
}

func TestRetreatOrders(t *testing.T) {
	cache, server := newTestCache(t)
	ctx := context.Background()

	_, err := cache.GetRetreatOrder(ctx, "fleet-1")
	assert.ErrorIs(t, err, ErrNoRetreatOrder)

	require.NoError(t, cache.SetRetreatOrder(ctx, RetreatOrder{FleetID: "fleet-1", Threshold: 0.4}))
	order, err := cache.GetRetreatOrder(ctx, "fleet-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, order.Threshold, 1e-12)
	assert.False(t, order.CreatedAt.IsZero())
	assert.Equal(t, RETREAT_ORDER_TTL, server.TTL(retreatKey("fleet-1")))

	require.NoError(t, cache.DeleteRetreatOrder(ctx, "fleet-1"))
	_, err = cache.GetRetreatOrder(ctx, "fleet-1")
	assert.ErrorIs(t, err, ErrNoRetreatOrder)
	require.NoError(t, cache.DeleteRetreatOrder(ctx, "fleet-1"))
}

func TestCacheCombat(t *testing.T) {
	cache, server := newTestCache(t)
	ctx := context.Background()

	engine := combat.NewEngine(combat.DefaultCatalog())
	record, err := engine.Resolve(
		combat.NewFleet("a", map[string]int{combat.Fighter: 10}),
		combat.NewFleet("d", map[string]int{combat.Scout: 10}),
		combat.Raid, combat.WithSeed(4))
	require.NoError(t, err)

	_, err = cache.GetCachedCombat(ctx, record.ID)
	assert.ErrorIs(t, err, ErrNotCached)

	require.NoError(t, cache.CacheCombat(ctx, record))
	cached, err := cache.GetCachedCombat(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, cached.ID)
	assert.Equal(t, record.Rounds, cached.Rounds)

	server.FastForward(COMBAT_RECORD_TTL + time.Second)
	_, err = cache.GetCachedCombat(ctx, record.ID)
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestFleetLocks(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.LockFleets(ctx, "battle-1", "fleet-a", "fleet-b"))

	err := cache.LockFleets(ctx, "battle-2", "fleet-c", "fleet-b")
	require.ErrorIs(t, err, ErrFleetEngaged)

	// the partial lock on fleet-c was released
	require.NoError(t, cache.LockFleets(ctx, "battle-3", "fleet-c"))

	// only the owner releases its locks
	require.NoError(t, cache.UnlockFleets(ctx, "battle-2", "fleet-a", "fleet-b"))
	assert.ErrorIs(t, cache.LockFleets(ctx, "battle-4", "fleet-a"), ErrFleetEngaged)

	require.NoError(t, cache.UnlockFleets(ctx, "battle-1", "fleet-a", "fleet-b"))
	require.NoError(t, cache.LockFleets(ctx, "battle-4", "fleet-a", "fleet-b"))
}

func TestPublishBattleOrder(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	pubsub := cache.Db.PSubscribe(ctx, BattleOrderChannelPrefix+"*")
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, cache.PublishBattleOrder(ctx, "order-1", []byte(`{"id":"order-1"}`)))

	select {
	case msg := <-pubsub.Channel():
		assert.Equal(t, "battle:order:order-1", msg.Channel)
		assert.JSONEq(t, `{"id":"order-1"}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("battle order not received")
	}
}

func TestDatabaseUri(t *testing.T) {
	cfg := config.Config{DbUser: "galaxy", DbAddress: "db:5432", DbName: "war"}
	assert.Equal(t, "postgres://galaxy:secret@db:5432/war?sslmode=disable", Uri(cfg, "secret"))

	db := DefaultDatabase()
	assert.False(t, db.Health())
}
