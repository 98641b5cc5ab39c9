package notifications

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"galaxy/lib/combat"
	"galaxy/lib/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, workers int) (*NotificationService, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := DefaultConfig(workers)
	cfg.RetryDelay = 10 * time.Millisecond
	service, err := NewNotificationService(cfg, &services.Cache{Db: client})
	require.NoError(t, err)
	return service, server
}

func startService(t *testing.T, service *NotificationService) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, service.Start(ctx))
	t.Cleanup(func() {
		cancel()
		service.Shutdown(context.Background())
	})
}

func resolvedRecord(t *testing.T) combat.CombatRecord {
	t.Helper()
	engine := combat.NewEngine(combat.DefaultCatalog())
	record, err := engine.Resolve(
		combat.NewFleet("empire-a", map[string]int{combat.Cruiser: 3}),
		combat.NewFleet("empire-d", map[string]int{combat.Scout: 1}),
		combat.Assault,
		combat.WithSeed(11), combat.WithRecordID("combat-1"), combat.WithLocation("sol-3"),
	)
	require.NoError(t, err)
	return record
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig(1).Validate())
	assert.ErrorIs(t, DefaultConfig(0).Validate(), ErrInvalidConfig)

	cfg := DefaultConfig(1)
	cfg.WorkerQueueSize = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	_, err := NewNotificationService(DefaultConfig(0), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStartRequiresCache(t *testing.T) {
	service, err := NewNotificationService(DefaultConfig(1), &services.Cache{})
	require.NoError(t, err)
	assert.ErrorIs(t, service.Start(context.Background()), ErrInvalidConfig)
}

func TestBattleReport(t *testing.T) {
	record := resolvedRecord(t)

	attacker := BattleReport(record, combat.Attacker)
	assert.Equal(t, "combat-1", attacker["combat_id"])
	assert.Equal(t, OutcomeVictory, attacker["outcome"])
	assert.Equal(t, "empire-d", attacker["opponent_id"])
	assert.Equal(t, "sol-3", attacker["location"])
	assert.Equal(t, len(record.Rounds), attacker["rounds"])
	assert.Empty(t, attacker["losses"])
	assert.Equal(t, map[string]int{combat.Scout: 1}, attacker["enemy_losses"])

	defender := BattleReport(record, combat.Defender)
	assert.Equal(t, OutcomeDefeat, defender["outcome"])
	assert.Equal(t, "empire-a", defender["opponent_id"])
	assert.Equal(t, map[string]int{combat.Scout: 1}, defender["losses"])
}

func TestBattleReportRetreat(t *testing.T) {
	record := resolvedRecord(t)
	record.Result.Retreated = combat.Defender
	record.Result.RetreatedID = record.DefenderID

	assert.Equal(t, OutcomeRetreat, BattleReport(record, combat.Defender)["outcome"])
	assert.Equal(t, OutcomeVictory, BattleReport(record, combat.Attacker)["outcome"])
}

func TestNotifyBattleBuffersForOfflineEmpires(t *testing.T) {
	service, _ := newTestService(t, 2)
	startService(t, service)
	ctx := context.Background()

	require.NoError(t, service.NotifyBattle(ctx, resolvedRecord(t)))

	for empire_id, outcome := range map[string]string{"empire-a": OutcomeVictory, "empire-d": OutcomeDefeat} {
		var pending []Notification
		require.Eventually(t, func() bool {
			var err error
			pending, err = service.Pending(ctx, empire_id)
			return err == nil && len(pending) == 1
		}, time.Second, 10*time.Millisecond)

		assert.Equal(t, TypeBattleReport, pending[0].Type)
		assert.Equal(t, PriorityHigh, pending[0].Priority)
		assert.Equal(t, outcome, pending[0].Content["outcome"])
		assert.Equal(t, "combat-1", pending[0].Metadata["combat_id"])
	}
}

func TestPingsAreNotBuffered(t *testing.T) {
	service, _ := newTestService(t, 1)
	startService(t, service)
	ctx := context.Background()

	require.NoError(t, service.Send(ctx, TypePing, PriorityLow, "empire-1", fiber.Map{"ping": "pong"}, nil))
	require.NoError(t, service.Send(ctx, TypeMessage, PriorityLow, "empire-1", fiber.Map{"text": "hello"}, nil))

	var pending []Notification
	require.Eventually(t, func() bool {
		pending, _ = service.Pending(ctx, "empire-1")
		return len(pending) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, TypeMessage, pending[0].Type)
}

func TestSendRequiresEmpire(t *testing.T) {
	service, _ := newTestService(t, 1)
	err := service.Send(context.Background(), TypeMessage, PriorityLow, "", nil, nil)
	assert.ErrorIs(t, err, ErrMissingEmpire)
}

func TestSendAfterShutdown(t *testing.T) {
	service, _ := newTestService(t, 1)
	require.NoError(t, service.Shutdown(context.Background()))
	require.NoError(t, service.Shutdown(context.Background()))

	err := service.Send(context.Background(), TypeMessage, PriorityLow, "empire-1", nil, nil)
	assert.ErrorIs(t, err, ErrServiceShutdown)
}

func TestConnectedEmpireReceivesLive(t *testing.T) {
	service, server := newTestService(t, 1)
	startService(t, service)
	ctx := context.Background()

	notifications := make(chan *Notification, 10)
	_, err := service.registerClient(ctx, "empire-1", notifications)
	require.NoError(t, err)
	assert.True(t, server.Exists(connectedKey("empire-1")))

	_, err = service.registerClient(ctx, "empire-1", make(chan *Notification, 1))
	assert.ErrorIs(t, err, ErrAlreadyConnected)

	require.NoError(t, service.Send(ctx, TypeAlert, PriorityHigh, "empire-1", fiber.Map{"text": "incoming"}, nil))
	select {
	case notification := <-notifications:
		assert.Equal(t, TypeAlert, notification.Type)
		assert.Equal(t, "incoming", notification.Content["text"])
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not relayed")
	}

	pending, err := service.Pending(ctx, "empire-1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	service.unregisterClient(ctx, "empire-1")
	assert.False(t, server.Exists(connectedKey("empire-1")))
}

func TestStoredNotificationsAreDrained(t *testing.T) {
	service, _ := newTestService(t, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, service.storeNotification(ctx, &Notification{
			ID:       "n",
			Type:     TypeMessage,
			EmpireID: "empire-1",
			Content:  fiber.Map{"index": i},
		}))
	}

	notifications := make(chan *Notification, 5)
	require.NoError(t, service.deliverStoredNotifications(ctx, "empire-1", notifications))
	assert.Len(t, notifications, 3)
	first := <-notifications
	assert.EqualValues(t, 0, first.Content["index"])

	pending, err := service.Pending(ctx, "empire-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestBufferIsBounded(t *testing.T) {
	service, server := newTestService(t, 1)
	ctx := context.Background()

	for i := 0; i < maxBufferLength+5; i++ {
		require.NoError(t, service.storeNotification(ctx, &Notification{Type: TypeMessage, EmpireID: "empire-1"}))
	}
	list, err := server.List(bufferKey("empire-1"))
	require.NoError(t, err)
	assert.Len(t, list, maxBufferLength)
	assert.Greater(t, server.TTL(bufferKey("empire-1")), time.Duration(0))
}

func TestCloseConnection(t *testing.T) {
	service, server := newTestService(t, 1)
	ctx := context.Background()

	close_chan, err := service.registerClient(ctx, "empire-1", make(chan *Notification, 1))
	require.NoError(t, err)

	require.NoError(t, service.RefreshConnectionTTL(ctx, "empire-1"))
	require.NoError(t, service.CloseConnection(ctx, "empire-1"))
	require.NoError(t, service.CloseConnection(ctx, "empire-1"))

	select {
	case <-close_chan:
	default:
		t.Fatal("session was not closed")
	}
	assert.False(t, server.Exists(connectedKey("empire-1")))
	service.unregisterClient(ctx, "empire-1")
}

func TestSSERequiresEmpire(t *testing.T) {
	service, _ := newTestService(t, 1)
	app := fiber.New()
	app.Get("/notify/session", service.SSENotificationHandler)

	resp, err := app.Test(httptest.NewRequest("GET", "/notify/session", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
