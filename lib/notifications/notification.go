package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"galaxy/lib/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Common errors
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrDeliveryFailed   = errors.New("notification delivery failed")
	ErrAlreadyConnected = errors.New("empire already has a notification session")
	ErrServiceShutdown  = errors.New("notification service is shut down")
	ErrMissingEmpire    = errors.New("notification has no empire")
)

// NotificationType represents different types of notifications
type NotificationType string

const (
	TypeBattleReport NotificationType = "battle_report"
	TypeRetreatOrder NotificationType = "retreat_order"
	TypeMessage      NotificationType = "message"
	TypePing         NotificationType = "ping"
	TypeAlert        NotificationType = "alert"
)

type NotificationPriority int

const (
	PriorityLow    NotificationPriority = 1
	PriorityMedium NotificationPriority = 2
	PriorityHigh   NotificationPriority = 3
)

const (
	connectionTTL   = 15 * time.Minute
	bufferTTL       = 7 * 24 * time.Hour
	maxBufferLength = 200
)

// Notification represents a single notification message
type Notification struct {
	ID        string               `json:"id"`
	Type      NotificationType     `json:"type"`
	EmpireID  string               `json:"empire_id,omitempty"`
	Content   fiber.Map            `json:"content"`
	CreatedAt time.Time            `json:"created_at"`
	Priority  NotificationPriority `json:"priority"`
	Metadata  fiber.Map            `json:"metadata,omitempty"`
}

func (n *Notification) Reset() {
	*n = Notification{}
}

// Config holds the configuration for the notification system
type Config struct {
	WorkerCount     int
	WorkerQueueSize int
	RetryAttempts   int
	RetryDelay      time.Duration
	InitialPoolSize int
}

func DefaultConfig(workers int) *Config {
	return &Config{
		WorkerCount:     workers,
		WorkerQueueSize: 1000,
		RetryAttempts:   3,
		RetryDelay:      2 * time.Second,
		InitialPoolSize: 100,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("%w: worker count must be greater than 0", ErrInvalidConfig)
	}
	if c.WorkerQueueSize < 0 || c.RetryAttempts < 0 {
		return fmt.Errorf("%w: queue size and retry attempts cannot be negative", ErrInvalidConfig)
	}
	return nil
}

func channelKey(empire_id string) string {
	return fmt.Sprintf("notifications:channel:empire:%s", empire_id)
}

func connectedKey(empire_id string) string {
	return fmt.Sprintf("notifications:is_connected:%s", empire_id)
}

func bufferKey(empire_id string) string {
	return fmt.Sprintf("notifications:buffer:%s", empire_id)
}

// clientRegistry manages active SSE connections, one per empire.
type clientRegistry struct {
	mu         sync.RWMutex
	clients    map[string]chan *Notification
	subConns   map[string]*redis.PubSub
	closeChans map[string]chan struct{}
}

type NotificationService struct {
	config       *Config
	cache        *services.Cache
	jobs         chan *Notification
	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
	registry     *clientRegistry
	pool         sync.Pool
	bufPool      sync.Pool
}

// NewNotificationService creates a new notification service
func NewNotificationService(cfg *Config, cache *services.Cache) (*NotificationService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &NotificationService{
		config:   cfg,
		cache:    cache,
		jobs:     make(chan *Notification, cfg.WorkerQueueSize),
		shutdown: make(chan struct{}),
		registry: &clientRegistry{
			clients:    make(map[string]chan *Notification),
			subConns:   make(map[string]*redis.PubSub),
			closeChans: make(map[string]chan struct{}),
		},
	}
	// Initialize notification pool
	s.pool.New = func() interface{} {
		return &Notification{}
	}
	// Initialize buffer pool
	s.bufPool.New = func() interface{} {
		b := make([]byte, 0, 1024)
		return &b
	}
	// Pre-warm the pool
	for i := 0; i < cfg.InitialPoolSize; i++ {
		s.pool.Put(&Notification{})
	}

	return s, nil
}

// GetNotification gets a notification from the pool
func (s *NotificationService) GetNotification() *Notification {
	return s.pool.Get().(*Notification)
}

// PutNotification returns a notification to the pool
func (s *NotificationService) PutNotification(n *Notification) {
	n.Reset()
	s.pool.Put(n)
}

// Send queues a notification for processing
func (s *NotificationService) Send(
	ctx context.Context,
	t NotificationType,
	priority NotificationPriority,
	empire_id string,
	content fiber.Map,
	metadata fiber.Map,
) error {
	if empire_id == "" {
		return ErrMissingEmpire
	}
	select {
	case <-s.shutdown:
		return ErrServiceShutdown
	default:
	}

	// Create a pooled copy of the notification
	notification := s.GetNotification()
	notification.ID = uuid.New().String()
	notification.CreatedAt = time.Now().UTC()
	notification.EmpireID = empire_id
	notification.Type = t
	notification.Priority = priority
	notification.Content = content
	notification.Metadata = metadata

	select {
	case s.jobs <- notification:
		return nil
	case <-ctx.Done():
		s.PutNotification(notification)
		return ctx.Err()
	case <-s.shutdown:
		s.PutNotification(notification)
		return ErrServiceShutdown
	}
}

// processNotification publishes to a connected empire, or buffers the
// notification until the empire opens a session. Pings are never buffered.
func (s *NotificationService) processNotification(ctx context.Context, n *Notification) error {
	if s.hasActiveConnection(ctx, n.EmpireID) {
		return s.deliverNotification(ctx, n)
	}
	if n.Type == TypePing {
		return nil
	}
	return s.storeNotification(ctx, n)
}

// deliverNotification publishes a notification on the empire channel
func (s *NotificationService) deliverNotification(ctx context.Context, n *Notification) error {
	// Get buffer from pool
	buf_ptr := s.bufPool.Get().(*[]byte)
	b := bytes.NewBuffer((*buf_ptr)[:0])
	defer s.bufPool.Put(buf_ptr)

	if err := json.NewEncoder(b).Encode(n); err != nil {
		return err
	}
	return s.cache.Db.Publish(ctx, channelKey(n.EmpireID), b.Bytes()).Err()
}

// Start launches the workers. They stop when ctx is cancelled or on Shutdown.
func (s *NotificationService) Start(ctx context.Context) error {
	if s.cache == nil || s.cache.Db == nil {
		return fmt.Errorf("%w: cache is not connected", ErrInvalidConfig)
	}
	slog.Info("Notifications : starting notification service", "workers", s.config.WorkerCount)

	for i := 0; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
	return nil
}

// registerClient subscribes to the empire channel and relays its messages
// to notifications.
func (s *NotificationService) registerClient(ctx context.Context, empire_id string, notifications chan *Notification) (chan struct{}, error) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	// Check if the empire already has a session
	if _, exists := s.registry.clients[empire_id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyConnected, empire_id)
	}

	// Subscribe to Redis channel
	pubsub := s.cache.Db.Subscribe(ctx, channelKey(empire_id))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to Redis channel: %w", err)
	}
	close_chan := make(chan struct{})

	// Store client channel and subscription
	s.registry.clients[empire_id] = notifications
	s.registry.subConns[empire_id] = pubsub
	s.registry.closeChans[empire_id] = close_chan

	// Start message relay goroutine
	go s.relayMessages(ctx, empire_id, pubsub.Channel(), notifications)

	// Set connection status in Redis
	if err := s.cache.Db.Set(ctx, connectedKey(empire_id), true, connectionTTL).Err(); err != nil {
		slog.Error("Notifications : failed to set connection status", "error", err, "empire_id", empire_id)
	}

	slog.Info("Notifications : empire registered to a notification session", "empire_id", empire_id)
	return close_chan, nil
}

// unregisterClient removes a client connection
func (s *NotificationService) unregisterClient(ctx context.Context, empire_id string) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	// Close Redis subscription if exists
	if pubsub, exists := s.registry.subConns[empire_id]; exists {
		if err := pubsub.Close(); err != nil {
			slog.Error("Notifications : failed to close pubsub connection", "error", err, "empire_id", empire_id)
		}
		delete(s.registry.subConns, empire_id)
	}
	delete(s.registry.clients, empire_id)
	delete(s.registry.closeChans, empire_id)

	// Remove connection status from Redis
	if err := s.cache.Db.Del(ctx, connectedKey(empire_id)).Err(); err != nil {
		slog.Error("Notifications : failed to remove connection status", "error", err, "empire_id", empire_id)
	}

	slog.Info("Notifications : empire unregistered from its notification session", "empire_id", empire_id)
}

// relayMessages forwards messages from Redis to the SSE session
func (s *NotificationService) relayMessages(ctx context.Context, empire_id string, messages <-chan *redis.Message, notifications chan<- *Notification) {
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			notification := s.GetNotification()
			if err := json.Unmarshal([]byte(msg.Payload), notification); err != nil {
				slog.Error("Notifications : failed to unmarshal notification", "error", err, "empire_id", empire_id)
				s.PutNotification(notification)
				continue
			}

			s.registry.mu.RLock()
			_, exists := s.registry.clients[empire_id]
			s.registry.mu.RUnlock()
			if !exists {
				s.PutNotification(notification)
				return
			}

			select {
			case notifications <- notification:
			case <-ctx.Done():
				s.PutNotification(notification)
				return
			case <-s.shutdown:
				s.PutNotification(notification)
				return
			default:
				slog.Warn("Notifications : client channel full, storing notification", "empire_id", empire_id)
				if err := s.storeNotification(ctx, notification); err != nil {
					slog.Error("Notifications : failed to store notification", "error", err, "empire_id", empire_id)
				}
				s.PutNotification(notification)
			}

		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		}
	}
}

// deliverStoredNotifications drains the empire buffer into notifications.
func (s *NotificationService) deliverStoredNotifications(ctx context.Context, empire_id string, notifications chan<- *Notification) error {
	key := bufferKey(empire_id)
	for {
		result, err := s.cache.Db.LPop(ctx, key).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get stored notification: %w", err)
		}

		notification := s.GetNotification()
		if err := json.Unmarshal([]byte(result), notification); err != nil {
			s.PutNotification(notification)
			continue
		}

		select {
		case notifications <- notification:
		case <-ctx.Done():
			s.PutNotification(notification)
			return ctx.Err()
		}
	}
}

// Pending returns the buffered notifications of an offline empire without
// consuming them.
func (s *NotificationService) Pending(ctx context.Context, empire_id string) ([]Notification, error) {
	entries, err := s.cache.Db.LRange(ctx, bufferKey(empire_id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stored notifications: %w", err)
	}
	pending := make([]Notification, 0, len(entries))
	for _, entry := range entries {
		var notification Notification
		if err := json.Unmarshal([]byte(entry), &notification); err != nil {
			continue
		}
		pending = append(pending, notification)
	}
	return pending, nil
}

// worker processes notifications from the job queue
func (s *NotificationService) worker(ctx context.Context, id int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case notification := <-s.jobs:
			if err := s.processNotification(ctx, notification); err != nil {
				slog.Error("Notifications : failed to process notification",
					"error", err,
					"worker", id,
					"notification_id", notification.ID)
				// Handle retry logic
				if err := s.handleRetry(ctx, notification); err != nil {
					slog.Error("Notifications : retry failed", "error", err, "notification_id", notification.ID)
				}
			}
			s.PutNotification(notification)
		}
	}
}

// Shutdown stops the workers and closes every open session.
func (s *NotificationService) Shutdown(ctx context.Context) error {
	slog.Info("Notifications : shutting down notification service")
	s.shutdownOnce.Do(func() { close(s.shutdown) })

	s.registry.mu.Lock()
	for empire_id, close_chan := range s.registry.closeChans {
		close(close_chan)
		delete(s.registry.closeChans, empire_id)
	}
	s.registry.mu.Unlock()

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Helper methods

func (s *NotificationService) hasActiveConnection(ctx context.Context, empire_id string) bool {
	count, err := s.cache.Db.Exists(ctx, connectedKey(empire_id)).Result()
	if err != nil {
		return false
	}
	return count > 0
}

// storeNotification appends to the empire buffer, keeping the newest
// maxBufferLength entries.
func (s *NotificationService) storeNotification(ctx context.Context, n *Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	key := bufferKey(n.EmpireID)
	_, err = s.cache.Db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, -maxBufferLength, -1)
		pipe.Expire(ctx, key, bufferTTL)
		return nil
	})
	return err
}

func (s *NotificationService) handleRetry(ctx context.Context, n *Notification) error {
	for i := 0; i < s.config.RetryAttempts; i++ {
		select {
		case <-time.After(s.config.RetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdown:
			return ErrServiceShutdown
		}
		if err := s.processNotification(ctx, n); err == nil {
			return nil
		}
	}
	return ErrDeliveryFailed
}
