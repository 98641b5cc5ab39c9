package battles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"galaxy/lib/services"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNilWorkerPool     = errors.New("worker pool cannot be nil")
	ErrAlreadySubscribed = errors.New("subscriber is already active")
	ErrEmptyMessage      = errors.New("empty message received")
)

var BattleOrderChannel = services.BattleOrderChannelPrefix + "*"

type BattleSubscriber struct {
	worker_pool *WorkerPool
	channel     string
	pubsub      *redis.PubSub
	mu          sync.Mutex
	is_active   bool
}

// NewBattleSubscriber creates a subscriber feeding worker_pool
func NewBattleSubscriber(worker_pool *WorkerPool) (*BattleSubscriber, error) {
	if worker_pool == nil {
		return nil, ErrNilWorkerPool
	}

	return &BattleSubscriber{
		worker_pool: worker_pool,
		channel:     BattleOrderChannel,
		is_active:   false,
	}, nil
}

// Subscribe starts listening for queued battle orders
func (s *BattleSubscriber) Subscribe(ctx context.Context, cache *services.Cache) error {
	s.mu.Lock()
	if s.is_active {
		s.mu.Unlock()
		return ErrAlreadySubscribed
	}

	slog.Debug("Subscribing to the battle order channel", "channel", s.channel)
	// Initialize PubSub
	pubsub := cache.Db.PSubscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		s.mu.Unlock()
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}
	s.pubsub = pubsub
	s.is_active = true
	s.mu.Unlock()

	// Start message processing in a separate goroutine
	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					slog.Info("battle order channel closed")
					return
				}
				// Process the message
				order_id := strings.TrimPrefix(msg.Channel, services.BattleOrderChannelPrefix)
				if err := s.processMessage(msg.Payload, order_id); err != nil {
					slog.Error("failed to process battle order message",
						"error", err,
						"channel", msg.Channel)
				}
			case <-ctx.Done():
				slog.Info("context cancelled, stopping battle subscriber")
				s.UnSubscribe(context.Background())
				return
			}
		}
	}()

	return nil
}

// UnSubscribe stops listening for messages
func (s *BattleSubscriber) UnSubscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.is_active {
		return nil
	}

	slog.Debug("Unsubscribing from the battle order channel", "channel", s.channel)
	s.is_active = false
	if err := s.pubsub.PUnsubscribe(ctx, s.channel); err != nil {
		s.pubsub.Close()
		return err
	}
	return s.pubsub.Close()
}

func (s *BattleSubscriber) processMessage(message string, order_id string) error {
	if message == "" {
		return ErrEmptyMessage
	}

	var order Order
	if err := json.Unmarshal([]byte(message), &order); err != nil {
		return err
	}
	// The channel suffix names the order when the payload does not
	if order.ID == "" {
		order.ID = order_id
	}

	return s.worker_pool.SubmitOrder(&order)
}
