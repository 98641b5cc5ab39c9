package battles

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"galaxy/lib/services"
)

var (
	ErrSupervisorStarted = errors.New("supervisor is already started")
	ErrNilCache          = errors.New("cache cannot be nil")
	ErrNilEngager        = errors.New("engager cannot be nil")
)

// BattleSupervisor owns the subscriber and the worker pool that process
// queued battle orders.
type BattleSupervisor struct {
	subscriber  *BattleSubscriber
	worker_pool *WorkerPool
	is_running  bool
	mu          sync.RWMutex
}

// NewBattleSupervisor creates a new supervisor
func NewBattleSupervisor(worker_size int) (*BattleSupervisor, error) {
	if worker_size <= 0 {
		return nil, errors.New("worker size must be positive")
	}

	// Create worker pool
	worker_pool := NewWorkerPool(worker_size)

	// Create subscriber
	subscriber, err := NewBattleSubscriber(worker_pool)
	if err != nil {
		return nil, err
	}

	return &BattleSupervisor{
		subscriber:  subscriber,
		worker_pool: worker_pool,
		is_running:  false,
	}, nil
}

func (s *BattleSupervisor) Pool() *WorkerPool {
	return s.worker_pool
}

// Start launches the worker pool and the subscriber
func (s *BattleSupervisor) Start(ctx context.Context, cache *services.Cache, engager Engager) error {
	if cache == nil || cache.Db == nil {
		return ErrNilCache
	}
	if engager == nil {
		return ErrNilEngager
	}
	s.mu.Lock()
	if s.is_running {
		s.mu.Unlock()
		return ErrSupervisorStarted
	}
	s.is_running = true
	s.mu.Unlock()

	// the pool must accept orders before the first message arrives
	s.worker_pool.Start(ctx, engager)

	// Start subscriber
	if err := s.subscriber.Subscribe(ctx, cache); err != nil {
		s.Stop(context.Background())
		return err
	}

	// Monitor context cancellation
	go func() {
		<-ctx.Done()
		if err := s.Stop(context.Background()); err != nil {
			s.HandleError(err)
		}
	}()

	return nil
}

// Stop gracefully shuts down all components
func (s *BattleSupervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.is_running {
		s.mu.Unlock()
		return nil
	}
	s.is_running = false
	s.mu.Unlock()

	// Collect shutdown errors of both components
	errCh := make(chan error, 2)

	// Stop subscriber
	go func() {
		errCh <- s.subscriber.UnSubscribe(ctx)
	}()

	// Stop worker pool
	go func() {
		s.worker_pool.Stop()
		errCh <- nil // Worker pool stop doesn't return error
	}()

	var shutdown_err error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			shutdown_err = err
			slog.Error("component shutdown failed", "error", err)
		}
	}
	return shutdown_err
}

// HandleError logs errors from workers and subscriber
func (s *BattleSupervisor) HandleError(err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, context.Canceled):
		slog.Info("battle supervisor shutdown due to context cancellation")
	case errors.Is(err, ErrPoolNotStarted):
		slog.Error("battle worker pool failed to start")
	default:
		slog.Error("unexpected error in battle processing", "error", err, "component", "supervisor")
	}
}
