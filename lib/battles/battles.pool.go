package battles

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	ErrPoolNotStarted = errors.New("worker pool not started")
	ErrPoolFull       = errors.New("worker pool queue is full")
	ErrNilOrder       = errors.New("cannot submit nil order")
)

type WorkerPool struct {
	workers     []*BattleWorker
	order_chan  chan *Order
	worker_size int
	started     bool
	mu          sync.RWMutex
	wg          sync.WaitGroup
}

// NewWorkerPool creates a new pool with the specified number of workers
func NewWorkerPool(worker_size int) *WorkerPool {
	if worker_size <= 0 {
		worker_size = 1
	}

	return &WorkerPool{
		workers:     make([]*BattleWorker, worker_size),
		worker_size: worker_size,
		started:     false,
	}
}

// SubmitOrder queues a battle order without blocking
func (p *WorkerPool) SubmitOrder(order *Order) error {
	if order == nil {
		return ErrNilOrder
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.started {
		return ErrPoolNotStarted
	}

	slog.Debug("Submit a battle order", "order", order.ID)
	select {
	case p.order_chan <- order:
		return nil
	default:
		return ErrPoolFull
	}
}

// Start launches the workers. Each order is resolved by engager.
func (p *WorkerPool) Start(ctx context.Context, engager Engager) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	// 2x worker count keeps workers busy between redis messages
	p.order_chan = make(chan *Order, p.worker_size*2)

	slog.Debug("Starting the battle worker pool", "worker_size", p.worker_size)
	for i := 0; i < p.worker_size; i++ {
		worker := NewBattleWorker(i)
		p.workers[i] = worker
		p.wg.Add(1)
		go func(w *BattleWorker, orders <-chan *Order) {
			defer p.wg.Done()
			for {
				select {
				case order, ok := <-orders:
					if !ok {
						return
					}
					w.Process(ctx, order, engager)
				case <-ctx.Done():
					return
				}
			}
		}(worker, p.order_chan)
	}

	p.started = true
}

// Stop closes the queue and waits for the workers to drain it
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	close(p.order_chan)
	p.started = false
	p.mu.Unlock()

	slog.Debug("Stopping the battle worker pool")
	p.wg.Wait()
}

// Stats sums the counters of every worker.
func (p *WorkerPool) Stats() (processed, failed int64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, worker := range p.workers {
		if worker == nil {
			continue
		}
		processed += worker.processed.Load()
		failed += worker.failed.Load()
	}
	return processed, failed
}
