package battles

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const ORDER_TIMEOUT = 30 * time.Second

type BattleWorker struct {
	id        int
	processed atomic.Int64
	failed    atomic.Int64
}

// NewBattleWorker creates a worker with its own counters
func NewBattleWorker(id int) *BattleWorker {
	return &BattleWorker{id: id}
}

// Process resolves a single order. Failures are logged: a queued order has
// no caller left to report to.
func (w *BattleWorker) Process(ctx context.Context, order *Order, engager Engager) {
	if order == nil {
		return
	}
	order_ctx, cancel := context.WithTimeout(ctx, ORDER_TIMEOUT)
	defer cancel()

	// Resolve and persist the battle
	record, err := engager.Engage(order_ctx, *order)
	if err != nil {
		w.failed.Add(1)
		slog.Error("failed to process battle order",
			"error", err,
			"order", order.ID,
			"worker", w.id,
			"rejected", IsRejected(err),
		)
		return
	}
	w.processed.Add(1)
	slog.Debug("Battle order processed", "order", order.ID, "worker", w.id, "status", record.Status)
}
