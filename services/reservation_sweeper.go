package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-market/internal/services/gateway"
	"ticket-market/monitoring"
)

// ReservationSweeper fails pending transactions whose reservation window has
// elapsed, releasing their tickets through the normal settlement path. A
// Redis marker with the reservation TTL is the liveness signal: while the
// marker exists the hold is still valid and the sweeper leaves it alone.
type ReservationSweeper struct {
	transactions TransactionStore
	engine       Settler
	redis        *redis.Client

	ttl      time.Duration
	interval time.Duration
}

func NewReservationSweeper(transactions TransactionStore, engine Settler, redisClient *redis.Client, ttl, interval time.Duration) *ReservationSweeper {
	return &ReservationSweeper{
		transactions: transactions,
		engine:       engine,
		redis:        redisClient,
		ttl:          ttl,
		interval:     interval,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (s *ReservationSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("reservation sweeper started", "ttl", s.ttl, "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("reservation sweeper stopped")
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				slog.Error("reservation sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce expires every stale pending transaction found in one pass.
func (s *ReservationSweeper) SweepOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.ttl)

	stale, err := s.transactions.ListStalePending(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, tx := range stale {
		if s.markerAlive(ctx, tx.ID) {
			continue
		}

		// Settling failed releases the ticket and closes the payment. A
		// success callback that raced us loses the conditional update and
		// becomes a no-op, so this never clobbers a real sale.
		if _, err := s.engine.Settle(ctx, tx.ID, gateway.OutcomeFailed, ""); err != nil {
			slog.Error("failed to expire stale reservation", "transaction", tx.ID, "error", err)
			continue
		}

		monitoring.RecordReservationExpiry()
		slog.Info("expired stale reservation", "transaction", tx.ID, "ticket", tx.TicketID)
	}

	return nil
}

func (s *ReservationSweeper) markerAlive(ctx context.Context, transactionID string) bool {
	if s.redis == nil {
		return false
	}
	n, err := s.redis.Exists(ctx, reservationKey(transactionID)).Result()
	if err != nil {
		slog.Warn("reservation marker check failed", "transaction", transactionID, "error", err)
		// Fail open: keep the hold rather than cancel on a Redis blip.
		return true
	}
	return n > 0
}
