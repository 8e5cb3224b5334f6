package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"ticket-market/internal/services/gateway"
	"ticket-market/internal/status"
	"ticket-market/models"
	"ticket-market/monitoring"
)

// TicketStore is the ticket-lifecycle slice of the store layer. Reserve,
// Commit and Release are single conditional updates; see store.TicketStore.
type TicketStore interface {
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	Reserve(ctx context.Context, ticketID string) error
	Commit(ctx context.Context, ticketID string) error
	Release(ctx context.Context, ticketID string) error
}

type TransactionStore interface {
	Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	MarkSettled(ctx context.Context, id string, outcome models.TransactionStatus, gatewayRef string) (bool, error)
	ListStalePending(ctx context.Context, cutoff time.Time) ([]*models.Transaction, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) (*models.Payment, error)
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	MarkSucceeded(ctx context.Context, id, gatewayRef string) (bool, error)
	MarkFailed(ctx context.Context, id string) (bool, error)
	SetGatewayReference(ctx context.Context, id, gatewayRef string) error
}

// EarningRecorder is the earnings-calculator slice the engine invokes on a
// successful settlement.
type EarningRecorder interface {
	Calculate(amount float64) *EarningBreakdown
	Record(ctx context.Context, sellerID string, amount float64, transactionID string) (*models.Earning, error)
}

// Notifier pushes terminal payment outcomes to the buyer's realtime channel.
type Notifier interface {
	PaymentSettled(ctx context.Context, tx *models.Transaction, success bool)
}

// EventPublisher emits settlement events for downstream consumers.
type EventPublisher interface {
	SaleSettled(ctx context.Context, tx *models.Transaction)
	EarningRecordingFailed(ctx context.Context, tx *models.Transaction, cause error)
}

// PurchaseService orchestrates the purchase workflow. It is the only writer
// of ticket purchase transitions, transaction status and payment status.
type PurchaseService struct {
	tickets      TicketStore
	transactions TransactionStore
	payments     PaymentStore
	earnings     EarningRecorder
	registry     *gateway.Registry
	notifier     Notifier
	events       EventPublisher

	// redis holds the reservation-expiry markers consumed by the sweeper.
	Redis          *redis.Client
	reservationTTL time.Duration
}

func NewPurchaseService(
	tickets TicketStore,
	transactions TransactionStore,
	payments PaymentStore,
	earnings EarningRecorder,
	registry *gateway.Registry,
	notifier Notifier,
	events EventPublisher,
	redisClient *redis.Client,
	reservationTTL time.Duration,
) *PurchaseService {
	return &PurchaseService{
		tickets:        tickets,
		transactions:   transactions,
		payments:       payments,
		earnings:       earnings,
		registry:       registry,
		notifier:       notifier,
		events:         events,
		Redis:          redisClient,
		reservationTTL: reservationTTL,
	}
}

// PurchaseResult is what the client-facing layer gets back from an initiated
// purchase. RedirectURL is set only for asynchronous wallet payments.
type PurchaseResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Payment     *models.Payment     `json:"payment"`
	Breakdown   *EarningBreakdown   `json:"breakdown"`
	RedirectURL string              `json:"redirect_url,omitempty"`
}

// InitiatePurchase validates preconditions, reserves the ticket, creates the
// pending transaction/payment pair and dispatches the method processor.
// Synchronous methods settle inline; wallet payments return a redirect URL
// and stay pending until the gateway calls back.
func (s *PurchaseService) InitiatePurchase(ctx context.Context, ticketID, buyerID string, method models.PaymentMethod) (*PurchaseResult, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if ticket.OwnerID == buyerID {
		monitoring.RecordPurchaseAttempt(method, "self_purchase")
		return nil, status.ErrSelfPurchase
	}

	// The conditional update is the availability check: exactly one of N
	// concurrent buyers gets past this line for a given ticket.
	if err := s.tickets.Reserve(ctx, ticketID); err != nil {
		monitoring.RecordPurchaseAttempt(method, "unavailable")
		return nil, err
	}

	tx, err := s.transactions.Create(ctx, &models.Transaction{
		TicketID:      ticket.ID,
		BuyerID:       buyerID,
		SellerID:      ticket.OwnerID,
		Amount:        ticket.Price,
		PaymentMethod: method,
	})
	if err != nil {
		s.rollbackReservation(ctx, ticketID)
		return nil, err
	}

	payment, err := s.payments.Create(ctx, &models.Payment{
		Method:        method,
		Amount:        ticket.Price,
		PayerID:       buyerID,
		Title:         fmt.Sprintf("Ticket for %s", ticket.EventName),
		TransactionID: tx.ID,
	})
	if err != nil {
		if _, settleErr := s.transactions.MarkSettled(ctx, tx.ID, models.TransactionFailed, ""); settleErr != nil {
			slog.Error("failed to void transaction after payment create error",
				"transaction", tx.ID, "error", settleErr)
		}
		s.rollbackReservation(ctx, ticketID)
		return nil, err
	}

	s.armReservation(ctx, tx.ID, ticket.ID)
	monitoring.RecordPurchaseAttempt(method, "reserved")

	breakdown := s.earnings.Calculate(ticket.Price)

	processor, err := s.registry.Get(method)
	if err != nil {
		if _, settleErr := s.Settle(ctx, tx.ID, gateway.OutcomeFailed, ""); settleErr != nil {
			slog.Error("failed to settle transaction for unsupported method",
				"transaction", tx.ID, "error", settleErr)
		}
		return nil, err
	}

	procResult, err := processor.Process(ctx, &gateway.ProcessRequest{
		PaymentID:     payment.ID,
		TransactionID: tx.ID,
		Title:         payment.Title,
		Amount:        decimal.NewFromFloat(ticket.Price),
	})
	if err != nil {
		// Transient gateway failure: the ticket stays reserved so the buyer
		// keeps their hold; the sweeper releases it if they never come back.
		slog.Error("payment processor failed", "transaction", tx.ID,
			"method", method, "error", err)
		return nil, err
	}

	switch procResult.Outcome {
	case gateway.OutcomePending:
		// The gateway order id lets status polling query the gateway while
		// the payment is in flight.
		if procResult.Reference != "" {
			if err := s.payments.SetGatewayReference(ctx, payment.ID, procResult.Reference); err != nil {
				slog.Warn("failed to record gateway reference", "payment", payment.ID, "error", err)
			}
		}
		return &PurchaseResult{
			Transaction: tx,
			Payment:     payment,
			Breakdown:   breakdown,
			RedirectURL: procResult.RedirectURL,
		}, nil

	default:
		settled, err := s.Settle(ctx, tx.ID, procResult.Outcome, procResult.Reference)
		if err != nil {
			return nil, err
		}

		payment, err = s.payments.GetByID(ctx, payment.ID)
		if err != nil {
			return nil, err
		}

		return &PurchaseResult{
			Transaction: settled,
			Payment:     payment,
			Breakdown:   breakdown,
		}, nil
	}
}

// Settle is the single terminal-transition path, reached inline for
// synchronous methods, from callback reconciliation for wallet payments and
// from the reservation sweeper for abandoned checkouts. The conditional
// pending->terminal update on the transaction row gates all side effects:
// the first observed outcome wins and replays are no-ops.
func (s *PurchaseService) Settle(ctx context.Context, transactionID string, outcome gateway.Outcome, gatewayRef string) (*models.Transaction, error) {
	var target models.TransactionStatus
	switch outcome {
	case gateway.OutcomeSuccess:
		target = models.TransactionSuccess
	case gateway.OutcomeFailed:
		target = models.TransactionFailed
	default:
		return nil, status.ErrInvalidTransition
	}

	// Read before the conditional update. Once MarkSettled wins, the side
	// effects below must run even when the store turns flaky, so they are
	// driven from this copy; ticket, seller and amount never change after
	// creation. Failing here is safe, nothing has transitioned yet.
	tx, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	started := time.Now()

	won, err := s.transactions.MarkSettled(ctx, transactionID, target, gatewayRef)
	if err != nil {
		return nil, err
	}

	if !won {
		stored, err := s.transactions.GetByID(ctx, transactionID)
		if err != nil {
			slog.Error("settled transaction re-read failed, stored outcome unconfirmed",
				"transaction", transactionID, "error", err)
			monitoring.RecordSettlementAnomaly()
			return nil, err
		}
		if stored.Status != target {
			slog.Warn("conflicting settlement replay ignored",
				"transaction", transactionID, "stored", stored.Status, "replayed", target)
			monitoring.RecordSettlementAnomaly()
		}
		return stored, nil
	}

	tx.Status = target
	if gatewayRef != "" {
		tx.GatewayReference = gatewayRef
	}
	now := time.Now().UTC()
	tx.SettledAt = &now

	if target == models.TransactionSuccess {
		s.finalizeSuccess(ctx, tx, gatewayRef)
	} else {
		s.finalizeFailure(ctx, tx)
	}

	s.disarmReservation(ctx, tx.ID)
	s.notifier.PaymentSettled(ctx, tx, target == models.TransactionSuccess)
	s.events.SaleSettled(ctx, tx)
	monitoring.RecordSettlement(string(target), time.Since(started))

	return tx, nil
}

// Preview returns the commission breakdown a buyer or seller sees before a
// purchase, using the same calculation as post-sale crediting.
func (s *PurchaseService) Preview(ctx context.Context, ticketID string) (*models.Ticket, *EarningBreakdown, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, s.earnings.Calculate(ticket.Price), nil
}

func (s *PurchaseService) finalizeSuccess(ctx context.Context, tx *models.Transaction, gatewayRef string) {
	if err := s.tickets.Commit(ctx, tx.TicketID); err != nil {
		// The callback is a machine; anomalies are logged, not propagated.
		slog.Error("ticket commit anomaly on successful settlement",
			"transaction", tx.ID, "ticket", tx.TicketID, "error", err)
		monitoring.RecordSettlementAnomaly()
	}

	payment, err := s.payments.GetByTransactionID(ctx, tx.ID)
	if err != nil {
		slog.Error("payment lookup failed on settlement", "transaction", tx.ID, "error", err)
	} else if _, err := s.payments.MarkSucceeded(ctx, payment.ID, gatewayRef); err != nil {
		slog.Error("payment success update failed", "payment", payment.ID, "error", err)
	}

	if _, err := s.earnings.Record(ctx, tx.SellerID, tx.Amount, tx.ID); err != nil {
		// Money already moved; the sale stands. Surface the inconsistency to
		// operators instead of reversing a completed sale.
		slog.Error("CRITICAL: earning recording failed, manual reconciliation required",
			"transaction", tx.ID, "seller", tx.SellerID, "amount", tx.Amount, "error", err)
		monitoring.RecordEarningFailure()
		s.events.EarningRecordingFailed(ctx, tx, err)
	}
}

func (s *PurchaseService) finalizeFailure(ctx context.Context, tx *models.Transaction) {
	if err := s.tickets.Release(ctx, tx.TicketID); err != nil {
		slog.Error("ticket release anomaly on failed settlement",
			"transaction", tx.ID, "ticket", tx.TicketID, "error", err)
		monitoring.RecordSettlementAnomaly()
	}

	payment, err := s.payments.GetByTransactionID(ctx, tx.ID)
	if err != nil {
		slog.Error("payment lookup failed on settlement", "transaction", tx.ID, "error", err)
	} else if _, err := s.payments.MarkFailed(ctx, payment.ID); err != nil {
		slog.Error("payment failure update failed", "payment", payment.ID, "error", err)
	}
}

func (s *PurchaseService) rollbackReservation(ctx context.Context, ticketID string) {
	if err := s.tickets.Release(ctx, ticketID); err != nil {
		slog.Error("reservation rollback failed", "ticket", ticketID, "error", err)
	}
}

func reservationKey(transactionID string) string {
	return fmt.Sprintf("reservation:%s", transactionID)
}

func (s *PurchaseService) armReservation(ctx context.Context, transactionID, ticketID string) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Set(ctx, reservationKey(transactionID), ticketID, s.reservationTTL).Err(); err != nil {
		slog.Error("failed to arm reservation marker", "transaction", transactionID, "error", err)
	}
}

func (s *PurchaseService) disarmReservation(ctx context.Context, transactionID string) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(ctx, reservationKey(transactionID)).Err(); err != nil {
		slog.Warn("failed to clear reservation marker", "transaction", transactionID, "error", err)
	}
}
